package repository

import "github.com/metaphizix/MetaphizixEA-sub001/pkg/config"

// ConfigInstrumentInfo resolves quote precision from configuration.
type ConfigInstrumentInfo struct {
	cfg *config.Config
}

func NewConfigInstrumentInfo(cfg *config.Config) *ConfigInstrumentInfo {
	return &ConfigInstrumentInfo{cfg: cfg}
}

func (i *ConfigInstrumentInfo) Digits(symbol string) int {
	return i.cfg.SymbolDigits(symbol)
}
