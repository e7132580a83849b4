package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Detection holds zone-detector parameters.
type Detection struct {
	ScanLookback     int           `yaml:"scan_lookback" default:"100" validate:"gt=0"`
	LiquidityWindow  int           `yaml:"liquidity_window" default:"20" validate:"gt=0"`
	MinTouches       int           `yaml:"min_touches" default:"2" validate:"gte=1"`
	MinBodyRatio     float64       `yaml:"min_body_ratio" default:"0.7" validate:"gt=0,lte=1"`
	MinZonePips      float64       `yaml:"min_zone_pips" default:"10" validate:"gte=0"`
	MinStrength      float64       `yaml:"min_strength" default:"0.3" validate:"gte=0,lte=1"`
	ATRPeriod        int           `yaml:"atr_period" default:"14" validate:"gt=1"`
	VolumePeriod     int           `yaml:"volume_period" default:"20" validate:"gt=0"`
	ScanInterval     time.Duration `yaml:"scan_interval" default:"60s" validate:"gt=0"`
	SwingSidebars    int           `yaml:"swing_sidebars" default:"5" validate:"gt=0"`
	TrendLookback    int           `yaml:"trend_lookback" default:"14" validate:"gt=1"`
	TrendThreshold   float64       `yaml:"trend_threshold" default:"0.25" validate:"gte=0,lte=1"`
	WeakenedTouches  int           `yaml:"weakened_touches" default:"3" validate:"gte=1"`
	ConfluenceWeight float64       `yaml:"confluence_weight" default:"0.25" validate:"gte=0,lte=1"`
}

// Signals holds signal-generator parameters.
type Signals struct {
	MaxZoneAge    time.Duration `yaml:"max_zone_age" default:"168h" validate:"gt=0"`
	MaxATRDist    float64       `yaml:"max_atr_distance" default:"2.0" validate:"gt=0"`
	StopATR       float64       `yaml:"stop_atr" default:"1.5" validate:"gt=0"`
	TargetATR     float64       `yaml:"target_atr" default:"3.0" validate:"gt=0"`
	MinRewardRisk float64       `yaml:"min_reward_risk" default:"1.5" validate:"gt=0"`
	MinConfidence float64       `yaml:"min_confidence" default:"0.4" validate:"gte=0,lte=1"`
	Expiry        time.Duration `yaml:"expiry" default:"4h" validate:"gt=0"`
}

// Combiner holds signal-combiner parameters.
type Combiner struct {
	ConfidenceFloor      float64       `yaml:"confidence_floor" default:"0.4" validate:"gte=0,lte=1"`
	CorrelationThreshold float64       `yaml:"correlation_threshold" default:"0.85" validate:"gte=0,lte=1"`
	MinVolatility        float64       `yaml:"min_volatility"`
	MaxVolatility        float64       `yaml:"max_volatility"`
	RequireAlignment     bool          `yaml:"require_alignment"`
	EnsembleEnabled      bool          `yaml:"ensemble_enabled"`
	ConflictWindow       time.Duration `yaml:"conflict_window" default:"4h" validate:"gt=0"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Symbols []string       `yaml:"symbols"`
	Digits  map[string]int `yaml:"digits"` // quote precision per symbol

	Detection Detection `yaml:"detection"`
	Signals   Signals   `yaml:"signals"`
	Combiner  Combiner  `yaml:"combiner"`

	// Correlated pairs keyed "SYM1:SYM2" with their coefficient.
	Correlations map[string]float64 `yaml:"correlations"`

	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		BatchSize    int           `yaml:"batch_size"`
		Linger       time.Duration `yaml:"linger"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		MaxAttempts  int           `yaml:"max_attempts"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Quotes struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"quotes"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Fill parameter defaults before validating
	if err := defaults.Set(&c.Detection); err != nil {
		return nil, fmt.Errorf("detection defaults: %w", err)
	}
	if err := defaults.Set(&c.Signals); err != nil {
		return nil, fmt.Errorf("signals defaults: %w", err)
	}
	if err := defaults.Set(&c.Combiner); err != nil {
		return nil, fmt.Errorf("combiner defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("QUOTES_API_KEY"); v != "" {
		c.Quotes.APIKey = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols cannot be empty")
	}
	if err := validate.Struct(&c.Detection); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if err := validate.Struct(&c.Signals); err != nil {
		return fmt.Errorf("signals: %w", err)
	}
	if err := validate.Struct(&c.Combiner); err != nil {
		return fmt.Errorf("combiner: %w", err)
	}
	if c.Combiner.MaxVolatility > 0 && c.Combiner.MaxVolatility < c.Combiner.MinVolatility {
		return fmt.Errorf("combiner.max_volatility must be >= min_volatility")
	}
	return nil
}

// SymbolDigits returns the configured quote precision for symbol, defaulting
// to 5 (fractional-pip FX quote) when unspecified.
func (c *Config) SymbolDigits(symbol string) int {
	if d, ok := c.Digits[symbol]; ok {
		return d
	}
	return 5
}
