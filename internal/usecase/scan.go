package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
	domsvc "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/service"
	icache "github.com/metaphizix/MetaphizixEA-sub001/internal/service/cache"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/signals"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/structure"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/zones"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/config"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
)

// ScanUseCase runs one full analysis pass per symbol: zone detection on
// every timeframe, structure analysis, signal generation, combination and
// publication. It is driven synchronously by the scheduler; per-symbol
// passes share no mutable state beyond the locked stores.
type ScanUseCase struct {
	cfg       *config.Config
	detector  *zones.Detector
	analyzer  *structure.Analyzer
	generator *signals.Generator
	sigStore  *signals.Store
	combiner  *Combiner
	bars      domrepo.BarSeries
	quotes    domrepo.QuoteProvider
	publisher domrepo.SignalPublisher
	metrics   domrepo.Metrics
	cache     *icache.TTLCache
	log       *applogger.Logger
	sources   []domsvc.SignalSource
	now       func() time.Time
}

func NewScanUseCase(
	cfg *config.Config,
	detector *zones.Detector,
	analyzer *structure.Analyzer,
	generator *signals.Generator,
	sigStore *signals.Store,
	combiner *Combiner,
	bars domrepo.BarSeries,
	quotes domrepo.QuoteProvider,
	publisher domrepo.SignalPublisher,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *ScanUseCase {
	return &ScanUseCase{
		cfg:       cfg,
		detector:  detector,
		analyzer:  analyzer,
		generator: generator,
		sigStore:  sigStore,
		combiner:  combiner,
		bars:      bars,
		quotes:    quotes,
		publisher: publisher,
		metrics:   metrics,
		cache:     icache.NewTTLCache(),
		log:       log,
		now:       time.Now,
	}
}

// RegisterSource adds an additional signal source to the pass.
func (uc *ScanUseCase) RegisterSource(src domsvc.SignalSource) {
	uc.sources = append(uc.sources, src)
}

// SetClock overrides the time source. Intended for tests.
func (uc *ScanUseCase) SetClock(now func() time.Time) { uc.now = now }

// RunSymbol executes one analysis pass for a symbol and returns the final
// combined signals. An unresolvable symbol yields an empty result.
func (uc *ScanUseCase) RunSymbol(ctx context.Context, symbol string) ([]models.Signal, error) {
	start := time.Now()
	defer func() {
		uc.metrics.RecordScanDuration(symbol, time.Since(start).Seconds())
	}()
	now := uc.now()

	quote, ok := uc.quotes.Quote(symbol)
	if !ok {
		uc.log.Warn("no quote for symbol", applogger.String("symbol", symbol))
		return nil, nil
	}
	uc.metrics.RecordLastPrice(symbol, quote.Mid())

	var (
		candidates []models.Signal
		structures []models.MarketStructure
		volPips    float64
	)

	for _, tf := range domrepo.ScanTimeframes() {
		zs, err := uc.detector.Scan(ctx, symbol, tf)
		if err != nil {
			uc.log.Warn("zone scan failed",
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
			continue
		}

		bars, err := uc.bars.LatestBars(ctx, symbol, tf, uc.cfg.Detection.ScanLookback)
		if err != nil {
			uc.metrics.RecordError("bar_fetch")
			continue
		}
		structures = append(structures, uc.analyzer.Analyze(symbol, tf, bars))

		atr := uc.cachedATR(symbol, tf, bars)
		if tf == domrepo.DefaultTimeframe() {
			if pip := domrepo.PipSize(uc.cfg.SymbolDigits(symbol)); pip > 0 {
				volPips = atr / pip
			}
		}

		lastClose := 0.0
		if len(bars) > 0 {
			lastClose = bars[len(bars)-1].Close
		}

		for i := range zs {
			z := &zs[i]
			if s := uc.generator.FromZone(z, quote, atr); s != nil {
				candidates = append(candidates, *s)
			}
			// exits only while the break is still fresh
			if z.Status != models.ZoneBroken || now.Sub(z.UpdatedAt) > uc.cfg.Signals.Expiry {
				continue
			}
			if s := uc.generator.ExitFromZone(z, lastClose); s != nil {
				candidates = append(candidates, *s)
			}
		}
	}

	for _, src := range uc.sources {
		sigs, err := src.Candidates(ctx, symbol)
		if err != nil {
			uc.metrics.RecordError("source_" + string(src.Name()))
			uc.log.Warn("signal source failed",
				applogger.String("source", string(src.Name())),
				applogger.Error(err),
			)
			continue
		}
		candidates = append(candidates, sigs...)
	}

	final := uc.combiner.Combine(ctx, CombineInput{
		Symbol:     symbol,
		Candidates: candidates,
		Volatility: volPips,
		Structures: structures,
	})

	published := make([]models.Signal, 0, len(final))
	for i := range final {
		s := final[i]
		if !uc.sigStore.AddUnique(&s, now) {
			continue
		}
		if err := uc.publisher.Publish(ctx, &s); err != nil {
			uc.metrics.RecordError("publish")
			uc.log.Error("signal publish failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		published = append(published, s)
	}

	uc.sigStore.Prune(now)
	return published, nil
}

// RunAll runs the pass for every configured symbol.
func (uc *ScanUseCase) RunAll(ctx context.Context) error {
	var firstErr error
	for _, symbol := range uc.cfg.Symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := uc.RunSymbol(ctx, symbol); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("scan %s: %w", symbol, err)
		}
	}
	return firstErr
}

// Signals returns the live signals for a symbol.
func (uc *ScanUseCase) Signals(symbol string) []models.Signal {
	return uc.sigStore.ActiveBySymbol(symbol, uc.now())
}

// Zones returns the current zone snapshot for a symbol and timeframe.
func (uc *ScanUseCase) Zones(symbol string, tf domrepo.Timeframe) []models.StructuralZone {
	return uc.detector.Zones(symbol, tf)
}

// Structure computes a fresh structure snapshot for a symbol/timeframe.
func (uc *ScanUseCase) Structure(ctx context.Context, symbol string, tf domrepo.Timeframe) (models.MarketStructure, error) {
	bars, err := uc.bars.LatestBars(ctx, symbol, tf, uc.cfg.Detection.ScanLookback)
	if err != nil {
		return models.MarketStructure{}, fmt.Errorf("latest bars: %w", err)
	}
	return uc.analyzer.Analyze(symbol, tf, bars), nil
}

// cachedATR keeps ATR per symbol/timeframe for one scan interval.
func (uc *ScanUseCase) cachedATR(symbol string, tf domrepo.Timeframe, bars []models.Bar) float64 {
	key := "atr/" + symbol + "/" + string(tf)
	if v, ok := uc.cache.GetFloat(key); ok {
		return v
	}
	atr := structure.ATR(bars, uc.cfg.Detection.ATRPeriod)
	uc.cache.Set(key, atr, uc.cfg.Detection.ScanInterval)
	return atr
}
