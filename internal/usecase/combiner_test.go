package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/signals"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/config"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordZoneDetected(string, string)     {}
func (nopMetrics) RecordActiveZones(string, string, int) {}
func (nopMetrics) RecordSignalGenerated(string, string)  {}
func (nopMetrics) RecordSignalRejected(string, string)   {}
func (nopMetrics) RecordScanDuration(string, float64)    {}
func (nopMetrics) RecordLastPrice(string, float64)       {}
func (nopMetrics) RecordError(string)                    {}

type stubWeights struct{ m map[string]float64 }

func (s stubWeights) Weights(context.Context) (map[string]float64, error) { return s.m, nil }
func (s stubWeights) SetWeight(context.Context, string, float64) error    { return nil }

type stubGate struct{ blocked bool }

func (g stubGate) Blocked(string, time.Time) bool { return g.blocked }

var combNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

type combFixture struct {
	c     *Combiner
	cfg   *config.Config
	store *signals.Store
}

func newCombFixture(t *testing.T, mutate func(*config.Config)) *combFixture {
	t.Helper()
	cfg := &config.Config{}
	require.NoError(t, defaults.Set(&cfg.Combiner))
	if mutate != nil {
		mutate(cfg)
	}
	store := signals.NewStore()
	c := NewCombiner(cfg, store, stubWeights{}, stubGate{}, nopMetrics{}, applogger.Nop())
	c.SetClock(func() time.Time { return combNow })
	return &combFixture{c: c, cfg: cfg, store: store}
}

func candidate(typ models.SignalType, conf float64, src models.SignalSourceName) models.Signal {
	return models.Signal{
		Symbol:     "EURUSD",
		Type:       typ,
		Source:     src,
		Timeframe:  "H1",
		Entry:      1.1050,
		StopLoss:   1.1035,
		TakeProfit: 1.1080,
		Confidence: conf,
		CreatedAt:  combNow,
		ExpiresAt:  combNow.Add(4 * time.Hour),
	}
}

func TestCombineResolvesOpposingSignals(t *testing.T) {
	f := newCombFixture(t, nil)

	out := f.c.Combine(context.Background(), CombineInput{
		Symbol: "EURUSD",
		Candidates: []models.Signal{
			candidate(models.SignalBuyEntry, 0.6, models.SourceZone),
			candidate(models.SignalSellEntry, 0.8, models.SourceStructure),
		},
	})

	require.Len(t, out, 1)
	assert.Equal(t, models.SignalSellEntry, out[0].Type)
	assert.Equal(t, 0.8, out[0].Confidence)
}

func TestCombineConflictTieGoesToMostRecent(t *testing.T) {
	f := newCombFixture(t, nil)
	older := candidate(models.SignalBuyEntry, 0.7, models.SourceZone)
	older.CreatedAt = combNow.Add(-time.Hour)
	newer := candidate(models.SignalSellEntry, 0.7, models.SourceStructure)

	out := f.c.Combine(context.Background(), CombineInput{
		Symbol:     "EURUSD",
		Candidates: []models.Signal{older, newer},
	})

	require.Len(t, out, 1)
	assert.Equal(t, models.SignalSellEntry, out[0].Type)
}

func TestCombineKeepsOpposingSignalsOutsideWindow(t *testing.T) {
	f := newCombFixture(t, nil)
	older := candidate(models.SignalBuyEntry, 0.6, models.SourceZone)
	older.CreatedAt = combNow.Add(-5 * time.Hour)
	older.ExpiresAt = combNow.Add(time.Hour)

	out := f.c.Combine(context.Background(), CombineInput{
		Symbol: "EURUSD",
		Candidates: []models.Signal{
			older,
			candidate(models.SignalSellEntry, 0.8, models.SourceStructure),
		},
	})

	assert.Len(t, out, 2, "conflict window has passed")
}

func TestCombineDropsLowConfidence(t *testing.T) {
	f := newCombFixture(t, nil)

	out := f.c.Combine(context.Background(), CombineInput{
		Symbol:     "EURUSD",
		Candidates: []models.Signal{candidate(models.SignalBuyEntry, 0.3, models.SourceZone)},
	})

	assert.Empty(t, out)
}

func TestCombineDropsExpired(t *testing.T) {
	f := newCombFixture(t, nil)
	s := candidate(models.SignalBuyEntry, 0.9, models.SourceZone)
	s.ExpiresAt = combNow.Add(-time.Minute)

	out := f.c.Combine(context.Background(), CombineInput{
		Symbol:     "EURUSD",
		Candidates: []models.Signal{s},
	})

	assert.Empty(t, out)
}

func TestCombineBlocksCorrelatedExposure(t *testing.T) {
	f := newCombFixture(t, func(cfg *config.Config) {
		cfg.Correlations = map[string]float64{"EURUSD:GBPUSD": 0.9}
	})
	active := candidate(models.SignalBuyEntry, 0.8, models.SourceZone)
	active.Symbol = "GBPUSD"
	f.store.Add(&active)

	out := f.c.Combine(context.Background(), CombineInput{
		Symbol:     "EURUSD",
		Candidates: []models.Signal{candidate(models.SignalBuyEntry, 0.7, models.SourceZone)},
	})

	assert.Empty(t, out, "GBPUSD already carries an active signal")
}

func TestCombineVolatilityBand(t *testing.T) {
	f := newCombFixture(t, func(cfg *config.Config) {
		cfg.Combiner.MinVolatility = 5
		cfg.Combiner.MaxVolatility = 50
	})
	in := CombineInput{
		Symbol:     "EURUSD",
		Candidates: []models.Signal{candidate(models.SignalBuyEntry, 0.7, models.SourceZone)},
	}

	in.Volatility = 3
	assert.Empty(t, f.c.Combine(context.Background(), in), "too quiet")

	in.Volatility = 60
	assert.Empty(t, f.c.Combine(context.Background(), in), "too wild")

	in.Volatility = 20
	assert.Len(t, f.c.Combine(context.Background(), in), 1)

	in.Volatility = 0
	assert.Len(t, f.c.Combine(context.Background(), in), 1, "unknown volatility is not a veto")
}

func TestCombineNewsGate(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, defaults.Set(&cfg.Combiner))
	c := NewCombiner(cfg, signals.NewStore(), stubWeights{}, stubGate{blocked: true}, nopMetrics{}, applogger.Nop())
	c.SetClock(func() time.Time { return combNow })

	out := c.Combine(context.Background(), CombineInput{
		Symbol:     "EURUSD",
		Candidates: []models.Signal{candidate(models.SignalBuyEntry, 0.7, models.SourceZone)},
	})

	assert.Empty(t, out)
}

func TestCombineAlignmentFilter(t *testing.T) {
	f := newCombFixture(t, func(cfg *config.Config) {
		cfg.Combiner.RequireAlignment = true
	})
	up := []models.MarketStructure{
		{Symbol: "EURUSD", Timeframe: "H1", Trend: models.TrendUp},
		{Symbol: "EURUSD", Timeframe: "H4", Trend: models.TrendRanging},
	}

	buy := CombineInput{
		Symbol:     "EURUSD",
		Candidates: []models.Signal{candidate(models.SignalBuyEntry, 0.7, models.SourceZone)},
		Structures: up,
	}
	assert.Len(t, f.c.Combine(context.Background(), buy), 1)

	sell := buy
	sell.Candidates = []models.Signal{candidate(models.SignalSellEntry, 0.7, models.SourceZone)}
	assert.Empty(t, f.c.Combine(context.Background(), sell), "against the trend")

	flat := buy
	flat.Structures = []models.MarketStructure{{Symbol: "EURUSD", Timeframe: "H1", Trend: models.TrendRanging}}
	assert.Empty(t, f.c.Combine(context.Background(), flat), "no trending timeframe to confirm")
}

func TestCombineExitsBypassEntryFilters(t *testing.T) {
	f := newCombFixture(t, func(cfg *config.Config) {
		cfg.Combiner.MinVolatility = 5
	})
	exit := candidate(models.SignalBuyExit, 0.1, models.SourceZone)
	exit.StopLoss, exit.TakeProfit = 0, 0

	out := f.c.Combine(context.Background(), CombineInput{
		Symbol:     "EURUSD",
		Candidates: []models.Signal{exit},
		Volatility: 1,
	})

	require.Len(t, out, 1)
	assert.Equal(t, models.SignalBuyExit, out[0].Type)
}

func TestCombineEnsembleMergesAgreeingSources(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, defaults.Set(&cfg.Combiner))
	cfg.Combiner.EnsembleEnabled = true
	weights := stubWeights{m: map[string]float64{"zone": 3, "structure": 1}}
	c := NewCombiner(cfg, signals.NewStore(), weights, stubGate{}, nopMetrics{}, applogger.Nop())
	c.SetClock(func() time.Time { return combNow })

	out := c.Combine(context.Background(), CombineInput{
		Symbol: "EURUSD",
		Candidates: []models.Signal{
			candidate(models.SignalBuyEntry, 0.6, models.SourceZone),
			candidate(models.SignalBuyEntry, 0.9, models.SourceStructure),
		},
	})

	require.Len(t, out, 1)
	assert.Equal(t, models.SignalBuyEntry, out[0].Type)
	assert.InDelta(t, (3*0.6+1*0.9)/4, out[0].Confidence, 1e-9)
}

func TestCombineEnsembleNeedsDistinctSources(t *testing.T) {
	f := newCombFixture(t, func(cfg *config.Config) {
		cfg.Combiner.EnsembleEnabled = true
	})
	a := candidate(models.SignalBuyEntry, 0.6, models.SourceZone)
	b := candidate(models.SignalBuyEntry, 0.9, models.SourceZone)
	b.Entry = 1.1080

	out := f.c.Combine(context.Background(), CombineInput{
		Symbol:     "EURUSD",
		Candidates: []models.Signal{a, b},
	})

	require.Len(t, out, 1)
	assert.Equal(t, 0.9, out[0].Confidence, "one source repeating itself is not agreement")
}
