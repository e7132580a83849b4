package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/service/ratelimit"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/signals"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/structure"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/zones"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/config"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
)

type stubBars struct{ bars []models.Bar }

func (s *stubBars) LatestBars(_ context.Context, _ string, _ domrepo.Timeframe, _ int) ([]models.Bar, error) {
	return s.bars, nil
}
func (s *stubBars) Health(context.Context) error { return nil }
func (s *stubBars) Close() error                 { return nil }

type stubInfo struct{}

func (stubInfo) Digits(string) int { return 5 }

type stubQuotes struct{ q map[string]models.Quote }

func (s stubQuotes) Quote(symbol string) (models.Quote, bool) {
	q, ok := s.q[symbol]
	return q, ok
}

type recPublisher struct{ published []models.Signal }

func (p *recPublisher) Publish(_ context.Context, s *models.Signal) error {
	p.published = append(p.published, *s)
	return nil
}
func (p *recPublisher) PublishBatch(_ context.Context, sigs []*models.Signal) error {
	for _, s := range sigs {
		p.published = append(p.published, *s)
	}
	return nil
}
func (p *recPublisher) Close() error { return nil }

type scanFixture struct {
	uc   *ScanUseCase
	bars *stubBars
	pub  *recPublisher
	now  time.Time
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()
	cfg := &config.Config{Symbols: []string{"EURUSD"}}
	require.NoError(t, defaults.Set(&cfg.Detection))
	require.NoError(t, defaults.Set(&cfg.Signals))
	require.NoError(t, defaults.Set(&cfg.Combiner))

	f := &scanFixture{bars: &stubBars{}, pub: &recPublisher{}}
	clock := func() time.Time { return f.now }

	limiter := ratelimit.New()
	limiter.SetClock(clock)
	detector := zones.NewDetector(cfg, f.bars, stubInfo{}, zones.NewStore(), limiter, nopMetrics{}, applogger.Nop())
	detector.SetClock(clock)
	generator := signals.NewGenerator(cfg, nopMetrics{}, applogger.Nop())
	generator.SetClock(clock)
	sigStore := signals.NewStore()
	combiner := NewCombiner(cfg, sigStore, stubWeights{}, stubGate{}, nopMetrics{}, applogger.Nop())
	combiner.SetClock(clock)

	quotes := stubQuotes{q: map[string]models.Quote{
		"EURUSD": {Symbol: "EURUSD", Bid: 1.1058, Ask: 1.1060},
	}}
	f.uc = NewScanUseCase(cfg, detector, structure.NewAnalyzer(cfg), generator, sigStore, combiner, f.bars, quotes, f.pub, nopMetrics{}, applogger.Nop())
	f.uc.SetClock(clock)
	return f
}

// scanBars builds a window ending in a confirmed bullish displacement
// zone at [1.1000, 1.1050]: small-bodied fillers, two liquidity touches,
// the displacement candle and a rejection candle closing back above it.
func scanBars(t0 time.Time) []models.Bar {
	bars := make([]models.Bar, 0, 32)
	for i := 0; i < 25; i++ {
		b := models.Bar{
			Time: t0.Add(time.Duration(i) * time.Hour),
			Open: 1.0900, Close: 1.0902, High: 1.0920, Low: 1.0890,
			Volume: 100,
		}
		if i == 20 || i == 22 {
			b.Open, b.Close, b.High, b.Low = 1.0995, 1.1000, 1.1010, 1.0990
		}
		bars = append(bars, b)
	}
	bars = append(bars, models.Bar{
		Time: t0.Add(25 * time.Hour),
		Open: 1.1005, Close: 1.1045, High: 1.1050, Low: 1.1000,
		Volume: 1000,
	})
	bars = append(bars, models.Bar{
		Time: t0.Add(26 * time.Hour),
		Open: 1.1060, Close: 1.1070, High: 1.1075, Low: 1.1040,
		Volume: 100,
	})
	return bars
}

func TestRunSymbolPublishesEntries(t *testing.T) {
	f := newScanFixture(t)
	t0 := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	f.bars.bars = scanBars(t0)
	f.now = t0.Add(27 * time.Hour)

	out, err := f.uc.RunSymbol(context.Background(), "EURUSD")

	require.NoError(t, err)
	require.NotEmpty(t, out)
	for _, s := range out {
		assert.Equal(t, models.SignalBuyEntry, s.Type)
		assert.Equal(t, "EURUSD", s.Symbol)
		assert.InDelta(t, 1.1050, s.Entry, 1e-9)
		assert.GreaterOrEqual(t, s.Confidence, 0.4)
	}
	assert.Equal(t, len(out), len(f.pub.published))
	assert.Equal(t, out, f.uc.Signals("EURUSD"))
}

func TestRunSymbolIsIdempotentAcrossPasses(t *testing.T) {
	f := newScanFixture(t)
	t0 := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	f.bars.bars = scanBars(t0)
	f.now = t0.Add(27 * time.Hour)

	first, err := f.uc.RunSymbol(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	f.now = f.now.Add(2 * time.Minute)
	second, err := f.uc.RunSymbol(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, second, "unchanged market must not republish")
	assert.Len(t, f.pub.published, len(first))
}

func TestRunSymbolEmitsExitOnZoneBreak(t *testing.T) {
	f := newScanFixture(t)
	t0 := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	f.bars.bars = scanBars(t0)
	f.now = t0.Add(27 * time.Hour)

	_, err := f.uc.RunSymbol(context.Background(), "EURUSD")
	require.NoError(t, err)

	f.bars.bars = append(f.bars.bars, models.Bar{
		Time: t0.Add(27 * time.Hour),
		Open: 1.0990, Close: 1.0950, High: 1.1020, Low: 1.0930,
		Volume: 100,
	})
	f.now = f.now.Add(2 * time.Minute)
	out, err := f.uc.RunSymbol(context.Background(), "EURUSD")

	require.NoError(t, err)
	require.NotEmpty(t, out)
	for _, s := range out {
		assert.Equal(t, models.SignalBuyExit, s.Type)
	}
}

func TestRunSymbolWithoutQuote(t *testing.T) {
	f := newScanFixture(t)
	f.bars.bars = scanBars(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))

	out, err := f.uc.RunSymbol(context.Background(), "USDJPY")

	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, f.pub.published)
}

func TestRunAllHonorsContext(t *testing.T) {
	f := newScanFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.uc.RunAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
