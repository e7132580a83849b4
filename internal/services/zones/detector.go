package zones

import (
	"context"
	"fmt"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/service/ratelimit"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/structure"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/config"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
)

// Detector scans bar windows per timeframe, identifies structural zones,
// scores them and maintains their lifecycle in the store.
type Detector struct {
	cfg     config.Detection
	bars    domrepo.BarSeries
	info    domrepo.InstrumentInfo
	store   *Store
	limiter *ratelimit.Limiter
	metrics domrepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

func NewDetector(
	cfg *config.Config,
	bars domrepo.BarSeries,
	info domrepo.InstrumentInfo,
	store *Store,
	limiter *ratelimit.Limiter,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *Detector {
	return &Detector{
		cfg:     cfg.Detection,
		bars:    bars,
		info:    info,
		store:   store,
		limiter: limiter,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (d *Detector) SetClock(now func() time.Time) { d.now = now }

// Zones returns the current zone snapshot without scanning.
func (d *Detector) Zones(symbol string, tf domrepo.Timeframe) []models.StructuralZone {
	return d.store.Snapshot(symbol, tf)
}

// Scan runs one detection pass for symbol/timeframe and returns the
// resulting zone snapshot. Scans are rate limited per (symbol,timeframe);
// a skipped scan returns the stored zones unchanged. Insufficient history
// is "no pattern found", not an error.
func (d *Detector) Scan(ctx context.Context, symbol string, tf domrepo.Timeframe) ([]models.StructuralZone, error) {
	if !d.limiter.Allow(symbol+"/"+string(tf), d.cfg.ScanInterval) {
		return d.store.Snapshot(symbol, tf), nil
	}

	n := d.cfg.ScanLookback + d.cfg.LiquidityWindow
	bars, err := d.bars.LatestBars(ctx, symbol, tf, n)
	if err != nil {
		d.metrics.RecordError("bar_fetch")
		return nil, fmt.Errorf("latest bars %s %s: %w", symbol, tf, err)
	}

	now := d.now()
	atr := structure.ATR(bars, d.cfg.ATRPeriod)
	pip := domrepo.PipSize(d.info.Digits(symbol))

	if len(bars) > d.cfg.LiquidityWindow {
		d.detect(symbol, tf, bars, atr, pip, now)
	}
	d.updateLifecycle(symbol, tf, bars, now)
	d.scoreConfluence(symbol, tf)

	// stale entries pruned opportunistically, one bar period past expiry
	d.store.Prune(now, domrepo.ZoneRetention+24*time.Hour)
	d.metrics.RecordActiveZones(symbol, string(tf), d.store.ActiveCount(symbol, tf))

	return d.store.Snapshot(symbol, tf), nil
}

// detect evaluates every bar in the lookback independently as a zone
// candidate and stores the ones that pass validation.
func (d *Detector) detect(symbol string, tf domrepo.Timeframe, bars []models.Bar, atr, pip float64, now time.Time) {
	for i := d.cfg.LiquidityWindow; i < len(bars); i++ {
		b := bars[i]

		// break-of-structure: the displacement candle must be mostly body
		if b.Range() <= 0 || b.Body() < d.cfg.MinBodyRatio*b.Range() {
			continue
		}

		// liquidity: the level must have been visited before
		if d.touchesBefore(bars, i) < d.cfg.MinTouches {
			continue
		}

		// minimum size in pips
		if pip <= 0 || b.Range()/pip < d.cfg.MinZonePips {
			continue
		}

		dir := models.Bearish
		if b.Bullish() {
			dir = models.Bullish
		}

		z := &models.StructuralZone{
			Symbol:    symbol,
			Timeframe: string(tf),
			FormedAt:  b.Time,
			UpdatedAt: b.Time,
			PriceHigh: b.High,
			PriceLow:  b.Low,
			Direction: dir,
			Status:    models.ZoneFresh,
		}
		z.Strength = d.strength(z, bars, i, atr, now)

		// validation gate for storage
		if z.Strength < d.cfg.MinStrength {
			continue
		}

		if _, created := d.store.Upsert(z); created {
			d.metrics.RecordZoneDetected(symbol, string(tf))
			d.log.Debug("zone detected",
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.String("direction", string(dir)),
				applogger.Float64("strength", z.Strength),
			)
		}
	}
}

// touchesBefore counts bars in the liquidity window preceding index i
// whose high or low falls inside the candidate's range.
func (d *Detector) touchesBefore(bars []models.Bar, i int) int {
	lo, hi := bars[i].Low, bars[i].High
	count := 0
	for j := i - d.cfg.LiquidityWindow; j < i; j++ {
		if j < 0 {
			continue
		}
		if (bars[j].High >= lo && bars[j].High <= hi) || (bars[j].Low >= lo && bars[j].Low <= hi) {
			count++
		}
	}
	return count
}

// strength is a weighted sum capped at 1: volume expansion (+0.3),
// height relative to ATR (up to +0.4), and recency (+0.3 / +0.2).
func (d *Detector) strength(z *models.StructuralZone, bars []models.Bar, i int, atr float64, now time.Time) float64 {
	score := 0.0

	if avg := d.avgVolumeBefore(bars, i); avg > 0 && bars[i].Volume >= 1.5*avg {
		score += 0.3
	}

	if atr > 0 {
		ratio := z.Height() / atr * 0.4
		if ratio > 0.4 {
			ratio = 0.4
		}
		score += ratio
	}

	switch age := now.Sub(z.FormedAt); {
	case age < 24*time.Hour:
		score += 0.3
	case age < 7*24*time.Hour:
		score += 0.2
	}

	return models.Clamp01(score)
}

func (d *Detector) avgVolumeBefore(bars []models.Bar, i int) float64 {
	n := d.cfg.VolumePeriod
	if i < n {
		n = i
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for j := i - n; j < i; j++ {
		sum += bars[j].Volume
	}
	return sum / float64(n)
}

// updateLifecycle advances stored zones through the state machine using
// bars newer than each zone's last update. Processing only unseen bars
// keeps repeated scans over an unchanged window idempotent.
func (d *Detector) updateLifecycle(symbol string, tf domrepo.Timeframe, bars []models.Bar, now time.Time) {
	for _, z := range d.store.BySymbolTF(symbol, tf) {
		if z.Status.Terminal() {
			continue
		}

		for _, b := range bars {
			if !b.Time.After(z.UpdatedAt) {
				continue
			}
			d.applyBar(z, b)
			z.UpdatedAt = b.Time
			if z.Status.Terminal() {
				break
			}
		}

		if !z.Status.Terminal() && now.Sub(z.FormedAt) > domrepo.ZoneRetention {
			z.Status = models.ZoneExpired
		}
	}
}

// applyBar folds one bar into the zone state machine.
func (d *Detector) applyBar(z *models.StructuralZone, b models.Bar) {
	// broken: close fully through the zone against its direction
	if (z.Direction == models.Bullish && b.Close < z.PriceLow) ||
		(z.Direction == models.Bearish && b.Close > z.PriceHigh) {
		z.Status = models.ZoneBroken
		return
	}

	// confirmation: close fully beyond the zone in its direction
	if (z.Direction == models.Bullish && b.Close > z.PriceHigh) ||
		(z.Direction == models.Bearish && b.Close < z.PriceLow) {
		z.Confirmed = true
	}

	touched := b.Low <= z.PriceHigh && b.High >= z.PriceLow
	if !touched {
		return
	}

	z.Touches++
	z.LastTouch = b.Time
	if z.Status == models.ZoneFresh {
		z.Status = models.ZoneTested
	}

	// clean reversal: the touching bar closes back beyond the near boundary
	reversed := (z.Direction == models.Bullish && b.Close > z.PriceHigh) ||
		(z.Direction == models.Bearish && b.Close < z.PriceLow)
	if reversed {
		z.Rejections++
		z.Status = models.ZoneRespected
		return
	}

	if z.Touches >= d.cfg.WeakenedTouches && z.Rejections == 0 {
		z.Status = models.ZoneWeakened
	}
}

// scoreConfluence awards a bonus per other timeframe holding an
// overlapping non-terminal zone for the same symbol.
func (d *Detector) scoreConfluence(symbol string, tf domrepo.Timeframe) {
	for _, z := range d.store.BySymbolTF(symbol, tf) {
		if z.Status.Terminal() {
			continue
		}
		score := 0.0
		for _, other := range domrepo.ScanTimeframes() {
			if other == tf {
				continue
			}
			for _, o := range d.store.BySymbolTF(symbol, other) {
				if !o.Status.Terminal() && z.Overlaps(o) {
					score += d.cfg.ConfluenceWeight
					break
				}
			}
		}
		z.Confluence = models.Clamp01(score)
	}
}
