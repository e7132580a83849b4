package structure

import (
	"math"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/config"
)

// Analyzer computes swing points and trend state from a bar window.
// It never mutates the input bars.
type Analyzer struct {
	sidebars  int
	lookback  int
	threshold float64
}

func NewAnalyzer(cfg *config.Config) *Analyzer {
	return &Analyzer{
		sidebars:  cfg.Detection.SwingSidebars,
		lookback:  cfg.Detection.TrendLookback,
		threshold: cfg.Detection.TrendThreshold,
	}
}

// Analyze builds a MarketStructure snapshot for the given bar window.
// With fewer than 2*sidebars+1 bars it returns an empty ranging structure.
func (a *Analyzer) Analyze(symbol string, tf domrepo.Timeframe, bars []models.Bar) models.MarketStructure {
	ms := models.MarketStructure{
		Symbol:     symbol,
		Timeframe:  string(tf),
		Trend:      models.TrendRanging,
		ComputedAt: time.Now(),
	}
	if len(bars) < 2*a.sidebars+1 {
		return ms
	}

	ms.Swings = a.swings(bars)
	ms.Trend, ms.TrendStrength = a.trend(bars)
	return ms
}

// swings finds local extremes: a bar is a swing high when its high strictly
// exceeds the highs of `sidebars` bars on each side; symmetric for lows.
func (a *Analyzer) swings(bars []models.Bar) []models.SwingPoint {
	var out []models.SwingPoint
	for i := a.sidebars; i < len(bars)-a.sidebars; i++ {
		isHigh, isLow := true, true
		for j := i - a.sidebars; j <= i+a.sidebars; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isHigh = false
			}
			if bars[j].Low <= bars[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			out = append(out, models.SwingPoint{Kind: models.SwingHigh, Price: bars[i].High, Time: bars[i].Time, Index: i})
		}
		if isLow {
			out = append(out, models.SwingPoint{Kind: models.SwingLow, Price: bars[i].Low, Time: bars[i].Time, Index: i})
		}
	}
	return out
}

// trend derives the directional state from a directional-movement style
// ratio of summed up-moves vs down-moves over the lookback.
func (a *Analyzer) trend(bars []models.Bar) (models.Trend, float64) {
	n := a.lookback
	if len(bars)-1 < n {
		n = len(bars) - 1
	}
	if n <= 0 {
		return models.TrendRanging, 0
	}

	var up, down float64
	for i := len(bars) - n; i < len(bars); i++ {
		d := bars[i].Close - bars[i-1].Close
		if d > 0 {
			up += d
		} else {
			down -= d
		}
	}

	total := up + down
	if total == 0 {
		return models.TrendRanging, 0
	}
	strength := math.Abs(up-down) / total

	switch {
	case up > down && strength > a.threshold:
		return models.TrendUp, strength
	case down > up && strength > a.threshold:
		return models.TrendDown, strength
	default:
		return models.TrendRanging, strength
	}
}

// ATR computes the Average True Range over the given period using Wilder
// smoothing. Returns 0 when the window is too short.
func ATR(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}

	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		trs = append(trs, math.Max(hl, math.Max(hc, lc)))
	}

	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}
