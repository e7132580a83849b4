package models

import "time"

// Trend is the directional state derived from recent price action.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendRanging Trend = "ranging"
)

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a local extreme in the bar window.
type SwingPoint struct {
	Kind  SwingKind `json:"kind"`
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
	Index int       `json:"index"`
}

// MarketStructure is the per-symbol structure snapshot rebuilt on each
// analysis pass. Read-only for downstream components.
type MarketStructure struct {
	Symbol        string       `json:"symbol"`
	Timeframe     string       `json:"timeframe"`
	Swings        []SwingPoint `json:"swings"`
	Trend         Trend        `json:"trend"`
	TrendStrength float64      `json:"trend_strength"` // [0,1]
	ComputedAt    time.Time    `json:"computed_at"`
}

// LastSwing returns the most recent swing of the given kind, if any.
func (m *MarketStructure) LastSwing(kind SwingKind) (SwingPoint, bool) {
	for i := len(m.Swings) - 1; i >= 0; i-- {
		if m.Swings[i].Kind == kind {
			return m.Swings[i], true
		}
	}
	return SwingPoint{}, false
}
