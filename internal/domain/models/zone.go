package models

import "time"

// Direction is the directional bias of a zone or signal.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// ZoneStatus is the lifecycle state of a structural zone.
// Broken and Expired are terminal.
type ZoneStatus string

const (
	ZoneFresh     ZoneStatus = "fresh"
	ZoneTested    ZoneStatus = "tested"
	ZoneRespected ZoneStatus = "respected"
	ZoneWeakened  ZoneStatus = "weakened"
	ZoneBroken    ZoneStatus = "broken"
	ZoneExpired   ZoneStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s ZoneStatus) Terminal() bool { return s == ZoneBroken || s == ZoneExpired }

// StructuralZone is a price interval where a strong directional move
// originated. Identified uniquely by (Symbol, Timeframe, FormedAt).
type StructuralZone struct {
	Symbol     string     `json:"symbol"`
	Timeframe  string     `json:"timeframe"`
	FormedAt   time.Time  `json:"formed_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	PriceHigh  float64    `json:"price_high"`
	PriceLow   float64    `json:"price_low"`
	Direction  Direction  `json:"direction"`
	Status     ZoneStatus `json:"status"`
	Strength   float64    `json:"strength_score"`   // [0,1]
	Confluence float64    `json:"confluence_score"` // [0,1]
	Touches    int        `json:"touch_count"`
	Rejections int        `json:"rejection_count"`
	LastTouch  time.Time  `json:"last_touch,omitempty"`
	Confirmed  bool       `json:"confirmed"`
}

// Height returns the zone height in price units.
func (z *StructuralZone) Height() float64 { return z.PriceHigh - z.PriceLow }

// Contains reports whether price falls inside the zone bounds.
func (z *StructuralZone) Contains(price float64) bool {
	return price >= z.PriceLow && price <= z.PriceHigh
}

// Overlaps reports whether another zone's price interval intersects this one.
func (z *StructuralZone) Overlaps(o *StructuralZone) bool {
	return z.PriceLow <= o.PriceHigh && o.PriceLow <= z.PriceHigh
}

// Age returns the elapsed time since formation.
func (z *StructuralZone) Age(now time.Time) time.Duration { return now.Sub(z.FormedAt) }

// NearBoundary is the boundary a retracement reaches first: the high for
// bullish zones, the low for bearish ones.
func (z *StructuralZone) NearBoundary() float64 {
	if z.Direction == Bullish {
		return z.PriceHigh
	}
	return z.PriceLow
}

// FarBoundary is the opposite bound, beyond which the zone is invalidated.
func (z *StructuralZone) FarBoundary() float64 {
	if z.Direction == Bullish {
		return z.PriceLow
	}
	return z.PriceHigh
}

// Clamp01 clamps x into [0,1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
