package models

import "time"

// Bar represents an immutable OHLCV record for one timeframe bucket.
type Bar struct {
	Time   time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Range returns high-low.
func (b Bar) Range() float64 { return b.High - b.Low }

// Body returns the absolute candle body |close-open|.
func (b Bar) Body() float64 {
	d := b.Close - b.Open
	if d < 0 {
		return -d
	}
	return d
}

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Quote is the latest bid/ask for a symbol.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// Mid returns the quote midpoint.
func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }
