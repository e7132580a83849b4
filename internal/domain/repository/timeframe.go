package repository

import "time"

// Timeframe is a bar aggregation period.
type Timeframe string

const (
	TFM15 Timeframe = "M15"
	TFH1  Timeframe = "H1"
	TFH4  Timeframe = "H4"
	TFD1  Timeframe = "D1"
)

// ScanTimeframes are the timeframes the zone detector scans, smallest first.
func ScanTimeframes() []Timeframe {
	return []Timeframe{TFM15, TFH1, TFH4, TFD1}
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TFM15, TFH1, TFH4, TFD1:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TFH1 }

// NormalizeTimeframe converts a raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Duration returns the bar period for a timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TFM15:
		return 15 * time.Minute
	case TFH1:
		return time.Hour
	case TFH4:
		return 4 * time.Hour
	case TFD1:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
