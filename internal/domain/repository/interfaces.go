package repository

import (
	"context"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
)

// BarSeries provides read access to OHLCV history. Implementations return
// bars oldest-first. An unknown symbol yields an empty slice, not an error.
type BarSeries interface {
	// LatestBars returns up to n most recent bars for symbol/timeframe.
	LatestBars(ctx context.Context, symbol string, tf Timeframe, n int) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}

// QuoteProvider exposes the latest bid/ask per symbol.
type QuoteProvider interface {
	Quote(symbol string) (models.Quote, bool)
}

// InstrumentInfo exposes instrument metadata needed for pip conversion.
type InstrumentInfo interface {
	// Digits returns the quote precision (decimal places) for symbol.
	Digits(symbol string) int
}

// SignalPublisher delivers final combined signals to external consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, s *models.Signal) error
	PublishBatch(ctx context.Context, signals []*models.Signal) error
	Close() error
}

// WeightStore persists per-source ensemble weights across runs.
type WeightStore interface {
	Weights(ctx context.Context) (map[string]float64, error)
	SetWeight(ctx context.Context, source string, weight float64) error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordZoneDetected(symbol, timeframe string)
	RecordActiveZones(symbol, timeframe string, n int)
	RecordSignalGenerated(symbol, kind string)
	RecordSignalRejected(symbol, reason string)
	RecordScanDuration(symbol string, seconds float64)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
}

// PipSize returns the price increment of one pip for an instrument with
// the given quote precision. 2-3 digit quotes price one pip at one point;
// 4-5 digit quotes use a tenth-point quote, so one pip spans ten points.
func PipSize(digits int) float64 {
	point := 1.0
	for i := 0; i < digits; i++ {
		point /= 10
	}
	if digits >= 4 {
		return point * 10
	}
	return point
}

// Retention horizons shared by stores.
const (
	ZoneRetention   = 7 * 24 * time.Hour
	SignalRetention = 24 * time.Hour
)
