package service

import (
	"context"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
)

// StructureAnalyzer computes swing points and trend state from a bar window.
type StructureAnalyzer interface {
	Analyze(symbol string, tf domrepo.Timeframe, bars []models.Bar) models.MarketStructure
}

// ZoneScanner detects and maintains structural zones for a symbol/timeframe.
type ZoneScanner interface {
	Scan(ctx context.Context, symbol string, tf domrepo.Timeframe) ([]models.StructuralZone, error)
	Zones(symbol string, tf domrepo.Timeframe) []models.StructuralZone
}

// SignalSource produces candidate signals for a symbol. The zone-based
// generator is the primary source; additional analyzers plug in here.
type SignalSource interface {
	Name() models.SignalSourceName
	Candidates(ctx context.Context, symbol string) ([]models.Signal, error)
}

// NewsGate reports whether a high-impact news window is active for a
// symbol. The calendar itself is an external concern.
type NewsGate interface {
	Blocked(symbol string, now time.Time) bool
}
