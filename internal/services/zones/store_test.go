package zones

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
)

func newZone(formed time.Time) *models.StructuralZone {
	return &models.StructuralZone{
		Symbol:    "EURUSD",
		Timeframe: string(domrepo.TFH1),
		FormedAt:  formed,
		UpdatedAt: formed,
		PriceHigh: 1.1050,
		PriceLow:  1.1000,
		Direction: models.Bullish,
		Status:    models.ZoneFresh,
		Strength:  0.5,
	}
}

func TestStoreUpsertDedupesByIdentity(t *testing.T) {
	s := NewStore()
	formed := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	first, created := s.Upsert(newZone(formed))
	assert.True(t, created)

	dup := newZone(formed)
	dup.Strength = 0.8
	got, created := s.Upsert(dup)
	assert.False(t, created)
	assert.Same(t, first, got, "existing zone updated in place")
	assert.Equal(t, 0.8, first.Strength)
	assert.Len(t, s.BySymbolTF("EURUSD", domrepo.TFH1), 1)
}

func TestStoreUpsertNeverRewindsLifecycle(t *testing.T) {
	s := NewStore()
	formed := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	z, _ := s.Upsert(newZone(formed))
	z.Status = models.ZoneTested
	z.UpdatedAt = formed.Add(3 * time.Hour)

	// a re-detection carries the formation time as its update cursor
	_, created := s.Upsert(newZone(formed))
	assert.False(t, created)
	assert.Equal(t, formed.Add(3*time.Hour), z.UpdatedAt)
	assert.Equal(t, models.ZoneTested, z.Status)
}

func TestStoreUpsertDropsTerminalRevival(t *testing.T) {
	s := NewStore()
	formed := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	z, _ := s.Upsert(newZone(formed))
	z.Status = models.ZoneBroken

	cand := newZone(formed)
	cand.Strength = 0.9
	got, created := s.Upsert(cand)
	assert.False(t, created)
	assert.Equal(t, models.ZoneBroken, got.Status)
	assert.Equal(t, 0.5, got.Strength, "terminal zones stay untouched")
}

func TestStoreUpsertClampsScores(t *testing.T) {
	s := NewStore()
	z := newZone(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC))
	z.Strength = 1.7
	z.Confluence = -0.2

	got, _ := s.Upsert(z)
	assert.Equal(t, 1.0, got.Strength)
	assert.Equal(t, 0.0, got.Confluence)
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	formed := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s.Upsert(newZone(formed))

	snap := s.Snapshot("EURUSD", domrepo.TFH1)
	require.Len(t, snap, 1)
	snap[0].Status = models.ZoneBroken

	live, ok := s.Get("EURUSD", domrepo.TFH1, formed)
	require.True(t, ok)
	assert.Equal(t, models.ZoneFresh, live.Status)
}

func TestStoreOrdersOldestFirst(t *testing.T) {
	s := NewStore()
	base := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s.Upsert(newZone(base.Add(2 * time.Hour)))
	s.Upsert(newZone(base))
	s.Upsert(newZone(base.Add(time.Hour)))

	zs := s.BySymbolTF("EURUSD", domrepo.TFH1)
	require.Len(t, zs, 3)
	assert.True(t, zs[0].FormedAt.Before(zs[1].FormedAt))
	assert.True(t, zs[1].FormedAt.Before(zs[2].FormedAt))
}

func TestStorePrune(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	s.Upsert(newZone(now.Add(-8 * 24 * time.Hour)))
	s.Upsert(newZone(now.Add(-time.Hour)))

	dropped := s.Prune(now, domrepo.ZoneRetention)
	assert.Equal(t, 1, dropped)
	assert.Len(t, s.BySymbol("EURUSD"), 1)
}

func TestStoreActiveCountExcludesTerminal(t *testing.T) {
	s := NewStore()
	base := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s.Upsert(newZone(base))
	z, _ := s.Upsert(newZone(base.Add(time.Hour)))
	z.Status = models.ZoneExpired

	assert.Equal(t, 1, s.ActiveCount("EURUSD", domrepo.TFH1))
}
