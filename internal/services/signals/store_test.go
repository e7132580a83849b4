package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
)

func entrySignal(created time.Time, entry float64) *models.Signal {
	return &models.Signal{
		Symbol:     "EURUSD",
		Type:       models.SignalBuyEntry,
		Source:     models.SourceZone,
		Timeframe:  "H1",
		Entry:      entry,
		Confidence: 0.6,
		CreatedAt:  created,
		ExpiresAt:  created.Add(4 * time.Hour),
	}
}

func TestStoreAddUniqueDedupesLiveEntries(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	assert.True(t, s.AddUnique(entrySignal(now, 1.1050), now))
	assert.False(t, s.AddUnique(entrySignal(now.Add(time.Minute), 1.1050), now), "same proposal regenerated")
	assert.True(t, s.AddUnique(entrySignal(now.Add(time.Minute), 1.1080), now), "different level is a new proposal")
	assert.Len(t, s.BySymbol("EURUSD"), 2)
}

func TestStoreAddUniqueIgnoresDeadSignals(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	old := entrySignal(now.Add(-5*time.Hour), 1.1050)
	s.Add(old)
	assert.True(t, s.AddUnique(entrySignal(now, 1.1050), now), "expired signal does not block")

	s2 := NewStore()
	done := entrySignal(now, 1.1050)
	done.Processed = true
	s2.Add(done)
	assert.True(t, s2.AddUnique(entrySignal(now.Add(time.Minute), 1.1050), now), "processed signal does not block")
}

func TestStoreAddUniqueExitsIgnoreLevel(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	exit := entrySignal(now, 1.0990)
	exit.Type = models.SignalBuyExit
	assert.True(t, s.AddUnique(exit, now))

	again := entrySignal(now.Add(time.Minute), 1.0970)
	again.Type = models.SignalBuyExit
	assert.False(t, s.AddUnique(again, now), "exits fire at moving prices, level is not identity")
}

func TestStoreActiveSnapshot(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	s.Add(entrySignal(now, 1.1050))
	expired := entrySignal(now.Add(-5*time.Hour), 1.1060)
	s.Add(expired)
	other := entrySignal(now, 1.2500)
	other.Symbol = "GBPUSD"
	s.Add(other)

	snap := s.ActiveSnapshot(now)
	assert.Len(t, snap["EURUSD"], 1)
	assert.Len(t, snap["GBPUSD"], 1)
}

func TestStoreMarkProcessed(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s.Add(entrySignal(now, 1.1050))

	require.True(t, s.MarkProcessed("EURUSD", now))
	assert.Empty(t, s.ActiveBySymbol("EURUSD", now))
	assert.False(t, s.MarkProcessed("EURUSD", now.Add(time.Minute)))
}

func TestStorePruneByRetention(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s.Add(entrySignal(now.Add(-25*time.Hour), 1.1050))
	s.Add(entrySignal(now.Add(-time.Hour), 1.1060))

	assert.Equal(t, 1, s.Prune(now))
	assert.Len(t, s.BySymbol("EURUSD"), 1)
}
