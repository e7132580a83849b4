package zones

import (
	"sort"
	"sync"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
)

// key uniquely identifies a zone: (symbol, timeframe, formation time).
type key struct {
	symbol string
	tf     domrepo.Timeframe
	formed int64 // unix nanos
}

// Store keeps structural zones per (symbol, timeframe) with O(1) lookup
// by formation key. A single mutex guards all symbols; callers on a
// concurrent host therefore see consistent snapshots.
type Store struct {
	mu    sync.RWMutex
	zones map[key]*models.StructuralZone
}

func NewStore() *Store {
	return &Store{zones: make(map[key]*models.StructuralZone)}
}

func zoneKey(z *models.StructuralZone) key {
	return key{symbol: z.Symbol, tf: domrepo.Timeframe(z.Timeframe), formed: z.FormedAt.UnixNano()}
}

// Get returns the stored zone with the same identity as z, if any.
func (s *Store) Get(symbol string, tf domrepo.Timeframe, formedAt time.Time) (*models.StructuralZone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[key{symbol: symbol, tf: tf, formed: formedAt.UnixNano()}]
	return z, ok
}

// Upsert stores a new zone or updates the stored one in place. Terminal
// zones are never revived: an incoming candidate matching a terminal
// zone's key is dropped and the stored zone returned unchanged.
func (s *Store) Upsert(z *models.StructuralZone) (*models.StructuralZone, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := zoneKey(z)
	if cur, ok := s.zones[k]; ok {
		if cur.Status.Terminal() {
			return cur, false
		}
		cur.Strength = models.Clamp01(z.Strength)
		if z.UpdatedAt.After(cur.UpdatedAt) {
			cur.UpdatedAt = z.UpdatedAt
		}
		return cur, false
	}
	z.Strength = models.Clamp01(z.Strength)
	z.Confluence = models.Clamp01(z.Confluence)
	s.zones[k] = z
	return z, true
}

// BySymbolTF returns the zones for one symbol and timeframe, oldest first.
func (s *Store) BySymbolTF(symbol string, tf domrepo.Timeframe) []*models.StructuralZone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.StructuralZone
	for k, z := range s.zones {
		if k.symbol == symbol && k.tf == tf {
			out = append(out, z)
		}
	}
	sortZones(out)
	return out
}

// BySymbol returns all zones for a symbol across timeframes, oldest first.
func (s *Store) BySymbol(symbol string) []*models.StructuralZone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.StructuralZone
	for k, z := range s.zones {
		if k.symbol == symbol {
			out = append(out, z)
		}
	}
	sortZones(out)
	return out
}

// Snapshot returns copies of the zones for one symbol and timeframe.
func (s *Store) Snapshot(symbol string, tf domrepo.Timeframe) []models.StructuralZone {
	zs := s.BySymbolTF(symbol, tf)
	out := make([]models.StructuralZone, 0, len(zs))
	for _, z := range zs {
		out = append(out, *z)
	}
	return out
}

// ActiveCount returns the number of non-terminal zones for symbol/tf.
func (s *Store) ActiveCount(symbol string, tf domrepo.Timeframe) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k, z := range s.zones {
		if k.symbol == symbol && k.tf == tf && !z.Status.Terminal() {
			n++
		}
	}
	return n
}

// Prune drops zones formed before the retention horizon.
func (s *Store) Prune(now time.Time, retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for k, z := range s.zones {
		if now.Sub(z.FormedAt) > retention {
			delete(s.zones, k)
			dropped++
		}
	}
	return dropped
}

// Clear removes all zones for a symbol.
func (s *Store) Clear(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.zones {
		if k.symbol == symbol {
			delete(s.zones, k)
		}
	}
}

func sortZones(zs []*models.StructuralZone) {
	sort.Slice(zs, func(i, j int) bool { return zs[i].FormedAt.Before(zs[j].FormedAt) })
}
