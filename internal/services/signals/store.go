package signals

import (
	"sync"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
)

// Store keeps generated signals per symbol until they are processed or
// age out. One mutex guards all symbols so the combiner's correlation
// filter can take a consistent snapshot across symbols.
type Store struct {
	mu sync.RWMutex
	m  map[string][]*models.Signal
}

func NewStore() *Store {
	return &Store{m: make(map[string][]*models.Signal)}
}

// Add appends a signal to its symbol's list.
func (s *Store) Add(sig *models.Signal) {
	s.mu.Lock()
	s.m[sig.Symbol] = append(s.m[sig.Symbol], sig)
	s.mu.Unlock()
}

// AddUnique appends sig unless an equivalent live signal already exists
// (same type, source, timeframe and entry level). Returns true when the
// signal was stored. Repeated scan passes regenerate the same proposals;
// this keeps the store and downstream consumers from seeing duplicates.
func (s *Store) AddUnique(sig *models.Signal, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.m[sig.Symbol] {
		if cur.Expired(now) || cur.Processed {
			continue
		}
		if cur.Type != sig.Type || cur.Source != sig.Source || cur.Timeframe != sig.Timeframe {
			continue
		}
		// exits fire at the current price, so the level is not part of
		// their identity
		if sig.Type.Exit() || cur.Entry == sig.Entry {
			return false
		}
	}
	s.m[sig.Symbol] = append(s.m[sig.Symbol], sig)
	return true
}

// BySymbol returns copies of the live signals for one symbol.
func (s *Store) BySymbol(symbol string) []models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Signal, 0, len(s.m[symbol]))
	for _, sig := range s.m[symbol] {
		out = append(out, *sig)
	}
	return out
}

// ActiveBySymbol returns copies of unprocessed, unexpired signals.
func (s *Store) ActiveBySymbol(symbol string, now time.Time) []models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Signal
	for _, sig := range s.m[symbol] {
		if !sig.Processed && !sig.Expired(now) {
			out = append(out, *sig)
		}
	}
	return out
}

// ActiveSnapshot returns active signals for every symbol in one locked
// pass, for cross-symbol checks that need a consistent view.
func (s *Store) ActiveSnapshot(now time.Time) map[string][]models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]models.Signal, len(s.m))
	for symbol, sigs := range s.m {
		for _, sig := range sigs {
			if !sig.Processed && !sig.Expired(now) {
				out[symbol] = append(out[symbol], *sig)
			}
		}
	}
	return out
}

// MarkProcessed flags the stored signal matching symbol and creation time.
func (s *Store) MarkProcessed(symbol string, createdAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range s.m[symbol] {
		if sig.CreatedAt.Equal(createdAt) {
			sig.Processed = true
			return true
		}
	}
	return false
}

// Prune drops signals older than the retention horizon.
func (s *Store) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for symbol, sigs := range s.m {
		kept := sigs[:0]
		for _, sig := range sigs {
			if now.Sub(sig.CreatedAt) > domrepo.SignalRetention {
				dropped++
				continue
			}
			kept = append(kept, sig)
		}
		if len(kept) == 0 {
			delete(s.m, symbol)
		} else {
			s.m[symbol] = kept
		}
	}
	return dropped
}
