package news

import (
	"sync"
	"time"
)

// Window is a time span during which entries for a symbol are blocked.
// An empty symbol blocks all symbols.
type Window struct {
	Symbol string
	From   time.Time
	To     time.Time
}

// Gate blocks signal generation during high-impact news windows. The
// calendar itself is fed by an external collaborator via AddWindow.
type Gate struct {
	mu      sync.RWMutex
	windows []Window
}

func NewGate() *Gate { return &Gate{} }

// AddWindow registers a blocking window.
func (g *Gate) AddWindow(w Window) {
	g.mu.Lock()
	g.windows = append(g.windows, w)
	g.mu.Unlock()
}

// Blocked reports whether a window is active for symbol at now. Expired
// windows are dropped opportunistically.
func (g *Gate) Blocked(symbol string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	kept := g.windows[:0]
	blocked := false
	for _, w := range g.windows {
		if now.After(w.To) {
			continue
		}
		kept = append(kept, w)
		if (w.Symbol == "" || w.Symbol == symbol) && !now.Before(w.From) {
			blocked = true
		}
	}
	g.windows = kept
	return blocked
}
