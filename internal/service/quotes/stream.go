package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
)

// Stream is a WebSocket quote feed that caches the latest bid/ask per
// symbol. It implements repository.QuoteProvider.
type Stream struct {
	url            string
	apiKey         string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger

	mu        sync.RWMutex
	latest    map[string]models.Quote
	conn      *websocket.Conn
	connected bool
}

func New(url, apiKey string, symbols []string, reconnectDelay, pingInterval time.Duration, log *applogger.Logger) *Stream {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Stream{
		url:            url,
		apiKey:         apiKey,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
		latest:         make(map[string]models.Quote),
	}
}

// Quote returns the latest cached quote for symbol.
func (s *Stream) Quote(symbol string) (models.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.latest[symbol]
	return q, ok
}

// SetQuote stores a quote directly, bypassing the feed. Intended for
// tests and for hosts that push quotes from another transport.
func (s *Stream) SetQuote(q models.Quote) {
	s.mu.Lock()
	s.latest[q.Symbol] = q
	s.mu.Unlock()
}

// IsConnected indicates feed status.
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Run connects and consumes the feed until ctx is done, reconnecting
// with a fixed delay on failure.
func (s *Stream) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("quote stream disconnected", applogger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

type quoteFrame struct {
	Type string  `json:"type"`
	S    string  `json:"s"`
	B    float64 `json:"b"`
	A    float64 `json:"a"`
	T    int64   `json:"t"` // ms
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	u := s.url
	if s.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", s.url, s.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("quotes connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for _, sym := range s.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": sym}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}
	s.log.Info("quote stream connected", applogger.Strings("symbols", s.symbols))

	// ping loop
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("quotes read: %w", err)
		}
		var f quoteFrame
		if err := json.Unmarshal(b, &f); err != nil {
			// ignore non-quote frames
			continue
		}
		if f.Type != "quote" || f.S == "" || f.B <= 0 || f.A <= 0 {
			continue
		}
		s.SetQuote(models.Quote{
			Symbol: f.S,
			Bid:    f.B,
			Ask:    f.A,
			Time:   time.UnixMilli(f.T),
		})
	}
}
