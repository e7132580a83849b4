package signals

import (
	"fmt"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/config"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
)

// Generator converts validated zones into directional trade proposals.
type Generator struct {
	cfg     config.Signals
	metrics domrepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

func NewGenerator(cfg *config.Config, metrics domrepo.Metrics, log *applogger.Logger) *Generator {
	return &Generator{cfg: cfg.Signals, metrics: metrics, log: log, now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (g *Generator) SetClock(now func() time.Time) { g.now = now }

// FromZone derives an entry signal from a zone, or nil when the zone is
// ineligible or the proposal fails quality checks. A nil result is the
// expected outcome for most zones, not an error.
func (g *Generator) FromZone(zone *models.StructuralZone, quote models.Quote, atr float64) *models.Signal {
	now := g.now()

	if !zone.Confirmed || zone.Status.Terminal() {
		return nil
	}
	if zone.Age(now) > g.cfg.MaxZoneAge {
		return nil
	}
	if atr <= 0 || quote.Bid <= 0 || quote.Ask <= 0 {
		return nil
	}

	// too far from the zone to matter
	price := quote.Mid()
	dist := price - zone.NearBoundary()
	if dist < 0 {
		dist = -dist
	}
	if dist > g.cfg.MaxATRDist*atr {
		return nil
	}

	s := &models.Signal{
		Symbol:    zone.Symbol,
		Source:    models.SourceZone,
		Timeframe: zone.Timeframe,
		CreatedAt: now,
		ExpiresAt: now.Add(g.cfg.Expiry),
	}

	if zone.Direction == models.Bullish {
		s.Type = models.SignalBuyEntry
		s.Entry = zone.PriceHigh
		s.StopLoss = s.Entry - g.cfg.StopATR*atr
		s.TakeProfit = s.Entry + g.cfg.TargetATR*atr
	} else {
		s.Type = models.SignalSellEntry
		s.Entry = zone.PriceLow
		s.StopLoss = s.Entry + g.cfg.StopATR*atr
		s.TakeProfit = s.Entry - g.cfg.TargetATR*atr
	}
	s.Confidence = g.confidence(zone, now)
	s.Reason = fmt.Sprintf("%s %s zone at [%.5f, %.5f], strength %.2f",
		zone.Timeframe, zone.Direction, zone.PriceLow, zone.PriceHigh, zone.Strength)

	if reason, ok := g.reject(s); !ok {
		g.metrics.RecordSignalRejected(s.Symbol, reason)
		return nil
	}

	g.metrics.RecordSignalGenerated(s.Symbol, string(s.Type))
	return s
}

// ExitFromZone emits an exit signal when price has closed beyond the
// zone's far boundary against the zone's own direction. No stop or target
// is attached.
func (g *Generator) ExitFromZone(zone *models.StructuralZone, lastClose float64) *models.Signal {
	if lastClose <= 0 {
		return nil
	}

	broken := (zone.Direction == models.Bullish && lastClose < zone.FarBoundary()) ||
		(zone.Direction == models.Bearish && lastClose > zone.FarBoundary())
	if !broken {
		return nil
	}

	now := g.now()
	s := &models.Signal{
		Symbol:     zone.Symbol,
		Source:     models.SourceZone,
		Timeframe:  zone.Timeframe,
		Entry:      lastClose,
		Confidence: models.Clamp01(zone.Strength + 0.2),
		CreatedAt:  now,
		ExpiresAt:  now.Add(g.cfg.Expiry),
		Reason:     fmt.Sprintf("%s zone at [%.5f, %.5f] invalidated", zone.Timeframe, zone.PriceLow, zone.PriceHigh),
	}
	if zone.Direction == models.Bullish {
		s.Type = models.SignalBuyExit
	} else {
		s.Type = models.SignalSellExit
	}

	g.metrics.RecordSignalGenerated(s.Symbol, string(s.Type))
	return s
}

// confidence reuses the zone's strength plus confirmation, timeframe and
// freshness bonuses, capped at 1.
func (g *Generator) confidence(zone *models.StructuralZone, now time.Time) float64 {
	c := zone.Strength
	if zone.Confirmed {
		c += 0.3
	}
	switch domrepo.Timeframe(zone.Timeframe) {
	case domrepo.TFD1:
		c += 0.2
	case domrepo.TFH4:
		c += 0.15
	case domrepo.TFH1:
		c += 0.1
	case domrepo.TFM15:
		c += 0.05
	}
	switch age := zone.Age(now); {
	case age < 4*time.Hour:
		c += 0.1
	case age < 24*time.Hour:
		c += 0.05
	}
	return models.Clamp01(c)
}

// reject applies the final quality gate; it returns the rejection reason.
func (g *Generator) reject(s *models.Signal) (string, bool) {
	if s.Entry <= 0 || s.StopLoss <= 0 || s.TakeProfit <= 0 {
		return "invalid_price", false
	}
	if s.Type == models.SignalBuyEntry && (s.StopLoss >= s.Entry || s.TakeProfit <= s.Entry) {
		return "level_side", false
	}
	if s.Type == models.SignalSellEntry && (s.StopLoss <= s.Entry || s.TakeProfit >= s.Entry) {
		return "level_side", false
	}
	if s.RewardRisk() < g.cfg.MinRewardRisk {
		return "reward_risk", false
	}
	if s.Confidence < g.cfg.MinConfidence {
		return "confidence", false
	}
	return "", true
}
