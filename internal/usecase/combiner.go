package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
	domsvc "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/service"
	icache "github.com/metaphizix/MetaphizixEA-sub001/internal/service/cache"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/signals"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/config"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
)

const weightsCacheTTL = 30 * time.Second

// Combiner applies quality and risk filters to candidate signals,
// resolves conflicts per symbol and optionally merges agreeing sources.
type Combiner struct {
	cfg          config.Combiner
	correlations map[string]float64
	store        *signals.Store
	weights      domrepo.WeightStore
	news         domsvc.NewsGate
	metrics      domrepo.Metrics
	cache        *icache.TTLCache
	log          *applogger.Logger
	now          func() time.Time
}

func NewCombiner(
	cfg *config.Config,
	store *signals.Store,
	weights domrepo.WeightStore,
	news domsvc.NewsGate,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *Combiner {
	return &Combiner{
		cfg:          cfg.Combiner,
		correlations: cfg.Correlations,
		store:        store,
		weights:      weights,
		news:         news,
		metrics:      metrics,
		cache:        icache.NewTTLCache(),
		log:          log,
		now:          time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (c *Combiner) SetClock(now func() time.Time) { c.now = now }

// CombineInput carries the per-symbol context the filters need.
type CombineInput struct {
	Symbol     string
	Candidates []models.Signal
	// Volatility is the current ATR expressed in pips, 0 when unknown.
	Volatility float64
	// Structures holds the per-timeframe structure snapshots for the
	// multi-timeframe alignment check.
	Structures []models.MarketStructure
}

// Combine filters and merges candidates into the final signal set for a
// symbol. Exit signals bypass the entry risk filters.
func (c *Combiner) Combine(ctx context.Context, in CombineInput) []models.Signal {
	now := c.now()

	var entries, exits []models.Signal
	for _, s := range in.Candidates {
		if s.Expired(now) {
			continue
		}
		if s.Type.Exit() {
			exits = append(exits, s)
			continue
		}
		if reason, ok := c.filter(&s, in, now); !ok {
			c.metrics.RecordSignalRejected(in.Symbol, reason)
			c.log.Debug("signal filtered",
				applogger.String("symbol", in.Symbol),
				applogger.String("type", string(s.Type)),
				applogger.String("reason", reason),
			)
			continue
		}
		entries = append(entries, s)
	}

	entries = c.resolveConflicts(entries)
	if c.cfg.EnsembleEnabled {
		entries = c.mergeEnsemble(ctx, entries)
	}

	return append(entries, exits...)
}

// filter applies the independently disqualifying quality checks.
func (c *Combiner) filter(s *models.Signal, in CombineInput, now time.Time) (string, bool) {
	if s.Confidence < c.cfg.ConfidenceFloor {
		return "confidence_floor", false
	}
	if c.correlatedActive(in.Symbol, now) {
		return "correlation", false
	}
	if in.Volatility > 0 {
		if in.Volatility < c.cfg.MinVolatility {
			return "volatility_low", false
		}
		if c.cfg.MaxVolatility > 0 && in.Volatility > c.cfg.MaxVolatility {
			return "volatility_high", false
		}
	}
	if c.news != nil && c.news.Blocked(in.Symbol, now) {
		return "news_window", false
	}
	if c.cfg.RequireAlignment && !aligned(s.Type.Direction(), in.Structures) {
		return "alignment", false
	}
	return "", true
}

// correlatedActive reports whether another actively-signaled symbol is
// correlated with symbol beyond the configured threshold. The signal
// store snapshot gives a consistent cross-symbol view.
func (c *Combiner) correlatedActive(symbol string, now time.Time) bool {
	if len(c.correlations) == 0 {
		return false
	}
	active := c.store.ActiveSnapshot(now)
	for other, sigs := range active {
		if other == symbol || len(sigs) == 0 {
			continue
		}
		if corr := c.correlation(symbol, other); corr > c.cfg.CorrelationThreshold {
			return true
		}
	}
	return false
}

func (c *Combiner) correlation(a, b string) float64 {
	if v, ok := c.correlations[a+":"+b]; ok {
		return v
	}
	if v, ok := c.correlations[b+":"+a]; ok {
		return v
	}
	return 0
}

// aligned checks that every trending timeframe agrees with the proposed
// direction; ranging timeframes do not vote.
func aligned(dir models.Direction, structures []models.MarketStructure) bool {
	voted := false
	for _, ms := range structures {
		switch ms.Trend {
		case models.TrendUp:
			if dir != models.Bullish {
				return false
			}
			voted = true
		case models.TrendDown:
			if dir != models.Bearish {
				return false
			}
			voted = true
		}
	}
	return voted
}

// resolveConflicts keeps only the highest-confidence signal when opposing
// entries exist within the conflict window; ties go to the most recent.
func (c *Combiner) resolveConflicts(entries []models.Signal) []models.Signal {
	if len(entries) < 2 {
		return entries
	}

	hasOpposing := false
	for i := 0; i < len(entries) && !hasOpposing; i++ {
		for j := i + 1; j < len(entries); j++ {
			gap := entries[i].CreatedAt.Sub(entries[j].CreatedAt)
			if gap < 0 {
				gap = -gap
			}
			if entries[i].Type.Direction() != entries[j].Type.Direction() && gap <= c.cfg.ConflictWindow {
				hasOpposing = true
				break
			}
		}
	}
	if !hasOpposing {
		return entries
	}

	best := entries[0]
	for _, s := range entries[1:] {
		if s.Confidence > best.Confidence ||
			(s.Confidence == best.Confidence && s.CreatedAt.After(best.CreatedAt)) {
			best = s
		}
	}
	return []models.Signal{best}
}

// mergeEnsemble collapses same-direction signals from multiple sources
// into one, with confidence as a weighted average over source weights.
func (c *Combiner) mergeEnsemble(ctx context.Context, entries []models.Signal) []models.Signal {
	byDir := make(map[models.Direction][]models.Signal)
	for _, s := range entries {
		byDir[s.Type.Direction()] = append(byDir[s.Type.Direction()], s)
	}

	weights := c.sourceWeights(ctx)
	var out []models.Signal
	for _, group := range byDir {
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}

		seen := make(map[models.SignalSourceName]bool)
		for _, s := range group {
			seen[s.Source] = true
		}
		if len(seen) < 2 {
			// one source repeating itself is not agreement
			out = append(out, strongest(group))
			continue
		}

		merged := strongest(group)
		var sum, wsum float64
		for _, s := range group {
			w := weights[string(s.Source)]
			if w <= 0 {
				w = 1
			}
			sum += w * s.Confidence
			wsum += w
		}
		merged.Confidence = models.Clamp01(sum / wsum)
		out = append(out, merged)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func strongest(group []models.Signal) models.Signal {
	best := group[0]
	for _, s := range group[1:] {
		if s.Confidence > best.Confidence {
			best = s
		}
	}
	return best
}

// sourceWeights loads the persisted per-source weights, cached briefly.
func (c *Combiner) sourceWeights(ctx context.Context) map[string]float64 {
	if v, ok := c.cache.Get("weights"); ok {
		if m, ok2 := v.(map[string]float64); ok2 {
			return m
		}
	}
	if c.weights == nil {
		return nil
	}
	m, err := c.weights.Weights(ctx)
	if err != nil {
		c.metrics.RecordError("weight_store")
		c.log.Warn("weight store unavailable", applogger.Error(err))
		return nil
	}
	c.cache.Set("weights", m, weightsCacheTTL)
	return m
}
