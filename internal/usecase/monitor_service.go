package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ravikal/swing_trade_replay/internal/calendar"
	"github.com/ravikal/swing_trade_replay/internal/domain"
)

// MonitorService runs the live side: it holds the trigger store, applies the
// data-freshness and market-hours guards, and walks each watch's
// invalidations, triggers and warnings in that order. The replay side shares
// its entry-quality classifier so a live fill is graded exactly as a
// simulated one.
type MonitorService struct {
	evaluator  *TriggerEvaluator
	store      TriggerStateStore
	classifier *EntryQualityClassifier
	notifier   domain.Notifier
	log        *zap.Logger
	now        func() time.Time

	mu      sync.RWMutex
	watches map[string]*domain.WatchSpec // session key -> spec
}

func NewMonitorService(store TriggerStateStore, notifier domain.Notifier, log *zap.Logger) *MonitorService {
	return &MonitorService{
		evaluator:  NewTriggerEvaluator(store),
		store:      store,
		classifier: NewEntryQualityClassifier(),
		notifier:   notifier,
		log:        log,
		now:        time.Now,
		watches:    make(map[string]*domain.WatchSpec),
	}
}

// StartWatch registers a watch for evaluation. Re-registering the same key
// replaces the watch definition but keeps accumulated trigger state.
func (m *MonitorService) StartWatch(w *domain.WatchSpec) {
	m.mu.Lock()
	m.watches[w.SessionKey()] = w
	m.mu.Unlock()
	m.log.Info("watch started", zap.String("plan", w.PlanID), zap.String("strategy", w.Strategy))
}

// StopWatch unregisters the watch and releases all its monitoring state.
// Safe to call repeatedly.
func (m *MonitorService) StopWatch(sessionKey string) {
	m.mu.Lock()
	delete(m.watches, sessionKey)
	m.mu.Unlock()
	m.evaluator.Cleanup(sessionKey)
	m.log.Info("watch stopped", zap.String("key", sessionKey))
}

// Watches returns the registered watches for the symbol.
func (m *MonitorService) Watches(symbol string) []*domain.WatchSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.WatchSpec
	for _, w := range m.watches {
		if w.Symbol == symbol {
			out = append(out, w)
		}
	}
	return out
}

// EvaluateWatch runs one monitoring pass for a watch against the snapshots
// keyed by timeframe. Invalidations short-circuit; warnings never block.
func (m *MonitorService) EvaluateWatch(ctx context.Context, w *domain.WatchSpec, snaps map[string]domain.Snapshot) domain.WatchResult {
	now := m.now()
	key := w.SessionKey()
	result := domain.WatchResult{
		Triggers: make(map[string]domain.EvalResult),
		Warnings: make(map[string]domain.EvalResult),
	}

	if !calendar.IsMarketOpen(now) {
		result.Reason = domain.ReasonMarketClosed
		return result
	}

	// Watch-level session budget: the tightest within_sessions wins.
	if maxSessions := w.MaxSessions(); maxSessions > 0 {
		expired := false
		m.store.With(key, func(ws *WatchState) {
			rollSession(ws, now)
			if ws.CurrentSession > maxSessions {
				ws.Expired = true
			}
			expired = ws.Expired
		})
		if expired {
			result.Expired = true
			result.Reason = domain.ReasonSessionLimit
			return result
		}
	}

	// Invalidations first; a met one suppresses trigger evaluation.
	for _, inv := range w.Invalidations {
		snap, ok := snaps[inv.Timeframe]
		if !ok {
			continue
		}
		res := m.evaluator.Evaluate(inv.TriggerSpec, snap, key, now)
		if res.Satisfied {
			result.Invalidated = true
			result.Action = inv.Action
			m.log.Warn("watch invalidated",
				zap.String("plan", w.PlanID),
				zap.String("trigger", inv.ID),
				zap.String("action", string(inv.Action)))
			m.alert(ctx, w.PlanID, "invalidation",
				fmt.Sprintf("invalidation %s met, %s", inv.ID, inv.Action))
			return result
		}
	}

	allSatisfied := len(w.Triggers) > 0
	for _, trig := range w.Triggers {
		snap, ok := snaps[trig.Timeframe]
		if !ok {
			allSatisfied = false
			continue
		}
		res := m.evaluator.Evaluate(trig, snap, key, now)
		result.Triggers[trig.ID] = res
		if res.Expired {
			result.Expired = true
		}
		if !res.Satisfied {
			allSatisfied = false
		}
	}
	result.AllSatisfied = allSatisfied && !result.Expired

	// Warnings are informational; evaluate them regardless of the above.
	for _, warn := range w.Warnings {
		snap, ok := snaps[warn.Timeframe]
		if !ok {
			continue
		}
		res := m.evaluator.Evaluate(warn, snap, key, now)
		result.Warnings[warn.ID] = res
		if res.Satisfied {
			m.alert(ctx, w.PlanID, "warning", fmt.Sprintf("warning condition %s met", warn.ID))
		}
	}

	if result.AllSatisfied {
		m.alert(ctx, w.PlanID, "triggers_met", "all entry triggers satisfied")
	}
	return result
}

// GradeLiveFill grades a live fill the same way the simulator grades a
// replayed one, so the two histories never diverge.
func (m *MonitorService) GradeLiveFill(fill, plannedEntry, stop float64) EntryAssessment {
	return m.classifier.Classify(fill, plannedEntry, stop)
}

func (m *MonitorService) alert(ctx context.Context, planID, code, message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Alert(ctx, planID, code, message); err != nil {
		m.log.Error("alert dispatch failed", zap.String("plan", planID), zap.Error(err))
	}
}

// SetClock overrides wall time, for tests.
func (m *MonitorService) SetClock(now func() time.Time) {
	m.now = now
}
