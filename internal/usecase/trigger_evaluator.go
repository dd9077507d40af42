package usecase

import (
	"time"

	"github.com/ravikal/swing_trade_replay/internal/calendar"
	"github.com/ravikal/swing_trade_replay/internal/domain"
)

// A candle older than this multiple of its timeframe is stale during market
// hours and gets skipped rather than failed.
const staleFactor = 2

// TriggerEvaluator evaluates live rule conditions per (plan, strategy,
// trigger). All mutable progress lives in the injected store; the evaluator
// itself is stateless and safe to share.
type TriggerEvaluator struct {
	store TriggerStateStore
}

func NewTriggerEvaluator(store TriggerStateStore) *TriggerEvaluator {
	return &TriggerEvaluator{store: store}
}

// Evaluate runs one trigger against one closed-candle snapshot at wall time
// now. Missing data, staleness and closed markets come back as reason-coded
// non-satisfied results, never errors.
func (e *TriggerEvaluator) Evaluate(spec domain.TriggerSpec, snap domain.Snapshot, sessionKey string, now time.Time) domain.EvalResult {
	if !calendar.IsMarketOpen(now) {
		return domain.EvalResult{Reason: domain.ReasonMarketClosed}
	}
	if now.Sub(snap.BarTime) > staleFactor*domain.TimeframeDuration(spec.Timeframe) {
		return domain.EvalResult{Reason: domain.ReasonStaleData}
	}

	var res domain.EvalResult
	e.store.With(sessionKey, func(ws *WatchState) {
		res = e.evaluateLocked(ws, spec, snap, now)
	})
	return res
}

// Cleanup releases all session, bar and history state for the key.
// Idempotent; call it whenever monitoring for a plan stops.
func (e *TriggerEvaluator) Cleanup(sessionKey string) {
	e.store.Cleanup(sessionKey)
}

func (e *TriggerEvaluator) evaluateLocked(ws *WatchState, spec domain.TriggerSpec, snap domain.Snapshot, now time.Time) domain.EvalResult {
	rollSession(ws, now)

	if spec.WithinSessions > 0 && ws.CurrentSession > spec.WithinSessions {
		return domain.EvalResult{Expired: true, Reason: domain.ReasonSessionLimit}
	}

	ts, ok := ws.Triggers[spec.ID]
	if !ok {
		ts = &TriggerState{}
		ws.Triggers[spec.ID] = ts
	}
	if ts.Expired {
		// Exhausted budgets never re-arm without an explicit reset.
		return domain.EvalResult{Expired: true, Reason: domain.ReasonBarBudget}
	}

	left, okL := snap.Resolve(spec.Left)
	right, okR := snap.Resolve(spec.Right)
	if !okL || !okR {
		// Soft skip; a bar we could not read does not count against budgets.
		return domain.EvalResult{Reason: domain.ReasonMissingValue}
	}

	need := spec.Occurrence.Count
	if need <= 0 {
		need = 1
	}

	// Bar counting and cross history advance once per newly-seen closed
	// bar, not per poll.
	newBar := snap.BarTime.After(ts.LastBarTime)
	if newBar {
		ts.LastBarTime = snap.BarTime
		ts.BarsSeen++
		ts.PrevValue, ts.HasPrev = ts.CurValue, ts.HasCur
		ts.CurValue, ts.HasCur = left, true
	}

	raw, reason := compare(spec.Operator, left, right, ts)
	if newBar && reason == "" {
		if raw {
			ts.Streak++
		} else {
			ts.Streak = 0
		}
		ts.Window = append(ts.Window, raw)
		if len(ts.Window) > need {
			ts.Window = ts.Window[1:]
		}
	}

	var met bool
	if reason == "" {
		if spec.Occurrence.Consecutive {
			met = ts.Streak >= need
		} else {
			hits := 0
			for _, h := range ts.Window {
				if h {
					hits++
				}
			}
			met = hits >= need
		}
	}

	// The bar budget burns on every counted bar, reason-coded bars
	// included; exhausting it without the occurrence met expires the
	// trigger permanently.
	if !met && spec.ExpiryBars > 0 && ts.BarsSeen >= spec.ExpiryBars {
		ts.Expired = true
		return domain.EvalResult{Expired: true, Reason: domain.ReasonBarBudget}
	}
	if reason != "" {
		return domain.EvalResult{Reason: reason}
	}

	return domain.EvalResult{Satisfied: met}
}

// rollSession advances the session counter on a trading-day change.
func rollSession(ws *WatchState, now time.Time) {
	day := calendar.TradingDay(now)
	if ws.SessionDay == "" {
		ws.SessionDay = day
		ws.CurrentSession = 1
		return
	}
	if day != ws.SessionDay {
		ws.SessionDay = day
		ws.CurrentSession++
	}
}

// compare applies the operator. Cross operators need the previous closed
// bar's value; without one they are conservatively not satisfied.
func compare(op domain.Operator, left, right float64, ts *TriggerState) (bool, string) {
	switch op {
	case domain.OpGTE:
		return left >= right, ""
	case domain.OpGT:
		return left > right, ""
	case domain.OpLTE:
		return left <= right, ""
	case domain.OpLT:
		return left < right, ""
	case domain.OpEQ:
		return left == right, ""
	case domain.OpNEQ:
		return left != right, ""
	case domain.OpCrossAbove:
		if !ts.HasPrev {
			return false, domain.ReasonNoPrevious
		}
		return ts.PrevValue <= right && left > right, ""
	case domain.OpCrossBelow:
		if !ts.HasPrev {
			return false, domain.ReasonNoPrevious
		}
		return ts.PrevValue >= right && left < right, ""
	default:
		return false, domain.ReasonMissingValue
	}
}
