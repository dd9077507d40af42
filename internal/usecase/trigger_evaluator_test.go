package usecase_test

import (
	"testing"
	"time"

	"github.com/ravikal/swing_trade_replay/internal/calendar"
	"github.com/ravikal/swing_trade_replay/internal/domain"
	"github.com/ravikal/swing_trade_replay/internal/usecase"
)

// marketTime returns an in-hours IST timestamp offset by bars of 5 minutes.
func marketTime(day, bar int) time.Time {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, calendar.Location())
	return base.AddDate(0, 0, day).Add(time.Duration(bar) * 5 * time.Minute)
}

func snap5m(bar int, close float64) domain.Snapshot {
	return domain.Snapshot{
		Symbol:    "RELIANCE",
		Timeframe: "5m",
		BarTime:   marketTime(0, bar),
		Values:    map[string]float64{"close": close},
	}
}

func crossSpec() domain.TriggerSpec {
	return domain.TriggerSpec{
		ID:        "t-cross",
		Timeframe: "5m",
		Left:      domain.OperandRef{Source: "close"},
		Right:     domain.Literal(100),
		Operator:  domain.OpCrossAbove,
	}
}

func TestEvaluate_CrossAbove(t *testing.T) {
	ev := usecase.NewTriggerEvaluator(usecase.NewMemoryTriggerStore())
	spec := crossSpec()

	// First value alone: no previous, conservatively not satisfied.
	res := ev.Evaluate(spec, snap5m(0, 98), "k", marketTime(0, 0))
	if res.Satisfied || res.Reason != domain.ReasonNoPrevious {
		t.Errorf("first bar: %+v, want unsatisfied no_previous_value", res)
	}

	// 98 -> 99: still below threshold.
	res = ev.Evaluate(spec, snap5m(1, 99), "k", marketTime(0, 1))
	if res.Satisfied {
		t.Error("99 must not satisfy crosses_above 100")
	}

	// 99 -> 101: the cross.
	res = ev.Evaluate(spec, snap5m(2, 101), "k", marketTime(0, 2))
	if !res.Satisfied {
		t.Error("99 -> 101 must satisfy crosses_above 100")
	}
}

func TestEvaluate_CrossRequiresTransition(t *testing.T) {
	ev := usecase.NewTriggerEvaluator(usecase.NewMemoryTriggerStore())
	spec := crossSpec()
	spec.Occurrence = domain.Occurrence{Count: 1, Consecutive: true}

	ev.Evaluate(spec, snap5m(0, 101), "k", marketTime(0, 0))
	// 101 -> 101 is not a cross: previous already above the threshold.
	res := ev.Evaluate(spec, snap5m(1, 101), "k", marketTime(0, 1))
	if res.Satisfied {
		t.Error("101 -> 101 repeat must not satisfy crosses_above")
	}
}

func TestEvaluate_BarCountOncePerClosedBar(t *testing.T) {
	ev := usecase.NewTriggerEvaluator(usecase.NewMemoryTriggerStore())
	spec := domain.TriggerSpec{
		ID:         "t-budget",
		Timeframe:  "5m",
		Left:       domain.OperandRef{Source: "close"},
		Right:      domain.Literal(200),
		Operator:   domain.OpGTE,
		ExpiryBars: 2,
	}

	// Polling the same closed bar repeatedly must not burn the budget.
	for i := 0; i < 5; i++ {
		res := ev.Evaluate(spec, snap5m(0, 100), "k", marketTime(0, 0))
		if res.Expired {
			t.Fatalf("poll %d expired the trigger on one bar", i)
		}
	}

	// Second unsatisfied bar exhausts the two-bar budget.
	res := ev.Evaluate(spec, snap5m(1, 100), "k", marketTime(0, 1))
	if !res.Expired || res.Reason != domain.ReasonBarBudget {
		t.Fatalf("second bar: %+v, want expired bar_budget", res)
	}

	// Expiry is permanent for the session, even on a satisfying bar.
	res = ev.Evaluate(spec, snap5m(2, 250), "k", marketTime(0, 2))
	if !res.Expired || res.Satisfied {
		t.Errorf("expired trigger re-armed: %+v", res)
	}
}

func TestEvaluate_ConsecutiveOccurrence(t *testing.T) {
	ev := usecase.NewTriggerEvaluator(usecase.NewMemoryTriggerStore())
	spec := domain.TriggerSpec{
		ID:         "t-consec",
		Timeframe:  "5m",
		Left:       domain.OperandRef{Source: "close"},
		Right:      domain.Literal(100),
		Operator:   domain.OpGT,
		Occurrence: domain.Occurrence{Count: 2, Consecutive: true},
	}

	if res := ev.Evaluate(spec, snap5m(0, 101), "k", marketTime(0, 0)); res.Satisfied {
		t.Error("one satisfied bar of two must not fire")
	}
	// An unsatisfied bar resets the streak.
	ev.Evaluate(spec, snap5m(1, 99), "k", marketTime(0, 1))
	if res := ev.Evaluate(spec, snap5m(2, 102), "k", marketTime(0, 2)); res.Satisfied {
		t.Error("streak must reset after a miss")
	}
	if res := ev.Evaluate(spec, snap5m(3, 103), "k", marketTime(0, 3)); !res.Satisfied {
		t.Error("two consecutive satisfied bars must fire")
	}
}

func TestEvaluate_NonConsecutiveOccurrenceWindow(t *testing.T) {
	ev := usecase.NewTriggerEvaluator(usecase.NewMemoryTriggerStore())
	spec := domain.TriggerSpec{
		ID:         "t-any",
		Timeframe:  "5m",
		Left:       domain.OperandRef{Source: "close"},
		Right:      domain.Literal(100),
		Operator:   domain.OpGT,
		Occurrence: domain.Occurrence{Count: 2},
	}

	// Hit, miss, hit: the retained two-bar window holds [miss, hit], so
	// the old hit has scrolled out and the trigger must not fire.
	ev.Evaluate(spec, snap5m(0, 101), "k", marketTime(0, 0))
	ev.Evaluate(spec, snap5m(1, 99), "k", marketTime(0, 1))
	if res := ev.Evaluate(spec, snap5m(2, 102), "k", marketTime(0, 2)); res.Satisfied {
		t.Errorf("hit-miss-hit: %+v, a hit outside the retained window must not count", res)
	}

	// A second hit refills the window.
	if res := ev.Evaluate(spec, snap5m(3, 103), "k", marketTime(0, 3)); !res.Satisfied {
		t.Error("two hits inside the retained window must fire")
	}
}

func TestEvaluate_BarBudgetBurnsOnCrossWarmup(t *testing.T) {
	ev := usecase.NewTriggerEvaluator(usecase.NewMemoryTriggerStore())
	spec := crossSpec()
	spec.ExpiryBars = 1

	// The first bar of a cross trigger has no previous value, but it still
	// consumes the one-bar budget and expires the trigger for good.
	res := ev.Evaluate(spec, snap5m(0, 98), "k", marketTime(0, 0))
	if !res.Expired || res.Reason != domain.ReasonBarBudget {
		t.Fatalf("first bar: %+v, want expired bar_budget", res)
	}

	// A cross on the next bar must not revive it.
	res = ev.Evaluate(spec, snap5m(1, 101), "k", marketTime(0, 1))
	if res.Satisfied || !res.Expired {
		t.Errorf("bar after exhaustion: %+v, must stay expired", res)
	}
}

func TestEvaluate_SessionLimit(t *testing.T) {
	ev := usecase.NewTriggerEvaluator(usecase.NewMemoryTriggerStore())
	spec := domain.TriggerSpec{
		ID:             "t-session",
		Timeframe:      "5m",
		Left:           domain.OperandRef{Source: "close"},
		Right:          domain.Literal(100),
		Operator:       domain.OpGT,
		WithinSessions: 1,
	}

	res := ev.Evaluate(spec, snap5m(0, 101), "k", marketTime(0, 0))
	if !res.Satisfied {
		t.Fatalf("day 1: %+v, want satisfied", res)
	}

	// Next trading day exceeds the one-session budget.
	nextDay := domain.Snapshot{
		Symbol: "RELIANCE", Timeframe: "5m",
		BarTime: marketTime(1, 0),
		Values:  map[string]float64{"close": 101},
	}
	res = ev.Evaluate(spec, nextDay, "k", marketTime(1, 0))
	if !res.Expired || res.Reason != domain.ReasonSessionLimit {
		t.Errorf("day 2: %+v, want expired session_limit", res)
	}
}

func TestEvaluate_MarketClosedAndStale(t *testing.T) {
	ev := usecase.NewTriggerEvaluator(usecase.NewMemoryTriggerStore())
	spec := crossSpec()

	sunday := time.Date(2026, 3, 8, 12, 0, 0, 0, calendar.Location())
	res := ev.Evaluate(spec, snap5m(0, 101), "k", sunday)
	if res.Satisfied || res.Reason != domain.ReasonMarketClosed {
		t.Errorf("closed market: %+v, want market_closed skip", res)
	}

	// In hours, but the candle is older than twice its timeframe.
	stale := snap5m(0, 101)
	now := stale.BarTime.Add(11 * time.Minute)
	res = ev.Evaluate(spec, stale, "k", now)
	if res.Satisfied || res.Reason != domain.ReasonStaleData {
		t.Errorf("stale candle: %+v, want stale_data skip", res)
	}
}

func TestEvaluate_MissingValueIsSoft(t *testing.T) {
	ev := usecase.NewTriggerEvaluator(usecase.NewMemoryTriggerStore())
	spec := domain.TriggerSpec{
		ID:        "t-rsi",
		Timeframe: "5m",
		Left:      domain.OperandRef{Source: "rsi"},
		Right:     domain.Literal(60),
		Operator:  domain.OpGTE,
	}

	res := ev.Evaluate(spec, snap5m(0, 101), "k", marketTime(0, 0))
	if res.Satisfied || res.Reason != domain.ReasonMissingValue {
		t.Errorf("missing operand: %+v, want missing_value skip", res)
	}
}

func TestCleanup_ResetsStateAndIsIdempotent(t *testing.T) {
	store := usecase.NewMemoryTriggerStore()
	ev := usecase.NewTriggerEvaluator(store)
	spec := domain.TriggerSpec{
		ID:         "t-budget",
		Timeframe:  "5m",
		Left:       domain.OperandRef{Source: "close"},
		Right:      domain.Literal(200),
		Operator:   domain.OpGTE,
		ExpiryBars: 1,
	}

	res := ev.Evaluate(spec, snap5m(0, 100), "k", marketTime(0, 0))
	if !res.Expired {
		t.Fatal("one-bar budget should expire immediately when unsatisfied")
	}

	ev.Cleanup("k")
	ev.Cleanup("k") // must be safe to repeat

	// Fresh state after cleanup: the bar budget re-arms.
	res = ev.Evaluate(spec, snap5m(1, 250), "k", marketTime(0, 1))
	if !res.Satisfied {
		t.Errorf("after cleanup: %+v, want satisfied on a fresh budget", res)
	}
}
