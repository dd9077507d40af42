package domain

import (
	"time"
)

// Operator is a rule comparison. Cross operators need the previous closed
// bar's value and are never satisfied without one.
type Operator string

const (
	OpGTE        Operator = ">="
	OpGT         Operator = ">"
	OpLTE        Operator = "<="
	OpLT         Operator = "<"
	OpEQ         Operator = "=="
	OpNEQ        Operator = "!="
	OpCrossAbove Operator = "crosses_above"
	OpCrossBelow Operator = "crosses_below"
)

// Occurrence is how often a condition must hold before the trigger fires.
// Consecutive requires the last Count closed bars to all satisfy it;
// otherwise Count satisfied bars anywhere within the watch suffice.
type Occurrence struct {
	Count       int
	Consecutive bool
}

// OperandRef names a value in a market snapshot ("close", "rsi", "volume"...)
// or carries a literal constant when Source is "value".
type OperandRef struct {
	Source string
	Value  float64
}

// Literal builds a constant operand.
func Literal(v float64) OperandRef {
	return OperandRef{Source: "value", Value: v}
}

// TriggerSpec is one live rule condition gating real-time monitoring.
type TriggerSpec struct {
	ID             string
	Timeframe      string // "1m", "5m", "15m", "1h", "1d"
	Left           OperandRef
	Right          OperandRef
	Operator       Operator
	Occurrence     Occurrence
	WithinSessions int // trading sessions the trigger stays armed; 0 = unlimited
	ExpiryBars     int // closed bars the trigger stays armed; 0 = unlimited
}

// InvalidationAction is what a met invalidation demands of the caller.
type InvalidationAction string

const (
	ActionCancelEntry   InvalidationAction = "cancel_entry"
	ActionClosePosition InvalidationAction = "close_position"
)

// InvalidationSpec is a trigger that, once met, stops monitoring with an
// action instead of arming an entry.
type InvalidationSpec struct {
	TriggerSpec
	Action InvalidationAction
}

// WatchSpec bundles everything monitored for one (plan, strategy) pair.
type WatchSpec struct {
	PlanID        string
	Strategy      string
	Symbol        string
	Triggers      []TriggerSpec
	Invalidations []InvalidationSpec
	Warnings      []TriggerSpec
}

// SessionKey identifies the mutable monitoring state for this watch.
func (w *WatchSpec) SessionKey() string {
	return w.PlanID + ":" + w.Strategy
}

// MaxSessions is the session budget for the whole watch: the smallest
// WithinSessions across its triggers, 0 when none is bounded.
func (w *WatchSpec) MaxSessions() int {
	limit := 0
	for _, t := range w.Triggers {
		if t.WithinSessions <= 0 {
			continue
		}
		if limit == 0 || t.WithinSessions < limit {
			limit = t.WithinSessions
		}
	}
	return limit
}

// Snapshot is one closed candle's resolved values for a timeframe.
type Snapshot struct {
	Symbol    string
	Timeframe string
	BarTime   time.Time
	Values    map[string]float64
}

// Resolve looks up an operand in the snapshot.
func (s *Snapshot) Resolve(ref OperandRef) (float64, bool) {
	if ref.Source == "value" || ref.Source == "" {
		return ref.Value, true
	}
	v, ok := s.Values[ref.Source]
	return v, ok
}

// Soft reason codes attached to non-satisfied results. Missing data and
// closed markets never surface as errors so live monitoring survives them.
const (
	ReasonMarketClosed = "market_closed"
	ReasonStaleData    = "stale_data"
	ReasonMissingValue = "missing_value"
	ReasonNoPrevious   = "no_previous_value"
	ReasonSessionLimit = "session_limit"
	ReasonBarBudget    = "bar_budget"
)

// EvalResult is the outcome of evaluating one trigger against one snapshot.
type EvalResult struct {
	Satisfied bool
	Expired   bool
	Reason    string
}

// WatchResult is the outcome of one monitoring pass over a WatchSpec.
type WatchResult struct {
	Invalidated  bool
	Action       InvalidationAction
	Triggers     map[string]EvalResult
	Warnings     map[string]EvalResult
	AllSatisfied bool
	Expired      bool
	Reason       string
}

// TimeframeDuration maps a timeframe label to its bar interval. Unknown
// labels fall back to a day so the staleness guard stays permissive.
func TimeframeDuration(tf string) time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	default:
		return 24 * time.Hour
	}
}
