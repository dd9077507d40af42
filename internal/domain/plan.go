package domain

import "time"

// EntryConfirmation selects how the planned entry price must be confirmed
// before a position opens.
type EntryConfirmation string

const (
	ConfirmCloseAbove EntryConfirmation = "close_above"
	ConfirmTouch      EntryConfirmation = "touch"
)

// WeekEndRule decides what happens to an open position once the holding
// window runs out.
type WeekEndRule string

const (
	WeekEndExitIfNoT1       WeekEndRule = "exit_if_no_t1"
	WeekEndHoldIfAboveEntry WeekEndRule = "hold_if_above_entry"
	WeekEndTrailOrExit      WeekEndRule = "trail_or_exit"
)

// LevelPlan is one fixed long swing-trade plan: entry, stop, up to three
// profit targets and the timing rules around them.
type LevelPlan struct {
	ID       string
	Exchange string
	Symbol   string

	Entry   float64
	Stop    float64
	Target1 float64
	Target2 float64 // 0 = not set
	Target3 float64 // 0 = not set

	EntryConfirmation EntryConfirmation
	EntryWindowDays   int
	MaxHoldDays       int
	WeekEndRule       WeekEndRule

	Source    string
	CreatedAt time.Time
}

func (p *LevelPlan) HasTarget2() bool { return p.Target2 > 0 }
func (p *LevelPlan) HasTarget3() bool { return p.Target3 > 0 }

// Validate checks the plan is complete and monotonic
// (stop < entry < target1 < target2 < target3). It must pass before the plan
// is persisted or simulated.
func (p *LevelPlan) Validate() error {
	if p.Entry <= 0 {
		return &ConfigurationError{Field: "entry", Reason: "must be positive"}
	}
	if p.Stop <= 0 {
		return &ConfigurationError{Field: "stop", Reason: "must be positive"}
	}
	if p.Target1 <= 0 {
		return &ConfigurationError{Field: "target1", Reason: "must be positive"}
	}
	if p.Stop >= p.Entry {
		return &ConfigurationError{Field: "stop", Reason: "must be below entry"}
	}
	if p.Target1 <= p.Entry {
		return &ConfigurationError{Field: "target1", Reason: "must be above entry"}
	}
	if p.Target2 != 0 && p.Target2 <= p.Target1 {
		return &ConfigurationError{Field: "target2", Reason: "must be above target1"}
	}
	if p.Target3 != 0 {
		if p.Target2 == 0 {
			return &ConfigurationError{Field: "target3", Reason: "requires target2"}
		}
		if p.Target3 <= p.Target2 {
			return &ConfigurationError{Field: "target3", Reason: "must be above target2"}
		}
	}
	switch p.EntryConfirmation {
	case ConfirmCloseAbove, ConfirmTouch:
	default:
		return &ConfigurationError{Field: "entry_confirmation", Reason: "unknown mode"}
	}
	if p.EntryWindowDays <= 0 {
		return &ConfigurationError{Field: "entry_window_days", Reason: "must be positive"}
	}
	if p.MaxHoldDays <= 0 {
		return &ConfigurationError{Field: "max_hold_days", Reason: "must be positive"}
	}
	switch p.WeekEndRule {
	case WeekEndExitIfNoT1, WeekEndHoldIfAboveEntry, WeekEndTrailOrExit:
	default:
		return &ConfigurationError{Field: "week_end_rule", Reason: "unknown rule"}
	}
	return nil
}
