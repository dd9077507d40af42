package domain

import "time"

// Status is the replay position state. Terminal states never re-transition.
type Status string

const (
	StatusWaiting       Status = "WAITING"
	StatusEntrySignaled Status = "ENTRY_SIGNALED"
	StatusEntered       Status = "ENTERED"
	StatusPartialExit   Status = "PARTIAL_EXIT"
	StatusFullExit      Status = "FULL_EXIT"
	StatusStoppedOut    Status = "STOPPED_OUT"
	StatusExpired       Status = "EXPIRED"
)

// Terminal reports whether no further bars can change the state.
func (s Status) Terminal() bool {
	return s == StatusFullExit || s == StatusStoppedOut || s == StatusExpired
}

// Open reports whether the position holds quantity.
func (s Status) Open() bool {
	return s == StatusEntered || s == StatusPartialExit
}

type EventType string

const (
	EventEntrySignal    EventType = "ENTRY_SIGNAL"
	EventEntry          EventType = "ENTRY"
	EventEntrySkipped   EventType = "ENTRY_SKIPPED"
	EventT1Hit          EventType = "T1_HIT"
	EventT2Hit          EventType = "T2_HIT"
	EventT3Hit          EventType = "T3_HIT"
	EventStoppedOut     EventType = "STOPPED_OUT"
	EventTrailingStop   EventType = "TRAILING_STOP"
	EventWeekEndExit    EventType = "WEEK_END_EXIT"
	EventWeekEndHold    EventType = "WEEK_END_HOLD"
	EventTrailTightened EventType = "TRAIL_TIGHTENED"
)

// EntryQuality grades an actual fill against the planned entry.
type EntryQuality string

const (
	QualityGood         EntryQuality = "GOOD"
	QualityGapDown      EntryQuality = "GAP_DOWN"
	QualityExtended     EntryQuality = "EXTENDED"
	QualityOverextended EntryQuality = "OVEREXTENDED"
	QualityBelowStop    EntryQuality = "BELOW_STOP"
)

// Event is one entry in the audit trail a replay produces. Detail carries the
// human-readable line the notification dispatcher renders downstream.
type Event struct {
	Date    time.Time
	Type    EventType
	Price   float64
	Qty     int
	PnL     float64
	Detail  string
	Quality EntryQuality // set on entry-related events only
}

// SimulationState is the full position and P&L state after replaying a bar
// sequence against a plan. It is persisted verbatim so re-running with one
// more bar appended reproduces history.
type SimulationState struct {
	PlanID string
	Status Status

	EntryPrice float64
	EntryDate  time.Time

	QtyTotal     int
	QtyRemaining int
	QtyExited    int

	TrailingStop float64

	RealizedPnL   float64
	UnrealizedPnL float64
	TotalPnL      float64

	PeakPrice   float64
	PeakGainPct float64

	Events []Event
}
