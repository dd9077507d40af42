package domain

import (
	"context"
	"time"
)

// MarketData supplies ordered bars and live price data. The core only
// consumes; it never talks to a broker.
type MarketData interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	OnTick(callback func(symbol string, price float64))
	OnCandle(callback func(symbol, interval string, c Candle))
	Subscribe(symbols []string) error
	Close() error
}

// PlanRepository stores level plans supplied by the upstream analysis step.
type PlanRepository interface {
	SavePlan(ctx context.Context, plan *LevelPlan) error
	GetPlan(ctx context.Context, id string) (*LevelPlan, error)
	ListPlans(ctx context.Context) ([]*LevelPlan, error)
	DeletePlan(ctx context.Context, id string) error
}

// BarRepository stores the session bars a replay runs over.
type BarRepository interface {
	SaveBars(ctx context.Context, symbol string, bars []Bar) error
	GetBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
}

// SimulationRepository stores the full replay output verbatim, events
// included, so a re-run over the same bars reproduces it byte for byte.
type SimulationRepository interface {
	SaveSimulation(ctx context.Context, state *SimulationState) error
	GetSimulation(ctx context.Context, planID string) (*SimulationState, error)
}

// Notifier receives replay events and monitoring alerts. The core is
// presentation-agnostic beyond the Detail string it puts on each event.
type Notifier interface {
	NotifyEvent(ctx context.Context, planID string, event Event) error
	Alert(ctx context.Context, planID, code, message string) error
}
