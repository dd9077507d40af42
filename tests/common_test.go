package tests

import (
	"context"
	"sync"
	"time"

	"github.com/ravikal/swing_trade_replay/internal/calendar"
	"github.com/ravikal/swing_trade_replay/internal/domain"
)

type MockNotifier struct {
	mu     sync.Mutex
	Events []domain.Event
	Alerts []string
}

func (m *MockNotifier) NotifyEvent(ctx context.Context, planID string, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockNotifier) Alert(ctx context.Context, planID, code, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, code)
	return nil
}

// sessionBars lays the given OHLC rows onto consecutive trading days
// starting Monday 2026-03-02.
func sessionBars(rows [][4]float64) []domain.Bar {
	day := time.Date(2026, 3, 2, 15, 30, 0, 0, calendar.Location())
	bars := make([]domain.Bar, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, domain.Bar{
			Date:  day,
			Open:  r[0],
			High:  r[1],
			Low:   r[2],
			Close: r[3],
		})
		day = calendar.NextTradingDay(day)
	}
	return bars
}

func testPlan(id string) *domain.LevelPlan {
	return &domain.LevelPlan{
		ID:                id,
		Exchange:          "nse",
		Symbol:            "RELIANCE",
		Entry:             100,
		Stop:              95,
		Target1:           104,
		Target2:           110,
		EntryConfirmation: domain.ConfirmCloseAbove,
		EntryWindowDays:   3,
		MaxHoldDays:       5,
		WeekEndRule:       domain.WeekEndExitIfNoT1,
		Source:            "test",
		CreatedAt:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}
