package usecase

import (
	"sync"
	"time"
)

// WatchState is the mutable monitoring progress for one session key.
type WatchState struct {
	CurrentSession int
	SessionDay     string // trading-day label of the last evaluation
	Expired        bool
	Triggers       map[string]*TriggerState
}

// TriggerState is one trigger's progress inside a watch.
type TriggerState struct {
	BarsSeen    int
	LastBarTime time.Time
	Expired     bool

	// Rolling 2-value history for cross detection, advanced once per
	// closed bar.
	PrevValue float64
	HasPrev   bool
	CurValue  float64
	HasCur    bool

	Streak int    // consecutive satisfied closed bars
	Window []bool // outcomes of the last N evaluable closed bars
}

// TriggerStateStore owns the session/bar/history state the evaluator mutates.
// With serializes all access for one session key (single writer per key);
// different keys run independently. Cleanup must be idempotent and called
// whenever monitoring for a plan stops, so stale bar counts cannot leak into
// a future day's run.
type TriggerStateStore interface {
	With(sessionKey string, fn func(*WatchState))
	Cleanup(sessionKey string)
}

type watchEntry struct {
	mu    sync.Mutex
	state *WatchState
}

// MemoryTriggerStore keeps watch state in process memory behind a per-key
// lock.
type MemoryTriggerStore struct {
	mu      sync.Mutex
	entries map[string]*watchEntry
}

func NewMemoryTriggerStore() *MemoryTriggerStore {
	return &MemoryTriggerStore{entries: make(map[string]*watchEntry)}
}

func (m *MemoryTriggerStore) With(sessionKey string, fn func(*WatchState)) {
	m.mu.Lock()
	e, ok := m.entries[sessionKey]
	if !ok {
		e = &watchEntry{state: &WatchState{Triggers: make(map[string]*TriggerState)}}
		m.entries[sessionKey] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
}

func (m *MemoryTriggerStore) Cleanup(sessionKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionKey)
}
