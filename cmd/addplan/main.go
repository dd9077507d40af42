package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ravikal/swing_trade_replay/internal/domain"
	"github.com/ravikal/swing_trade_replay/internal/infrastructure/storage"
)

func main() {
	dbPath := flag.String("db", "replay.db", "sqlite database path")
	exchange := flag.String("exchange", "nse", "exchange name")
	symbol := flag.String("symbol", "", "instrument symbol (required)")
	entry := flag.Float64("entry", 0, "entry level")
	stop := flag.Float64("stop", 0, "stop level")
	t1 := flag.Float64("t1", 0, "first target")
	t2 := flag.Float64("t2", 0, "second target (optional)")
	t3 := flag.Float64("t3", 0, "third target (optional)")
	confirmation := flag.String("confirmation", "close_above", "entry confirmation: close_above or touch")
	window := flag.Int("window", 5, "entry window in trading days")
	maxHold := flag.Int("max-hold", 10, "max hold in trading days")
	weekEnd := flag.String("week-end", "exit_if_no_t1", "week end rule: exit_if_no_t1, hold_if_above_entry or trail_or_exit")
	source := flag.String("source", "manual", "where the plan came from")
	flag.Parse()

	if *symbol == "" {
		fmt.Println("symbol is required")
		flag.Usage()
		os.Exit(1)
	}

	now := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0)
	id := ulid.MustNew(ulid.Timestamp(now), entropy).String()

	plan := &domain.LevelPlan{
		ID:                id,
		Exchange:          *exchange,
		Symbol:            *symbol,
		Entry:             *entry,
		Stop:              *stop,
		Target1:           *t1,
		Target2:           *t2,
		Target3:           *t3,
		EntryConfirmation: domain.EntryConfirmation(*confirmation),
		EntryWindowDays:   *window,
		MaxHoldDays:       *maxHold,
		WeekEndRule:       domain.WeekEndRule(*weekEnd),
		Source:            *source,
		CreatedAt:         now,
	}

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.SavePlan(context.Background(), plan); err != nil {
		fmt.Printf("Failed to save plan: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Added plan %s: %s entry=%.2f stop=%.2f t1=%.2f\n", id, *symbol, *entry, *stop, *t1)
}
