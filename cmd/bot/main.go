package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ravikal/swing_trade_replay/internal/calendar"
	"github.com/ravikal/swing_trade_replay/internal/domain"
	"github.com/ravikal/swing_trade_replay/internal/infrastructure/logger"
	"github.com/ravikal/swing_trade_replay/internal/infrastructure/marketdata"
	"github.com/ravikal/swing_trade_replay/internal/infrastructure/notify"
	"github.com/ravikal/swing_trade_replay/internal/infrastructure/storage"
	"github.com/ravikal/swing_trade_replay/internal/usecase"
)

type Config struct {
	Feed struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"feed"`
	Polling struct {
		PlansReloadMs int `yaml:"plans_reload_ms"`
	} `yaml:"polling"`
	Logging struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"logging"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Capital float64 `yaml:"capital"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// defaultWatch builds the standard monitoring setup for a plan: an entry
// trigger on the daily close crossing the entry level, a stop invalidation,
// and a thin-volume warning.
func defaultWatch(plan *domain.LevelPlan) *domain.WatchSpec {
	sessions := plan.EntryWindowDays
	return &domain.WatchSpec{
		PlanID:   plan.ID,
		Strategy: "swing_entry",
		Symbol:   plan.Symbol,
		Triggers: []domain.TriggerSpec{
			{
				ID:             "entry-cross",
				Timeframe:      "1d",
				Left:           domain.OperandRef{Source: "close"},
				Right:          domain.Literal(plan.Entry),
				Operator:       domain.OpCrossAbove,
				Occurrence:     domain.Occurrence{Count: 1},
				WithinSessions: sessions,
			},
		},
		Invalidations: []domain.InvalidationSpec{
			{
				TriggerSpec: domain.TriggerSpec{
					ID:        "stop-breach",
					Timeframe: "1d",
					Left:      domain.OperandRef{Source: "close"},
					Right:     domain.Literal(plan.Stop),
					Operator:  domain.OpLT,
				},
				Action: domain.ActionCancelEntry,
			},
		},
		Warnings: []domain.TriggerSpec{
			{
				ID:        "thin-volume",
				Timeframe: "1d",
				Left:      domain.OperandRef{Source: "volume"},
				Right:     domain.Literal(0),
				Operator:  domain.OpEQ,
			},
		},
	}
}

func main() {
	// 1. Load Config
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "replay.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Feed
	feed := marketdata.NewFeed(cfg.Feed.RESTEndpoint, cfg.Feed.WSEndpoint)
	defer feed.Close()

	// 5. Init Services
	notifier := notify.NewLogNotifier(log)
	monitor := usecase.NewMonitorService(usecase.NewMemoryTriggerStore(), notifier, log)
	capital := cfg.Capital
	if capital == 0 {
		capital = 100000
	}
	simulator := usecase.NewSimulator(capital)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 6. Route closed candles into trigger evaluation
	feed.OnCandle(func(symbol, interval string, c domain.Candle) {
		snap := domain.Snapshot{
			Symbol:    symbol,
			Timeframe: interval,
			BarTime:   time.Unix(c.Time, 0),
			Values: map[string]float64{
				"open":   c.Open,
				"high":   c.High,
				"low":    c.Low,
				"close":  c.Close,
				"volume": c.Volume,
			},
		}
		snaps := map[string]domain.Snapshot{interval: snap}
		for _, w := range monitor.Watches(symbol) {
			res := monitor.EvaluateWatch(context.Background(), w, snaps)
			if res.Invalidated {
				log.Info("Watch invalidated",
					zap.String("plan_id", w.PlanID),
					zap.String("action", string(res.Action)))
				monitor.StopWatch(w.SessionKey())
			}
		}
	})

	// 7. Plan reload + replay loop
	go func() {
		reloadMs := cfg.Polling.PlansReloadMs
		if reloadMs == 0 {
			reloadMs = 60000
		}
		ticker := time.NewTicker(time.Duration(reloadMs) * time.Millisecond)
		defer ticker.Stop()

		activeSymbols := make(map[string]bool)

		for {
			ctx := context.Background()

			plans, err := store.ListPlans(ctx)
			if err != nil {
				log.Error("Failed to list plans", zap.Error(err))
			} else {
				var toSubscribe []string
				for _, p := range plans {
					if !activeSymbols[p.Symbol] {
						toSubscribe = append(toSubscribe, p.Symbol)
						activeSymbols[p.Symbol] = true
					}
					monitor.StartWatch(defaultWatch(p))
					runReplay(ctx, log, store, feed, simulator, notifier, p)
				}

				if len(toSubscribe) > 0 {
					log.Info("Subscribing to new symbols", zap.Strings("symbols", toSubscribe))
					if err := feed.Subscribe(toSubscribe); err != nil {
						log.Error("Failed to subscribe", zap.Error(err))
					}
				}
			}

			select {
			case <-ticker.C:
				continue
			case <-stop:
				return
			}
		}
	}()

	// 8. Wait for Shutdown
	<-stop

	log.Info("Shutting down...")
}

// runReplay pulls the daily bars a plan needs, replays the plan over them
// and persists the result. Re-running over unchanged bars rewrites the same
// state, so calling this every reload tick is harmless.
func runReplay(ctx context.Context, log *zap.Logger, store *storage.SQLiteStore, feed domain.MarketData, sim *usecase.Simulator, notifier domain.Notifier, plan *domain.LevelPlan) {
	candles, err := feed.GetCandles(ctx, plan.Symbol, "1d", plan.EntryWindowDays+plan.MaxHoldDays+5)
	if err != nil {
		log.Error("Failed to fetch candles", zap.String("symbol", plan.Symbol), zap.Error(err))
		return
	}

	var bars []domain.Bar
	var lastClose float64
	for _, c := range candles {
		b := domain.BarFromCandle(c, calendar.Location())
		if !b.Date.Before(plan.CreatedAt) {
			bars = append(bars, b)
		}
		lastClose = c.Close
	}
	if len(bars) == 0 {
		return
	}

	if err := store.SaveBars(ctx, plan.Symbol, bars); err != nil {
		log.Error("Failed to save bars", zap.String("symbol", plan.Symbol), zap.Error(err))
		return
	}

	prev, _ := store.GetSimulation(ctx, plan.ID)

	state, err := sim.Simulate(plan, bars, lastClose)
	if err != nil {
		log.Error("Replay failed", zap.String("plan_id", plan.ID), zap.Error(err))
		return
	}

	// Only events beyond what we already stored are news.
	known := 0
	if prev != nil {
		known = len(prev.Events)
	}
	for _, ev := range state.Events[min(known, len(state.Events)):] {
		if err := notifier.NotifyEvent(ctx, plan.ID, ev); err != nil {
			log.Error("Failed to notify", zap.Error(err))
		}
	}

	if err := store.SaveSimulation(ctx, state); err != nil {
		log.Error("Failed to save simulation", zap.String("plan_id", plan.ID), zap.Error(err))
	}
}
