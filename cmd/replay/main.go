package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravikal/swing_trade_replay/internal/domain"
	"github.com/ravikal/swing_trade_replay/internal/infrastructure/storage"
	"github.com/ravikal/swing_trade_replay/internal/usecase"
)

var (
	dbPath  string
	capital float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay swing trade plans over stored session bars",
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "replay.db", "sqlite database path")

	runCmd := &cobra.Command{
		Use:   "run <plan-id>",
		Short: "Replay one plan and print its event trail",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	runCmd.Flags().Float64Var(&capital, "capital", 100000, "capital allocated to the plan")

	plansCmd := &cobra.Command{
		Use:   "plans",
		Short: "List stored plans",
		RunE:  listPlans,
	}

	rootCmd.AddCommand(runCmd, plansCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	plan, err := store.GetPlan(ctx, args[0])
	if err != nil {
		return fmt.Errorf("plan %s: %w", args[0], err)
	}

	from := plan.CreatedAt
	to := from.AddDate(0, 0, (plan.EntryWindowDays+plan.MaxHoldDays)*2+14)
	bars, err := store.GetBars(ctx, plan.Symbol, from, to)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars stored for %s after %s", plan.Symbol, from.Format("2006-01-02"))
	}

	currentPrice := bars[len(bars)-1].Close

	sim := usecase.NewSimulator(capital)
	state, err := sim.Simulate(plan, bars, currentPrice)
	if err != nil {
		return err
	}

	printState(plan, state)

	return store.SaveSimulation(ctx, state)
}

func printState(plan *domain.LevelPlan, state *domain.SimulationState) {
	fmt.Printf("Plan %s %s/%s  entry=%.2f stop=%.2f t1=%.2f\n",
		plan.ID, plan.Exchange, plan.Symbol, plan.Entry, plan.Stop, plan.Target1)
	fmt.Printf("Status: %s  qty %d/%d  trailing stop %.2f\n",
		state.Status, state.QtyRemaining, state.QtyTotal, state.TrailingStop)
	fmt.Printf("PnL: realized %.2f  unrealized %.2f  total %.2f\n",
		state.RealizedPnL, state.UnrealizedPnL, state.TotalPnL)

	fmt.Println("Events:")
	for _, ev := range state.Events {
		line := fmt.Sprintf("  %s  %-16s price=%.2f", ev.Date.Format("2006-01-02"), ev.Type, ev.Price)
		if ev.Qty > 0 {
			line += fmt.Sprintf(" qty=%d", ev.Qty)
		}
		if ev.PnL != 0 {
			line += fmt.Sprintf(" pnl=%.2f", ev.PnL)
		}
		if ev.Quality != "" {
			line += fmt.Sprintf(" quality=%s", ev.Quality)
		}
		if ev.Detail != "" {
			line += "  " + ev.Detail
		}
		fmt.Println(line)
	}
}

func listPlans(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	plans, err := store.ListPlans(ctx)
	if err != nil {
		return err
	}

	for _, p := range plans {
		sim, err := store.GetSimulation(ctx, p.ID)
		status := "-"
		if err == nil {
			status = string(sim.Status)
		}
		fmt.Printf("%-28s %-12s entry=%.2f stop=%.2f created=%s status=%s\n",
			p.ID, p.Symbol, p.Entry, p.Stop, p.CreatedAt.Format(time.DateOnly), status)
	}
	return nil
}
