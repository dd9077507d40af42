package usecase

import (
	"fmt"
	"math"

	"github.com/ravikal/swing_trade_replay/internal/calendar"
	"github.com/ravikal/swing_trade_replay/internal/domain"
)

// Simulator replays a bar sequence against a LevelPlan and produces the
// resulting position state plus an ordered audit trail. It is pure: no I/O,
// no clock, no randomness, so identical input always yields identical output
// and many symbols can be replayed in parallel.
type Simulator struct {
	classifier *EntryQualityClassifier
	capital    float64
}

func NewSimulator(capital float64) *Simulator {
	return &Simulator{
		classifier: NewEntryQualityClassifier(),
		capital:    capital,
	}
}

// Simulate iterates bars in date order and walks the plan's state machine.
// currentPrice marks the open position to market when the series ends with
// quantity still held. Malformed plans and gapped series fail before any bar
// is processed.
func (s *Simulator) Simulate(plan *domain.LevelPlan, bars []domain.Bar, currentPrice float64) (*domain.SimulationState, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := checkBarSeries(plan.Symbol, bars); err != nil {
		return nil, err
	}

	run := &simRun{
		plan:       plan,
		classifier: s.classifier,
		capital:    s.capital,
		state: &domain.SimulationState{
			PlanID: plan.ID,
			Status: domain.StatusWaiting,
		},
	}

	for _, bar := range bars {
		if run.state.Status.Terminal() {
			break
		}
		run.dayCount++
		run.step(bar)
		run.trackPeak(bar)
		run.prevLow = bar.Low
	}

	run.finalize(currentPrice)
	return run.state, nil
}

// checkBarSeries rejects out-of-order dates and missing weekday sessions.
// Exchange holidays are not modeled; the caller backfills around them.
func checkBarSeries(symbol string, bars []domain.Bar) error {
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1], bars[i]
		if !cur.Date.After(prev.Date) {
			return fmt.Errorf("bars for %s out of order at %s", symbol, cur.Date.Format("2006-01-02"))
		}
		expected := calendar.NextTradingDay(prev.Date)
		if calendar.TradingDay(cur.Date) != calendar.TradingDay(expected) && cur.Date.After(expected) {
			return &domain.DataGapError{Symbol: symbol, Missing: expected}
		}
	}
	return nil
}

// simRun holds the mutable state of one replay. One handler per status; a
// bar may fall through from an entry fill straight into the exit checks.
type simRun struct {
	plan       *domain.LevelPlan
	classifier *EntryQualityClassifier
	capital    float64
	state      *domain.SimulationState

	dayCount   int
	plannedQty int
	prevLow    float64
	t2Booked   bool
	holdNoted  bool
}

func (r *simRun) step(bar domain.Bar) {
	switch r.state.Status {
	case domain.StatusWaiting:
		r.stepWaiting(bar)
	case domain.StatusEntrySignaled:
		r.stepSignaled(bar)
	case domain.StatusEntered, domain.StatusPartialExit:
		r.stepOpen(bar)
	}
}

// stepWaiting watches for entry confirmation inside the entry window.
func (r *simRun) stepWaiting(bar domain.Bar) {
	if r.dayCount > r.plan.EntryWindowDays {
		r.expireWindow(bar)
		return
	}

	switch r.plan.EntryConfirmation {
	case domain.ConfirmTouch:
		if bar.Low <= r.plan.Entry && r.plan.Entry <= bar.High {
			// Touch fills at the planned price, no slippage model.
			r.plannedQty = plannedQty(r.capital, r.plan.Entry)
			r.enter(bar, r.plan.Entry, r.plannedQty, domain.QualityGood,
				fmt.Sprintf("touched planned entry %.2f, filled %d", r.plan.Entry, r.plannedQty))
			r.stepOpen(bar)
			return
		}
	case domain.ConfirmCloseAbove:
		if bar.Close >= r.plan.Entry {
			premium := round2((bar.Close - r.plan.Entry) / r.plan.Entry * 100)
			if premium > maxPremiumPct {
				// Chasing a runaway close is worse than missing the trade.
				r.emit(bar, domain.Event{
					Type:    domain.EventEntrySkipped,
					Price:   bar.Close,
					Quality: domain.QualityOverextended,
					Detail:  fmt.Sprintf("signal close %.2f is %.2f%% above entry, waiting for pullback", bar.Close, premium),
				})
				break
			}
			r.plannedQty = plannedQty(r.capital, r.plan.Entry)
			r.state.Status = domain.StatusEntrySignaled
			r.emit(bar, domain.Event{
				Type:   domain.EventEntrySignal,
				Price:  bar.Close,
				Qty:    r.plannedQty,
				Detail: fmt.Sprintf("close %.2f confirmed entry %.2f (%.2f%% premium), fill at next open", bar.Close, r.plan.Entry, premium),
			})
			return
		}
	}

	if r.state.Status == domain.StatusWaiting && r.dayCount >= r.plan.EntryWindowDays {
		r.expireWindow(bar)
	}
}

// stepSignaled executes the deferred fill at this bar's open and grades it.
func (r *simRun) stepSignaled(bar domain.Bar) {
	fill := bar.Open
	a := r.classifier.Classify(fill, r.plan.Entry, r.plan.Stop)

	switch a.Quality {
	case domain.QualityBelowStop:
		r.state.Status = domain.StatusWaiting
		r.emit(bar, domain.Event{
			Type:    domain.EventEntrySkipped,
			Price:   fill,
			Quality: a.Quality,
			Detail:  fmt.Sprintf("open %.2f gapped below stop %.2f, entry abandoned", fill, r.plan.Stop),
		})
	case domain.QualityOverextended:
		r.state.Status = domain.StatusWaiting
		r.emit(bar, domain.Event{
			Type:    domain.EventEntrySkipped,
			Price:   fill,
			Quality: a.Quality,
			Detail:  fmt.Sprintf("open %.2f is %.2f%% above entry, skipping overextended fill", fill, a.PremiumPct),
		})
	case domain.QualityExtended:
		qty := r.classifier.AdjustQty(r.plannedQty, a)
		r.enter(bar, fill, qty, a.Quality,
			fmt.Sprintf("filled %.2f at %.2f%% premium, size trimmed %d -> %d to hold planned risk", fill, a.PremiumPct, r.plannedQty, qty))
		r.stepOpen(bar)
		return
	default: // GOOD or GAP_DOWN
		r.enter(bar, fill, r.plannedQty, a.Quality,
			fmt.Sprintf("filled %.2f at %.2f%% premium, full size %d", fill, a.PremiumPct, r.plannedQty))
		r.stepOpen(bar)
		return
	}

	// Reverted to WAITING; the entry window still binds.
	if r.dayCount >= r.plan.EntryWindowDays {
		r.expireWindow(bar)
	}
}

// stepOpen runs the exit checks for a held position. The order is
// load-bearing: the stop always wins a shared bar, then targets cascade.
func (r *simRun) stepOpen(bar domain.Bar) {
	st := r.state

	// 1. Stop. A bar that breaches both stop and target resolves to the
	// stop; the target is never credited.
	if bar.Low <= st.TrailingStop {
		r.exitStop(bar)
		return
	}

	// 2. T1: half the book off, stop to breakeven.
	if st.Status == domain.StatusEntered && bar.High >= r.plan.Target1 {
		qty := st.QtyTotal / 2
		if qty == 0 {
			qty = st.QtyRemaining
		}
		r.book(bar, r.plan.Target1, qty, domain.EventT1Hit,
			fmt.Sprintf("target1 %.2f hit, booked %d, stop to breakeven %.2f", r.plan.Target1, qty, st.EntryPrice))
		r.raiseStop(st.EntryPrice)
		if st.Status != domain.StatusFullExit {
			st.Status = domain.StatusPartialExit
		}
	}

	// 3. T2: cascades on the same bar.
	if st.Status == domain.StatusPartialExit && !r.t2Booked && r.plan.HasTarget2() && bar.High >= r.plan.Target2 {
		r.t2Booked = true
		if r.plan.HasTarget3() {
			qty := int(math.Floor(float64(st.QtyRemaining) * 0.7))
			if qty == 0 {
				qty = st.QtyRemaining
			}
			r.book(bar, r.plan.Target2, qty, domain.EventT2Hit,
				fmt.Sprintf("target2 %.2f hit, booked %d, stop raised to %.2f", r.plan.Target2, qty, r.plan.Target2))
			r.raiseStop(r.plan.Target2)
		} else {
			qty := st.QtyRemaining
			r.book(bar, r.plan.Target2, qty, domain.EventT2Hit,
				fmt.Sprintf("target2 %.2f hit, booked final %d", r.plan.Target2, qty))
		}
	}

	// 4. T3: all remaining.
	if st.Status == domain.StatusPartialExit && r.t2Booked && r.plan.HasTarget3() && bar.High >= r.plan.Target3 && st.QtyRemaining > 0 {
		qty := st.QtyRemaining
		r.book(bar, r.plan.Target3, qty, domain.EventT3Hit,
			fmt.Sprintf("target3 %.2f hit, booked final %d", r.plan.Target3, qty))
	}

	if !st.Status.Terminal() && st.QtyRemaining > 0 && r.dayCount >= r.plan.MaxHoldDays {
		r.applyWeekEndRule(bar)
	}
}

// applyWeekEndRule handles a position that outlived its holding window.
func (r *simRun) applyWeekEndRule(bar domain.Bar) {
	st := r.state
	switch r.plan.WeekEndRule {
	case domain.WeekEndExitIfNoT1:
		if st.Status == domain.StatusEntered {
			r.book(bar, bar.Close, st.QtyRemaining, domain.EventWeekEndExit,
				fmt.Sprintf("hold window over with no target booked, exited %d at close %.2f", st.QtyRemaining, bar.Close))
		}
	case domain.WeekEndHoldIfAboveEntry:
		if bar.Close < st.EntryPrice {
			r.book(bar, bar.Close, st.QtyRemaining, domain.EventWeekEndExit,
				fmt.Sprintf("hold window over and close %.2f under entry %.2f, exited %d", bar.Close, st.EntryPrice, st.QtyRemaining))
		} else if !r.holdNoted {
			r.holdNoted = true
			r.emit(bar, domain.Event{
				Type:   domain.EventWeekEndHold,
				Price:  bar.Close,
				Qty:    st.QtyRemaining,
				Detail: fmt.Sprintf("hold window over, close %.2f above entry %.2f, holding %d", bar.Close, st.EntryPrice, st.QtyRemaining),
			})
		}
	case domain.WeekEndTrailOrExit:
		if r.prevLow > st.TrailingStop {
			st.TrailingStop = r.prevLow
			r.emit(bar, domain.Event{
				Type:   domain.EventTrailTightened,
				Price:  r.prevLow,
				Detail: fmt.Sprintf("hold window over, trailing stop tightened to previous low %.2f", r.prevLow),
			})
		}
	}
}

func (r *simRun) enter(bar domain.Bar, fill float64, qty int, quality domain.EntryQuality, detail string) {
	st := r.state
	st.Status = domain.StatusEntered
	st.EntryPrice = fill
	st.EntryDate = bar.Date
	st.QtyTotal = qty
	st.QtyRemaining = qty
	st.QtyExited = 0
	st.TrailingStop = r.plan.Stop
	st.PeakPrice = fill
	r.emit(bar, domain.Event{
		Type:    domain.EventEntry,
		Price:   fill,
		Qty:     qty,
		Quality: quality,
		Detail:  detail,
	})
}

// book realizes P&L on qty shares at price and keeps the quantity ledger
// balanced. A drained book becomes FULL_EXIT.
func (r *simRun) book(bar domain.Bar, price float64, qty int, evType domain.EventType, detail string) {
	st := r.state
	if qty > st.QtyRemaining {
		qty = st.QtyRemaining
	}
	pnl := round2((price - st.EntryPrice) * float64(qty))
	st.RealizedPnL = round2(st.RealizedPnL + pnl)
	st.QtyRemaining -= qty
	st.QtyExited += qty
	r.emit(bar, domain.Event{
		Type:   evType,
		Price:  price,
		Qty:    qty,
		PnL:    pnl,
		Detail: detail,
	})
	if st.QtyRemaining == 0 {
		st.Status = domain.StatusFullExit
	}
}

func (r *simRun) exitStop(bar domain.Bar) {
	st := r.state
	evType := domain.EventStoppedOut
	detail := fmt.Sprintf("low %.2f breached stop %.2f, exited %d", bar.Low, st.TrailingStop, st.QtyRemaining)
	if st.TrailingStop > r.plan.Stop {
		evType = domain.EventTrailingStop
		detail = fmt.Sprintf("low %.2f breached trailing stop %.2f, exited %d", bar.Low, st.TrailingStop, st.QtyRemaining)
	}
	r.book(bar, st.TrailingStop, st.QtyRemaining, evType, detail)
	st.Status = domain.StatusStoppedOut
}

// raiseStop ratchets the trailing stop; it never moves down.
func (r *simRun) raiseStop(price float64) {
	if price > r.state.TrailingStop {
		r.state.TrailingStop = price
	}
}

func (r *simRun) expireWindow(bar domain.Bar) {
	r.state.Status = domain.StatusExpired
	r.emit(bar, domain.Event{
		Type:   domain.EventEntrySkipped,
		Price:  bar.Close,
		Detail: fmt.Sprintf("entry window closed after %d sessions without confirmation", r.plan.EntryWindowDays),
	})
}

func (r *simRun) emit(bar domain.Bar, ev domain.Event) {
	ev.Date = bar.Date
	r.state.Events = append(r.state.Events, ev)
}

// trackPeak records the best price seen from the entry bar forward.
func (r *simRun) trackPeak(bar domain.Bar) {
	st := r.state
	if st.EntryPrice == 0 || bar.Date.Before(st.EntryDate) {
		return
	}
	if bar.High > st.PeakPrice {
		st.PeakPrice = bar.High
	}
	st.PeakGainPct = round2((st.PeakPrice - st.EntryPrice) / st.EntryPrice * 100)
}

// finalize marks any open quantity to market and settles the totals.
func (r *simRun) finalize(currentPrice float64) {
	st := r.state
	if st.Status.Open() && currentPrice > 0 {
		st.UnrealizedPnL = round2((currentPrice - st.EntryPrice) * float64(st.QtyRemaining))
	} else {
		st.UnrealizedPnL = 0
	}
	st.TotalPnL = round2(st.RealizedPnL + st.UnrealizedPnL)
}

func plannedQty(capital, entry float64) int {
	if entry <= 0 {
		return 0
	}
	return int(math.Floor(capital / entry))
}
