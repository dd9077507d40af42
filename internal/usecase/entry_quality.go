package usecase

import (
	"math"

	"github.com/ravikal/swing_trade_replay/internal/domain"
)

// Premium thresholds (percent over the planned entry).
const (
	goodPremiumPct = 2.0
	maxPremiumPct  = 5.0
)

// EntryAssessment is the grade for one actual fill. SizeFactor is the
// multiplier that keeps the rupee risk of the original plan when the fill
// lands above the planned entry.
type EntryAssessment struct {
	Quality    domain.EntryQuality
	PremiumPct float64
	SizeFactor float64
}

// EntryQualityClassifier grades a fill price against the planned entry and
// stop. The simulator and the live monitor share one instance so simulated
// history never diverges from what was communicated to an operator.
type EntryQualityClassifier struct{}

func NewEntryQualityClassifier() *EntryQualityClassifier {
	return &EntryQualityClassifier{}
}

// Classify grades fill relative to plannedEntry and stop.
//   - fill below stop: BELOW_STOP, no position
//   - premium > 5%: OVEREXTENDED, skip
//   - premium 2-5%: EXTENDED, resize by (entry-stop)/(fill-stop)
//   - premium <= 2%: GOOD, or GAP_DOWN when the fill came in under plan
//
// A fill exactly at the stop would make the resize divide by zero; it is
// classified OVEREXTENDED instead of ever raising.
func (c *EntryQualityClassifier) Classify(fill, plannedEntry, stop float64) EntryAssessment {
	premium := (fill - plannedEntry) / plannedEntry * 100

	a := EntryAssessment{PremiumPct: round2(premium)}
	switch {
	case fill < stop:
		a.Quality = domain.QualityBelowStop
	case premium > maxPremiumPct:
		a.Quality = domain.QualityOverextended
	case premium > goodPremiumPct:
		if fill-stop <= 0 {
			a.Quality = domain.QualityOverextended
			break
		}
		a.Quality = domain.QualityExtended
		a.SizeFactor = (plannedEntry - stop) / (fill - stop)
	case premium < 0:
		a.Quality = domain.QualityGapDown
		a.SizeFactor = 1
	default:
		a.Quality = domain.QualityGood
		a.SizeFactor = 1
	}
	return a
}

// AdjustQty resizes a planned quantity by the assessment's factor,
// flooring to whole shares.
func (c *EntryQualityClassifier) AdjustQty(plannedQty int, a EntryAssessment) int {
	if a.SizeFactor <= 0 {
		return 0
	}
	return int(math.Floor(float64(plannedQty) * a.SizeFactor))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
