// Package grading computes grading-period averages, final course grades and period budget checks.
//
// Every function is pure: callers pass the request-scoped records they fetched and nothing is retained between calls.
// No rounding is applied here, values are rounded at display time only.
package grading

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

const (
	MinScore = 0.0
	MaxScore = 5.0
)

var ErrInvalidCorte = errors.New("corte must be 1, 2 or 3")

// Corte is one of the three grading periods of the term.
type Corte int

var Cortes = []Corte{1, 2, 3}

var (
	corteCaps    = map[Corte]float64{1: 30, 2: 35, 3: 35}
	corteWeights = map[Corte]float64{1: 0.30, 2: 0.35, 3: 0.35}
)

func (c Corte) Valid() bool {
	_, ok := corteCaps[c]
	return ok
}

// Cap is the maximum total percentage grade items of the corte may use.
func (c Corte) Cap() float64 { return corteCaps[c] }

// Weight is the corte's fixed share of the final grade.
func (c Corte) Weight() float64 { return corteWeights[c] }

// Record is a scored grade item.
type Record struct {
	Corte      Corte
	Score      float64
	Percentage float64
}

// PeriodAverage returns the percentage-weighted average of the corte's records on the 0-5 scale.
// The average is normalized by the percentage actually recorded, so a partially graded corte is not diluted.
// ok is false when the corte has no records (ungraded, as opposed to a zero average).
func PeriodAverage(records []Record, corte Corte) (avg float64, ok bool) {
	var weighted, total float64
	for _, r := range records {
		if r.Corte != corte {
			continue
		}
		weighted += r.Score * r.Percentage
		total += r.Percentage
	}
	if total <= 0 {
		return 0, false
	}
	return weighted / total, true
}

// Contribution is the corte's share of the final grade: its average times its weight, 0 when ungraded.
func Contribution(records []Record, corte Corte) float64 {
	avg, ok := PeriodAverage(records, corte)
	if !ok {
		return 0
	}
	return avg * corte.Weight()
}

// FinalGrade sums the contributions of the three cortes. Ungraded cortes count as 0.
func FinalGrade(records []Record) float64 {
	var final float64
	for _, c := range Cortes {
		final += Contribution(records, c)
	}
	return final
}

// ClampScore clamps a raw score to [MinScore, MaxScore].
func ClampScore(raw float64) float64 {
	if math.IsNaN(raw) {
		return MinScore
	}
	return math.Min(math.Max(raw, MinScore), MaxScore)
}

// Usage describes how much of a corte's budget is allocated to grade items.
type Usage struct {
	Corte     Corte   `json:"corte"`
	Cap       float64 `json:"cap"`
	Used      float64 `json:"used"`
	Remaining float64 `json:"remaining"`
}

// BudgetUsage sums the percentages of the corte's existing items.
func BudgetUsage(existing []float64, corte Corte) Usage {
	var used float64
	for _, p := range existing {
		used += p
	}
	return Usage{Corte: corte, Cap: corte.Cap(), Used: used, Remaining: corte.Cap() - used}
}

// BudgetError is returned when a new grade item percentage cannot be allocated.
type BudgetError struct {
	Corte     Corte
	Used      float64
	Requested float64
	Cap       float64
}

// Attempted is the total the corte would reach with the new item.
func (e *BudgetError) Attempted() float64 { return e.Used + e.Requested }

// OutOfRange reports whether the requested percentage itself is invalid, regardless of the budget.
func (e *BudgetError) OutOfRange() bool { return e.Requested <= 0 || e.Requested > 100 }

func (e *BudgetError) Error() string {
	if e.OutOfRange() {
		return "percentage must be greater than 0 and at most 100"
	}
	return fmt.Sprintf(
		"total percentage of corte %d cannot exceed %s%%: %s%% already used, %s%% attempted",
		e.Corte, formatPct(e.Cap), formatPct(e.Used), formatPct(e.Attempted()),
	)
}

// ValidatePercentageBudget checks that a new item of newPercentage fits into the corte's budget
// next to the existing items' percentages. Reaching the cap exactly is allowed.
func ValidatePercentageBudget(existing []float64, corte Corte, newPercentage float64) error {
	if !corte.Valid() {
		return ErrInvalidCorte
	}
	usage := BudgetUsage(existing, corte)
	bErr := &BudgetError{Corte: corte, Used: usage.Used, Requested: newPercentage, Cap: usage.Cap}
	if bErr.OutOfRange() {
		return bErr
	}
	// tolerate float noise of two-decimal percentages, e.g. 10.1 + 19.9
	if bErr.Attempted()-bErr.Cap > 1e-9 {
		return bErr
	}
	return nil
}

// AttendanceRecord is one attendance mark.
type AttendanceRecord struct {
	Present bool
}

// AttendancePercentage returns the share of present records in percent.
// ok is false when there are no records ("no data").
func AttendancePercentage(records []AttendanceRecord) (pct float64, ok bool) {
	if len(records) == 0 {
		return 0, false
	}
	var present int
	for _, r := range records {
		if r.Present {
			present++
		}
	}
	return float64(present) / float64(len(records)) * 100, true
}

func formatPct(p float64) string {
	return fmt.Sprintf("%g", math.Round(p*100)/100)
}
