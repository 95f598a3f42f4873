// Package analytics clusters cleaned transactions into meals and computes
// the report statistics over both tables.
package analytics

import (
	"slices"
	"time"

	"github.com/yf-yang/thu-food-report/internal/core"
)

// MealGap is the exclusive upper bound on the time between two
// consecutive transactions of the same meal.
const MealGap = 60 * time.Minute

// openMeal is the MealOpen state of the clustering state machine.
type openMeal struct {
	meal   core.Meal
	last   time.Time
	stalls map[string]struct{}
}

func startMeal(tx core.Transaction) *openMeal {
	return &openMeal{
		meal: core.Meal{
			StartTime:   tx.Timestamp,
			Cafeteria:   tx.Cafeteria,
			AmountCents: tx.AmountCents,
		},
		last:   tx.Timestamp,
		stalls: map[string]struct{}{tx.Stall: {}},
	}
}

// accepts reports whether tx extends the meal: same cafeteria and less
// than MealGap after the previous member.
func (m *openMeal) accepts(tx core.Transaction) bool {
	return tx.Cafeteria == m.meal.Cafeteria && tx.Timestamp.Sub(m.last) < MealGap
}

func (m *openMeal) add(tx core.Transaction) {
	m.meal.AmountCents += tx.AmountCents
	m.stalls[tx.Stall] = struct{}{}
	m.last = tx.Timestamp
}

func (m *openMeal) close() core.Meal {
	meal := m.meal
	meal.StallCount = len(m.stalls)
	return meal
}

// BuildMeals clusters transactions into meals in timestamp order. The
// input is not modified.
func BuildMeals(txs []core.Transaction) []core.Meal {
	sorted := sortedByTime(txs)

	var (
		meals []core.Meal
		cur   *openMeal // nil is NoActiveMeal
	)
	for _, tx := range sorted {
		switch {
		case cur == nil:
			cur = startMeal(tx)
		case cur.accepts(tx):
			cur.add(tx)
		default:
			meals = append(meals, cur.close())
			cur = startMeal(tx)
		}
	}
	if cur != nil {
		meals = append(meals, cur.close())
	}
	return meals
}

func sortedByTime(txs []core.Transaction) []core.Transaction {
	sorted := slices.Clone(txs)
	slices.SortStableFunc(sorted, func(a, b core.Transaction) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return sorted
}
