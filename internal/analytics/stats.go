package analytics

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yf-yang/thu-food-report/internal/core"
)

func txCafeteria(tx core.Transaction) string { return tx.Cafeteria }
func txStall(tx core.Transaction) string     { return tx.Stall }
func txAmount(tx core.Transaction) int64     { return tx.AmountCents }
func mealCafeteria(m core.Meal) string       { return m.Cafeteria }
func mealAmount(m core.Meal) int64           { return m.AmountCents }

// BasicStatsOf totals spend over transactions and counts meals,
// cafeterias and stalls.
func BasicStatsOf(txs []core.Transaction, meals []core.Meal) core.BasicStats {
	var total int64
	for _, tx := range txs {
		total += tx.AmountCents
	}
	return core.BasicStats{
		TotalAmount:         total,
		TotalMeals:          len(meals),
		NumUniqueCafeterias: distinct(txs, txCafeteria),
		NumUniqueStalls:     distinct(txs, txStall),
	}
}

// FavoriteOf finds the most visited cafeteria (by meals), the cafeteria
// with the highest spend and, within it, the stall with the highest spend.
func FavoriteOf(txs []core.Transaction, meals []core.Meal) core.FavoriteStats {
	var fs core.FavoriteStats

	if visits := ranked(groupBy(meals, mealCafeteria, count[core.Meal]), false); len(visits) > 0 {
		fs.MostVisitedCafeteria = visits[0].Key
		fs.MostVisitedCafeteriaCount = visits[0].Value
	}

	spent := ranked(groupBy(txs, txCafeteria, sum(txAmount)), false)
	fs.CafeteriasSpent = make([]core.CafeteriaAmount, 0, len(spent))
	for _, e := range spent {
		fs.CafeteriasSpent = append(fs.CafeteriasSpent, core.CafeteriaAmount{Cafeteria: e.Key, Amount: e.Value})
	}
	if len(spent) == 0 {
		return fs
	}
	fs.MostSpentCafeteria = spent[0].Key
	fs.MostSpentCafeteriaAmount = spent[0].Value

	inCafeteria := slices.DeleteFunc(slices.Clone(txs), func(tx core.Transaction) bool {
		return tx.Cafeteria != fs.MostSpentCafeteria
	})
	if stalls := ranked(groupBy(inCafeteria, txStall, sum(txAmount)), false); len(stalls) > 0 {
		fs.MostSpentStall = stalls[0].Key
		fs.MostSpentStallAmount = stalls[0].Value
	}
	return fs
}

// mealTotals is the per-cafeteria reduction used for mean meal cost.
type mealTotals struct {
	cafeteria string
	amount    int64
	meals     int64
}

// compareMean orders by amount/meals exactly, without division.
func compareMean(a, b mealTotals) int {
	return cmp.Compare(a.amount*b.meals, b.amount*a.meals)
}

func (t mealTotals) mean() core.Cost {
	return core.Cost{Decimal: decimal.NewFromInt(t.amount).DivRound(decimal.NewFromInt(t.meals), 2)}
}

// CostOf finds the cafeterias with the highest and lowest mean meal amount.
func CostOf(meals []core.Meal) core.CostStats {
	amounts := groupBy(meals, mealCafeteria, sum(mealAmount))
	counts := groupBy(meals, mealCafeteria, count[core.Meal])

	totals := make([]mealTotals, 0, len(amounts))
	for c, amount := range amounts {
		totals = append(totals, mealTotals{cafeteria: c, amount: amount, meals: int64(counts[c])})
	}
	if len(totals) == 0 {
		return core.CostStats{}
	}

	byKey := func(a, b mealTotals) int { return cmp.Compare(a.cafeteria, b.cafeteria) }
	costly := slices.MinFunc(totals, func(a, b mealTotals) int {
		return cmp.Or(compareMean(b, a), byKey(a, b))
	})
	cheap := slices.MinFunc(totals, func(a, b mealTotals) int {
		return cmp.Or(compareMean(a, b), byKey(a, b))
	})
	return core.CostStats{
		MostCostlyCafeteria:     costly.cafeteria,
		MostCostlyCafeteriaCost: costly.mean(),
		MostCheapCafeteria:      cheap.cafeteria,
		MostCheapCafeteriaCost:  cheap.mean(),
	}
}

// bucketMinutes is the width of a meal-time histogram slot.
const bucketMinutes = 30

type clock struct{ hour, minute int }

func clockOf(t time.Time) clock {
	t = t.In(core.ReportZone)
	return clock{hour: t.Hour(), minute: t.Minute()}
}

func (c clock) compare(o clock) int {
	return cmp.Or(cmp.Compare(c.hour, o.hour), cmp.Compare(c.minute, o.minute))
}

// Meal windows by start hour.
var (
	isBreakfast = func(hour int) bool { return hour < 10 }
	isLunch     = func(hour int) bool { return hour >= 11 && hour < 14 }
	isDinner    = func(hour int) bool { return hour >= 17 }
)

// TimeOf builds the half-hour histogram of meal start times, the busiest
// slot of each meal window and the earliest and latest meal by clock time.
// meals must be in time order; ties on clock time go to the earlier meal.
func TimeOf(meals []core.Meal) core.TimeStats {
	var ts core.TimeStats
	if len(meals) == 0 {
		return ts
	}

	slots := make(map[clock]int)
	for _, m := range meals {
		c := clockOf(m.StartTime)
		slots[clock{hour: c.hour, minute: c.minute / bucketMinutes * bucketMinutes}]++
	}
	ts.MealTimeHistogram = make([]core.TimeBucket, 0, len(slots))
	for c, n := range slots {
		ts.MealTimeHistogram = append(ts.MealTimeHistogram, core.TimeBucket{Hour: c.hour, Minute: c.minute, Count: n})
	}
	slices.SortFunc(ts.MealTimeHistogram, func(a, b core.TimeBucket) int {
		return clock{a.Hour, a.Minute}.compare(clock{b.Hour, b.Minute})
	})

	ts.BreakfastMostFrequent = busiest(ts.MealTimeHistogram, isBreakfast)
	ts.LunchMostFrequent = busiest(ts.MealTimeHistogram, isLunch)
	ts.DinnerMostFrequent = busiest(ts.MealTimeHistogram, isDinner)

	earliest, latest := meals[0], meals[0]
	for _, m := range meals[1:] {
		c := clockOf(m.StartTime)
		if c.compare(clockOf(earliest.StartTime)) < 0 {
			earliest = m
		}
		if c.compare(clockOf(latest.StartTime)) > 0 {
			latest = m
		}
	}
	ts.Earliest = earliest.StartTime
	ts.Latest = latest.StartTime
	return ts
}

// busiest returns the slot with the highest count among those whose hour
// is in the window. hist is sorted by clock time, so the earliest slot
// wins ties. The zero bucket means the window has no meals.
func busiest(hist []core.TimeBucket, inWindow func(hour int) bool) core.TimeBucket {
	var best core.TimeBucket
	for _, b := range hist {
		if inWindow(b.Hour) && b.Count > best.Count {
			best = b
		}
	}
	return best
}

// NewYearFirstMealOf returns the first meal on or after the cutoff day,
// or nil when there is none. meals must be in time order.
func NewYearFirstMealOf(meals []core.Meal, cutoff core.MonthDay) core.NewYearStats {
	for _, m := range meals {
		if cutoff.Reached(m.StartTime) {
			return core.NewYearStats{NewYearFirstMeal: &core.MealRef{Date: m.StartTime, Cafeteria: m.Cafeteria}}
		}
	}
	return core.NewYearStats{}
}

// firstMax returns the first meal with the maximum key.
func firstMax[V cmp.Ordered](meals []core.Meal, key func(core.Meal) V) (core.Meal, bool) {
	if len(meals) == 0 {
		return core.Meal{}, false
	}
	best := meals[0]
	for _, m := range meals[1:] {
		if key(m) > key(best) {
			best = m
		}
	}
	return best, true
}

// MostExpensiveMealOf picks the meal with the largest amount; the earlier
// meal wins ties.
func MostExpensiveMealOf(meals []core.Meal) core.ExpensiveMealStats {
	m, ok := firstMax(meals, mealAmount)
	if !ok {
		return core.ExpensiveMealStats{}
	}
	return core.ExpensiveMealStats{
		MostExpensiveMealDate:      m.StartTime,
		MostExpensiveMealAmount:    m.AmountCents,
		MostExpensiveMealCafeteria: m.Cafeteria,
	}
}

// MostNumStallsMealOf picks the meal that visited the most stalls; the
// earlier meal wins ties.
func MostNumStallsMealOf(meals []core.Meal) core.StallsMealStats {
	m, ok := firstMax(meals, func(m core.Meal) int { return m.StallCount })
	if !ok {
		return core.StallsMealStats{}
	}
	return core.StallsMealStats{
		MostNumStallsMealDate:   m.StartTime,
		MostNumStallsMealStalls: m.StallCount,
		MostNumStallsCafeteria:  m.Cafeteria,
	}
}
