package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CafeteriaAmount is a cafeteria with the total spent there, in cents.
type CafeteriaAmount struct {
	Cafeteria string `json:"cafeteria"`
	Amount    int64  `json:"amount"`
}

// TimeBucket is a 30-minute slot of the day with the number of meals started in it.
type TimeBucket struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Count  int `json:"count"`
}

// MealRef points at a single meal for display.
type MealRef struct {
	Date      time.Time `json:"date"`
	Cafeteria string    `json:"cafeteria"`
}

type BasicStats struct {
	TotalAmount         int64 `json:"totalAmount"`
	TotalMeals          int   `json:"totalMeals"`
	NumUniqueCafeterias int   `json:"numUniqueCafeterias"`
	NumUniqueStalls     int   `json:"numUniqueStalls"`
}

type FavoriteStats struct {
	MostVisitedCafeteria      string            `json:"mostVisitedCafeteria"`
	MostVisitedCafeteriaCount int               `json:"mostVisitedCafeteriaCount"`
	MostSpentCafeteria        string            `json:"mostSpentCafeteria"`
	MostSpentCafeteriaAmount  int64             `json:"mostSpentCafeteriaAmount"`
	MostSpentStall            string            `json:"mostSpentStall"`
	MostSpentStallAmount      int64             `json:"mostSpentStallAmount"`
	CafeteriasSpent           []CafeteriaAmount `json:"cafeteriasSpent"`
}

// Cost is a mean amount in cents that encodes as a JSON number rather than
// the quoted string decimal.Decimal produces.
type Cost struct {
	decimal.Decimal
}

func (c Cost) MarshalJSON() ([]byte, error) {
	return []byte(c.Decimal.String()), nil
}

// CostStats reports mean meal amounts in cents, rounded to two decimals.
type CostStats struct {
	MostCostlyCafeteria     string `json:"mostCostlyCafeteria"`
	MostCostlyCafeteriaCost Cost   `json:"mostCostlyCafeteriaCost"`
	MostCheapCafeteria      string `json:"mostCheapCafeteria"`
	MostCheapCafeteriaCost  Cost   `json:"mostCheapCafeteriaCost"`
}

type TimeStats struct {
	MealTimeHistogram     []TimeBucket `json:"mealTimeHistogram"`
	BreakfastMostFrequent TimeBucket   `json:"breakfastMostFrequent"`
	LunchMostFrequent     TimeBucket   `json:"lunchMostFrequent"`
	DinnerMostFrequent    TimeBucket   `json:"dinnerMostFrequent"`
	Earliest              time.Time    `json:"earliest"`
	Latest                time.Time    `json:"latest"`
}

type NewYearStats struct {
	NewYearFirstMeal *MealRef `json:"newYearFirstMeal"`
}

type ExpensiveMealStats struct {
	MostExpensiveMealDate      time.Time `json:"mostExpensiveMealDate"`
	MostExpensiveMealAmount    int64     `json:"mostExpensiveMealAmount"`
	MostExpensiveMealCafeteria string    `json:"mostExpensiveMealCafeteria"`
}

type StallsMealStats struct {
	MostNumStallsMealDate   time.Time `json:"mostNumStallsMealDate"`
	MostNumStallsMealStalls int       `json:"mostNumStallsMealStalls"`
	MostNumStallsCafeteria  string    `json:"mostNumStallsCafeteria"`
}

// NoRecordStats describes the longest in-session run of days without a
// transaction. Begin and End are YYYY-MM-DD and empty when Days is 0.
type NoRecordStats struct {
	NumVisitedDates                 int    `json:"numVisitedDates"`
	MaxConsecutiveNoRecordDateBegin string `json:"maxConsecutiveNoRecordDateBegin"`
	MaxConsecutiveNoRecordDateEnd   string `json:"maxConsecutiveNoRecordDateEnd"`
	MaxConsecutiveNoRecordDays      int    `json:"maxConsecutiveNoRecordDays"`
}

// Report is the flat statistics record handed to the presentation layer.
// The embedded sections encode as a single JSON object.
type Report struct {
	BasicStats
	FavoriteStats
	CostStats
	TimeStats
	NewYearStats
	ExpensiveMealStats
	StallsMealStats
	NoRecordStats
	LastUpdated time.Time `json:"lastUpdated"`
}
