package analytics

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yf-yang/thu-food-report/internal/core"
	"github.com/yf-yang/thu-food-report/internal/ingest"
)

// Options carries the caller-supplied metadata of a report run.
type Options struct {
	// AsOf clamps the valid ranges so days that have not happened yet are
	// not counted as days without records. Zero disables clamping.
	AsOf time.Time
	// LastUpdated is copied into the report unchanged.
	LastUpdated time.Time
}

// Analyze runs normalize, clean, cluster and aggregate over raw rows.
func Analyze(rows []ingest.RawRow, policy core.Policy, opts Options) (core.Report, error) {
	txs, err := ingest.Normalize(rows)
	if err != nil {
		return core.Report{}, err
	}
	return Build(ingest.Clean(txs, policy.ExcludedStallKeywords), policy, opts)
}

// Build clusters cleaned transactions into meals and computes every
// statistic. The sections are independent and are evaluated concurrently.
func Build(txs []core.Transaction, policy core.Policy, opts Options) (core.Report, error) {
	if len(txs) == 0 {
		return core.Report{}, core.NewError(core.ErrEmptyDataset, "build report", nil)
	}

	txs = sortedByTime(txs)
	meals := BuildMeals(txs)

	r := core.Report{LastUpdated: opts.LastUpdated}

	var g errgroup.Group
	g.Go(func() error { r.BasicStats = BasicStatsOf(txs, meals); return nil })
	g.Go(func() error { r.FavoriteStats = FavoriteOf(txs, meals); return nil })
	g.Go(func() error { r.CostStats = CostOf(meals); return nil })
	g.Go(func() error { r.TimeStats = TimeOf(meals); return nil })
	g.Go(func() error { r.NewYearStats = NewYearFirstMealOf(meals, policy.NewYearCutoff); return nil })
	g.Go(func() error { r.ExpensiveMealStats = MostExpensiveMealOf(meals); return nil })
	g.Go(func() error { r.StallsMealStats = MostNumStallsMealOf(meals); return nil })
	g.Go(func() error {
		r.NoRecordStats = MaxConsecutiveNoRecordDatesOf(txs, policy.ValidRanges, opts.AsOf)
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Report{}, err
	}
	return r, nil
}
