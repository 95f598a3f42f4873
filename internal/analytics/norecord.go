package analytics

import (
	"time"

	"github.com/yf-yang/thu-food-report/internal/core"
)

// streak is a run of consecutive days without a transaction.
type streak struct {
	begin, end time.Time
	days       int
}

func (s *streak) extend(day time.Time) {
	if s.days == 0 {
		s.begin = day
	}
	s.end = day
	s.days++
}

// MaxConsecutiveNoRecordDatesOf finds the longest run of days inside the
// valid ranges on which no transaction happened. Ranges are scanned
// independently, so a streak never spans two of them; each range's end
// is first clamped to asOf when asOf is set. The earliest streak wins ties.
func MaxConsecutiveNoRecordDatesOf(txs []core.Transaction, ranges []core.DateRange, asOf time.Time) core.NoRecordStats {
	visited := make(map[string]struct{}, 366)
	for _, tx := range txs {
		visited[core.FormatDate(tx.Timestamp)] = struct{}{}
	}

	var best streak
	keep := func(s streak) {
		if s.days > best.days {
			best = s
		}
	}
	for _, r := range ranges {
		r = r.ClampEnd(asOf)
		var cur streak
		for d := core.Day(r.Start); d.Before(r.End); d = d.AddDate(0, 0, 1) {
			if _, ok := visited[core.FormatDate(d)]; !ok {
				cur.extend(d)
				continue
			}
			keep(cur)
			cur = streak{}
		}
		keep(cur)
	}

	return core.NoRecordStats{
		NumVisitedDates:                 len(visited),
		MaxConsecutiveNoRecordDateBegin: core.FormatDate(best.begin),
		MaxConsecutiveNoRecordDateEnd:   core.FormatDate(best.end),
		MaxConsecutiveNoRecordDays:      best.days,
	}
}
