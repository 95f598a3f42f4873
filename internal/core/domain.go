package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MealPurchaseCode is the transaction type code of a meal purchase debit.
const MealPurchaseCode = "1210"

// CafeteriaPlaceholder is the merchant address the card service reports
// when it does not know the cafeteria.
const CafeteriaPlaceholder = "-"

// ReportZone is the fixed UTC+8 zone the card service records timestamps in.
var ReportZone = time.FixedZone("UTC+8", 8*60*60)

type (
	// Transaction is one card swipe, already normalized.
	Transaction struct {
		Timestamp    time.Time
		Cafeteria    string // merchant address
		Stall        string // merchant name
		AmountCents  int64
		BalanceCents int64 // post-transaction balance, informational only
		Code         string
	}

	// Meal is a cluster of adjacent transactions at one cafeteria.
	Meal struct {
		StartTime   time.Time
		Cafeteria   string
		AmountCents int64
		StallCount  int
	}

	// DateRange is the half-open calendar interval [Start, End).
	DateRange struct {
		Start time.Time
		End   time.Time
	}

	// MonthDay identifies a day of the year independently of the year.
	MonthDay struct {
		Month time.Month
		Day   int
	}

	// Policy holds the calendar and filtering data the pipeline is
	// parameterized with. None of it is algorithm logic.
	Policy struct {
		Year                  int
		ExcludedStallKeywords []string
		ValidRanges           []DateRange
		NewYearCutoff         MonthDay
	}
)

var (
	ErrInvalidRange  = errors.New("invalid date range")
	ErrInvalidCutoff = errors.New("invalid new year cutoff")
	ErrInvalidYear   = errors.New("invalid report year")
)

// Day truncates t to midnight of its calendar day in ReportZone.
func Day(t time.Time) time.Time {
	y, m, d := t.In(ReportZone).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ReportZone)
}

// NewDate returns midnight of the given day in ReportZone.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, ReportZone)
}

// ParseDate parses a YYYY-MM-DD string as a day in ReportZone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), ReportZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a day as YYYY-MM-DD in ReportZone, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(ReportZone).Format(time.DateOnly)
}

// Days returns the number of calendar days in the range.
func (r DateRange) Days() int {
	if !r.End.After(r.Start) {
		return 0
	}
	return int(Day(r.End).Sub(Day(r.Start)).Hours() / 24)
}

// Contains reports whether the day of t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(r.Start)) && d.Before(Day(r.End))
}

// ClampEnd returns the range with its end moved back to limit when limit
// comes first. The result may be empty.
func (r DateRange) ClampEnd(limit time.Time) DateRange {
	if limit.IsZero() {
		return r
	}
	if l := Day(limit); l.Before(r.End) {
		r.End = l
	}
	return r
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: bounds cannot be zero", ErrInvalidRange)
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("%w: %s..%s ends before it starts", ErrInvalidRange, FormatDate(r.Start), FormatDate(r.End))
	}
	return nil
}

func (r DateRange) String() string {
	return FormatDate(r.Start) + ".." + FormatDate(r.End)
}

// Reached reports whether t is on or after the cutoff day within its own year.
func (md MonthDay) Reached(t time.Time) bool {
	t = t.In(ReportZone)
	return t.Month() > md.Month || (t.Month() == md.Month && t.Day() >= md.Day)
}

func (md MonthDay) Validate() error {
	if md.Month < time.January || md.Month > time.December {
		return ErrInvalidCutoff
	}
	if md.Day < 1 || md.Day > 31 {
		return ErrInvalidCutoff
	}
	return nil
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// Period returns the calendar-year bounds of the fetch, both inclusive.
func (p Policy) Period() (start, end time.Time) {
	return NewDate(p.Year, time.January, 1), NewDate(p.Year, time.December, 31)
}

func (p Policy) Validate() error {
	if p.Year < 2000 || p.Year > 2100 {
		return ErrInvalidYear
	}
	if err := p.NewYearCutoff.Validate(); err != nil {
		return err
	}
	yearStart := NewDate(p.Year, time.January, 1)
	yearEnd := NewDate(p.Year+1, time.January, 1)
	for i, r := range p.ValidRanges {
		if err := r.Validate(); err != nil {
			return err
		}
		if r.Start.Before(yearStart) || r.End.After(yearEnd) {
			return fmt.Errorf("%w: %s is outside %d", ErrInvalidRange, r, p.Year)
		}
		if i > 0 && r.Start.Before(p.ValidRanges[i-1].End) {
			return fmt.Errorf("%w: %s overlaps %s", ErrInvalidRange, r, p.ValidRanges[i-1])
		}
	}
	for _, kw := range p.ExcludedStallKeywords {
		if strings.TrimSpace(kw) == "" {
			return errors.New("empty excluded stall keyword")
		}
	}
	return nil
}
