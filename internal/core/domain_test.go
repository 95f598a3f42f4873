package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDateRangeDaysAndContains(t *testing.T) {
	r := DateRange{Start: NewDate(2024, 1, 1), End: NewDate(2024, 1, 8)}
	if got := r.Days(); got != 7 {
		t.Fatalf("Days() = %d, want 7", got)
	}
	cases := []struct {
		t  time.Time
		ok bool
	}{
		{NewDate(2024, 1, 1), true},
		{NewDate(2024, 1, 7).Add(23 * time.Hour), true},
		{NewDate(2024, 1, 8), false}, // end is exclusive
		{NewDate(2023, 12, 31), false},
	}
	for i, tc := range cases {
		if got := r.Contains(tc.t); got != tc.ok {
			t.Fatalf("case %d: Contains(%s) = %v, want %v", i, tc.t, got, tc.ok)
		}
	}
}

func TestDateRangeClampEnd(t *testing.T) {
	r := DateRange{Start: NewDate(2024, 10, 8), End: NewDate(2024, 12, 31)}
	got := r.ClampEnd(time.Date(2024, 11, 3, 15, 0, 0, 0, ReportZone))
	if !got.End.Equal(NewDate(2024, 11, 3)) {
		t.Fatalf("clamped end = %s, want 2024-11-03", FormatDate(got.End))
	}
	if got := r.ClampEnd(NewDate(2025, 3, 1)); !got.End.Equal(r.End) {
		t.Fatalf("later limit should not move the end, got %s", FormatDate(got.End))
	}
	if got := r.ClampEnd(time.Time{}); got != r {
		t.Fatalf("zero limit should be a no-op")
	}
}

func TestDayUsesReportZone(t *testing.T) {
	// 2024-03-01 20:30 UTC is already 2024-03-02 in UTC+8.
	got := Day(time.Date(2024, 3, 1, 20, 30, 0, 0, time.UTC))
	if FormatDate(got) != "2024-03-02" {
		t.Fatalf("Day() = %s, want 2024-03-02", FormatDate(got))
	}
}

func TestMonthDayReached(t *testing.T) {
	cutoff := MonthDay{Month: time.February, Day: 10}
	cases := []struct {
		t  time.Time
		ok bool
	}{
		{NewDate(2024, 2, 9), false},
		{NewDate(2024, 2, 10), true},
		{NewDate(2024, 2, 11), true},
		{NewDate(2024, 1, 30), false},
		{NewDate(2024, 3, 1), true},
	}
	for _, tc := range cases {
		if got := cutoff.Reached(tc.t); got != tc.ok {
			t.Fatalf("Reached(%s) = %v, want %v", FormatDate(tc.t), got, tc.ok)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	good := Policy{
		Year:          2024,
		NewYearCutoff: MonthDay{Month: time.February, Day: 10},
		ValidRanges: []DateRange{
			{Start: NewDate(2024, 1, 1), End: NewDate(2024, 1, 8)},
			{Start: NewDate(2024, 2, 26), End: NewDate(2024, 4, 4)},
		},
		ExcludedStallKeywords: []string{"饮水"},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	overlapping := good
	overlapping.ValidRanges = []DateRange{
		{Start: NewDate(2024, 1, 1), End: NewDate(2024, 1, 8)},
		{Start: NewDate(2024, 1, 5), End: NewDate(2024, 1, 9)},
	}
	if err := overlapping.Validate(); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for overlap, got %v", err)
	}

	outside := good
	outside.ValidRanges = []DateRange{{Start: NewDate(2023, 12, 1), End: NewDate(2024, 1, 8)}}
	if err := outside.Validate(); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for out-of-year range, got %v", err)
	}

	badCutoff := good
	badCutoff.NewYearCutoff = MonthDay{Month: 13, Day: 1}
	if err := badCutoff.Validate(); !errors.Is(err, ErrInvalidCutoff) {
		t.Fatalf("expected ErrInvalidCutoff, got %v", err)
	}

	blank := good
	blank.ExcludedStallKeywords = []string{" "}
	if err := blank.Validate(); err == nil {
		t.Fatalf("expected error for blank keyword")
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(ErrNetwork, "fetch page 2", cause)

	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected errors.Is(err, ErrNetwork)")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected the cause to be reachable")
	}
	if errors.Is(err, ErrDecryption) {
		t.Fatalf("unexpected kind match")
	}
	if got := KindOf(err); got != ErrNetwork {
		t.Fatalf("KindOf = %v, want ErrNetwork", got)
	}
	if got := err.Error(); got != "fetch page 2: network error: connection reset" {
		t.Fatalf("Error() = %q", got)
	}
	if KindOf(errors.New("plain")) != nil {
		t.Fatalf("plain errors carry no kind")
	}
}

func TestErrorCause(t *testing.T) {
	cause := errors.New("connection reset")
	plain := errors.New("plain")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"direct", NewError(ErrNetwork, "fetch page 2", cause), cause},
		{"wrapped", fmt.Errorf("ingest session: %w", NewError(ErrNetwork, "fetch page 2", cause)), cause},
		{"kind only", NewError(ErrMissingSession, "resolve session", nil), NewError(ErrMissingSession, "resolve session", nil)},
		{"plain", plain, plain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CauseOf(tt.err)
			if got.Error() != tt.want.Error() {
				t.Errorf("CauseOf() = %v, want %v", got, tt.want)
			}
		})
	}

	err := NewError(ErrNetwork, "fetch page 2", cause)
	if err.Cause() != cause {
		t.Errorf("Cause() = %v, want %v", err.Cause(), cause)
	}
	if NewError(ErrEmptyDataset, "build report", nil).Cause() != nil {
		t.Errorf("a kind-only error has no cause")
	}
	if errors.Unwrap(err) != nil {
		t.Errorf("errors.Unwrap reaches multi-error values only through errors.Is and errors.As")
	}
}
