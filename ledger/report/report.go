// Package report holds the balance-over-time reporting primitives: period
// intervals, the date truncation they imply, and the instant-balance series
// returned by periodic cumulative reports.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-ledger/ledger/currency"
)

// ErrUnknownInterval indicates an interval name outside day/week/month.
var ErrUnknownInterval = errors.New("unknown report interval")

// Interval selects the period length of a periodic report. The values match
// PostgreSQL DATE_TRUNC field names; only the three declared constants are
// valid, which ParseInterval enforces before any value reaches a query.
type Interval string

const (
	IntervalDaily   Interval = "day"
	IntervalWeekly  Interval = "week"
	IntervalMonthly Interval = "month"
)

// String returns the DATE_TRUNC field name for the interval.
func (i Interval) String() string {
	return string(i)
}

// ParseInterval converts interval text into an Interval.
func ParseInterval(raw string) (Interval, error) {
	switch Interval(raw) {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return Interval(raw), nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownInterval, raw)
}

// Truncate floors t to the start of its interval period in UTC: midnight for
// day, Monday midnight for week (ISO weeks, as DATE_TRUNC uses), and the
// first of the month for month.
func Truncate(t time.Time, interval Interval) time.Time {
	t = t.UTC()

	switch interval {
	case IntervalWeekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		mondayOffset := (int(day.Weekday()) + 6) % 7

		return day.AddDate(0, 0, -mondayOffset)
	case IntervalMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// InstantBalance is one point of a balance series: the cumulative balance in
// minor units as of a period boundary.
type InstantBalance struct {
	Instant time.Time
	Balance int64
}

// InstantBalances is a balance series for a single currency, ordered by
// instant ascending.
type InstantBalances struct {
	Currency currency.Currency
	Balances []InstantBalance
}
