// Package aggregate reduces a provider's normalized records into its
// current status and its daily indicator timeline.
package aggregate

import (
	"time"

	"github.com/statuswatch/statuswatch/model"
)

// DayBoundary selects which midnight starts a calendar day. Feed-style
// providers historically bucket by UTC midnight while the incident-API
// provider buckets by local midnight; the inconsistency is kept on
// purpose because unifying it would change historically displayed
// severities.
type DayBoundary int

const (
	BoundaryUTC DayBoundary = iota
	BoundaryLocal
)

// Location returns the time location the boundary buckets in.
func (b DayBoundary) Location() *time.Location {
	if b == BoundaryLocal {
		return time.Local
	}
	return time.UTC
}

// Aggregate reduces records to the provider's current status label and
// indicator. With no open record the provider is operational; otherwise
// the maximum-severity open record decides. Open means: unresolved,
// and carrying a known timestamp.
func Aggregate(records []model.NormalizedUpdate) (string, model.Indicator) {
	worst := model.Severity("")
	found := false
	for i := range records {
		r := &records[i]
		if !r.HasTimestamp() || r.Resolved() {
			continue
		}
		if !found || r.Severity.Rank() > worst.Rank() {
			worst = r.Severity
			found = true
		}
	}

	if !found {
		return model.StatusOperational, model.IndicatorNone
	}

	indicator := worst.Indicator()
	if indicator == model.IndicatorMajor || indicator == model.IndicatorCritical {
		return model.StatusIssues, indicator
	}
	return model.StatusMinorIssues, indicator
}

// DailyIndicator returns the worst indicator among records whose
// timestamp falls on the calendar day containing day, bucketed by the
// given boundary. Days with no records report none.
func DailyIndicator(records []model.NormalizedUpdate, day time.Time, boundary DayBoundary) model.Indicator {
	loc := boundary.Location()
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	worst := model.IndicatorNone
	for i := range records {
		r := &records[i]
		if !r.HasTimestamp() {
			continue
		}
		ts := r.Timestamp.In(loc)
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		if ind := r.Severity.Indicator(); ind.Rank() > worst.Rank() {
			worst = ind
		}
	}
	return worst
}

// Timeline returns one indicator per day for the trailing days-long
// strip ending on the day containing now, oldest first.
func Timeline(records []model.NormalizedUpdate, now time.Time, days int, boundary DayBoundary) []model.Indicator {
	if days <= 0 {
		return nil
	}
	out := make([]model.Indicator, 0, days)
	for i := days - 1; i >= 0; i-- {
		out = append(out, DailyIndicator(records, now.AddDate(0, 0, -i), boundary))
	}
	return out
}
