// Package window applies the rolling time window, deduplication, and
// retained-state merge rules to normalized update records.
package window

import (
	"sort"
	"time"

	"github.com/statuswatch/statuswatch/model"
)

// DefaultWindowDays is the rolling window used by the dashboard.
const DefaultWindowDays = 7

// Mode selects what Filter keeps.
type Mode int

const (
	// ModeHistoric keeps records with a timestamp inside the rolling
	// window, resolved or not.
	ModeHistoric Mode = iota
	// ModeActive keeps unresolved records regardless of age; used for
	// the "currently open" determination.
	ModeActive
)

// Options parameterizes Filter.
type Options struct {
	WindowDays int
	Reference  time.Time
	Mode       Mode
}

// Filter returns the records retained under opts. Records lacking a
// parseable timestamp are excluded in both modes: unknown-age records
// are neither historic nor surfaceable as currently open. Filter is
// idempotent for fixed options and never reorders its input.
func Filter(records []model.NormalizedUpdate, opts Options) []model.NormalizedUpdate {
	days := opts.WindowDays
	if days <= 0 {
		days = DefaultWindowDays
	}
	ref := opts.Reference
	if ref.IsZero() {
		ref = time.Now()
	}
	cutoff := ref.AddDate(0, 0, -days)

	out := make([]model.NormalizedUpdate, 0, len(records))
	for _, r := range records {
		if !r.HasTimestamp() {
			continue
		}
		switch opts.Mode {
		case ModeActive:
			if !r.Resolved() {
				out = append(out, r)
			}
		default:
			if !r.Timestamp.Before(cutoff) {
				out = append(out, r)
			}
		}
	}
	return out
}

// Merge unions previously retained records with a fresh fetch result,
// deduplicating on (provider, id). On field conflicts the copy with
// the later timestamp wins (ties and missing timestamps favor the
// fresh copy), except ResolvedAt: once set it is sticky and a stale
// refetch never unsets it. The result is ordered newest first with
// timestamp-less records last.
func Merge(previous, fresh []model.NormalizedUpdate) []model.NormalizedUpdate {
	type key struct {
		provider string
		id       string
	}

	merged := make(map[key]model.NormalizedUpdate, len(previous)+len(fresh))
	order := make([]key, 0, len(previous)+len(fresh))

	for _, r := range fresh {
		k := key{r.Provider, r.ID}
		if _, ok := merged[k]; !ok {
			order = append(order, k)
		}
		merged[k] = r
	}
	for _, r := range previous {
		k := key{r.Provider, r.ID}
		cur, ok := merged[k]
		if !ok {
			merged[k] = r
			order = append(order, k)
			continue
		}
		merged[k] = resolveConflict(r, cur)
	}

	out := make([]model.NormalizedUpdate, 0, len(order))
	for _, k := range order {
		out = append(out, merged[k])
	}
	SortNewestFirst(out)
	return out
}

// resolveConflict merges one retained record with its fresh copy.
func resolveConflict(old, fresh model.NormalizedUpdate) model.NormalizedUpdate {
	winner := fresh
	if old.HasTimestamp() && fresh.HasTimestamp() && old.Timestamp.After(*fresh.Timestamp) {
		winner = old
	}
	if winner.ResolvedAt == nil {
		if old.ResolvedAt != nil {
			winner.ResolvedAt = old.ResolvedAt
		} else if fresh.ResolvedAt != nil {
			winner.ResolvedAt = fresh.ResolvedAt
		}
	}
	return winner
}

// SortNewestFirst orders records by timestamp descending, stable, with
// timestamp-less records after all dated ones.
func SortNewestFirst(records []model.NormalizedUpdate) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case !a.HasTimestamp():
			return false
		case !b.HasTimestamp():
			return true
		default:
			return a.Timestamp.After(*b.Timestamp)
		}
	})
}
