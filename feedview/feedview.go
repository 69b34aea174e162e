// Package feedview flattens all providers' records into the single
// sortable, filterable list behind the live feed view.
package feedview

import (
	"sort"
	"strings"

	"github.com/statuswatch/statuswatch/model"
	"github.com/statuswatch/statuswatch/provider"
)

// SortBy selects the feed ordering.
type SortBy string

const (
	SortTimestamp SortBy = "timestamp"
	SortSource    SortBy = "source"
	SortStatus    SortBy = "status"
)

// Query specifies how to build the unified feed.
type Query struct {
	Sort SortBy
	// Search is matched case-insensitively against title, description,
	// provider, and status.
	Search string
	// Sources restricts the feed to a subset of provider keys; empty
	// means all providers present in the input.
	Sources []string
	Limit   int
	Offset  int
}

// Build flattens the selected providers' records into feed items with
// display metadata attached, then filters, sorts, and pages. The same
// query against unchanged input always yields the same ordering, so
// monotonically growing Offset pages never skip or repeat items.
func Build(states map[string]model.ProviderState, registry *provider.Registry, q Query) []model.FeedItem {
	selected := sourceSet(q.Sources)

	var items []model.FeedItem
	// Iterate in registry order so flattening is deterministic before
	// the stable sort runs.
	for _, p := range registry.All() {
		if selected != nil && !selected[p.Key] {
			continue
		}
		state, ok := states[p.Key]
		if !ok {
			continue
		}
		for _, rec := range state.Records {
			items = append(items, model.FeedItem{
				ID:               p.Key + ":" + rec.ID,
				ProviderName:     p.Name,
				Icon:             p.Icon,
				Color:            p.Color,
				Status:           state.Status,
				NormalizedUpdate: rec,
			})
		}
	}

	if q.Search != "" {
		items = filterSearch(items, q.Search)
	}

	sortItems(items, q.Sort)

	return page(items, q.Offset, q.Limit)
}

func sourceSet(sources []string) map[string]bool {
	if len(sources) == 0 {
		return nil
	}
	set := make(map[string]bool, len(sources))
	for _, s := range sources {
		set[s] = true
	}
	return set
}

func filterSearch(items []model.FeedItem, search string) []model.FeedItem {
	needle := strings.ToLower(search)
	out := items[:0]
	for _, item := range items {
		haystack := strings.ToLower(strings.Join([]string{
			item.Title, item.Description, item.Provider, item.ProviderName, item.Status,
		}, " "))
		if strings.Contains(haystack, needle) {
			out = append(out, item)
		}
	}
	return out
}

func sortItems(items []model.FeedItem, by SortBy) {
	switch by {
	case SortSource:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Provider < items[j].Provider
		})
	case SortStatus:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Severity.Rank() > items[j].Severity.Rank()
		})
	default:
		// timestamp descending, records without one sort last
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i], items[j]
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
}

func page(items []model.FeedItem, offset, limit int) []model.FeedItem {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
