package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statuswatch/statuswatch/model"
)

var ref = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func rec(id string, age time.Duration, category model.Category) model.NormalizedUpdate {
	ts := ref.Add(-age)
	return model.NormalizedUpdate{
		ID:        id,
		Provider:  "test",
		Title:     id,
		Timestamp: &ts,
		Severity:  model.SeverityInfo,
		Category:  category,
	}
}

func TestFilter_HistoricKeepsWindow(t *testing.T) {
	records := []model.NormalizedUpdate{
		rec("fresh", 24*time.Hour, model.CategoryIncident),
		rec("edge", 6*24*time.Hour, model.CategoryResolved),
		rec("old", 10*24*time.Hour, model.CategoryIncident),
	}

	got := Filter(records, Options{WindowDays: 7, Reference: ref, Mode: ModeHistoric})
	require.Len(t, got, 2)
	assert.Equal(t, "fresh", got[0].ID)
	assert.Equal(t, "edge", got[1].ID)
}

func TestFilter_ActiveKeepsUnresolvedRegardlessOfAge(t *testing.T) {
	// A 10-day-old open record: outside the historic window but still
	// counts as currently open
	records := []model.NormalizedUpdate{
		rec("ancient-open", 10*24*time.Hour, model.CategoryIncident),
		rec("ancient-closed", 10*24*time.Hour, model.CategoryResolved),
	}

	historic := Filter(records, Options{WindowDays: 7, Reference: ref, Mode: ModeHistoric})
	assert.Empty(t, historic)

	active := Filter(records, Options{WindowDays: 7, Reference: ref, Mode: ModeActive})
	require.Len(t, active, 1)
	assert.Equal(t, "ancient-open", active[0].ID)
}

func TestFilter_ActiveExcludesExplicitlyResolved(t *testing.T) {
	resolved := ref.Add(-time.Hour)
	r := rec("closed", 2*time.Hour, model.CategoryIncident)
	r.ResolvedAt = &resolved

	got := Filter([]model.NormalizedUpdate{r}, Options{Reference: ref, Mode: ModeActive})
	assert.Empty(t, got)
}

func TestFilter_ExcludesUnknownTimestamps(t *testing.T) {
	records := []model.NormalizedUpdate{
		{ID: "no-ts", Provider: "test", Category: model.CategoryIncident},
	}

	for _, mode := range []Mode{ModeHistoric, ModeActive} {
		got := Filter(records, Options{Reference: ref, Mode: mode})
		assert.Empty(t, got, "unknown-age records are excluded in mode %d", mode)
	}
}

func TestFilter_Idempotent(t *testing.T) {
	records := []model.NormalizedUpdate{
		rec("a", time.Hour, model.CategoryIncident),
		rec("b", 3*24*time.Hour, model.CategoryResolved),
		rec("c", 20*24*time.Hour, model.CategoryIncident),
		{ID: "d", Provider: "test", Category: model.CategoryUpdate},
	}

	for _, mode := range []Mode{ModeHistoric, ModeActive} {
		opts := Options{WindowDays: 7, Reference: ref, Mode: mode}
		once := Filter(records, opts)
		twice := Filter(once, opts)
		assert.Equal(t, once, twice, "re-filtering its own output must change nothing")
	}
}

func TestMerge_RetainsDroppedUnresolvedIncident(t *testing.T) {
	// Incident 123 fell out of the upstream recent window but is not
	// resolved; the merge must keep it
	retained := []model.NormalizedUpdate{rec("123", 3*24*time.Hour, model.CategoryIncident)}

	got := Merge(retained, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "123", got[0].ID)
}

func TestMerge_DeduplicatesByProviderAndID(t *testing.T) {
	old := rec("dup", 2*time.Hour, model.CategoryIncident)
	fresh := rec("dup", time.Hour, model.CategoryIncident)
	fresh.Description = "newer copy"

	got := Merge([]model.NormalizedUpdate{old}, []model.NormalizedUpdate{fresh})
	require.Len(t, got, 1)
	assert.Equal(t, "newer copy", got[0].Description)
}

func TestMerge_NewerTimestampWinsConflicts(t *testing.T) {
	// A stale refetch delivers an older copy; the retained newer copy
	// must win
	retained := rec("x", time.Hour, model.CategoryIncident)
	retained.Description = "latest update"
	stale := rec("x", 5*time.Hour, model.CategoryIncident)
	stale.Description = "stale update"

	got := Merge([]model.NormalizedUpdate{retained}, []model.NormalizedUpdate{stale})
	require.Len(t, got, 1)
	assert.Equal(t, "latest update", got[0].Description)
}

func TestMerge_ResolvedAtIsSticky(t *testing.T) {
	resolvedAt := ref.Add(-30 * time.Minute)
	resolved := rec("x", 2*time.Hour, model.CategoryIncident)
	resolved.ResolvedAt = &resolvedAt

	// The refetch returns a newer copy without the resolution
	refetched := rec("x", time.Hour, model.CategoryIncident)

	got := Merge([]model.NormalizedUpdate{resolved}, []model.NormalizedUpdate{refetched})
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ResolvedAt, "resolution must never be undone by a stale refetch")
	assert.True(t, got[0].ResolvedAt.Equal(resolvedAt))

	// And it survives a second merge round
	again := Merge(got, []model.NormalizedUpdate{rec("x", 10*time.Minute, model.CategoryIncident)})
	require.Len(t, again, 1)
	require.NotNil(t, again[0].ResolvedAt)
}

func TestMerge_OrdersNewestFirst(t *testing.T) {
	a := rec("a", 3*time.Hour, model.CategoryIncident)
	b := rec("b", time.Hour, model.CategoryIncident)
	c := model.NormalizedUpdate{ID: "c", Provider: "test", Category: model.CategoryUpdate}

	got := Merge([]model.NormalizedUpdate{a, c}, []model.NormalizedUpdate{b})
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "c", got[2].ID, "timestamp-less records sort last")
}
