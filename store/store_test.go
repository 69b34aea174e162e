package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statuswatch/statuswatch/model"
	"github.com/statuswatch/statuswatch/provider"
)

func TestNewStore(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close()
}

func TestStore_SaveAndLoadRetained(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ts := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	records := []model.NormalizedUpdate{
		{
			ID:          "123",
			Provider:    "cloudflare",
			Title:       "Edge degradation",
			Description: "Investigating elevated errors.",
			Timestamp:   &ts,
			Severity:    model.SeverityMajor,
			Category:    model.CategoryIncident,
			SourceURL:   "https://stspg.io/123",
		},
		{
			ID:       "456",
			Provider: "cloudflare",
			Title:    "Undated incident",
			Severity: model.SeverityMinor,
			Category: model.CategoryIncident,
		},
	}

	require.NoError(t, s.SaveRetained("cloudflare", records))

	got, err := s.LoadRetained("cloudflare")
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[string]model.NormalizedUpdate{}
	for _, rec := range got {
		byID[rec.ID] = rec
	}
	first := byID["123"]
	assert.Equal(t, "Edge degradation", first.Title)
	assert.Equal(t, model.SeverityMajor, first.Severity)
	require.NotNil(t, first.Timestamp)
	assert.True(t, first.Timestamp.Equal(ts))
	assert.Nil(t, byID["456"].Timestamp)
}

func TestStore_SaveRetainedReplacesWholesale(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveRetained("cloudflare", []model.NormalizedUpdate{
		{ID: "old", Provider: "cloudflare", Category: model.CategoryIncident},
	}))
	require.NoError(t, s.SaveRetained("cloudflare", []model.NormalizedUpdate{
		{ID: "new", Provider: "cloudflare", Category: model.CategoryIncident},
	}))

	got, err := s.LoadRetained("cloudflare")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestStore_RetainedIsolatedPerProvider(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveRetained("cloudflare", []model.NormalizedUpdate{
		{ID: "a", Provider: "cloudflare", Category: model.CategoryIncident},
	}))
	require.NoError(t, s.SaveRetained("custom-x", []model.NormalizedUpdate{
		{ID: "b", Provider: "custom-x", Category: model.CategoryIncident},
	}))

	// Clearing one provider leaves the other alone
	require.NoError(t, s.SaveRetained("cloudflare", nil))

	cf, err := s.LoadRetained("cloudflare")
	require.NoError(t, err)
	assert.Empty(t, cf)

	other, err := s.LoadRetained("custom-x")
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestStore_CustomFeeds(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	p := provider.Provider{
		Key:   "custom-abc",
		Name:  "My Service",
		URL:   "https://my.example.com/feed.xml",
		Color: "#ff0000",
		Kind:  provider.KindCustomFeed,
	}
	require.NoError(t, s.AddCustomFeed(p))

	feeds, err := s.CustomFeeds()
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, "custom-abc", feeds[0].Key)
	assert.Equal(t, "My Service", feeds[0].Name)
	assert.Equal(t, provider.KindCustomFeed, feeds[0].Kind)
}

func TestStore_AddCustomFeedRejectsDuplicateURL(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	p := provider.Provider{Key: "custom-1", Name: "a", URL: "https://dup.example.com/rss"}
	require.NoError(t, s.AddCustomFeed(p))

	p.Key = "custom-2"
	assert.Error(t, s.AddCustomFeed(p))
}

func TestStore_RemoveCustomFeed(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	p := provider.Provider{Key: "custom-abc", Name: "x", URL: "https://x.example.com/rss"}
	require.NoError(t, s.AddCustomFeed(p))
	require.NoError(t, s.SaveRetained("custom-abc", []model.NormalizedUpdate{
		{ID: "r1", Provider: "custom-abc", Category: model.CategoryIncident},
	}))

	require.NoError(t, s.RemoveCustomFeed("custom-abc"))

	feeds, err := s.CustomFeeds()
	require.NoError(t, err)
	assert.Empty(t, feeds)

	retained, err := s.LoadRetained("custom-abc")
	require.NoError(t, err)
	assert.Empty(t, retained, "removal also clears retained records")
}
