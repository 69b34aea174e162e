package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statuswatch/statuswatch/aggregate"
	"github.com/statuswatch/statuswatch/model"
)

func TestBuiltins(t *testing.T) {
	builtins := Builtins()
	require.Len(t, builtins, 7)

	keys := map[string]bool{}
	incidentAPIs := 0
	for _, p := range builtins {
		assert.False(t, keys[p.Key], "duplicate builtin key %s", p.Key)
		keys[p.Key] = true
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.URL)
		if p.Kind == KindIncidentAPI {
			incidentAPIs++
		}
	}
	assert.Equal(t, 1, incidentAPIs, "exactly one incident-API provider")
	assert.True(t, keys["cloudflare"])
}

func TestProvider_DayBoundary(t *testing.T) {
	assert.Equal(t, aggregate.BoundaryLocal, Provider{Kind: KindIncidentAPI}.DayBoundary())
	assert.Equal(t, aggregate.BoundaryUTC, Provider{Kind: KindFeed}.DayBoundary())
	assert.Equal(t, aggregate.BoundaryUTC, Provider{Kind: KindCustomFeed}.DayBoundary())
}

func TestProvider_ErrorStatus(t *testing.T) {
	assert.Equal(t, model.StatusErrorStatus, Provider{Kind: KindIncidentAPI}.ErrorStatus())
	assert.Equal(t, model.StatusErrorFeed, Provider{Kind: KindFeed}.ErrorStatus())
	assert.Equal(t, model.StatusErrorFeed, Provider{Kind: KindCustomFeed}.ErrorStatus())
}

func TestRegistry_RegisterCustom(t *testing.T) {
	r := NewRegistry()

	p, err := r.RegisterCustom("My Service", "https://my.example.com/feed.xml", "#ff0000")
	require.NoError(t, err)
	assert.Equal(t, KindCustomFeed, p.Kind)
	assert.NotEmpty(t, p.Key)
	assert.Equal(t, "My Service", p.Name)

	got, ok := r.Get(p.Key)
	require.True(t, ok)
	assert.Equal(t, p, got)

	keys := r.Keys()
	assert.Equal(t, p.Key, keys[len(keys)-1], "custom feeds register after builtins")
}

func TestRegistry_RegisterCustomRequiresURL(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterCustom("name", "", "")
	require.Error(t, err)
}

func TestRegistry_RegisterCustomDefaultsName(t *testing.T) {
	r := NewRegistry()
	p, err := r.RegisterCustom("", "https://my.example.com/feed.xml", "")
	require.NoError(t, err)
	assert.Equal(t, "https://my.example.com/feed.xml", p.Name)
}

func TestRegistry_Restore(t *testing.T) {
	r := NewRegistry()

	p := Provider{Key: "custom-restored", Name: "Restored", URL: "https://x.example.com/rss"}
	require.NoError(t, r.Restore(p))

	got, ok := r.Get("custom-restored")
	require.True(t, ok)
	assert.Equal(t, KindCustomFeed, got.Kind)

	assert.Error(t, r.Restore(p), "restoring a duplicate key fails")
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	p, err := r.RegisterCustom("x", "https://x.example.com/rss", "")
	require.NoError(t, err)

	require.NoError(t, r.Remove(p.Key))
	_, ok := r.Get(p.Key)
	assert.False(t, ok)

	assert.Error(t, r.Remove("cloudflare"), "builtins cannot be removed")
	assert.Error(t, r.Remove("missing"))
}
