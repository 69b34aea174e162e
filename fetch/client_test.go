package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statuswatch/statuswatch/model"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	client := NewClient(0)
	body, err := client.Get(context.Background(), "github", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestClient_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(0)
	_, err := client.Get(context.Background(), "github", server.URL)
	require.Error(t, err)
	require.True(t, model.IsFetchError(err))

	var fe *model.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, "github", fe.Provider)
}

func TestClient_NetworkError(t *testing.T) {
	client := NewClient(0)
	// Closed port: connection refused
	_, err := client.Get(context.Background(), "github", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.True(t, model.IsFetchError(err))
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(0)
	_, err := client.Get(ctx, "github", server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	failures := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failures++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(0)
	for i := 0; i < 10; i++ {
		_, err := client.Get(context.Background(), "flaky", server.URL)
		require.Error(t, err)
		assert.True(t, model.IsFetchError(err), "an open breaker still surfaces as a FetchError")
	}

	assert.Less(t, failures, 10, "the breaker stops hitting the upstream after repeated failures")
}

func TestClient_CancellationsDoNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(0)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 10; i++ {
		_, err := client.Get(cancelled, "github", server.URL)
		require.ErrorIs(t, err, context.Canceled)
	}

	body, err := client.Get(context.Background(), "github", server.URL)
	require.NoError(t, err, "cancelled fetches say nothing about the upstream's health")
	assert.Equal(t, "ok", string(body))
}

func TestClient_BreakersAreIsolatedPerProvider(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer good.Close()

	client := NewClient(0)
	for i := 0; i < 10; i++ {
		client.Get(context.Background(), "flaky", bad.URL)
	}

	body, err := client.Get(context.Background(), "steady", good.URL)
	require.NoError(t, err, "one provider's open breaker must not affect another")
	assert.Equal(t, "ok", string(body))
}
