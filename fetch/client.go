// Package fetch retrieves raw provider payloads over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/statuswatch/statuswatch/model"
)

// DefaultTimeout bounds one provider fetch.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of a response body is read; status feeds
// and incident lists are small, anything larger is misbehaving.
const maxBodyBytes = 4 << 20

// Client fetches provider payloads. Each provider gets its own circuit
// breaker so a flapping upstream is skipped for a cooldown instead of
// burning a slot in every poll cycle; an open breaker surfaces as an
// ordinary FetchError and never affects other providers.
type Client struct {
	httpClient *http.Client
	userAgent  string

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a Client with the given per-request timeout;
// zero means DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "statuswatch/0.1",
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get fetches url for the named provider and returns the raw body.
// Network failures, non-2xx responses, and an open breaker all yield a
// FetchError.
func (c *Client) Get(ctx context.Context, providerKey, url string) ([]byte, error) {
	body, err := c.breaker(providerKey).Execute(func() (interface{}, error) {
		return c.get(ctx, providerKey, url)
	})
	if err != nil {
		if model.IsFetchError(err) {
			return nil, err
		}
		// breaker-open and too-many-requests errors from gobreaker
		return nil, &model.FetchError{Provider: providerKey, URL: url, Err: err}
	}
	return body.([]byte), nil
}

func (c *Client) get(ctx context.Context, providerKey, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &model.FetchError{Provider: providerKey, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.FetchError{Provider: providerKey, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.FetchError{Provider: providerKey, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &model.FetchError{Provider: providerKey, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

func (c *Client) breaker(providerKey string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[providerKey]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    providerKey,
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A superseded poll cycle cancels its in-flight fetches; that
		// says nothing about the upstream's health, so it must not
		// count toward tripping the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	c.breakers[providerKey] = cb
	return cb
}
