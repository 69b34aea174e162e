// Package session owns all provider state and drives the poll cycles.
// It is the explicit session context the rest of the system reads
// from; there are no ambient singletons.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/statuswatch/statuswatch/aggregate"
	"github.com/statuswatch/statuswatch/feedview"
	"github.com/statuswatch/statuswatch/model"
	"github.com/statuswatch/statuswatch/provider"
	"github.com/statuswatch/statuswatch/window"
)

// DefaultPollInterval is how often the session revalidates itself.
const DefaultPollInterval = 2 * time.Minute

// Fetcher retrieves one provider's raw payload.
type Fetcher interface {
	Get(ctx context.Context, providerKey, url string) ([]byte, error)
}

// RetainedStore persists unresolved incident-API records across
// sessions so the merge rule survives a restart. Implementations are
// injected; the session never touches storage directly.
type RetainedStore interface {
	SaveRetained(providerKey string, records []model.NormalizedUpdate) error
	LoadRetained(providerKey string) ([]model.NormalizedUpdate, error)
}

// Options configures a Session.
type Options struct {
	Registry *provider.Registry
	Fetcher  Fetcher
	// Retained is optional; without it incident merge state lives only
	// in memory for the session.
	Retained RetainedStore
	Logger   *zap.Logger
	// Selected restricts polling to these built-in provider keys;
	// empty selects all built-ins. Custom feeds are always polled.
	Selected     []string
	PollInterval time.Duration
	WindowDays   int
	Normalize    provider.Options
	// Now is a test seam; nil means time.Now.
	Now func() time.Time
}

// Session owns every ProviderState. Each provider's state is written
// only by the completion of that provider's own fetch within the
// current cycle; results arriving for a superseded cycle are discarded
// rather than applied.
type Session struct {
	registry     *provider.Registry
	fetcher      Fetcher
	retainedDB   RetainedStore
	logger       *zap.Logger
	pollInterval time.Duration
	windowDays   int
	normalize    provider.Options
	now          func() time.Time
	metrics      *metrics

	mu          sync.Mutex
	selected    map[string]bool
	states      map[string]*model.ProviderState
	retained    map[string][]model.NormalizedUpdate
	cycleSeq    uint64
	cancelCycle context.CancelFunc
}

// New creates a session with every selected provider in the Loading
// state and retained incident records loaded from the store.
func New(opts Options) *Session {
	s := &Session{
		registry:     opts.Registry,
		fetcher:      opts.Fetcher,
		retainedDB:   opts.Retained,
		logger:       opts.Logger,
		pollInterval: opts.PollInterval,
		windowDays:   opts.WindowDays,
		normalize:    opts.Normalize,
		now:          opts.Now,
		metrics:      newMetrics(),
		states:       make(map[string]*model.ProviderState),
		retained:     make(map[string][]model.NormalizedUpdate),
	}
	if s.registry == nil {
		s.registry = provider.NewRegistry()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	if s.windowDays <= 0 {
		s.windowDays = window.DefaultWindowDays
	}
	if s.now == nil {
		s.now = time.Now
	}
	if len(opts.Selected) > 0 {
		s.selected = make(map[string]bool, len(opts.Selected))
		for _, key := range opts.Selected {
			s.selected[key] = true
		}
	}

	for _, p := range s.pollTargets() {
		s.states[p.Key] = model.NewLoadingState(p.Key)
		if p.Kind == provider.KindIncidentAPI && s.retainedDB != nil {
			records, err := s.retainedDB.LoadRetained(p.Key)
			if err != nil {
				s.logger.Warn("failed to load retained records",
					zap.String("provider", p.Key), zap.Error(err))
				continue
			}
			s.retained[p.Key] = records
		}
	}

	return s
}

// Registry returns the provider registry backing this session.
func (s *Session) Registry() *provider.Registry {
	return s.registry
}

// SetSelected replaces the built-in provider selection. The next poll
// cycle picks it up; any in-flight cycle is cancelled so its results
// cannot land on the new selection.
func (s *Session) SetSelected(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) == 0 {
		s.selected = nil
	} else {
		s.selected = make(map[string]bool, len(keys))
		for _, key := range keys {
			s.selected[key] = true
		}
	}
	if s.cancelCycle != nil {
		s.cancelCycle()
	}
	for _, p := range s.pollTargets() {
		if _, ok := s.states[p.Key]; !ok {
			s.states[p.Key] = model.NewLoadingState(p.Key)
		}
	}
}

// pollTargets returns the providers the next cycle polls: selected
// built-ins plus every custom feed. Callers may hold s.mu; this only
// reads the registry and the selection map.
func (s *Session) pollTargets() []provider.Provider {
	var out []provider.Provider
	for _, p := range s.registry.All() {
		if p.Kind == provider.KindCustomFeed || s.selected == nil || s.selected[p.Key] {
			out = append(out, p)
		}
	}
	return out
}

// Poll runs one complete poll cycle: one concurrent fetch per target
// provider, each applied to that provider's state as it resolves.
// Starting a new cycle supersedes any cycle still in flight; the old
// cycle's unapplied results are discarded when they arrive. Poll
// returns when its own cycle's fetches have all settled.
func (s *Session) Poll(ctx context.Context) {
	s.mu.Lock()
	s.cycleSeq++
	seq := s.cycleSeq
	if s.cancelCycle != nil {
		s.cancelCycle()
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	s.cancelCycle = cancel
	targets := s.pollTargets()
	s.mu.Unlock()

	s.metrics.pollCycles.Inc()
	s.logger.Debug("poll cycle started",
		zap.Uint64("cycle", seq), zap.Int("providers", len(targets)))

	var wg sync.WaitGroup
	for _, p := range targets {
		wg.Add(1)
		go func(p provider.Provider) {
			defer wg.Done()
			s.pollProvider(cycleCtx, seq, p)
		}(p)
	}
	wg.Wait()
	// All of this cycle's fetches have settled, so its context can be
	// released without waiting for the next cycle to cancel it.
	cancel()
}

// Run polls immediately and then on every tick until ctx is done.
func (s *Session) Run(ctx context.Context) {
	s.Poll(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// pollProvider fetches, normalizes, and applies one provider's result.
// Every failure path is provider-local: nothing here can affect
// another provider's state or block its fetch.
func (s *Session) pollProvider(ctx context.Context, seq uint64, p provider.Provider) {
	s.metrics.fetches.WithLabelValues(p.Key).Inc()

	raw, err := s.fetcher.Get(ctx, p.Key, p.URL)
	if err != nil {
		s.applyError(seq, p, err)
		return
	}

	records, err := p.Normalizer(s.normalize).Normalize(raw)
	if err != nil {
		s.applyError(seq, p, err)
		return
	}

	s.applyRecords(seq, p, records)
}

// applyRecords installs a successful poll result: merge for the
// incident-API family, window, aggregate, replace state wholesale.
func (s *Session) applyRecords(seq uint64, p provider.Provider, fresh []model.NormalizedUpdate) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.cycleSeq {
		s.discardStale(seq, p)
		return
	}

	records := fresh
	if p.Kind == provider.KindIncidentAPI {
		// Union with the retained set so an unresolved incident that
		// drops out of the upstream recent window survives until it is
		// resolved or ages out, whichever comes first. The merge base
		// also carries recently resolved copies, which keeps ResolvedAt
		// sticky when a stale refetch reopens an incident.
		records = window.Merge(s.retained[p.Key], fresh)
	} else {
		window.SortNewestFirst(records)
	}

	records = window.Filter(records, window.Options{
		WindowDays: s.windowDays,
		Reference:  now,
		Mode:       window.ModeHistoric,
	})

	status, indicator := aggregate.Aggregate(records)

	s.states[p.Key] = &model.ProviderState{
		Provider:  p.Key,
		Status:    status,
		Indicator: indicator,
		Records:   records,
		UpdatedAt: &now,
	}
	s.metrics.indicator.WithLabelValues(p.Key).Set(float64(indicator.Rank()))

	if p.Kind == provider.KindIncidentAPI {
		s.retained[p.Key] = records
		// Only unresolved incidents are persisted across sessions.
		open := window.Filter(records, window.Options{
			WindowDays: s.windowDays,
			Reference:  now,
			Mode:       window.ModeActive,
		})
		if s.retainedDB != nil {
			if err := s.retainedDB.SaveRetained(p.Key, open); err != nil {
				s.logger.Warn("failed to persist retained records",
					zap.String("provider", p.Key), zap.Error(err))
			}
		}
	}
}

// applyError moves a provider into its error state. Records from the
// last successful poll stay visible but are marked stale.
func (s *Session) applyError(seq uint64, p provider.Provider, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.cycleSeq {
		s.discardStale(seq, p)
		return
	}

	// A cancelled fetch means this cycle was superseded, not that the
	// provider failed.
	if isCancellation(err) {
		s.discardStale(seq, p)
		return
	}

	s.metrics.fetchErrors.WithLabelValues(p.Key).Inc()
	s.logger.Warn("provider poll failed",
		zap.String("provider", p.Key), zap.Error(err))

	prev := s.states[p.Key]
	next := &model.ProviderState{
		Provider: p.Key,
		Status:   p.ErrorStatus(),
		Stale:    true,
		Err:      err.Error(),
	}
	if prev != nil {
		next.Records = prev.Records
		next.Indicator = prev.Indicator
		next.UpdatedAt = prev.UpdatedAt
	}
	s.states[p.Key] = next
}

// isCancellation reports whether err stems from the cycle context
// being cancelled rather than from the provider itself.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *Session) discardStale(seq uint64, p provider.Provider) {
	s.metrics.staleDiscards.Inc()
	s.logger.Debug("discarded result from superseded cycle",
		zap.Uint64("cycle", seq), zap.String("provider", p.Key))
}

// States returns a read-only snapshot of every provider's state.
func (s *Session) States() map[string]model.ProviderState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]model.ProviderState, len(s.states))
	for key, state := range s.states {
		out[key] = state.Clone()
	}
	return out
}

// State returns one provider's state snapshot.
func (s *Session) State(providerKey string) (model.ProviderState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[providerKey]
	if !ok {
		return model.ProviderState{}, false
	}
	return state.Clone(), true
}

// Timeline returns the provider's daily indicator strip for the
// session window, oldest day first, bucketed by the provider family's
// day boundary.
func (s *Session) Timeline(providerKey string) []model.Indicator {
	p, ok := s.registry.Get(providerKey)
	if !ok {
		return nil
	}
	state, ok := s.State(providerKey)
	if !ok {
		return nil
	}
	return aggregate.Timeline(state.Records, s.now(), s.windowDays, p.DayBoundary())
}

// Feed builds the unified cross-provider feed from the current
// snapshot.
func (s *Session) Feed(q feedview.Query) []model.FeedItem {
	return feedview.Build(s.States(), s.registry, q)
}
