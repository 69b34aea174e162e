// Package model defines the core data structures for statuswatch.
package model

import (
	"time"
)

// Severity is the derived severity tier of a normalized update.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityInfo     Severity = "info"
)

// Rank returns the ordering value of a severity, higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// Indicator returns the coarse severity bucket for a severity tier.
func (s Severity) Indicator() Indicator {
	switch s {
	case SeverityCritical:
		return IndicatorCritical
	case SeverityMajor:
		return IndicatorMajor
	case SeverityMinor:
		return IndicatorMinor
	default:
		return IndicatorNone
	}
}

// Category is the event category of a normalized update.
type Category string

const (
	CategoryIncident    Category = "incident"
	CategoryMaintenance Category = "maintenance"
	CategoryDegradation Category = "degradation"
	CategoryOutage      Category = "outage"
	CategoryResolved    Category = "resolved"
	CategoryUpdate      Category = "update"
)

// Indicator is the coarse severity bucket shown as a colored dot.
type Indicator string

const (
	IndicatorNone     Indicator = "none"
	IndicatorMinor    Indicator = "minor"
	IndicatorMajor    Indicator = "major"
	IndicatorCritical Indicator = "critical"
)

// Rank returns the ordering value of an indicator, higher is worse.
func (i Indicator) Rank() int {
	switch i {
	case IndicatorCritical:
		return 3
	case IndicatorMajor:
		return 2
	case IndicatorMinor:
		return 1
	default:
		return 0
	}
}

// Status labels shown per provider.
const (
	StatusOperational = "Operational"
	StatusIssues      = "Issues Detected"
	StatusMinorIssues = "Minor Issues"
	StatusLoading     = "Loading…"
	StatusErrorFeed   = "Error loading feed"
	StatusErrorStatus = "Error loading status"
)

// NormalizedUpdate is the canonical unit every provider payload is
// reduced to.
type NormalizedUpdate struct {
	ID          string     `json:"id"`
	Provider    string     `json:"provider"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Severity    Severity   `json:"severity"`
	Category    Category   `json:"category"`
	SourceURL   string     `json:"source_url,omitempty"`
	Raw         any        `json:"-"`
}

// Resolved reports whether the underlying incident is closed, either
// by an explicit resolution instant or by classification.
func (u *NormalizedUpdate) Resolved() bool {
	return u.ResolvedAt != nil || u.Category == CategoryResolved
}

// HasTimestamp reports whether the update carries a known instant.
// Absence is a valid state; unknown-age records are excluded from both
// window modes.
func (u *NormalizedUpdate) HasTimestamp() bool {
	return u.Timestamp != nil && !u.Timestamp.IsZero()
}

// ProviderState is the per-provider aggregate owned by the session.
type ProviderState struct {
	Provider  string             `json:"provider"`
	Status    string             `json:"status"`
	Indicator Indicator          `json:"indicator"`
	Records   []NormalizedUpdate `json:"records"`
	// Stale marks records retained from an earlier successful poll
	// after a later poll failed.
	Stale     bool       `json:"stale,omitempty"`
	Err       string     `json:"error,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// NewLoadingState returns the state a provider holds between session
// start and its first poll result.
func NewLoadingState(provider string) *ProviderState {
	return &ProviderState{
		Provider:  provider,
		Status:    StatusLoading,
		Indicator: IndicatorNone,
	}
}

// Clone returns a copy safe to hand out as a read-only snapshot: the
// record slice is copied so callers cannot mutate session-owned state.
func (p *ProviderState) Clone() ProviderState {
	out := *p
	out.Records = append([]NormalizedUpdate(nil), p.Records...)
	return out
}

// FeedItem is a presentation-facing projection of a NormalizedUpdate
// with the provider's display metadata attached. It has no identity of
// its own beyond the provider-prefixed update ID.
type FeedItem struct {
	ID           string `json:"id"`
	ProviderName string `json:"provider_name"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	Status       string `json:"status"`
	NormalizedUpdate
}
