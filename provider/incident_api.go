package provider

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/statuswatch/statuswatch/classify"
	"github.com/statuswatch/statuswatch/model"
	"github.com/statuswatch/statuswatch/sanitize"
)

// incidentPayload is the statuspage-style envelope. Some deployments
// return a bare incident array instead; Normalize accepts both.
type incidentPayload struct {
	Incidents []incidentRecord `json:"incidents"`
}

// incidentRecord carries both snake_case and camelCase spellings of
// the timestamp fields and both name/title because upstream shapes
// vary; absent fields degrade gracefully rather than erroring.
type incidentRecord struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Title        string           `json:"title"`
	Impact       string           `json:"impact"`
	Status       string           `json:"status"`
	CreatedAt    string           `json:"created_at"`
	CreatedAtAlt string           `json:"createdAt"`
	UpdatedAt    string           `json:"updated_at"`
	UpdatedAtAlt string           `json:"updatedAt"`
	ResolvedAt   string           `json:"resolved_at"`
	Shortlink    string           `json:"shortlink"`
	URL          string           `json:"url"`
	Updates      []incidentUpdate `json:"incident_updates"`
}

type incidentUpdate struct {
	Body      string `json:"body"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type incidentNormalizer struct {
	provider Provider
	opts     Options
}

func newIncidentNormalizer(p Provider, opts Options) *incidentNormalizer {
	return &incidentNormalizer{provider: p, opts: opts}
}

// Normalize maps an incidents-list JSON payload to normalized records.
// Impact maps directly to severity; a resolved_at instant is terminal.
func (n *incidentNormalizer) Normalize(raw []byte) ([]model.NormalizedUpdate, error) {
	var payload incidentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Some upstreams return the list without the envelope.
		if arrErr := json.Unmarshal(raw, &payload.Incidents); arrErr != nil {
			return nil, &model.DecodeError{Provider: n.provider.Key, Err: err}
		}
	}

	out := make([]model.NormalizedUpdate, 0, len(payload.Incidents))
	for _, inc := range payload.Incidents {
		out = append(out, n.convert(inc))
	}
	return out, nil
}

func (n *incidentNormalizer) convert(inc incidentRecord) model.NormalizedUpdate {
	title := inc.Name
	if title == "" {
		title = inc.Title
	}
	title = sanitize.Text(title, sanitize.Options{MaxLength: maxTitleLength})

	description := inc.Status
	if len(inc.Updates) > 0 && inc.Updates[0].Body != "" {
		description = inc.Updates[0].Body
	}
	description = sanitize.Text(description, sanitize.Options{MaxLength: n.opts.MaxDescription})

	u := model.NormalizedUpdate{
		ID:          inc.ID,
		Provider:    n.provider.Key,
		Title:       title,
		Description: description,
		Severity:    impactSeverity(inc.Impact, title, description),
		Category:    incidentCategory(inc),
		SourceURL:   firstNonEmpty(inc.Shortlink, inc.URL),
		Raw:         inc,
	}

	u.Timestamp = parseInstant(firstNonEmpty(inc.CreatedAt, inc.CreatedAtAlt, inc.UpdatedAt, inc.UpdatedAtAlt))
	u.ResolvedAt = parseInstant(inc.ResolvedAt)
	if u.ResolvedAt != nil {
		u.Category = model.CategoryResolved
	}

	if u.ID == "" {
		u.ID = syntheticID(title, u.Timestamp)
	}

	return u
}

// impactSeverity maps the upstream impact field directly onto the
// severity tier; unknown or absent impacts fall back to keyword
// classification of the text.
func impactSeverity(impact, title, description string) model.Severity {
	switch impact {
	case "critical":
		return model.SeverityCritical
	case "major":
		return model.SeverityMajor
	case "minor":
		return model.SeverityMinor
	case "none":
		return model.SeverityInfo
	}
	severity, _ := classify.Classify(title, description)
	return severity
}

func incidentCategory(inc incidentRecord) model.Category {
	switch inc.Status {
	case "resolved", "completed", "postmortem":
		return model.CategoryResolved
	case "investigating", "identified", "monitoring":
		return model.CategoryIncident
	case "scheduled", "in_progress", "verifying":
		return model.CategoryMaintenance
	}
	_, category := classify.Classify(inc.Name+" "+inc.Title, inc.Status)
	return category
}

// instantLayouts are tried in order when parsing upstream timestamps.
var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
}

// parseInstant parses an upstream timestamp string; unparseable or
// empty input yields nil, which is a valid unknown-time state.
func parseInstant(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// syntheticID derives a stable ID from the natural key when the
// upstream record has none.
func syntheticID(title string, ts *time.Time) string {
	h := fnv.New64a()
	h.Write([]byte(title))
	if ts != nil {
		h.Write([]byte(ts.UTC().Format(time.RFC3339)))
	}
	return fmt.Sprintf("%x", h.Sum64())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
