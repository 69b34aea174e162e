package provider

import (
	"github.com/statuswatch/statuswatch/classify"
	"github.com/statuswatch/statuswatch/feed"
	"github.com/statuswatch/statuswatch/model"
	"github.com/statuswatch/statuswatch/sanitize"
)

// feedNormalizer handles both built-in feed-style providers and
// user-registered custom feeds; the two differ only in where their
// identity and display metadata come from.
type feedNormalizer struct {
	provider Provider
	decoder  *feed.Decoder
	opts     Options
}

func newFeedNormalizer(p Provider, opts Options) *feedNormalizer {
	return &feedNormalizer{
		provider: p,
		decoder:  feed.NewDecoder(),
		opts:     opts,
	}
}

// Normalize decodes RSS/Atom text and reduces each entry to a
// normalized record. Feed order is preserved; severity and category
// come from keyword classification of the sanitized text.
func (n *feedNormalizer) Normalize(raw []byte) ([]model.NormalizedUpdate, error) {
	maxItems := n.opts.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	items, err := n.decoder.Decode(string(raw), maxItems)
	if err != nil {
		if de, ok := err.(*model.DecodeError); ok {
			de.Provider = n.provider.Key
			return nil, de
		}
		return nil, &model.DecodeError{Provider: n.provider.Key, Err: err}
	}

	out := make([]model.NormalizedUpdate, 0, len(items))
	for _, item := range items {
		out = append(out, n.convert(item))
	}
	return out, nil
}

func (n *feedNormalizer) convert(item feed.RawFeedItem) model.NormalizedUpdate {
	title := sanitize.Text(item.Title, sanitize.Options{MaxLength: maxTitleLength})
	description := sanitize.Text(item.Description, sanitize.Options{MaxLength: n.opts.MaxDescription})

	// The extension event type participates in classification so a
	// feed that tags entries (e.g. <aws:eventType>) still classifies
	// when the prose is vague.
	severity, category := classify.Classify(title, description+" "+item.EventType)

	u := model.NormalizedUpdate{
		ID:          item.GUID,
		Provider:    n.provider.Key,
		Title:       title,
		Description: description,
		Timestamp:   item.Published,
		Severity:    severity,
		Category:    category,
		SourceURL:   item.Link,
		Raw:         item,
	}

	if u.ID == "" {
		u.ID = syntheticID(title, item.Published)
	}

	return u
}
