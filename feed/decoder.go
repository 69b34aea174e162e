// Package feed provides RSS/Atom feed decoding for statuswatch.
package feed

import (
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/statuswatch/statuswatch/model"
)

// RawFeedItem is one feed entry before normalization. Title and
// Description still carry markup; sanitization happens downstream.
type RawFeedItem struct {
	GUID        string
	Title       string
	Link        string
	Description string
	// EventType carries a feed-specific extension field (e.g.
	// <aws:eventType>) when the source publishes one.
	EventType string
	Published *time.Time
}

// Decoder parses RSS 2.0 and Atom XML into raw feed items.
type Decoder struct {
	parser *gofeed.Parser
}

// NewDecoder creates a new Decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		parser: gofeed.NewParser(),
	}
}

// Decode parses raw feed text and returns at most maxItems entries in
// feed order (sources publish newest first; order is preserved, never
// resorted). Malformed XML yields a DecodeError rather than a silent
// empty result. Pass maxItems <= 0 for no limit.
func (d *Decoder) Decode(raw string, maxItems int) ([]RawFeedItem, error) {
	if raw == "" {
		return nil, &model.DecodeError{Err: fmt.Errorf("feed content is empty")}
	}

	parsed, err := d.parser.ParseString(raw)
	if err != nil {
		return nil, &model.DecodeError{Err: err}
	}

	items := make([]RawFeedItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if maxItems > 0 && len(items) >= maxItems {
			break
		}
		items = append(items, convertItem(item))
	}

	return items, nil
}

// convertItem maps a gofeed.Item to a RawFeedItem.
func convertItem(item *gofeed.Item) RawFeedItem {
	out := RawFeedItem{
		GUID:  item.GUID,
		Title: item.Title,
		Link:  item.Link,
	}

	// Use link as GUID if GUID is missing
	if out.GUID == "" {
		out.GUID = item.Link
	}

	// Prefer full content over the summary/description
	if item.Content != "" {
		out.Description = item.Content
	} else {
		out.Description = item.Description
	}

	// pubDate for RSS, published/updated for Atom
	if item.PublishedParsed != nil {
		out.Published = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		out.Published = item.UpdatedParsed
	}

	out.EventType = extensionValue(item, "eventType")

	return out
}

// extensionValue pulls the first value of a named extension element
// from any namespace on the item.
func extensionValue(item *gofeed.Item, name string) string {
	for _, ns := range item.Extensions {
		for _, exts := range ns {
			for _, ext := range exts {
				if ext.Name == name && ext.Value != "" {
					return ext.Value
				}
			}
		}
	}
	if v, ok := item.Custom[name]; ok {
		return v
	}
	return ""
}
