// Package fetch pulls RSS and Atom feeds and normalizes their entries into
// item drafts for ingestion.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

const (
	// maxSummaryLen bounds the normalized summary length in runes.
	maxSummaryLen = 300
	// defaultMaxAge drops entries older than a week at the source.
	defaultMaxAge = 7 * 24 * time.Hour
)

// Fetcher downloads and parses one feed at a time.
type Fetcher struct {
	parser *gofeed.Parser
	maxAge time.Duration
}

// NewFetcher creates a feed fetcher with the default entry age cutoff.
func NewFetcher() *Fetcher {
	return &Fetcher{parser: gofeed.NewParser(), maxAge: defaultMaxAge}
}

// Fetch downloads the feed and returns its entries as drafts. Identity and
// category assignment happen downstream.
func (f *Fetcher) Fetch(ctx context.Context, feed domain.Feed) ([]domain.Draft, error) {
	parsed, err := f.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", feed.Source, err)
	}
	return f.drafts(parsed), nil
}

func (f *Fetcher) drafts(parsed *gofeed.Feed) []domain.Draft {
	now := time.Now()
	oldest := now.Add(-f.maxAge)

	drafts := make([]domain.Draft, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry.Link == "" || entry.Title == "" {
			continue
		}

		published := now
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}
		if published.Before(oldest) {
			continue
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}

		drafts = append(drafts, domain.Draft{
			URL:         entry.Link,
			Title:       strings.TrimSpace(entry.Title),
			Summary:     truncate(stripHTML(summary), maxSummaryLen),
			ImageURL:    entryImage(entry),
			PublishedAt: published,
		})
	}
	return drafts
}

// entryImage picks the entry's illustration: the feed-level image element
// first, then the first image enclosure.
func entryImage(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// stripHTML drops tags and collapses whitespace.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
