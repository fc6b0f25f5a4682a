package redis

import (
	"strconv"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

const (
	itemKeyPrefix  = "newsdex:item:"
	cacheKeyPrefix = "newsdex:cache:"
	idxAllKey      = "newsdex:idx:all"
	idxCatPrefix   = "newsdex:idx:cat:"
	idxPopKey      = "newsdex:idx:pop"
)

func itemKey(id string) string { return itemKeyPrefix + id }

func catIndexKey(c domain.Category) string { return idxCatPrefix + c.String() }

// indexKey picks the recency index for a category, the global one for the
// zero value.
func indexKey(c domain.Category) string {
	if c == "" {
		return idxAllKey
	}
	return catIndexKey(c)
}

func itemFields(item domain.Item) map[string]string {
	fields := map[string]string{
		"id":               item.ID,
		"category":         item.Category.String(),
		"title":            item.Title,
		"url":              item.URL,
		"source":           item.Source,
		"published_at":     item.PublishedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		"fetched_at":       item.FetchedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		"view_count":       strconv.FormatInt(item.ViewCount, 10),
		"click_count":      strconv.FormatInt(item.ClickCount, 10),
		"popularity_score": strconv.FormatFloat(item.PopularityScore, 'f', -1, 64),
	}
	if item.Description != "" {
		fields["description"] = item.Description
	}
	if item.ImageURL != "" {
		fields["image_url"] = item.ImageURL
	}
	return fields
}

func parseItem(fields map[string]string) domain.Item {
	cat, err := domain.ParseCategory(fields["category"])
	if err != nil {
		cat = domain.CategoryGeneral
	}
	item := domain.Item{
		ID:          fields["id"],
		Category:    cat,
		Title:       fields["title"],
		URL:         fields["url"],
		Description: fields["description"],
		ImageURL:    fields["image_url"],
		Source:      fields["source"],
	}
	item.PublishedAt, _ = time.Parse(time.RFC3339, fields["published_at"])
	item.FetchedAt, _ = time.Parse(time.RFC3339, fields["fetched_at"])
	item.ViewCount, _ = strconv.ParseInt(fields["view_count"], 10, 64)
	item.ClickCount, _ = strconv.ParseInt(fields["click_count"], 10, 64)
	item.PopularityScore, _ = strconv.ParseFloat(fields["popularity_score"], 64)
	return item
}

func unixSecond(t time.Time) float64 { return float64(t.UTC().Truncate(time.Second).Unix()) }

func unixSecondArg(t time.Time) string {
	return strconv.FormatInt(t.UTC().Truncate(time.Second).Unix(), 10)
}
