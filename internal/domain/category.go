package domain

import "strings"

// Category is the closed set of item categories.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryTech          Category = "tech"
	CategoryBusiness      Category = "business"
	CategoryEntertainment Category = "entertainment"
	CategorySports        Category = "sports"
	CategoryScience       Category = "science"
	CategoryPodcast       Category = "podcast"
)

// AllCategories returns every known category in display order.
func AllCategories() []Category {
	return []Category{
		CategoryGeneral,
		CategoryTech,
		CategoryBusiness,
		CategoryEntertainment,
		CategorySports,
		CategoryScience,
		CategoryPodcast,
	}
}

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(s))
	switch c {
	case CategoryGeneral, CategoryTech, CategoryBusiness, CategoryEntertainment,
		CategorySports, CategoryScience, CategoryPodcast:
		return c, nil
	}
	return "", ErrInvalidCategory
}

func (c Category) String() string { return string(c) }

// CategoryInfo carries display labels for the categories endpoint.
type CategoryInfo struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	LabelJa string `json:"label_ja"`
}

// CategoryLabels returns the category list with English and Japanese labels.
func CategoryLabels() []CategoryInfo {
	return []CategoryInfo{
		{ID: "general", Label: "General", LabelJa: "総合"},
		{ID: "tech", Label: "Technology", LabelJa: "テクノロジー"},
		{ID: "business", Label: "Business", LabelJa: "ビジネス"},
		{ID: "entertainment", Label: "Entertainment", LabelJa: "エンタメ"},
		{ID: "sports", Label: "Sports", LabelJa: "スポーツ"},
		{ID: "science", Label: "Science", LabelJa: "サイエンス"},
		{ID: "podcast", Label: "Podcast", LabelJa: "ポッドキャスト"},
	}
}
