package normalize

import "strings"

// CategoryKeywords pairs a category label with the merchant keywords that imply it
type CategoryKeywords struct {
	Category string   `mapstructure:"category" json:"category"`
	Keywords []string `mapstructure:"keywords" json:"keywords"`
}

// DefaultCategories returns the built-in keyword table in priority order
func DefaultCategories() []CategoryKeywords {
	return []CategoryKeywords{
		{Category: "meals", Keywords: []string{"restaurant", "mcdonald", "burger", "grill", "cafe", "food"}},
		{Category: "lodging", Keywords: []string{"hotel", "inn", "motel", "marriott", "hilton", "airbnb"}},
		{Category: "transport", Keywords: []string{"uber", "lyft", "taxi", "metro", "bus", "train", "delta", "united"}},
	}
}

// Classifier guesses an expense category from a merchant name.
// Earlier entries win when a merchant matches several categories.
type Classifier struct {
	categories []CategoryKeywords
}

// NewClassifier creates a classifier over an ordered keyword table
func NewClassifier(categories []CategoryKeywords) *Classifier {
	table := make([]CategoryKeywords, 0, len(categories))
	for _, c := range categories {
		keywords := make([]string, 0, len(c.Keywords))
		for _, k := range c.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		table = append(table, CategoryKeywords{Category: c.Category, Keywords: keywords})
	}
	return &Classifier{categories: table}
}

// Guess returns the first category with a keyword contained in merchant, or nil
func (c *Classifier) Guess(merchant string) *string {
	lower := strings.ToLower(merchant)
	for _, entry := range c.categories {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lower, keyword) {
				category := entry.Category
				return &category
			}
		}
	}
	return nil
}
