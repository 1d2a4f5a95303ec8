package scenario

import "strings"

// keywordGroups is checked top to bottom; the first group with any keyword
// contained in the input wins.
var keywordGroups = []struct {
	category Category
	keywords []string
}{
	{Traffic, []string{"traffic", "accident"}},
	{Merchant, []string{"merchant", "restaurant"}},
	{Dispute, []string{"dispute", "damage"}},
}

// Classification is the result of classifying a scenario description.
type Classification struct {
	Category Category `json:"category"`
	Keyword  string   `json:"keyword,omitempty"` // keyword that matched; empty on fallback
	Matched  bool     `json:"matched"`           // false when Category is the Delivery fallback
}

// Classify maps free text to a Category using case-insensitive substring
// matching. Text that matches no keyword group is classified as Delivery.
func Classify(text string) Category {
	return Explain(text).Category
}

// Explain classifies text and reports which keyword decided it.
func Explain(text string) Classification {
	lower := strings.ToLower(text)
	for _, g := range keywordGroups {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				return Classification{Category: g.category, Keyword: kw, Matched: true}
			}
		}
	}
	return Classification{Category: Delivery}
}

// Keywords returns the keywords that select c. Delivery has none.
func Keywords(c Category) []string {
	for _, g := range keywordGroups {
		if g.category == c {
			out := make([]string, len(g.keywords))
			copy(out, g.keywords)
			return out
		}
	}
	return nil
}
