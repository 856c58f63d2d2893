package insight

import "github.com/blueinsight/blueinsight/internal/answer"

var followUps = map[answer.Category][]string{
	answer.CategoryGeographic: {
		"How do zones compare by total gallons collected?",
		"Which areas have the fewest service providers?",
	},
	answer.CategoryVolume: {
		"What is the average gallons collected per visit?",
		"Which business category contributes the most volume?",
	},
	answer.CategoryTrend: {
		"Which week had the highest collection volume?",
		"How does weekday volume compare to weekends?",
	},
	answer.CategoryProvider: {
		"Which vehicles handle the most collections?",
		"How many areas does each provider cover?",
	},
	answer.CategoryBusiness: {
		"Which category has the highest average volume per collection?",
		"How many outlets exist per category?",
	},
	answer.CategoryOperational: {
		"Which entities are most overdue for a collection?",
		"What is the average initiation-to-collection time?",
	},
}

var defaultSuggestions = []string{
	"What are the top 5 areas by collection volume?",
	"Show the monthly trend of gallons collected.",
	"How is volume split across business categories?",
}

// SuggestFollowUps derives contextual follow-up questions from the most
// recent bundles in a session, newest first, without repeating categories.
func SuggestFollowUps(history []answer.Bundle, limit int) []string {
	if limit <= 0 {
		limit = 3
	}
	suggestions := make([]string, 0, limit)
	seen := map[answer.Category]bool{}

	for i := len(history) - 1; i >= 0 && len(suggestions) < limit; i-- {
		category := history[i].Metadata.InferredQueryCategory
		if seen[category] {
			continue
		}
		seen[category] = true
		for _, suggestion := range followUps[category] {
			if len(suggestions) == limit {
				break
			}
			suggestions = append(suggestions, suggestion)
		}
	}
	for _, suggestion := range defaultSuggestions {
		if len(suggestions) == limit {
			break
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions
}
