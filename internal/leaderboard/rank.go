// Package leaderboard ranks quiz results of a group.
package leaderboard

import (
	"slices"

	"github.com/victornm/quotient/internal/domain"
)

// Rank returns the results of groupID ordered by score descending, then by
// creation time ascending. Ties on both keep the input order. Results of other
// groups are dropped and the input is not modified.
func Rank(groupID string, results []domain.QuizResult) []domain.QuizResult {
	ranked := make([]domain.QuizResult, 0, len(results))
	for _, r := range results {
		if r.GroupID == groupID {
			ranked = append(ranked, r)
		}
	}

	slices.SortStableFunc(ranked, func(a, b domain.QuizResult) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return a.CreateTime.Compare(b.CreateTime)
	})

	return ranked
}
