package search

import (
	"slices"
	"strings"
)

// sortByScore sorts the results by score in descending order, breaking
// ties by ascending document ID.
func sortByScore(results []Result) {
	slices.SortFunc(results, func(a, b Result) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.DocID, b.DocID)
	})
}

// truncate keeps the first limit results; limit <= 0 keeps all.
func truncate(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
