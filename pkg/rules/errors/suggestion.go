package errors

import (
	"fmt"
	"strings"
)

// maxSuggestDistance is the edit distance under which a name is offered as
// a correction.
const maxSuggestDistance = 5

// SuggestName offers the closest valid name to unknown, or a short list of
// valid names when nothing is close.
func SuggestName(unknown string, valid []string) string {
	if len(valid) == 0 {
		return ""
	}

	best, bestDist := "", -1
	for _, v := range valid {
		d := levenshtein(unknown, v)
		if bestDist < 0 || d < bestDist {
			best, bestDist = v, d
		}
	}
	if bestDist < maxSuggestDistance {
		return fmt.Sprintf("did you mean '%s'?", best)
	}

	if len(valid) > 5 {
		return fmt.Sprintf("valid values include: %s, ...", strings.Join(valid[:5], ", "))
	}
	return fmt.Sprintf("valid values: %s", strings.Join(valid, ", "))
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
