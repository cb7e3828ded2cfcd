/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"strings"
	"unicode"
)

// Normalize lowercases s and drops whitespace, apostrophes, hyphens and
// periods. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
		case r == '\'', r == '’', r == '‘', r == '-', r == '.':
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}

	return b.String()
}

// Distance is the Levenshtein edit distance between a and b, counted in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	// dp[i][j] is the distance between ra[:i] and rb[:j].
	dp := make([][]int, len(ra)+1)
	for i := range dp {
		dp[i] = make([]int, len(rb)+1)
		dp[i][0] = i
	}
	for j := range dp[0] {
		dp[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			dp[i][j] = min(
				dp[i-1][j]+1,
				dp[i][j-1]+1,
				dp[i-1][j-1]+cost,
			)
		}
	}

	return dp[len(ra)][len(rb)]
}
