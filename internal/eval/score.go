package eval

import (
	"regexp"
	"strconv"
	"strings"
)

var scoreRe = regexp.MustCompile(`-?\d+`)

// parseScore extracts the first integer from a scoring model's reply
// and clamps it into [0, maxScore]. An unparseable reply scores 0.
// The second return reports whether clamping changed the value.
func parseScore(text string, maxScore int) (int, bool) {
	match := scoreRe.FindString(text)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	if n < 0 {
		return 0, true
	}
	if n > maxScore {
		return maxScore, true
	}
	return n, false
}

// rationale is the scoring reply with the leading score stripped, kept
// as the row's justification text.
func rationale(text string) string {
	loc := scoreRe.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text)
	}
	rest := text[loc[1]:]
	rest = strings.TrimLeft(rest, " \t.:,-/")
	return strings.TrimSpace(rest)
}
