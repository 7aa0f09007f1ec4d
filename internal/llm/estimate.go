package llm

import (
	"math"
	"unicode/utf8"
)

// charsPerToken is the fixed ratio used when the external counting
// capability is unavailable: 4 characters ≈ 1 token.
const charsPerToken = 4

// EstimateTokens estimates the token count of text from its character
// length. It is the deterministic local fallback for CountTokens and
// must never fail.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	chars := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(chars) / charsPerToken))
}
