package flow

import (
	"regexp"
	"strings"
)

// curlyPairPattern matches a curly-brace pair with anything in between,
// non-greedy. User text is stripped of these before storage so the prompt
// templates' own placeholder syntax can never be echoed back into a prompt.
var curlyPairPattern = regexp.MustCompile(`\{.*?\}`)

// IsGreeting reports whether the text is the dialogue-starting greeting.
func IsGreeting(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "hi")
}

// RemoveCurlyBracePairs strips every {...} pair from the input.
func RemoveCurlyBracePairs(text string) string {
	return curlyPairPattern.ReplaceAllString(text, "")
}
