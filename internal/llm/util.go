// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import "strings"

// StripWrappingQuotes removes at most one leading and one trailing quote
// character (" or '). Models often echo the quoted input back.
func StripWrappingQuotes(text string) string {
	if strings.HasPrefix(text, `"`) || strings.HasPrefix(text, `'`) {
		text = text[1:]
	}
	if strings.HasSuffix(text, `"`) || strings.HasSuffix(text, `'`) {
		text = text[:len(text)-1]
	}
	return text
}
