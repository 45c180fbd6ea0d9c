package util

import (
	"fmt"
	"unicode/utf8"
)

// MaxLogBodySize is the default number of body bytes kept in the call log.
const MaxLogBodySize = 10 * 1024

// LogBody renders a request or response body for the call log. Bodies
// longer than maxSize are cut on a rune boundary and marked with their full
// size; binary bodies are replaced by a size marker. maxSize <= 0 selects
// MaxLogBodySize.
func LogBody(data []byte, maxSize int) string {
	if maxSize <= 0 {
		maxSize = MaxLogBodySize
	}
	if !utf8.Valid(data) {
		return fmt.Sprintf("(binary, %d bytes)", len(data))
	}
	if len(data) <= maxSize {
		return string(data)
	}
	cut := maxSize
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return fmt.Sprintf("%s...(truncated, %d bytes)", data[:cut], len(data))
}
