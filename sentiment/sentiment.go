// Package sentiment classifies free text as Positive or Negative, either
// locally or through a remote /analyze endpoint.
package sentiment

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Label is a sentiment class.
type Label string

const (
	Positive Label = "Positive"
	Negative Label = "Negative"
)

// ParseLabel accepts the labels an /analyze endpoint may return.
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return Positive, nil
	case "negative":
		return Negative, nil
	default:
		return "", fmt.Errorf("unexpected sentiment %q", s)
	}
}

// Result is the body of an /analyze response.
type Result struct {
	Sentiment Label  `json:"sentiment"`
	InputText string `json:"input_text,omitempty"`
}

// Analyzer classifies text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, error)
}

// MinTextLength is the minimum number of non-whitespace characters.
const MinTextLength = 3

// ValidateText trims text and checks it is long enough to send.
func ValidateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyText
	}
	n := 0
	for _, r := range trimmed {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	if n < MinTextLength {
		return "", ErrTextTooShort
	}
	return trimmed, nil
}

const previewLength = 100

// Preview shortens text for display.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLength]) + "..."
}
