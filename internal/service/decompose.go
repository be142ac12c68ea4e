package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedDecomposition is returned by ParseStrict when the model output is
// not a newline-separated list of questions.
var ErrMalformedDecomposition = errors.New("malformed decomposition")

// DecompositionParser turns the raw model reply into sub-questions.
type DecompositionParser func(raw string) ([]string, error)

// ParseLenient splits raw on newlines and keeps every segment as-is,
// including empty ones and any commentary the model added.
func ParseLenient(raw string) ([]string, error) {
	return strings.Split(raw, "\n"), nil
}

var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)

// ParseStrict accepts only lines that read as questions. Blank lines are
// skipped and list markers are removed; any other line fails the parse.
func ParseStrict(raw string) ([]string, error) {
	var out []string
	for n, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if !strings.HasSuffix(line, "?") {
			return nil, fmt.Errorf("%w: line %d is not a question: %q", ErrMalformedDecomposition, n+1, line)
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no questions in model output", ErrMalformedDecomposition)
	}
	return out, nil
}
