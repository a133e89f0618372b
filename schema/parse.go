package schema

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrEmptyOutput is returned when the model produced no text at all.
var ErrEmptyOutput = errors.New("empty output")

// ErrNoJSON is returned when no JSON object can be recovered from the output.
var ErrNoJSON = errors.New("no JSON object found in output")

// ExtractJSON recovers a JSON value from free-form model output.
// It tries, in order: the whole text, the body of a Markdown code fence,
// and the outermost {...} span.
func ExtractJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyOutput
	}

	candidates := []string{content}
	if fenced := stripCodeFence(content); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if span := objectSpan(content); span != "" {
		candidates = append(candidates, span)
	}

	for _, candidate := range candidates {
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, ErrNoJSON
}

// stripCodeFence returns the body of the first ``` fence, or "".
func stripCodeFence(content string) string {
	start := strings.Index(content, "```")
	if start < 0 {
		return ""
	}
	rest := content[start+3:]

	// Drop the info string (e.g. "json") on the opening line.
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return ""
	}
	rest = rest[nl+1:]

	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func objectSpan(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}
