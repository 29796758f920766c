package verifier

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeLoose unmarshals a JSON object out of model output that may be
// wrapped in markdown fences or surrounded by prose. Strategies are tried
// in order: fenced code block, outermost brace span, raw text. The first
// successful unmarshal wins.
func decodeLoose(raw string, v interface{}) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty response body")
	}

	var lastErr error
	for _, candidate := range []string{extractFenced(raw), extractBraceSpan(raw), raw} {
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("no decodable JSON object found: %w", lastErr)
}

// extractFenced pulls the body of the first ``` fenced block, tolerating a
// language tag such as ```json.
func extractFenced(raw string) string {
	start := strings.Index(raw, "```")
	if start == -1 {
		return ""
	}
	body := raw[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(body[:nl])
		// A language tag has no JSON punctuation; a one-line fence body does.
		if !strings.ContainsAny(firstLine, "{}") {
			body = body[nl+1:]
		}
	}
	end := strings.Index(body, "```")
	if end == -1 {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(body[:end])
}

// extractBraceSpan returns the substring from the first '{' to the last '}'.
func extractBraceSpan(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
