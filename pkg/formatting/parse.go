// Package formatting provides helpers for turning model output into
// typed values.
package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when content cannot be parsed as JSON,
// either directly, from a markdown code fence, or from an embedded
// JSON object or array.
var ErrParseFailed = errors.New("failed to parse response")

var (
	jsonBlockRegex  = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")
	jsonObjectRegex = regexp.MustCompile(`(?s)(\{.*\})`)
	jsonArrayRegex  = regexp.MustCompile(`(?s)(\[.*\])`)
)

// Parse attempts to unmarshal content as JSON into T.
// Models frequently wrap structured output in prose or markdown fences, so
// direct parsing falls back to a fenced block, then to the widest embedded
// JSON object or array. Returns ErrParseFailed when every attempt fails.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result, nil
	}

	for _, re := range []*regexp.Regexp{jsonBlockRegex, jsonObjectRegex, jsonArrayRegex} {
		matches := re.FindStringSubmatch(content)
		if len(matches) < 2 {
			continue
		}
		cleaned := strings.TrimSpace(matches[1])
		if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
			return result, nil
		}
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, truncate(content, 256))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
