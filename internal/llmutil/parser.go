// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Regex definitions use \x60 (hex representation) for backticks because Go raw strings cannot contain backticks.

	// leadingFenceRegex matches an opening markdown fence with an optional language tag (```go, ```c++, ```objective-c).
	leadingFenceRegex = regexp.MustCompile("^\x60\x60\x60[A-Za-z0-9_+#.-]*[ \\t]*(?:\\r?\\n|$)")
	// trailingFenceRegex matches a closing markdown fence at the very end of the content.
	trailingFenceRegex = regexp.MustCompile("(?:\\r?\\n)?\x60\x60\x60[ \\t]*$")
)

// MissingMarkerError reports a response that lacks one of the expected section markers.
type MissingMarkerError struct {
	Marker string
}

func (e *MissingMarkerError) Error() string {
	return fmt.Sprintf("LLM response is missing the %q section marker", e.Marker)
}

// ExtractSections splits an LLM response into the sections introduced by the
// given literal markers. Markers must appear in the order given; each section
// runs until the next marker (or the end of the response) and is trimmed of
// surrounding whitespace. The result is keyed by marker.
func ExtractSections(response string, markers ...string) (map[string]string, error) {
	sections := make(map[string]string, len(markers))
	rest := response
	for i, marker := range markers {
		idx := strings.Index(rest, marker)
		if idx == -1 {
			return nil, &MissingMarkerError{Marker: marker}
		}
		rest = rest[idx+len(marker):]

		end := len(rest)
		if i+1 < len(markers) {
			next := strings.Index(rest, markers[i+1])
			if next == -1 {
				return nil, &MissingMarkerError{Marker: markers[i+1]}
			}
			end = next
		}
		sections[marker] = strings.TrimSpace(rest[:end])
		rest = rest[end:]
	}
	return sections, nil
}

// CleanCodeOutput removes a leading markdown fence (```go, ```python, or a bare
// ```) and a trailing ``` from a code string, then trims surrounding whitespace.
// Content without fences is only trimmed.
func CleanCodeOutput(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = leadingFenceRegex.ReplaceAllString(content, "")
	}
	content = trailingFenceRegex.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

// Truncate shortens a string to at most maxLen bytes, marking the cut with "...".
// Intended for log excerpts, so rune boundaries are not respected.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
