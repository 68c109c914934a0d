// Package expressions provides variable interpolation for message content and
// the pluggable evaluators (expr, CEL, jq, JavaScript) used by condition and
// code nodes.
package expressions

import (
	"fmt"
	"strings"
)

// Substitute replaces {{identifier}} placeholders in text with the bound
// variable value. Unresolved placeholders stay in the output as literal text:
// a half-configured flow must still preview, never error.
func Substitute(text string, vars map[string]any) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	var result strings.Builder
	result.Grow(len(text))

	i := 0
	for i < len(text) {
		idx := strings.Index(text[i:], "{{")
		if idx == -1 {
			result.WriteString(text[i:])
			break
		}

		result.WriteString(text[i : i+idx])
		start := i + idx + 2

		end := strings.Index(text[start:], "}}")
		if end == -1 {
			// Unclosed marker: keep the rest verbatim.
			result.WriteString(text[i+idx:])
			break
		}
		end += start

		name := strings.TrimSpace(text[start:end])
		if val, ok := vars[name]; ok && name != "" {
			result.WriteString(stringify(val))
		} else {
			result.WriteString(text[i+idx : end+2])
		}

		i = end + 2
	}

	return result.String()
}

// HasPlaceholders reports whether text contains any {{...}} references.
func HasPlaceholders(text string) bool {
	return strings.Contains(text, "{{")
}

// stringify renders a variable value the way it should read in chat output.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		// Trim the ".0" that fmt would keep on integral floats.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
