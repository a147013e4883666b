// Package payload finds tool-call and final-answer JSON objects inside free-form model replies.
package payload

import (
	"encoding/json"
)

// ExtractObjects scans text for balanced top-level {...} spans, honoring JSON string
// literals and backslash escapes, and returns every span that decodes as a JSON object.
// Objects are returned in the order their closing braces appear. Spans that fail to
// decode are dropped without affecting the rest of the scan.
func ExtractObjects(text string) []map[string]any {
	var objects []map[string]any

	depth := 0
	start := -1
	inString := false
	escape := false

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				if obj, ok := decodeObject(text[start : i+1]); ok {
					objects = append(objects, obj)
				}
				start = -1
			}
		}
	}

	return objects
}

func decodeObject(candidate string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}
