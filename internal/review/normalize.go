package review

import (
	"encoding/json"
	"fmt"
	"strings"
)

const fence = "```"

// Parsed is the successful outcome of Normalize. Value is a map[string]any
// or []any; it has not been checked against any schema yet.
type Parsed struct {
	Value any
	// Unwrapped is set when the text was a JSON string holding JSON
	Unwrapped bool
	// Extracted is set when the object was cut out of surrounding prose
	Extracted bool
}

// Object returns the value as a JSON object, if it is one
func (p Parsed) Object() (map[string]any, bool) {
	m, ok := p.Value.(map[string]any)
	return m, ok
}

// Normalize turns raw model output into a parsed JSON object or array.
// It strips markdown fences, parses directly (unwrapping one level of
// double encoding), and falls back to extracting the first balanced
// top-level object from surrounding prose.
func Normalize(raw string) (Parsed, error) {
	if strings.TrimSpace(raw) == "" {
		return Parsed{}, &UnparsableResponseError{Raw: raw, Reason: "empty text"}
	}

	cleaned := stripFences(raw)

	if v, unwrapped, err := parseDirect(cleaned); err == nil {
		return Parsed{Value: v, Unwrapped: unwrapped}, nil
	}

	obj, ok := scanObject(cleaned)
	if !ok {
		return Parsed{}, &UnparsableResponseError{Raw: raw, Reason: "no balanced JSON object found"}
	}

	v, unwrapped, err := parseDirect(obj)
	if err != nil {
		return Parsed{}, &UnparsableResponseError{Raw: raw, Reason: fmt.Sprintf("extracted object is not valid JSON: %v", err)}
	}
	return Parsed{Value: v, Unwrapped: unwrapped, Extracted: true}, nil
}

// stripFences removes a leading ``` (plus language tag) and a trailing ```.
// Either fence alone is enough, since truncated output often loses the
// closing one.
func stripFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, fence) {
		text = text[len(fence):]
		end := strings.IndexAny(text, " \t\r\n")
		if end == -1 {
			end = len(text)
		}
		if isLanguageTag(text[:end]) {
			text = text[end:]
		}
	}

	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, fence)
	return strings.TrimSpace(text)
}

func isLanguageTag(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '+':
		default:
			return false
		}
	}
	return true
}

// parseDirect parses text as a JSON object or array. A JSON string is
// parsed once more; a second level of encoding is rejected.
func parseDirect(text string) (any, bool, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false, err
	}

	if s, ok := v.(string); ok {
		var inner any
		if err := json.Unmarshal([]byte(stripFences(s)), &inner); err != nil {
			return nil, false, fmt.Errorf("string value does not hold JSON: %w", err)
		}
		if !isStructured(inner) {
			return nil, false, fmt.Errorf("unwrapped value is %T, want object or array", inner)
		}
		return inner, true, nil
	}

	if !isStructured(v) {
		return nil, false, fmt.Errorf("value is %T, want object or array", v)
	}
	return v, false, nil
}

func isStructured(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// scanObject returns the first balanced {...} region of text. Braces inside
// string literals do not count, and backslash escapes are honored so that
// an escaped quote does not end the string.
func scanObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
