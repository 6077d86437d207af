package ocr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseError tags a model reply that no JSON could be recovered from. The
// raw text is kept for logging so a human can see what came back.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	snippet := e.Raw
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	return fmt.Sprintf("no valid JSON in model response: %s", snippet)
}

// IsParseError reports whether err is a tagged response-parse failure, as
// opposed to a transport or service error.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ParseFlatResponse salvages a flat-field reply into a field name to value
// map. Markdown code fences are stripped, keys are matched exactly first
// and case-insensitively second, and any requested name still absent maps
// to nil rather than failing.
func ParseFlatResponse(raw string, fieldNames []string) (map[string]any, error) {
	decoded, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, &ParseError{Raw: raw}
	}
	return matchKeys(obj, fieldNames), nil
}

// ParseTableResponse salvages a table reply into an ordered row slice. A
// bare top-level array is accepted as the rows list; an object is expected
// to carry a "rows" key. Each row's keys are matched against the column
// names the same way ParseFlatResponse matches field names.
func ParseTableResponse(raw string, columnNames []string) ([]map[string]any, error) {
	decoded, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}

	var rawRows []any
	switch v := decoded.(type) {
	case []any:
		rawRows = v
	case map[string]any:
		rowsValue, ok := lookupKey(v, "rows")
		if !ok {
			return nil, &ParseError{Raw: raw}
		}
		rawRows, ok = rowsValue.([]any)
		if !ok {
			return nil, &ParseError{Raw: raw}
		}
	default:
		return nil, &ParseError{Raw: raw}
	}

	rows := make([]map[string]any, 0, len(rawRows))
	for _, rawRow := range rawRows {
		obj, ok := rawRow.(map[string]any)
		if !ok {
			// Non-object rows carry nothing addressable by column name.
			continue
		}
		rows = append(rows, matchKeys(obj, columnNames))
	}
	return rows, nil
}

// decodeJSON strips code fences and decodes whatever JSON document remains.
func decodeJSON(raw string) (any, error) {
	cleaned := StripCodeFences(raw)
	if cleaned == "" {
		return nil, &ParseError{Raw: raw}
	}

	var decoded any
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, &ParseError{Raw: raw}
	}
	return decoded, nil
}

// StripCodeFences removes a surrounding markdown code fence, with or
// without a language tag, and trims whitespace.
func StripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```")
	if newline := strings.IndexByte(cleaned, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(cleaned[:newline])
		// A language tag like "json" sits alone on the opening fence line.
		if firstLine == "" || !strings.ContainsAny(firstLine, "{}[]\"") {
			cleaned = cleaned[newline+1:]
		}
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// matchKeys maps each requested name to its value in obj, matching exactly
// first and case-insensitively as a fallback. Names with no match resolve
// to nil.
func matchKeys(obj map[string]any, names []string) map[string]any {
	result := make(map[string]any, len(names))
	for _, name := range names {
		if value, ok := lookupKey(obj, name); ok {
			result[name] = value
		} else {
			result[name] = nil
		}
	}
	return result
}

func lookupKey(obj map[string]any, name string) (any, bool) {
	if value, ok := obj[name]; ok {
		return value, true
	}
	for key, value := range obj {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}
