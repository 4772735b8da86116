package grading

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// NormalizeAnswers turns a stored correct-answer value into the ordered list of
// accepted answers. Accepted inputs are nil, a string, []string, []any (decoded
// JSON) and raw JSON bytes. It never fails: anything it cannot decode is kept as
// literal text, and nothing usable yields an empty slice.
//
// Legacy rows carry arrays that were JSON-encoded twice (e.g. ["[\"8\"]"]), so
// an element that itself looks like a JSON array is decoded once more.
func NormalizeAnswers(stored any) []string {
	var out []string
	switch v := stored.(type) {
	case nil:
		return []string{}
	case string:
		out = fromString(v)
	case []string:
		for _, s := range v {
			out = append(out, fromElement(s)...)
		}
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, fromElement(s)...)
				continue
			}
			if s, ok := coerce(e); ok {
				out = append(out, s)
			}
		}
	case json.RawMessage:
		return ParseAnswerColumn(v)
	case []byte:
		return ParseAnswerColumn(v)
	default:
		if s, ok := coerce(v); ok {
			out = append(out, s)
		}
	}
	return dropBlank(out)
}

// ParseAnswerColumn decodes a JSON column holding correct answers. JSON null or
// an empty column is an empty set; bytes that are not JSON are one literal answer.
func ParseAnswerColumn(raw []byte) []string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []string{}
	}
	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return dropBlank([]string{string(raw)})
	}
	return NormalizeAnswers(decoded)
}

// fromString handles a top-level string: a JSON array, a JSON scalar, or plain text.
func fromString(s string) []string {
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return []string{s}
	}
	switch d := decoded.(type) {
	case []any:
		var out []string
		for _, e := range d {
			str, ok := coerce(e)
			if !ok {
				continue
			}
			if looksLikeArray(str) {
				out = append(out, spliceArray(str)...)
				continue
			}
			out = append(out, str)
		}
		return out
	case nil:
		return nil
	default:
		if str, ok := coerce(d); ok {
			return []string{str}
		}
		return []string{s}
	}
}

// fromElement handles one string element of an array value.
func fromElement(s string) []string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "[") && !strings.HasPrefix(t, `"`) {
		return []string{s}
	}
	var decoded any
	if err := json.Unmarshal([]byte(t), &decoded); err != nil {
		return []string{s}
	}
	switch d := decoded.(type) {
	case []any:
		out := make([]string, 0, len(d))
		for _, e := range d {
			if str, ok := coerce(e); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		if str, ok := coerce(d); ok {
			return []string{str}
		}
		return []string{s}
	}
}

func spliceArray(s string) []string {
	var arr []any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &arr); err != nil {
		return []string{s}
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if str, ok := coerce(e); ok {
			out = append(out, str)
		}
	}
	return out
}

func looksLikeArray(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "[")
}

// coerce renders a decoded JSON scalar as text. Nulls and containers are dropped.
func coerce(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	case []any:
		// nested arrays past the second level are kept as their JSON text
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return "", false
	}
}

func dropBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
