package classification

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"sorter_server/core/port/out"
)

// classificationKeys mark a decoded object as the classification payload.
var classificationKeys = []string{"ranked", "category", "tags", "extras", "proposal"}

// nestedKeys are the envelope fields different backends wrap their
// payload in; the search descends through them in order.
var nestedKeys = []string{"message", "content", "response", "data", "delta", "value", "payload", "body"}

// maxSearchDepth bounds the recursive envelope search.
const maxSearchDepth = 6

// streamCollector accumulates a chat stream: textual deltas are
// concatenated, and the last fully structured chunk is kept because some
// backends only ever emit objects.
type streamCollector struct {
	text    strings.Builder
	payload map[string]any
}

func (c *streamCollector) collect(chunk out.ChatChunk) {
	if chunk.Text != "" {
		c.text.WriteString(chunk.Text)
	}
	if chunk.Payload != nil {
		c.payload = chunk.Payload
	}
}

// result extracts the classification object from whatever the stream
// produced, preferring the accumulated text over the last structured
// chunk. ok is false when neither source yields one.
func (c *streamCollector) result() (map[string]any, bool) {
	if text := strings.TrimSpace(c.text.String()); text != "" {
		if found, ok := searchValue(text, 0); ok {
			return found, true
		}
	}
	if c.payload != nil {
		if found, ok := searchValue(c.payload, 0); ok {
			return found, true
		}
	}
	return nil, false
}

// searchValue recursively looks for a map carrying any classification
// key, descending through known envelope keys and decoding embedded
// JSON strings along the way.
func searchValue(value any, depth int) (map[string]any, bool) {
	if depth > maxSearchDepth {
		return nil, false
	}
	switch v := value.(type) {
	case map[string]any:
		for _, key := range classificationKeys {
			if _, ok := v[key]; ok {
				return v, true
			}
		}
		for _, key := range nestedKeys {
			nested, ok := v[key]
			if !ok {
				continue
			}
			if found, ok := searchValue(nested, depth+1); ok {
				return found, true
			}
		}
	case []any:
		for _, item := range v {
			if found, ok := searchValue(item, depth+1); ok {
				return found, true
			}
		}
	case string:
		for _, candidate := range decodeCandidates(v) {
			var decoded any
			if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
				continue
			}
			if found, ok := searchValue(decoded, depth+1); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// decodeCandidates yields the decodings to attempt for a string payload:
// the raw string, the string with markdown code fences stripped, and the
// substring between the first and last brace.
func decodeCandidates(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	candidates := []string{s}
	if stripped := stripCodeFences(s); stripped != s && stripped != "" {
		candidates = append(candidates, stripped)
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		inner := s[start : end+1]
		if inner != s {
			candidates = append(candidates, inner)
		}
	}
	return candidates
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// Lenient accessors for the loosely typed payload.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// firstFloat returns the first present key that parses as a number.
func firstFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if f, ok := asFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// firstString returns the first present key with a non-empty string.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := asString(m[key]); s != "" {
			return s
		}
	}
	return ""
}
