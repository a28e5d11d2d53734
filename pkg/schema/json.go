package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the JSON payload out of a model response. Markdown fences are removed
// and, if prose surrounds the payload, the outermost object or array is kept.
func ExtractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if json.Valid([]byte(content)) {
		return content, nil
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(content, pair[0])
		end := strings.LastIndex(content, pair[1])
		if start >= 0 && end > start {
			candidate := content[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("no JSON payload in response")
}

// DecodeJSON extracts a JSON payload from content and unmarshals it into v.
func DecodeJSON(content string, v any) error {
	payload, err := ExtractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// FlexInt accepts integers, floats and numeric strings; models are not consistent about it.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexInt(roundHalfUp(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number, got %s", string(data))
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	*f = FlexInt(roundHalfUp(n))
	return nil
}

func roundHalfUp(n float64) int {
	if n < 0 {
		return -int(-n + 0.5)
	}
	return int(n + 0.5)
}
