package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// recordKeys are the wrapper keys accepted when a provider can only return a
// JSON object (OpenAI JSON mode) instead of a bare array.
var recordKeys = []string{"records", "patents", "results", "items"}

func decodeRecords(raw string) ([]any, error) {
	clean := stripCodeFences(raw)
	if clean == "" {
		return []any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch x := v.(type) {
	case []any:
		return x, nil
	case map[string]any:
		for _, k := range recordKeys {
			if arr, ok := x[k].([]any); ok {
				return arr, nil
			}
		}
		var only []any
		found := 0
		for _, val := range x {
			if arr, ok := val.([]any); ok {
				only = arr
				found++
			}
		}
		if found == 1 {
			return only, nil
		}
		return nil, fmt.Errorf("response object has no record array")
	default:
		return nil, fmt.Errorf("response is %T, want array", v)
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}
