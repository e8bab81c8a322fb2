package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CleanJSON strips markdown fences and any prose around the first JSON
// object or array in a model reply.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// DecodeLLMJSON decodes a model reply into out. When required keys are given
// the reply must be an object holding each of them.
func DecodeLLMJSON(raw string, out any, required ...string) error {
	clean := CleanJSON(raw)
	if len(required) > 0 {
		var present map[string]json.RawMessage
		if err := json.Unmarshal([]byte(clean), &present); err != nil {
			return fmt.Errorf("error parsing generated JSON: %v\nRaw Response: %s", err, raw)
		}
		var missing []string
		for _, k := range required {
			if _, ok := present[k]; !ok {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("generated JSON is missing keys: %s", strings.Join(missing, ", "))
		}
	}
	if err := json.Unmarshal([]byte(clean), out); err != nil {
		return fmt.Errorf("error parsing generated JSON: %v\nRaw Response: %s", err, raw)
	}
	return nil
}
