package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Mission input and context values arrive either as Go values or decoded
// from JSON (numbers as float64, lists as []any). These getters accept both.

func GetString(m map[string]any, key string) (string, error) {
	value, ok := m[key]
	if !ok {
		return "", fmt.Errorf("missing required key: '%s'", key)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("key '%s' has an invalid type (expected string)", key)
	}
	return strValue, nil
}

// OptString returns the string at key, or def when absent or not a string.
func OptString(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return def
}

func GetInt(m map[string]any, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing required key: '%s'", key)
	}
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("key '%s' invalid int: %v", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("key '%s' has unsupported type %T", key, v)
	}
}

func OptInt(m map[string]any, key string, def int) int {
	if n, err := GetInt(m, key); err == nil {
		return n
	}
	return def
}

func OptBool(m map[string]any, key string, def bool) bool {
	switch t := m[key].(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	return def
}

// GetStringSlice accepts []string, []any of strings, or a comma-separated
// string.
func GetStringSlice(m map[string]any, key string) []string {
	switch t := m[key].(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

// GetMapSlice accepts []map[string]any or []any of maps.
func GetMapSlice(m map[string]any, key string) []map[string]any {
	switch t := m[key].(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, x := range t {
			if mm, ok := x.(map[string]any); ok {
				out = append(out, mm)
			}
		}
		return out
	}
	return nil
}
