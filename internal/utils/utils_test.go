package utils

import (
	"testing"
)

func TestGetInt(t *testing.T) {
	testCases := []struct {
		name      string
		payload   map[string]any
		want      int
		expectErr bool
	}{
		{"json number", map[string]any{"n": float64(4)}, 4, false},
		{"int", map[string]any{"n": 7}, 7, false},
		{"numeric string", map[string]any{"n": " 12 "}, 12, false},
		{"bad string", map[string]any{"n": "twelve"}, 0, true},
		{"missing", map[string]any{}, 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetInt(tc.payload, "n")
			if tc.expectErr && err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !tc.expectErr && got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestGetStringSlice(t *testing.T) {
	testCases := []struct {
		name  string
		value any
		want  int
	}{
		{"typed", []string{"go", "rust"}, 2},
		{"decoded json", []any{"go", " ", "rust", 3}, 2},
		{"comma separated", "go, rust ,", 2},
		{"wrong type", 42, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := GetStringSlice(map[string]any{"k": tc.value}, "k")
			if len(got) != tc.want {
				t.Errorf("got %v, want %d items", got, tc.want)
			}
		})
	}
}

func TestOptHelpers(t *testing.T) {
	m := map[string]any{"s": "x", "empty": " ", "b": "true"}
	if OptString(m, "s", "d") != "x" || OptString(m, "empty", "d") != "d" {
		t.Error("OptString did not fall back on blank values")
	}
	if !OptBool(m, "b", false) || OptBool(m, "missing", false) {
		t.Error("OptBool mismatch")
	}
	if OptInt(m, "missing", 9) != 9 {
		t.Error("OptInt default not used")
	}
}

func TestIsSensitiveQuestion(t *testing.T) {
	if !IsSensitiveQuestion("What are your Salary expectations?") {
		t.Error("salary question should be sensitive")
	}
	if IsSensitiveQuestion("Link to your GitHub profile") {
		t.Error("github question should not be sensitive")
	}
}
