package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around", "Here you go:\n{\"a\":{\"b\":2}}\nHope it helps", `{"a":{"b":2}}`},
		{"not json", "no braces here", "no braces here"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanJSON(tc.raw))
		})
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	var out struct {
		Skills []string `json:"skills"`
		Level  string   `json:"level"`
	}
	require.NoError(t, DecodeLLMJSON("```json\n{\"skills\":[\"go\"],\"level\":\"senior\"}\n```", &out, "skills"))
	assert.Equal(t, []string{"go"}, out.Skills)
	assert.Equal(t, "senior", out.Level)

	err := DecodeLLMJSON(`{"level":"x"}`, &out, "skills", "years")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skills, years")

	assert.Error(t, DecodeLLMJSON("not json", &out))
	assert.NoError(t, DecodeLLMJSON("{}", &out))
}
