package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// parseInput builds launch input from a JSON object and key=value pairs.
// A value starting with @ is read from the named file, so a resume can be
// passed as resume_text=@resume.md. Pairs override JSON keys.
func parseInput(rawJSON string, pairs []string) (map[string]any, error) {
	input := map[string]any{}
	if strings.TrimSpace(rawJSON) != "" {
		if err := json.Unmarshal([]byte(rawJSON), &input); err != nil {
			return nil, fmt.Errorf("input must be a JSON object: %w", err)
		}
	}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s for %s: %w", path, key, err)
			}
			value = string(data)
		}
		input[key] = value
	}
	return input, nil
}

// splitLaunchArgs separates an inline JSON object from key=value words.
func splitLaunchArgs(args []string) (string, []string) {
	joined := strings.TrimSpace(strings.Join(args, " "))
	if strings.HasPrefix(joined, "{") {
		return joined, nil
	}
	return "", args
}
