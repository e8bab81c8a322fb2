package parser

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed kinds.json
var builtinKinds []byte

type KindDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Input       struct {
		Required []string `json:"required"`
		Optional []string `json:"optional"`
	} `json:"input"`
	ContextKeys []string `json:"context_keys"`
}

type KindRegistry struct {
	Kinds    []KindDefinition
	kindsMap map[string]KindDefinition
}

// Reads kind definitions from JSON
func LoadKindRegistry(data []byte) (*KindRegistry, error) {
	var doc struct {
		Kinds []KindDefinition `json:"kinds"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("could not parse kind registry JSON: %w", err)
	}

	kindsMap := make(map[string]KindDefinition, len(doc.Kinds))
	for _, k := range doc.Kinds {
		if k.Name == "" {
			return nil, fmt.Errorf("kind registry has a definition without a name")
		}
		if _, dup := kindsMap[k.Name]; dup {
			return nil, fmt.Errorf("kind '%s' is defined twice", k.Name)
		}
		kindsMap[k.Name] = k
	}

	return &KindRegistry{Kinds: doc.Kinds, kindsMap: kindsMap}, nil
}

// Returns the registry compiled into the binary
func BuiltinKinds() (*KindRegistry, error) {
	return LoadKindRegistry(builtinKinds)
}

func (r *KindRegistry) GetDefinition(kind string) (KindDefinition, bool) {
	def, found := r.kindsMap[kind]
	return def, found
}

// Checks that a launch input carries every required key
func (r *KindRegistry) ValidateInput(kind string, input map[string]any) error {
	def, found := r.GetDefinition(kind)
	if !found {
		return fmt.Errorf("mission kind '%s' is not defined in the registry", kind)
	}

	var missing []string
	for _, key := range def.Input.Required {
		v, ok := input[key]
		if !ok || v == nil {
			missing = append(missing, key)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("mission kind '%s' is missing required input: %s", kind, strings.Join(missing, ", "))
	}
	return nil
}

// Creates the help block listing every kind and its inputs
func (r *KindRegistry) HelpText() string {
	var sb strings.Builder
	sb.WriteString("MISSION KINDS & INPUTS:\n")
	for _, k := range r.Kinds {
		sb.WriteString(fmt.Sprintf("- `%s`: %s Input requires keys: `[%s]`.", k.Name, k.Description, strings.Join(k.Input.Required, ", ")))
		if len(k.Input.Optional) > 0 {
			sb.WriteString(fmt.Sprintf(" Optional: `[%s]`.", strings.Join(k.Input.Optional, ", ")))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
