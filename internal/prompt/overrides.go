package prompt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overrides replaces the built-in prompt templates. Both fields are
// text/template sources executed against Data; empty fields keep the
// defaults.
type Overrides struct {
	System       string `yaml:"system"`
	UserTemplate string `yaml:"user_template"`
}

// LoadOverrides reads prompt overrides from a YAML file.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	return &o, nil
}
