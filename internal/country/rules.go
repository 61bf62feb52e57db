package country

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// KeywordRule is one operator-supplied keyword → country mapping.
type KeywordRule struct {
	Match   string `yaml:"match"`
	Country string `yaml:"country"`
}

// Rules is the optional on-disk extension of the built-in heuristics. The
// keywords extend the detector cascade; the regions extend the cleaner's
// long-region-name abbreviation table.
type Rules struct {
	Keywords []KeywordRule     `yaml:"keywords"`
	Regions  map[string]string `yaml:"regions"`
}

// LoadRules reads a YAML rules file. A missing path is not an error: the
// built-in rules are complete on their own.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return &Rules{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return &r, nil
}
