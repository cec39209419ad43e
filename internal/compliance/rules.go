package compliance

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"productshot/internal/domain"
)

//go:embed rules.yaml
var defaultRules []byte

// RuleSet is the versioned compliance configuration.
type RuleSet struct {
	Version    string                   `yaml:"version"`
	Generic    GenericRules             `yaml:"generic"`
	Tones      map[string]string        `yaml:"tones"`
	Categories map[string]string        `yaml:"categories"`
	Modes      map[domain.Mode]ModeRule `yaml:"modes"`
}

// GenericRules apply to every mode.
type GenericRules struct {
	DisallowedTerms []string `yaml:"disallowed_terms"`
	Constraints     []string `yaml:"constraints"`
}

// ModeRule holds the per-mode guidance and mandatory constraints.
type ModeRule struct {
	Narrative       string   `yaml:"narrative"`
	Composition     string   `yaml:"composition"`
	Lighting        string   `yaml:"lighting"`
	IgnoredFields   []string `yaml:"ignored_fields"`
	MaxCallouts     int      `yaml:"max_callouts"`
	DisallowedTerms []string `yaml:"disallowed_terms"`
	Constraints     []string `yaml:"constraints"`
}

// DefaultRules parses the embedded rule set.
func DefaultRules() (*RuleSet, error) {
	return ParseRules(defaultRules)
}

// ParseRules decodes and validates a YAML rule set. Every known mode must be
// present with at least one mandatory constraint.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("compliance: parse rules: %w", err)
	}
	if strings.TrimSpace(rs.Version) == "" {
		return nil, errors.New("compliance: rules version is required")
	}
	for _, mode := range domain.Modes {
		rule, ok := rs.Modes[mode]
		if !ok {
			return nil, fmt.Errorf("compliance: rules missing mode %s", mode)
		}
		if len(rule.Constraints) == 0 {
			return nil, fmt.Errorf("compliance: mode %s has no constraints", mode)
		}
	}
	for mode := range rs.Modes {
		if _, ok := domain.ParseMode(string(mode)); !ok {
			return nil, fmt.Errorf("compliance: unknown mode %q in rules", mode)
		}
	}
	return &rs, nil
}

func (r ModeRule) ignores(field string) bool {
	for _, f := range r.IgnoredFields {
		if f == field {
			return true
		}
	}
	return false
}
