// Package compliance sanitizes creative inputs per mode and builds the
// provider instruction together with an audit record.
package compliance

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"productshot/internal/domain"
)

// Inputs are the caller's free-text creative fields.
type Inputs struct {
	ProductName    string   `json:"product_name,omitempty"`
	Category       string   `json:"category,omitempty"`
	Tone           string   `json:"tone,omitempty"`
	Description    string   `json:"description,omitempty"`
	Scene          string   `json:"scene,omitempty"`
	Callouts       []string `json:"callouts,omitempty"`
	PackagingStyle string   `json:"packaging_style,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// AuditRecord documents how inputs were turned into an instruction.
// SanitizedInputs is nil unless sanitization changed at least one field.
type AuditRecord struct {
	Mode               domain.Mode `json:"mode"`
	Version            string      `json:"version"`
	OriginalInputs     Inputs      `json:"original_inputs"`
	SanitizedInputs    *Inputs     `json:"sanitized_inputs,omitempty"`
	AppliedConstraints []string    `json:"applied_constraints"`
	Overrides          []string    `json:"overrides"`
	Warnings           []string    `json:"warnings"`
}

// Result is the output of Build.
type Result struct {
	InstructionText string
	Audit           AuditRecord
}

const (
	maxCalloutEntries = 10
	maxCalloutRunes   = 80
)

// ValidateInputs enforces length limits before a job is admitted.
func ValidateInputs(in Inputs) error {
	for _, f := range in.textFields() {
		if utf8.RuneCountInString(f.value) > f.limit {
			return domain.InvalidInput("%s exceeds %d characters", f.name, f.limit)
		}
	}
	if len(in.Callouts) > maxCalloutEntries {
		return domain.InvalidInput("at most %d callouts are accepted", maxCalloutEntries)
	}
	for i, c := range in.Callouts {
		if utf8.RuneCountInString(c) > maxCalloutRunes {
			return domain.InvalidInput("callout %d exceeds %d characters", i+1, maxCalloutRunes)
		}
	}
	return nil
}

type textField struct {
	name  string
	value string
	limit int
}

func (in Inputs) textFields() []textField {
	return []textField{
		{"product_name", in.ProductName, 120},
		{"category", in.Category, 80},
		{"tone", in.Tone, 80},
		{"description", in.Description, 1000},
		{"scene", in.Scene, 500},
		{"packaging_style", in.PackagingStyle, 200},
		{"notes", in.Notes, 500},
	}
}

// Engine applies a RuleSet.
type Engine struct {
	rules      *RuleSet
	sanitizers map[domain.Mode]*sanitizer
	logger     zerolog.Logger
}

// NewEngine builds an engine from the embedded rule set.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return NewEngineWithRules(rules, logger), nil
}

// NewEngineWithRules builds an engine from a parsed rule set.
func NewEngineWithRules(rules *RuleSet, logger zerolog.Logger) *Engine {
	e := &Engine{
		rules:      rules,
		sanitizers: make(map[domain.Mode]*sanitizer, len(rules.Modes)),
		logger:     logger.With().Str("component", "compliance").Logger(),
	}
	for mode, rule := range rules.Modes {
		e.sanitizers[mode] = newSanitizer(rules.Generic.DisallowedTerms, rule.DisallowedTerms)
	}
	return e
}

// Version returns the rule set version tag.
func (e *Engine) Version() string {
	return e.rules.Version
}

// Build sanitizes inputs for mode, appends the mandatory constraints and
// renders the instruction text. The output depends only on its arguments and
// the rule set.
func (e *Engine) Build(mode domain.Mode, in Inputs) (*Result, error) {
	rule, ok := e.rules.Modes[mode]
	if !ok {
		return nil, domain.InvalidInput("unsupported mode %q", mode)
	}
	san := e.sanitizers[mode]

	audit := AuditRecord{
		Mode:           mode,
		Version:        e.rules.Version,
		OriginalInputs: cloneInputs(in),
		Overrides:      []string{},
		Warnings:       []string{},
	}

	clean := cloneInputs(in)
	changed := false
	field := func(name string, value *string) {
		out, removed := san.clean(*value)
		if out == *value {
			return
		}
		changed = true
		audit.Warnings = append(audit.Warnings, changeWarning(name, removed))
		e.logger.Warn().
			Str("mode", string(mode)).
			Str("field", name).
			Strs("removed", removed).
			Msg("sanitized input field")
		*value = out
	}
	field("product_name", &clean.ProductName)
	field("category", &clean.Category)
	field("tone", &clean.Tone)
	field("description", &clean.Description)
	field("scene", &clean.Scene)
	field("packaging_style", &clean.PackagingStyle)
	field("notes", &clean.Notes)
	for i := range clean.Callouts {
		field(fmt.Sprintf("callouts[%d]", i), &clean.Callouts[i])
	}
	if changed {
		sanitized := cloneInputs(clean)
		audit.SanitizedInputs = &sanitized
	}

	effective := e.applyModeOverrides(mode, rule, clean, &audit)

	audit.AppliedConstraints = append(append([]string{}, e.rules.Generic.Constraints...), rule.Constraints...)
	for _, o := range audit.Overrides {
		e.logger.Info().Str("mode", string(mode)).Msg(o)
	}

	return &Result{
		InstructionText: e.instruction(mode, rule, effective, audit.AppliedConstraints),
		Audit:           audit,
	}, nil
}

// applyModeOverrides drops fields the mode does not use and enforces the
// callout count. Every adjustment is written to the override log.
func (e *Engine) applyModeOverrides(mode domain.Mode, rule ModeRule, in Inputs, audit *AuditRecord) Inputs {
	out := cloneInputs(in)
	if rule.ignores("scene") && out.Scene != "" {
		audit.Overrides = append(audit.Overrides, fmt.Sprintf("scene ignored: %s uses a fixed setting", mode))
		out.Scene = ""
	}
	if rule.ignores("packaging_style") && out.PackagingStyle != "" {
		audit.Overrides = append(audit.Overrides, fmt.Sprintf("packaging_style ignored: not used by %s", mode))
		out.PackagingStyle = ""
	}
	if rule.ignores("callouts") && len(out.Callouts) > 0 {
		audit.Overrides = append(audit.Overrides, fmt.Sprintf("callouts ignored: text is not permitted in %s", mode))
		out.Callouts = nil
	}

	var callouts []string
	for _, c := range out.Callouts {
		if c != "" {
			callouts = append(callouts, c)
		}
	}
	out.Callouts = callouts
	if rule.MaxCallouts > 0 {
		if len(out.Callouts) > rule.MaxCallouts {
			audit.Overrides = append(audit.Overrides, fmt.Sprintf("callouts truncated from %d to %d", len(out.Callouts), rule.MaxCallouts))
			out.Callouts = out.Callouts[:rule.MaxCallouts]
		}
		if len(out.Callouts) < rule.MaxCallouts {
			audit.Warnings = append(audit.Warnings, fmt.Sprintf("%d of %d callouts supplied; remaining callouts will describe visible product features", len(out.Callouts), rule.MaxCallouts))
		}
	}
	return out
}

func changeWarning(field string, removed []string) string {
	if len(removed) == 0 {
		return fmt.Sprintf("%s: normalized whitespace", field)
	}
	quoted := make([]string, len(removed))
	for i, r := range removed {
		quoted[i] = fmt.Sprintf("%q", r)
	}
	return fmt.Sprintf("%s: removed disallowed terms %s", field, strings.Join(quoted, ", "))
}

func cloneInputs(in Inputs) Inputs {
	out := in
	if in.Callouts != nil {
		out.Callouts = append([]string(nil), in.Callouts...)
	}
	return out
}
