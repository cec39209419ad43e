package compliance

import (
	"fmt"
	"strings"

	"productshot/internal/domain"
)

// OutputWidth and OutputHeight are the fixed render dimensions.
const (
	OutputWidth  = 1024
	OutputHeight = 1024
)

// instruction renders the provider text. Lines are emitted in a fixed order so
// identical inputs always produce identical text.
func (e *Engine) instruction(mode domain.Mode, rule ModeRule, in Inputs, constraints []string) string {
	var lines []string
	lines = append(lines, rule.Narrative)
	lines = append(lines, "Use the supplied photo as the only source of the product's appearance.")

	name := strings.TrimSpace(in.ProductName)
	category := strings.TrimSpace(in.Category)
	switch {
	case name != "" && category != "":
		lines = append(lines, fmt.Sprintf("Product: %q (%s).", name, category))
	case name != "":
		lines = append(lines, fmt.Sprintf("Product: %q.", name))
	case category != "":
		lines = append(lines, fmt.Sprintf("Product category: %s.", category))
	}
	if hint, ok := e.rules.Categories[lookupKey(category)]; ok {
		lines = append(lines, hint)
	}

	if tone := strings.TrimSpace(in.Tone); tone != "" {
		if desc, ok := e.rules.Tones[lookupKey(tone)]; ok {
			tone = desc
		}
		lines = append(lines, fmt.Sprintf("Overall mood: %s.", tone))
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		lines = append(lines, fmt.Sprintf("Product details: %s.", strings.TrimRight(desc, ".")))
	}

	switch mode {
	case domain.ModeLifestyle:
		scene := strings.TrimSpace(in.Scene)
		if scene == "" {
			scene = "an everyday setting where the product is typically used"
		}
		lines = append(lines, fmt.Sprintf("Scene: %s.", strings.TrimRight(scene, ".")))
	case domain.ModeFeatureCallout:
		if len(in.Callouts) > 0 {
			quoted := make([]string, len(in.Callouts))
			for i, c := range in.Callouts {
				quoted[i] = fmt.Sprintf("%d. %q", i+1, c)
			}
			lines = append(lines, "Callouts: "+strings.Join(quoted, " ")+".")
		}
		if missing := rule.MaxCallouts - len(in.Callouts); missing > 0 {
			lines = append(lines, fmt.Sprintf("Write %d additional short callouts describing features visible in the photo.", missing))
		}
	case domain.ModePackaging:
		style := strings.TrimSpace(in.PackagingStyle)
		if style == "" {
			style = "a plain box suited to the product"
		}
		lines = append(lines, fmt.Sprintf("Packaging style: %s.", strings.TrimRight(style, ".")))
	}

	if notes := strings.TrimSpace(in.Notes); notes != "" {
		lines = append(lines, fmt.Sprintf("Additional notes: %s.", strings.TrimRight(notes, ".")))
	}
	lines = append(lines, "Composition: "+rule.Composition)
	lines = append(lines, "Lighting: "+rule.Lighting)

	lines = append(lines, "Constraints:")
	for _, c := range constraints {
		lines = append(lines, "- "+c)
	}
	lines = append(lines, fmt.Sprintf("Output: a single %dx%d PNG image.", OutputWidth, OutputHeight))
	return strings.Join(lines, "\n")
}

func lookupKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
