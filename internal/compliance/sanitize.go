package compliance

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type term struct {
	text   string
	folded string
	runes  int
}

// sanitizer strips disallowed terms case-insensitively. Terms are tried
// longest first so overlapping phrases are removed whole.
type sanitizer struct {
	terms []term
	fold  cases.Caser
}

func newSanitizer(lists ...[]string) *sanitizer {
	fold := cases.Fold()
	seen := make(map[string]bool)
	var terms []term
	for _, list := range lists {
		for _, raw := range list {
			t := strings.TrimSpace(norm.NFC.String(raw))
			if t == "" {
				continue
			}
			key := fold.String(t)
			if seen[key] {
				continue
			}
			seen[key] = true
			terms = append(terms, term{text: t, folded: key, runes: utf8.RuneCountInString(t)})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].runes != terms[j].runes {
			return terms[i].runes > terms[j].runes
		}
		return terms[i].folded < terms[j].folded
	})
	return &sanitizer{terms: terms, fold: fold}
}

// clean returns the sanitized value and the terms that were removed. The
// result is a fixed point: cleaning it again changes nothing. Every hit
// shortens the value, so the loop terminates.
func (s *sanitizer) clean(value string) (string, []string) {
	out := tidy(norm.NFC.String(value))
	var removed []string
	seen := make(map[string]bool)
	for {
		changed := false
		for _, t := range s.terms {
			next, hit := s.strip(out, t)
			if !hit {
				continue
			}
			out = next
			changed = true
			if !seen[t.folded] {
				seen[t.folded] = true
				removed = append(removed, t.text)
			}
		}
		if !changed {
			break
		}
		out = tidy(out)
	}
	return out, removed
}

// strip removes every case-insensitive occurrence of t from value.
func (s *sanitizer) strip(value string, t term) (string, bool) {
	if !strings.Contains(s.fold.String(value), t.folded) {
		return value, false
	}
	runes := []rune(value)
	var b strings.Builder
	hit := false
	for i := 0; i < len(runes); {
		if i+t.runes <= len(runes) && strings.EqualFold(string(runes[i:i+t.runes]), t.text) {
			i += t.runes
			hit = true
			continue
		}
		b.WriteRune(runes[i])
		i++
	}
	return b.String(), hit
}

// tidy collapses whitespace and trims separators left behind by removals.
func tidy(value string) string {
	fields := strings.FieldsFunc(value, unicode.IsSpace)
	out := strings.Join(fields, " ")
	for _, pair := range [][2]string{{" ,", ","}, {" .", "."}, {" ;", ";"}, {",,", ","}, {"..", "."}} {
		for strings.Contains(out, pair[0]) {
			out = strings.ReplaceAll(out, pair[0], pair[1])
		}
	}
	return strings.Trim(out, " ,;:-")
}
