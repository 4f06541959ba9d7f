// Package patterns implements the persistent learned-pattern store backing
// the resolver's learning loop. A pattern is a durable association between a
// normalized question and a canonical intent, together with every answer
// rendering observed for that intent across sites.
package patterns

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"formpilot/internal/textmatch"
)

// AnswerMapping is one canonical value and the surface variants it has been
// seen as, along with the option set each variant was chosen from.
type AnswerMapping struct {
	CanonicalValue string   `json:"canonicalValue"`
	Variants       []string `json:"variants"`
	ContextOptions []string `json:"contextOptions,omitempty"`
}

// LearnedPattern is a durable question-to-intent association.
type LearnedPattern struct {
	ID              string          `json:"id"`
	QuestionPattern string          `json:"questionPattern"`
	Intent          string          `json:"intent"`
	FieldClass      string          `json:"fieldClass"`
	Mappings        []AnswerMapping `json:"answerMappings"`
	Confidence      float64         `json:"confidence"`
	UsageCount      int             `json:"usageCount"`
	Source          string          `json:"source"` // "ai" or "manual"
	Verified        bool            `json:"verified"`
	CreatedAt       time.Time       `json:"createdAt"`
	LastUsed        time.Time       `json:"lastUsed"`
}

// PatternID derives the deterministic ID for a question/intent pair, so the
// same question learned from several frames or runs collapses to one row.
func PatternID(normalizedQuestion, intent string) string {
	sum := md5.Sum([]byte(normalizedQuestion + ":" + intent))
	return "pattern_" + hex.EncodeToString(sum[:])[:12]
}

// Field classes. Text and textarea widgets are interchangeable for pattern
// reuse; so are the three choice-style widgets.
const (
	ClassText     = "text"
	ClassChoice   = "choice"
	ClassCheckbox = "checkbox"
	ClassFile     = "file"
)

// FieldClassOf collapses a control kind into its compatibility class.
func FieldClassOf(kind string) string {
	switch kind {
	case "text", "textarea", "date":
		return ClassText
	case "select", "dropdown", "radio":
		return ClassChoice
	case "checkbox":
		return ClassCheckbox
	case "file":
		return ClassFile
	default:
		return ClassText
	}
}

// compatible reports whether a stored pattern's field class can serve a
// block of the given class.
func compatible(stored, want string) bool {
	return stored == want
}

// UsableAnswer finds an answer this pattern can currently give. For
// option-constrained fields the answer must be a stored variant (or
// canonical value) that matches a live option; for free-text fields the
// first non-placeholder variant wins. Returns ("", false) when the pattern
// has nothing usable, in which case the lookup skips it even on a perfect
// question match.
func (p *LearnedPattern) UsableAnswer(options []string) (string, bool) {
	for _, m := range p.Mappings {
		candidates := append([]string{}, m.Variants...)
		candidates = append(candidates, m.CanonicalValue)
		for _, c := range candidates {
			if textmatch.Forbidden(c) {
				continue
			}
			if len(options) == 0 {
				return c, true
			}
			if matched, ok := textmatch.MatchOption(c, options); ok {
				return matched, true
			}
		}
	}
	return "", false
}

// MergeVariant appends value as an observed variant under the pattern's
// first mapping with the same canonical value, or adds a new mapping.
// Forbidden placeholder values are rejected.
func (p *LearnedPattern) MergeVariant(canonical, value string, contextOptions []string) error {
	if textmatch.Forbidden(value) {
		return fmt.Errorf("refusing forbidden answer variant %q", value)
	}
	normVal := textmatch.Normalize(value)
	for i := range p.Mappings {
		m := &p.Mappings[i]
		if textmatch.Normalize(m.CanonicalValue) != textmatch.Normalize(canonical) {
			continue
		}
		for _, v := range m.Variants {
			if textmatch.Normalize(v) == normVal {
				return nil // already known
			}
		}
		m.Variants = append(m.Variants, value)
		if len(contextOptions) > 0 {
			m.ContextOptions = contextOptions
		}
		return nil
	}
	p.Mappings = append(p.Mappings, AnswerMapping{
		CanonicalValue: canonical,
		Variants:       []string{value},
		ContextOptions: contextOptions,
	})
	return nil
}
