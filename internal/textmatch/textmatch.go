// Package textmatch implements the text normalization and answer/option
// matching rules shared by the answer resolver and the pattern store.
//
// All matching works on normalized text: casefolded, whitespace collapsed,
// with the punctuation set *?!.,;:'" stripped. An answer only ever matches
// an option that is actually present in the supplied option list; there is
// no "closest option" fallback.
package textmatch

import (
	"strings"
	"unicode"
)

// stripSet is the punctuation removed during normalization.
const stripSet = `*?!.,;:'"`

// Normalize casefolds s, collapses runs of whitespace to single spaces and
// strips the fixed punctuation set.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if strings.ContainsRune(stripSet, r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimRight(b.String(), " ")
}

// synonyms maps normalized canonical values to equivalent normalized
// phrasings seen on application forms. Checked before generic substring
// containment so that e.g. "male" prefers "Man" over "Woman" (which
// contains "man" as a substring).
var synonyms = map[string][]string{
	"male":              {"man", "male"},
	"female":            {"woman", "female"},
	"man":               {"male", "man"},
	"woman":             {"female", "woman"},
	"non-binary":        {"nonbinary", "non-binary", "non binary"},
	"yes":               {"yes", "y", "true", "i do", "i am", "agree"},
	"no":                {"no", "n", "false", "i do not", "i am not", "decline", "disagree"},
	"prefer not to say": {"prefer not to say", "prefer not to answer", "decline to self identify", "i dont wish to answer", "decline to state"},
}

// abbreviations expands common short forms to their long renderings.
// Tried last, after structural matching has failed.
var abbreviations = map[string][]string{
	"usa":  {"united states", "united states of america", "us"},
	"us":   {"united states", "united states of america", "usa"},
	"uk":   {"united kingdom", "great britain"},
	"uae":  {"united arab emirates"},
	"bsc":  {"bachelor of science", "bachelors"},
	"msc":  {"master of science", "masters"},
	"ba":   {"bachelor of arts"},
	"mba":  {"master of business administration"},
	"phd":  {"doctor of philosophy", "doctorate"},
	"hs":   {"high school"},
	"assoc": {"associate", "associates"},
}

// forbiddenPatterns are placeholder values that must never be stored as a
// learned answer variant nor offered as an answer.
var forbiddenPatterns = []string{
	"n/a", "na", "none", "not applicable", "not provided", "not specified",
	"unknown", "null", "undefined", "tbd", "-", "--",
}

// Forbidden reports whether value is a placeholder rather than a real answer.
func Forbidden(value string) bool {
	n := Normalize(value)
	if n == "" {
		return true
	}
	for _, f := range forbiddenPatterns {
		if n == f {
			return true
		}
	}
	return false
}

// FilterForbidden returns values with forbidden placeholders removed.
func FilterForbidden(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !Forbidden(v) {
			out = append(out, v)
		}
	}
	return out
}

// MatchOption resolves value against the supplied option list and returns the
// matching option in its original surface form. Match order: exact normalized,
// synonym table, substring containment (either direction), token-prefix,
// abbreviation expansion. Returns ("", false) when no option matches — a
// value with no reachable option is a non-match, never an arbitrary pick.
func MatchOption(value string, options []string) (string, bool) {
	nv := Normalize(value)
	if nv == "" || len(options) == 0 {
		return "", false
	}

	type normOpt struct {
		raw  string
		norm string
	}
	norm := make([]normOpt, 0, len(options))
	for _, o := range options {
		if no := Normalize(o); no != "" {
			norm = append(norm, normOpt{raw: o, norm: no})
		}
	}

	// Exact.
	for _, o := range norm {
		if o.norm == nv {
			return o.raw, true
		}
	}

	// Synonym table before substring: enumeration values like gender and
	// yes/no phrasings are too short for containment to be safe.
	if alts, ok := synonyms[nv]; ok {
		for _, alt := range alts {
			for _, o := range norm {
				if o.norm == alt {
					return o.raw, true
				}
			}
		}
	}

	// Substring containment, either direction.
	for _, o := range norm {
		if len(nv) >= 3 && len(o.norm) >= 3 &&
			(strings.Contains(o.norm, nv) || strings.Contains(nv, o.norm)) {
			return o.raw, true
		}
	}

	// Token-prefix: a word of the value (>= 3 chars) prefixes an option.
	for _, tok := range strings.Fields(nv) {
		if len(tok) < 3 {
			continue
		}
		for _, o := range norm {
			if strings.HasPrefix(o.norm, tok) {
				return o.raw, true
			}
		}
	}

	// Known abbreviations, e.g. country codes.
	if expansions, ok := abbreviations[nv]; ok {
		for _, exp := range expansions {
			for _, o := range norm {
				if o.norm == exp || strings.Contains(o.norm, exp) {
					return o.raw, true
				}
			}
		}
	}

	return "", false
}

// KeywordOverlap computes the word-set overlap between two normalized
// questions: |intersection| / max(|a|, |b|). Used by the pattern store's
// fuzzy question matching.
func KeywordOverlap(a, b string) float64 {
	aw := wordSet(Normalize(a))
	bw := wordSet(Normalize(b))
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	shared := 0
	for w := range aw {
		if _, ok := bw[w]; ok {
			shared++
		}
	}
	max := len(aw)
	if len(bw) > max {
		max = len(bw)
	}
	return float64(shared) / float64(max)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
