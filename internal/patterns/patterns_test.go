package patterns

import "testing"

func TestPatternIDDeterministic(t *testing.T) {
	a := PatternID("preferred pronoun", "personal.pronouns")
	b := PatternID("preferred pronoun", "personal.pronouns")
	if a != b {
		t.Fatalf("PatternID not deterministic: %s vs %s", a, b)
	}
	if a == PatternID("preferred pronoun", "eeo.gender") {
		t.Fatal("PatternID must vary with intent")
	}
	if len(a) != len("pattern_")+12 {
		t.Fatalf("PatternID length = %d: %s", len(a), a)
	}
}

func TestFieldClassOf(t *testing.T) {
	tests := map[string]string{
		"text":     ClassText,
		"textarea": ClassText,
		"date":     ClassText,
		"select":   ClassChoice,
		"dropdown": ClassChoice,
		"radio":    ClassChoice,
		"checkbox": ClassCheckbox,
		"file":     ClassFile,
	}
	for kind, want := range tests {
		if got := FieldClassOf(kind); got != want {
			t.Errorf("FieldClassOf(%q) = %q, want %q", kind, got, want)
		}
	}
}

func TestUsableAnswerMatchesVariantAgainstOptions(t *testing.T) {
	p := LearnedPattern{Mappings: []AnswerMapping{{
		CanonicalValue: "he/him",
		Variants:       []string{"He/Him", "he/him/his"},
	}}}

	got, ok := p.UsableAnswer([]string{"she/her", "he/him/his", "they/them"})
	if !ok || got != "he/him/his" {
		t.Fatalf("UsableAnswer = %q, %v, want he/him/his", got, ok)
	}

	if _, ok := p.UsableAnswer([]string{"red", "green"}); ok {
		t.Fatal("UsableAnswer must fail when no variant reaches an option")
	}
}

func TestUsableAnswerSkipsForbidden(t *testing.T) {
	p := LearnedPattern{Mappings: []AnswerMapping{{
		CanonicalValue: "N/A",
		Variants:       []string{"not provided"},
	}}}
	if got, ok := p.UsableAnswer(nil); ok {
		t.Fatalf("UsableAnswer = %q, want forbidden values rejected", got)
	}
}

func TestUsableAnswerFreeText(t *testing.T) {
	p := LearnedPattern{Mappings: []AnswerMapping{{
		CanonicalValue: "5 years",
		Variants:       []string{"five years"},
	}}}
	got, ok := p.UsableAnswer(nil)
	if !ok || got != "five years" {
		t.Fatalf("UsableAnswer = %q, %v, want first variant", got, ok)
	}
}

func TestMergeVariant(t *testing.T) {
	p := LearnedPattern{Mappings: []AnswerMapping{{
		CanonicalValue: "United States",
		Variants:       []string{"United States"},
	}}}

	if err := p.MergeVariant("United States", "USA", []string{"USA", "Canada"}); err != nil {
		t.Fatalf("MergeVariant error = %v", err)
	}
	if len(p.Mappings) != 1 || len(p.Mappings[0].Variants) != 2 {
		t.Fatalf("mappings = %+v, want one mapping with two variants", p.Mappings)
	}

	// Same variant again is a no-op.
	if err := p.MergeVariant("United States", "usa", nil); err != nil {
		t.Fatalf("MergeVariant error = %v", err)
	}
	if len(p.Mappings[0].Variants) != 2 {
		t.Fatalf("variants = %v, want duplicate collapsed", p.Mappings[0].Variants)
	}

	// Different canonical value opens a new mapping.
	if err := p.MergeVariant("Estados Unidos", "Estados Unidos", nil); err != nil {
		t.Fatalf("MergeVariant error = %v", err)
	}
	if len(p.Mappings) != 2 {
		t.Fatalf("mappings = %d, want 2", len(p.Mappings))
	}

	if err := p.MergeVariant("United States", "N/A", nil); err == nil {
		t.Fatal("MergeVariant must reject forbidden variants")
	}
}
