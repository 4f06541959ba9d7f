package patterns

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "patterns.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func genderPattern() LearnedPattern {
	return LearnedPattern{
		QuestionPattern: "Gender",
		Intent:          "eeo.gender",
		FieldClass:      ClassChoice,
		Mappings: []AnswerMapping{{
			CanonicalValue: "Man",
			Variants:       []string{"Man", "Male"},
		}},
		Confidence: 0.9,
		Source:     "ai",
		Verified:   true,
	}
}

func TestStoreSaveAndLookup(t *testing.T) {
	store := openTestStore(t)

	if err := store.Save(genderPattern()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	res, err := store.Lookup("Gender", "radio", []string{"Male", "Female"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if res == nil {
		t.Fatal("Lookup() = nil, want hit")
	}
	if res.Answer != "Male" {
		t.Fatalf("Answer = %q, want Male", res.Answer)
	}
	if res.Score != 1.0 {
		t.Fatalf("Score = %v, want 1.0 for exact question match", res.Score)
	}
}

func TestStoreLookupProgressiveVariant(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(genderPattern()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Different site, different labels: the stored "Man" variant reaches
	// the current option set without asking the AI again.
	res, err := store.Lookup("What is your gender?", "dropdown", []string{"Man", "Woman", "Non-binary"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if res == nil || res.Answer != "Man" {
		t.Fatalf("Lookup = %+v, want Man via variant matching", res)
	}
}

func TestStoreLookupRejectsWrongFieldClass(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(genderPattern()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	res, err := store.Lookup("Gender", "text", nil)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if res != nil {
		t.Fatalf("Lookup across field classes = %+v, want nil", res)
	}
}

func TestStoreLookupRejectsNonWhitelistedIntent(t *testing.T) {
	store := openTestStore(t)
	p := genderPattern()
	p.Intent = "internal.secret_scoring"
	if err := store.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	res, err := store.Lookup("Gender", "radio", []string{"Male", "Female"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if res != nil {
		t.Fatalf("Lookup = %+v, want non-whitelisted intent filtered", res)
	}
}

func TestStoreNeverReturnsForbiddenAnswers(t *testing.T) {
	store := openTestStore(t)
	p := LearnedPattern{
		QuestionPattern: "LinkedIn profile",
		Intent:          "personal.linkedin",
		FieldClass:      ClassText,
		Mappings: []AnswerMapping{{
			CanonicalValue: "N/A",
			Variants:       []string{"not provided", "n/a"},
		}},
		Confidence: 0.95,
	}
	if err := store.Save(p); err == nil {
		// If anything slipped past the write-side filter, the read side
		// must still refuse to serve it.
		res, lerr := store.Lookup("LinkedIn profile", "text", nil)
		if lerr != nil {
			t.Fatalf("Lookup() error = %v", lerr)
		}
		if res != nil {
			t.Fatalf("Lookup = %q, want forbidden answers never served", res.Answer)
		}
	}
}

func TestStoreLookupNoMatchBelowOverlapThreshold(t *testing.T) {
	store := openTestStore(t)
	p := genderPattern()
	p.QuestionPattern = "please select your gender identity from the list below"
	p.Intent = "personal.website" // keyword path must not apply either
	if err := store.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	res, err := store.Lookup("Years of experience", "radio", []string{"Man"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if res != nil {
		t.Fatalf("Lookup = %+v, want nil for unrelated question", res)
	}
}

func TestStoreLookupIntentKeywordPath(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(genderPattern()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Word overlap with "gender" alone is below 0.7 for this long question,
	// but the intent trigger word carries it at the alternate score.
	res, err := store.Lookup("Please indicate the gender you identify with", "radio", []string{"Man", "Woman"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if res == nil {
		t.Fatal("Lookup = nil, want intent-keyword hit")
	}
	if res.Score != 0.75 {
		t.Fatalf("Score = %v, want 0.75 for intent-keyword path", res.Score)
	}
}

func TestStoreSaveMergesVariants(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(genderPattern()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	p := genderPattern()
	p.Mappings = []AnswerMapping{{
		CanonicalValue: "Man",
		Variants:       []string{"M"},
		ContextOptions: []string{"M", "F"},
	}}
	if err := store.Save(p); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	all := store.All()
	if len(all) != 1 {
		t.Fatalf("patterns = %d, want merged into 1", len(all))
	}
	if got := len(all[0].Mappings[0].Variants); got != 3 {
		t.Fatalf("variants = %v, want 3", all[0].Mappings[0].Variants)
	}
}

func TestStoreLookupIncrementsUsage(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(genderPattern()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.Lookup("Gender", "radio", []string{"Male"}); err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
	}
	all := store.All()
	if all[0].UsageCount != 3 {
		t.Fatalf("UsageCount = %d, want 3", all[0].UsageCount)
	}
	if all[0].LastUsed.IsZero() || time.Since(all[0].LastUsed) > time.Minute {
		t.Fatalf("LastUsed = %v, want recent", all[0].LastUsed)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.db")
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.Save(genderPattern()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	res, err := reopened.Lookup("Gender", "radio", []string{"Male"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if res == nil || res.Answer != "Male" {
		t.Fatalf("Lookup after reopen = %+v, want Male", res)
	}
}

func TestStoreShareableFiltersPersonalIntents(t *testing.T) {
	store := openTestStore(t)

	if err := store.Save(genderPattern()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	auth := LearnedPattern{
		QuestionPattern: "Are you authorized to work in the United States?",
		Intent:          "work_authorization.authorized_to_work",
		FieldClass:      ClassChoice,
		Mappings:        []AnswerMapping{{CanonicalValue: "Yes", Variants: []string{"Yes"}}},
		Confidence:      0.9,
	}
	if err := store.Save(auth); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	share := store.Shareable()
	if len(share) != 1 {
		t.Fatalf("shareable = %d, want 1", len(share))
	}
	if share[0].Intent != "work_authorization.authorized_to_work" {
		t.Fatalf("shareable intent = %s", share[0].Intent)
	}
}

func TestStoreRecordRunAndStats(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(genderPattern()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.RecordRun("run-1", "https://jobs.example.com", 7, 2); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if err := store.RecordRun("run-2", "https://jobs.example.com", 4, 0); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalPatterns != 1 || stats.FillRuns != 2 {
		t.Fatalf("stats = %+v, want 1 pattern, 2 runs", stats)
	}
	if stats.FieldsSucceeded != 11 || stats.FieldsFailed != 2 {
		t.Fatalf("stats = %+v, want 11 succeeded / 2 failed", stats)
	}
	if stats.IntentBreakdown["eeo.gender"] != 1 {
		t.Fatalf("intent breakdown = %v", stats.IntentBreakdown)
	}
}
