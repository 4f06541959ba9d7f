package profile

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleProfile = `
personal:
  first_name: Ada
  last_name: Lovelace
  email: ada@example.com
  country: United Kingdom
education:
  - school: University of London
    degree: BSc
    field: Mathematics
experience:
  - company: Analytical Engines Ltd
    title: Principal Engineer
    current: true
work_authorization:
  authorized_to_work: "Yes"
  requires_sponsorship: "No"
eeo:
  gender: Female
documents:
  resume_path: /home/ada/resume.pdf
custom_answers:
  "Why do you want to work here?": "The engines."
years_of_experience: "12"
`

func loadSample(t *testing.T) *Profile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(sampleProfile), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return p
}

func TestLoadAndField(t *testing.T) {
	p := loadSample(t)

	tests := map[string]string{
		"personal.first_name":                     "Ada",
		"personal.full_name":                      "Ada Lovelace",
		"personal.email":                          "ada@example.com",
		"personal.country":                        "United Kingdom",
		"work_authorization.authorized_to_work":   "Yes",
		"work_authorization.requires_sponsorship": "No",
		"eeo.gender":                              "Female",
		"education.school":                        "University of London",
		"education.field":                         "Mathematics",
		"experience.company":                      "Analytical Engines Ltd",
		"experience.years":                        "12",
		"documents.resume":                        "/home/ada/resume.pdf",
	}
	for key, want := range tests {
		got, ok := p.Field(key)
		if !ok || got != want {
			t.Errorf("Field(%q) = %q, %v, want %q", key, got, ok, want)
		}
	}
}

func TestFieldMissing(t *testing.T) {
	p := loadSample(t)
	if _, ok := p.Field("personal.phone"); ok {
		t.Fatal("empty field must report not-ok")
	}
	if _, ok := p.Field("documents.cover_letter"); ok {
		t.Fatal("absent document must report not-ok")
	}
	if _, ok := p.Field("no.such.intent"); ok {
		t.Fatal("unknown key must report not-ok")
	}
}

func TestOverrideCaseInsensitive(t *testing.T) {
	p := loadSample(t)
	got, ok := p.Override("  why do you WANT to work here?  ")
	if !ok || got != "The engines." {
		t.Fatalf("Override = %q, %v", got, ok)
	}
	if _, ok := p.Override("Unsaved question"); ok {
		t.Fatal("Override must miss for unsaved questions")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() = nil error for missing file")
	}
}
