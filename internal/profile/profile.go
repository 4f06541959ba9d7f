// Package profile models the applicant record that answers are drawn from.
// The profile is read-only for the filling pipeline: it is loaded once per
// run from a yaml file and handed to the resolver.
package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Personal holds contact and identity fields.
type Personal struct {
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	Email      string `yaml:"email"`
	Phone      string `yaml:"phone"`
	Address    string `yaml:"address"`
	City       string `yaml:"city"`
	State      string `yaml:"state"`
	PostalCode string `yaml:"postal_code"`
	Country    string `yaml:"country"`
	LinkedIn   string `yaml:"linkedin"`
	Website    string `yaml:"website"`
}

// Education is one schooling entry; the most recent entry answers
// single-value education questions.
type Education struct {
	School    string `yaml:"school"`
	Degree    string `yaml:"degree"`
	Field     string `yaml:"field"`
	StartYear string `yaml:"start_year"`
	EndYear   string `yaml:"end_year"`
	GPA       string `yaml:"gpa"`
}

// Experience is one employment entry.
type Experience struct {
	Company     string `yaml:"company"`
	Title       string `yaml:"title"`
	StartDate   string `yaml:"start_date"`
	EndDate     string `yaml:"end_date"`
	Current     bool   `yaml:"current"`
	Description string `yaml:"description"`
}

// WorkAuthorization carries the two standard authorization answers as
// yes/no strings so they can be matched against arbitrary option phrasings.
type WorkAuthorization struct {
	AuthorizedToWork    string `yaml:"authorized_to_work"`
	RequiresSponsorship string `yaml:"requires_sponsorship"`
}

// EEO holds voluntary self-identification answers. These are never guessed:
// a question resolves from here or not at all.
type EEO struct {
	Gender     string `yaml:"gender"`
	Race       string `yaml:"race"`
	Hispanic   string `yaml:"hispanic"`
	Veteran    string `yaml:"veteran"`
	Disability string `yaml:"disability"`
}

// Documents references the applicant's uploadable files.
type Documents struct {
	ResumePath      string `yaml:"resume_path"`
	ResumeName      string `yaml:"resume_name"`
	CoverLetterPath string `yaml:"cover_letter_path"`
	CoverLetterName string `yaml:"cover_letter_name"`
}

// Profile is the full applicant record.
type Profile struct {
	Personal      Personal          `yaml:"personal"`
	Education     []Education       `yaml:"education"`
	Experience    []Experience      `yaml:"experience"`
	WorkAuth      WorkAuthorization `yaml:"work_authorization"`
	EEO           EEO               `yaml:"eeo"`
	Documents     Documents         `yaml:"documents"`
	CustomAnswers map[string]string `yaml:"custom_answers"`

	// DesiredSalary and similar free-form extras.
	DesiredSalary     string `yaml:"desired_salary"`
	NoticePeriod      string `yaml:"notice_period"`
	YearsOfExperience string `yaml:"years_of_experience"`
}

// Load reads and parses a profile yaml file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return &p, nil
}

// Field resolves a canonical intent key (e.g. "personal.first_name",
// "eeo.gender") to its profile value. Returns false when the key is
// unknown or the value is empty.
func (p *Profile) Field(key string) (string, bool) {
	var v string
	switch key {
	case "personal.first_name":
		v = p.Personal.FirstName
	case "personal.last_name":
		v = p.Personal.LastName
	case "personal.full_name":
		full := strings.TrimSpace(p.Personal.FirstName + " " + p.Personal.LastName)
		v = full
	case "personal.email":
		v = p.Personal.Email
	case "personal.phone":
		v = p.Personal.Phone
	case "personal.address":
		v = p.Personal.Address
	case "personal.city":
		v = p.Personal.City
	case "personal.state":
		v = p.Personal.State
	case "personal.postal_code":
		v = p.Personal.PostalCode
	case "personal.country":
		v = p.Personal.Country
	case "personal.linkedin":
		v = p.Personal.LinkedIn
	case "personal.website":
		v = p.Personal.Website
	case "work_authorization.authorized_to_work":
		v = p.WorkAuth.AuthorizedToWork
	case "work_authorization.requires_sponsorship":
		v = p.WorkAuth.RequiresSponsorship
	case "eeo.gender":
		v = p.EEO.Gender
	case "eeo.race":
		v = p.EEO.Race
	case "eeo.hispanic":
		v = p.EEO.Hispanic
	case "eeo.veteran":
		v = p.EEO.Veteran
	case "eeo.disability":
		v = p.EEO.Disability
	case "education.school":
		if len(p.Education) > 0 {
			v = p.Education[0].School
		}
	case "education.degree":
		if len(p.Education) > 0 {
			v = p.Education[0].Degree
		}
	case "education.field":
		if len(p.Education) > 0 {
			v = p.Education[0].Field
		}
	case "experience.company":
		if len(p.Experience) > 0 {
			v = p.Experience[0].Company
		}
	case "experience.title":
		if len(p.Experience) > 0 {
			v = p.Experience[0].Title
		}
	case "experience.years":
		v = p.YearsOfExperience
	case "compensation.desired_salary":
		v = p.DesiredSalary
	case "availability.notice_period":
		v = p.NoticePeriod
	case "documents.resume":
		v = p.Documents.ResumePath
	case "documents.cover_letter":
		v = p.Documents.CoverLetterPath
	default:
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Override returns the user's saved custom answer for the exact question
// text, if any. Lookup is case-insensitive on trimmed text.
func (p *Profile) Override(question string) (string, bool) {
	if len(p.CustomAnswers) == 0 {
		return "", false
	}
	q := strings.ToLower(strings.TrimSpace(question))
	for k, v := range p.CustomAnswers {
		if strings.ToLower(strings.TrimSpace(k)) == q && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
