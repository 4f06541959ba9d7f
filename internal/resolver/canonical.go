package resolver

import (
	"path/filepath"
	"strings"

	"formpilot/internal/profile"
	"formpilot/internal/scanner"
	"formpilot/internal/textmatch"
)

// canonicalRule maps trigger phrases found in a question to a profile
// intent key. Rules are ordered: more specific phrases come before the
// generic ones they contain, and the first rule whose trigger appears in
// the normalized question wins.
type canonicalRule struct {
	intent   string
	triggers []string
}

var canonicalRules = []canonicalRule{
	// Name. "preferred name" and "full name" must outrank bare "name".
	{"application.preferred_name", []string{"preferred name", "preferred first name", "nickname", "what should we call you"}},
	{"personal.full_name", []string{"full name", "full legal name", "legal name"}},
	{"personal.first_name", []string{"first name", "given name", "forename"}},
	{"personal.last_name", []string{"last name", "family name", "surname"}},

	// Contact.
	{"personal.email", []string{"email", "e-mail"}},
	{"personal.phone", []string{"phone", "mobile", "cell", "telephone"}},
	{"personal.linkedin", []string{"linkedin"}},
	{"personal.website", []string{"website", "portfolio", "personal site", "github"}},

	// Address. "postal code" before "address" so it never resolves to the
	// street line.
	{"personal.postal_code", []string{"postal code", "zip code", "zip", "postcode"}},
	{"personal.city", []string{"city", "town", "municipality"}},
	{"personal.state", []string{"state", "province", "region"}},
	{"personal.country", []string{"country", "nation of residence"}},
	{"personal.address", []string{"address", "street"}},

	// Work authorization.
	{"work_authorization.authorized_to_work", []string{"authorized to work", "legally authorized", "eligible to work", "right to work", "work authorization"}},
	{"work_authorization.requires_sponsorship", []string{"sponsorship", "require visa", "visa status", "need sponsorship"}},

	// Experience.
	{"experience.years", []string{"years of experience", "years experience", "how many years"}},
	{"experience.company", []string{"current company", "current employer", "most recent employer"}},
	{"experience.title", []string{"current title", "current role", "job title", "current position"}},
	{"availability.notice_period", []string{"notice period", "when can you start", "earliest start", "availability"}},
	{"availability.start_date", []string{"start date", "available to start"}},
	{"compensation.desired_salary", []string{"salary", "compensation", "expected pay", "pay expectation", "desired salary"}},

	// Education.
	{"education.school", []string{"school", "university", "college", "institution"}},
	{"education.degree", []string{"degree", "qualification"}},
	{"education.field", []string{"field of study", "major", "discipline"}},

	// EEO / demographics.
	{"eeo.gender", []string{"gender", "sex"}},
	{"eeo.race", []string{"race", "ethnicity", "ethnic"}},
	{"eeo.veteran", []string{"veteran", "military service", "armed forces"}},
	{"eeo.disability", []string{"disability", "disabled", "impairment"}},
	{"eeo.hispanic", []string{"hispanic", "latino", "latinx"}},

	// Source tracking.
	{"application.how_heard", []string{"how did you hear", "where did you hear", "how did you find"}},
	{"application.referral", []string{"referral", "referred by", "referrer"}},
}

// fileRules map file-upload questions to document intents. Checked only
// for file controls.
var fileRules = []canonicalRule{
	{"documents.cover_letter", []string{"cover letter", "covering letter", "motivation letter"}},
	{"documents.resume", []string{"resume", "cv", "curriculum vitae"}},
}

// genericFileLabels are upload prompts too vague to trust: "Attach",
// "Upload file", "Browse". A file control with only a generic label falls
// through to the learned and AI tiers rather than guessing the resume.
var genericFileLabels = []string{"attach", "upload", "browse", "select file", "choose file", "add file", "drop file"}

// resolveCanonical implements tier 2: match the question against the
// ordered rule table and answer from the profile.
func (r *Resolver) resolveCanonical(block scanner.QuestionBlock) *ResolvedAnswer {
	question := textmatch.Normalize(block.Text)
	if question == "" {
		return nil
	}

	if block.Kind == scanner.KindFile {
		return r.resolveFile(block, question)
	}

	for _, rule := range canonicalRules {
		if !matchesRule(question, rule) {
			continue
		}
		value, ok := r.profile.Field(rule.intent)
		if !ok || value == "" {
			return nil
		}
		return r.acceptValue(block, value, SourceCanonical, 1.0, rule.intent)
	}
	return nil
}

// resolveFile handles tier 2 for upload controls: the answer is a file
// path from the documents section, surfaced via FileName.
func (r *Resolver) resolveFile(block scanner.QuestionBlock, question string) *ResolvedAnswer {
	matched := ""
	for _, rule := range fileRules {
		if matchesRule(question, rule) {
			matched = rule.intent
			break
		}
	}
	if matched == "" {
		// A specific phrase beats a generic one, but a purely generic label
		// ("Attach", "Upload") defaults to the resume: nearly every
		// application's bare upload slot wants it.
		if !isGenericFileLabel(question) {
			return nil
		}
		matched = "documents.resume"
	}

	path, ok := r.profile.Field(matched)
	if !ok || path == "" {
		return nil
	}
	return &ResolvedAnswer{
		Selector:   block.Selector,
		Question:   block.Text,
		Value:      path,
		Source:     SourceCanonical,
		Confidence: 1.0,
		Intent:     matched,
		FileName:   filepath.Base(path),
	}
}

func isGenericFileLabel(question string) bool {
	for _, label := range genericFileLabels {
		if strings.Contains(question, label) {
			return true
		}
	}
	return false
}

func matchesRule(question string, rule canonicalRule) bool {
	for _, trigger := range rule.triggers {
		if containsPhraseOrWord(question, trigger) {
			return true
		}
	}
	return false
}

// containsPhraseOrWord matches multi-word triggers as substrings and
// single-word triggers as whole tokens, so "state" never fires on
// "statement".
func containsPhraseOrWord(question, trigger string) bool {
	if strings.Contains(trigger, " ") || strings.Contains(trigger, "-") {
		return strings.Contains(question, trigger)
	}
	for _, tok := range strings.Fields(question) {
		if tok == trigger {
			return true
		}
	}
	return false
}

// resolveLearned implements tier 3: a pattern-store lookup, gated so file
// answers only come from document-intent patterns.
func (r *Resolver) resolveLearned(block scanner.QuestionBlock) *ResolvedAnswer {
	if r.store == nil {
		return nil
	}
	// Generic upload labels are context-dependent across a page; a stored
	// pattern keyed on "attach" or "browse" would misfire, so they are
	// never served from the store.
	if isGenericFileLabel(textmatch.Normalize(block.Text)) {
		return nil
	}
	res, err := r.store.Lookup(block.Text, string(block.Kind), block.Options)
	if err != nil || res == nil {
		return nil
	}
	if block.Kind == scanner.KindFile && !profile.FileIntents[res.Pattern.Intent] {
		return nil
	}
	ans := r.acceptValue(block, res.Answer, SourceLearned, res.Score, res.Pattern.Intent)
	if ans == nil {
		return nil
	}
	if block.Kind == scanner.KindFile {
		ans.FileName = filepath.Base(ans.Value)
	}
	return ans
}
