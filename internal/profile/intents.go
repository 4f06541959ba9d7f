package profile

// AllowedIntents is the reviewed whitelist of canonical intents. A learned
// pattern whose intent is not listed here is never trusted, regardless of
// its stored confidence. "unknown" is accepted as a stored value but is not
// a usable intent for answering.
var AllowedIntents = map[string]bool{
	"personal.first_name":  true,
	"personal.last_name":   true,
	"personal.full_name":   true,
	"personal.email":       true,
	"personal.phone":       true,
	"personal.address":     true,
	"personal.city":        true,
	"personal.state":       true,
	"personal.postal_code": true,
	"personal.country":     true,
	"personal.linkedin":    true,
	"personal.website":     true,

	"work_authorization.authorized_to_work":   true,
	"work_authorization.requires_sponsorship": true,

	"eeo.gender":     true,
	"eeo.race":       true,
	"eeo.hispanic":   true,
	"eeo.veteran":    true,
	"eeo.disability": true,

	"education.school": true,
	"education.degree": true,
	"education.field":  true,

	"experience.company": true,
	"experience.title":   true,
	"experience.years":   true,

	"compensation.desired_salary": true,
	"availability.notice_period":  true,
	"availability.start_date":     true,

	"documents.resume":       true,
	"documents.cover_letter": true,

	"application.how_heard":   true,
	"application.referral":    true,
	"application.pronouns":    true,
	"application.preferred_name": true,
}

// ShareableIntents are intents whose learned patterns carry no personal
// data in their question side and may be exported for sharing. EEO and
// contact intents stay private.
var ShareableIntents = map[string]bool{
	"work_authorization.authorized_to_work":   true,
	"work_authorization.requires_sponsorship": true,
	"application.how_heard":                   true,
	"availability.notice_period":              true,
	"availability.start_date":                 true,
}

// FileIntents are the only intents a learned pattern may carry for
// file-type fields. A generic "attach" label must never resolve through a
// non-file intent.
var FileIntents = map[string]bool{
	"documents.resume":       true,
	"documents.cover_letter": true,
}

// IntentKeywords maps intents to trigger words used by the pattern store's
// alternate matching path and by the resolver's learning fallback.
var IntentKeywords = map[string][]string{
	"personal.first_name":                     {"first name", "given name", "forename"},
	"personal.last_name":                      {"last name", "surname", "family name"},
	"personal.full_name":                      {"full name", "your name", "legal name"},
	"personal.email":                          {"email", "e-mail"},
	"personal.phone":                          {"phone", "mobile", "telephone"},
	"personal.city":                           {"city", "town"},
	"personal.state":                          {"state", "province", "region"},
	"personal.postal_code":                    {"zip", "postal", "postcode"},
	"personal.country":                        {"country", "nation"},
	"personal.linkedin":                       {"linkedin"},
	"personal.website":                        {"website", "portfolio", "personal site"},
	"work_authorization.authorized_to_work":   {"authorized to work", "legally authorized", "work authorization", "eligible to work", "right to work"},
	"work_authorization.requires_sponsorship": {"sponsorship", "visa", "require sponsorship"},
	"eeo.gender":                              {"gender", "sex"},
	"eeo.race":                                {"race", "ethnicity", "ethnic"},
	"eeo.hispanic":                            {"hispanic", "latino", "latinx"},
	"eeo.veteran":                             {"veteran", "military", "armed forces"},
	"eeo.disability":                          {"disability", "disabled", "impairment"},
	"education.school":                        {"school", "university", "college", "institution"},
	"education.degree":                        {"degree", "qualification", "education level"},
	"experience.years":                        {"years of experience", "how many years"},
	"compensation.desired_salary":             {"salary", "compensation", "pay expectation"},
	"availability.notice_period":              {"notice period", "when can you start", "availability"},
	"documents.resume":                        {"resume", "cv", "curriculum vitae"},
	"documents.cover_letter":                  {"cover letter", "covering letter", "motivation letter"},
	"application.how_heard":                   {"how did you hear", "where did you hear", "source"},
	"application.referral":                    {"referral", "referred by", "employee referral"},
	"application.pronouns":                    {"pronoun", "pronouns"},
}
