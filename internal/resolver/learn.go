package resolver

import (
	"strings"

	"go.uber.org/zap"

	"formpilot/internal/ai"
	"formpilot/internal/patterns"
	"formpilot/internal/profile"
	"formpilot/internal/scanner"
	"formpilot/internal/textmatch"
)

// learn writes a successful AI answer back to the pattern store so the
// next occurrence resolves locally. Only confident answers are kept, and
// file-upload answers never are: paths are machine-local, not reusable.
func (r *Resolver) learn(block scanner.QuestionBlock, resp ai.Response, finalValue string) {
	if r.store == nil || resp.Confidence < learnConfidence {
		return
	}
	if block.Kind == scanner.KindFile {
		return
	}

	intent := resp.Intent
	verified := true
	switch {
	case resp.NewIntent && resp.SuggestedIntent != "":
		// The model proposed an intent outside the known vocabulary. Store
		// it unverified; it surfaces in stats but is excluded from sharing.
		intent = resp.SuggestedIntent
		verified = false
	case !profile.AllowedIntents[intent]:
		intent = r.inferIntent(block.Text, finalValue)
		if intent == "unknown" {
			verified = false
		}
	}

	pattern := patterns.LearnedPattern{
		QuestionPattern: block.Text,
		Intent:          intent,
		FieldClass:      patterns.FieldClassOf(string(block.Kind)),
		Mappings: []patterns.AnswerMapping{{
			CanonicalValue: finalValue,
			Variants:       []string{finalValue},
			ContextOptions: block.Options,
		}},
		Confidence: resp.Confidence,
		Source:     "ai",
		Verified:   verified,
	}
	if err := r.store.Save(pattern); err != nil {
		r.logger.Warn("failed to persist learned pattern",
			zap.String("question", block.Text), zap.Error(err))
		return
	}
	r.logger.Debug("learned pattern saved",
		zap.String("question", block.Text),
		zap.String("intent", intent),
		zap.Float64("confidence", resp.Confidence))
}

// inferIntent recovers an intent when the AI did not supply a usable one.
// First the question is matched against the known intent trigger phrases;
// failing that, the answer value itself is compared against the profile's
// fields. "unknown" when neither yields anything.
func (r *Resolver) inferIntent(question, value string) string {
	normQ := textmatch.Normalize(question)
	for intent, keywords := range profile.IntentKeywords {
		for _, kw := range keywords {
			if kw != "" && strings.Contains(normQ, kw) {
				return intent
			}
		}
	}

	normV := textmatch.Normalize(value)
	if normV != "" {
		for intent := range profile.AllowedIntents {
			if fieldValue, ok := r.profile.Field(intent); ok && fieldValue != "" {
				if textmatch.Normalize(fieldValue) == normV {
					return intent
				}
			}
		}
	}
	return "unknown"
}
