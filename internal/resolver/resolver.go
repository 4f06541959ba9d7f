// Package resolver maps discovered question blocks to answers. Four tiers,
// first success wins: the user's saved override, the canonical profile
// mapping, the learned-pattern store, and finally the remote AI service.
// Every AI success feeds the pattern store so the next occurrence of the
// same question resolves without another AI call.
package resolver

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"formpilot/internal/ai"
	"formpilot/internal/patterns"
	"formpilot/internal/profile"
	"formpilot/internal/scanner"
	"formpilot/internal/textmatch"
)

// Answer sources.
const (
	SourceOverride  = "override"
	SourceCanonical = "canonical"
	SourceLearned   = "learned"
	SourceAI        = "ai"
)

// minAIConfidence is the floor below which an AI answer is discarded.
const minAIConfidence = 0.6

// learnConfidence is the floor at or above which an AI answer is written
// back to the pattern store.
const learnConfidence = 0.7

// aiConcurrency bounds the simultaneous prediction calls during fan-out.
const aiConcurrency = 8

// ResolvedAnswer is the value chosen for one question block. Consumed once
// by the commit step and never persisted.
type ResolvedAnswer struct {
	Selector   string
	Question   string
	Value      string
	Source     string
	Confidence float64
	Intent     string
	Options    []string
	FileName   string
}

// Outcome pairs a block with either its answer or a skip reason.
type Outcome struct {
	Block  scanner.QuestionBlock
	Answer *ResolvedAnswer
	Reason string
}

// Resolved reports whether the outcome carries an answer.
func (o Outcome) Resolved() bool { return o.Answer != nil }

// Predictor is the remote AI collaborator surface.
type Predictor interface {
	Predict(ctx context.Context, req ai.Request) (ai.Response, error)
}

// Resolver resolves question blocks against a profile, the pattern store,
// and the AI service.
type Resolver struct {
	profile *profile.Profile
	store   *patterns.Store
	ai      Predictor
	logger  *zap.Logger
}

// New builds a resolver. The AI predictor may be nil, in which case tier 4
// is skipped.
func New(p *profile.Profile, store *patterns.Store, predictor Predictor, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{profile: p, store: store, ai: predictor, logger: logger}
}

// Resolve produces one outcome per block. Tiers 1-3 run sequentially per
// block; everything still unresolved is dispatched to the AI service
// concurrently, one call per question, with per-question failure isolation.
func (r *Resolver) Resolve(ctx context.Context, blocks []scanner.QuestionBlock) []Outcome {
	outcomes := make([]Outcome, len(blocks))
	var aiIdx []int

	for i, block := range blocks {
		outcomes[i].Block = block
		if ans, reason := r.resolveLocal(block); ans != nil {
			outcomes[i].Answer = ans
		} else if reason != "" {
			outcomes[i].Reason = reason
		} else {
			aiIdx = append(aiIdx, i)
		}
	}

	if len(aiIdx) > 0 && r.ai != nil {
		r.resolveAI(ctx, blocks, outcomes, aiIdx)
	} else {
		for _, i := range aiIdx {
			outcomes[i].Reason = "no local answer and AI unavailable"
		}
	}
	return outcomes
}

// resolveLocal runs tiers 1-3. A non-empty reason means the block is
// terminally skipped; an empty answer and reason means "try the AI tier".
func (r *Resolver) resolveLocal(block scanner.QuestionBlock) (*ResolvedAnswer, string) {
	// Tier 1: explicit user override for this exact question.
	if value, ok := r.profile.Override(block.Text); ok {
		if ans := r.acceptValue(block, value, SourceOverride, 1.0, ""); ans != nil {
			return ans, ""
		}
		// Override failed option validation: fall through to tier 2.
		r.logger.Debug("override did not validate against options", zap.String("question", block.Text))
	}

	// Tier 2: canonical profile mapping.
	if ans := r.resolveCanonical(block); ans != nil {
		return ans, ""
	}

	// Tier 3: learned patterns.
	if ans := r.resolveLearned(block); ans != nil {
		return ans, ""
	}

	return nil, ""
}

// acceptValue validates value against the block's options when it is
// option-constrained and builds the answer. nil means validation failed.
func (r *Resolver) acceptValue(block scanner.QuestionBlock, value, source string, confidence float64, intent string) *ResolvedAnswer {
	final := value
	if len(block.Options) > 0 {
		matched, ok := textmatch.MatchOption(value, block.Options)
		if !ok {
			return nil
		}
		final = matched
	}
	return &ResolvedAnswer{
		Selector:   block.Selector,
		Question:   block.Text,
		Value:      final,
		Source:     source,
		Confidence: confidence,
		Intent:     intent,
		Options:    block.Options,
	}
}

// resolveAI fires all outstanding questions concurrently and validates
// every answer against the live option set before acceptance. One call's
// failure never cancels its siblings.
func (r *Resolver) resolveAI(ctx context.Context, blocks []scanner.QuestionBlock, outcomes []Outcome, aiIdx []int) {
	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(aiConcurrency)

	for _, idx := range aiIdx {
		i := idx
		block := blocks[i]
		g.Go(func() error {
			resp, err := r.ai.Predict(ctx, ai.Request{
				Question:  block.Text,
				FieldType: string(block.Kind),
				Options:   block.Options,
				Profile:   r.profile,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				outcomes[i].Reason = "AI call failed: " + err.Error()
			case resp.Answer == "" || resp.Confidence < minAIConfidence:
				outcomes[i].Reason = "AI answer below confidence threshold"
			default:
				ans := r.acceptValue(block, resp.Answer, SourceAI, resp.Confidence, resp.Intent)
				if ans == nil {
					// The model proposed something not on the menu.
					outcomes[i].Reason = "AI answer did not match any option"
					return nil
				}
				outcomes[i].Answer = ans
				r.learn(block, resp, ans.Value)
			}
			return nil
		})
	}
	_ = g.Wait()
}
