// Package controller drives a fill run end to end: scan the page, resolve
// every question, commit the answers through the synchronizer, and report.
// Two modes: simple (one pass) and reactive, for platforms that reload
// parts of the form after location answers are committed.
package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"formpilot/internal/browser"
	"formpilot/internal/config"
	"formpilot/internal/fill"
	"formpilot/internal/resolver"
	"formpilot/internal/scanner"
	"formpilot/internal/textmatch"
)

// Mode selects the filling strategy. Chosen once per run and never
// re-evaluated mid-run.
type Mode string

const (
	ModeSimple   Mode = "simple"
	ModeReactive Mode = "reactive"
)

// reactiveHosts are URL signatures of platforms known to reload form
// sections after certain answers.
var reactiveHosts = []string{
	"myworkdayjobs.com",
	"wd1.myworkdaysite.com",
	"icims.com",
	"successfactors",
}

// DetectMode picks the filling mode from the page URL.
func DetectMode(pageURL string) Mode {
	u := strings.ToLower(pageURL)
	for _, host := range reactiveHosts {
		if strings.Contains(u, host) {
			return ModeReactive
		}
	}
	return ModeSimple
}

// Keywords that mark a question as priority in reactive mode. Country-like
// questions additionally jump the queue and get an extra settling delay,
// since they are the usual reload trigger.
var (
	priorityKeywords = []string{"country", "location", "nationality", "citizenship", "residence", "where are you based"}
	countryKeywords  = []string{"country", "nationality", "citizenship"}
)

// Discoverer finds question blocks on a page.
type Discoverer interface {
	Scan(ctx context.Context, page *rod.Page) ([]scanner.QuestionBlock, error)
}

// Answerer resolves blocks to answers.
type Answerer interface {
	Resolve(ctx context.Context, blocks []scanner.QuestionBlock) []resolver.Outcome
}

// RunRecorder persists run outcomes. The pattern store implements it.
type RunRecorder interface {
	RecordRun(runID, url string, succeeded, failed int) error
}

// Controller orchestrates one fill run.
type Controller struct {
	scanner   Discoverer
	resolver  Answerer
	sync      *fill.Synchronizer
	committer fill.Committer
	recorder  RunRecorder
	notifier  Notifier
	cfg       config.FillConfig
	logger    *zap.Logger

	// newQuiescer binds the quiescence waiter to the live page. Tests
	// substitute a stub.
	newQuiescer func(page *rod.Page) Quiescer
}

// New wires a controller. recorder and notifier may be nil.
func New(disc Discoverer, ans Answerer, sync *fill.Synchronizer, committer fill.Committer, recorder RunRecorder, notifier Notifier, cfg config.FillConfig, logger *zap.Logger) *Controller {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		scanner:   disc,
		resolver:  ans,
		sync:      sync,
		committer: committer,
		recorder:  recorder,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
	}
	c.newQuiescer = func(page *rod.Page) Quiescer {
		return NewQuiescer(browser.NewDOMWatcher(page), browser.NewNetworkMonitor(page, logger), logger)
	}
	return c
}

// Run executes one fill run against page. A single field's failure never
// aborts the rest; errors are aggregated into the report.
func (c *Controller) Run(ctx context.Context, page *rod.Page, pageURL string, mode Mode) (Report, error) {
	rep := Report{RunID: uuid.NewString(), URL: pageURL, Mode: mode}

	blocks, err := c.scanner.Scan(ctx, page)
	if err != nil {
		return rep, err
	}
	outcomes := c.resolver.Resolve(ctx, blocks)
	rep.Total = len(outcomes)

	resolved, skipped := splitOutcomes(outcomes)
	for _, s := range skipped {
		rep.Skipped++
		rep.Failures = append(rep.Failures, FieldFailure{Question: s.Block.Text, Reason: s.Reason})
		c.notifier.FieldDone(FieldEvent{Question: s.Block.Text, OK: false, Reason: s.Reason})
	}

	switch mode {
	case ModeReactive:
		c.runReactive(ctx, page, resolved, &rep)
	default:
		c.commitAll(ctx, resolved, &rep)
	}

	if c.recorder != nil {
		if err := c.recorder.RecordRun(rep.RunID, pageURL, rep.Succeeded, rep.Failed); err != nil {
			c.logger.Warn("failed to record fill run", zap.Error(err))
		}
	}
	c.notifier.RunDone(rep)
	c.logger.Info("fill run complete",
		zap.String("run_id", rep.RunID),
		zap.String("mode", string(mode)),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed),
		zap.Int("skipped", rep.Skipped))
	return rep, nil
}

func splitOutcomes(outcomes []resolver.Outcome) (resolved, skipped []resolver.Outcome) {
	for _, o := range outcomes {
		if o.Resolved() {
			resolved = append(resolved, o)
		} else {
			skipped = append(skipped, o)
		}
	}
	return resolved, skipped
}

// commitAll commits every resolved answer in order with a short settling
// delay between fields.
func (c *Controller) commitAll(ctx context.Context, resolved []resolver.Outcome, rep *Report) {
	for _, o := range resolved {
		c.commitOne(ctx, o.Block, o.Answer, rep)
		c.settle(ctx, c.fieldSettle())
	}
}

// runReactive commits priority fields first, waits for the page to settle
// and reveal its follow-up fields, rescans, and commits the rest against
// the rescanned field set.
func (c *Controller) runReactive(ctx context.Context, page *rod.Page, resolved []resolver.Outcome, rep *Report) {
	priority, regular := partition(resolved)

	for _, o := range priority {
		c.commitOne(ctx, o.Block, o.Answer, rep)
		if isCountryLike(o.Block.Text) {
			c.settle(ctx, c.countrySettle())
		} else {
			c.settle(ctx, c.fieldSettle())
		}
	}

	if len(priority) > 0 {
		if err := c.newQuiescer(page).Wait(ctx); err != nil {
			c.logger.Warn("quiescence wait failed, continuing", zap.Error(err))
		}
		fresh, err := c.scanner.Scan(ctx, page)
		if err != nil {
			c.logger.Warn("rescan failed, committing against stale blocks", zap.Error(err))
		} else {
			regular = rematch(regular, fresh)
		}
	}

	for _, o := range regular {
		if !o.Resolved() {
			rep.Skipped++
			rep.Failures = append(rep.Failures, FieldFailure{Question: o.Block.Text, Reason: o.Reason})
			c.notifier.FieldDone(FieldEvent{Question: o.Block.Text, OK: false, Reason: o.Reason})
			continue
		}
		c.commitOne(ctx, o.Block, o.Answer, rep)
		c.settle(ctx, c.fieldSettle())
	}
}

// partition splits resolved answers into priority and regular, with
// country-like questions forced to the front of the priority list.
func partition(resolved []resolver.Outcome) (priority, regular []resolver.Outcome) {
	var countries, others []resolver.Outcome
	for _, o := range resolved {
		switch {
		case isCountryLike(o.Block.Text):
			countries = append(countries, o)
		case isPriority(o.Block.Text):
			others = append(others, o)
		default:
			regular = append(regular, o)
		}
	}
	priority = append(countries, others...)
	return priority, regular
}

func isPriority(question string) bool {
	return containsAny(textmatch.Normalize(question), priorityKeywords)
}

func isCountryLike(question string) bool {
	return containsAny(textmatch.Normalize(question), countryKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// rematch re-binds answers resolved before the reload to blocks from the
// rescan. The automation identifier is tried first, then the stable hash,
// then text similarity. Answers with no surviving block keep their original
// block: the field may simply have been untouched by the reload. A rebound
// answer is revalidated against the fresh block's option set; values the
// reload removed from the menu become skips instead of doomed commits.
func rematch(resolved []resolver.Outcome, fresh []scanner.QuestionBlock) []resolver.Outcome {
	out := make([]resolver.Outcome, 0, len(resolved))
	for _, o := range resolved {
		if b, ok := matchBlock(o.Block, fresh); ok {
			o.Answer.Selector = b.Selector
			o.Answer.Options = b.Options
			o.Block = b
			if len(b.Options) > 0 {
				matched, ok := textmatch.MatchOption(o.Answer.Value, b.Options)
				if !ok {
					o.Reason = fmt.Sprintf("value %q no longer among the reloaded options", o.Answer.Value)
					o.Answer = nil
					out = append(out, o)
					continue
				}
				o.Answer.Value = matched
			}
		}
		out = append(out, o)
	}
	return out
}

func matchBlock(old scanner.QuestionBlock, fresh []scanner.QuestionBlock) (scanner.QuestionBlock, bool) {
	if old.AutomationID != "" {
		for _, b := range fresh {
			if b.AutomationID == old.AutomationID {
				return b, true
			}
		}
	}
	if old.Hash != 0 {
		for _, b := range fresh {
			if b.Hash == old.Hash {
				return b, true
			}
		}
	}
	oldText := textmatch.Normalize(old.Text)
	var best scanner.QuestionBlock
	bestScore := 0.0
	for _, b := range fresh {
		if b.Kind != old.Kind {
			continue
		}
		if score := textmatch.KeywordOverlap(oldText, textmatch.Normalize(b.Text)); score > bestScore {
			best, bestScore = b, score
		}
	}
	if bestScore >= 0.7 {
		return best, true
	}
	return scanner.QuestionBlock{}, false
}

// commitOne pushes one answer through the synchronizer and records the
// outcome.
func (c *Controller) commitOne(ctx context.Context, block scanner.QuestionBlock, ans *resolver.ResolvedAnswer, rep *Report) {
	key := fill.LockKey(block.Selector, block.Text)
	res, err := c.sync.Do(ctx, key, func(opCtx context.Context) error {
		return fill.Commit(opCtx, c.committer, block, ans.Value)
	})

	ev := FieldEvent{Question: block.Text, Value: ans.Value, Source: ans.Source, Retries: res.Retries}
	if err != nil {
		rep.Failed++
		ev.Reason = err.Error()
		rep.Failures = append(rep.Failures, FieldFailure{Question: block.Text, Reason: err.Error()})
		c.logger.Warn("field commit failed",
			zap.String("question", block.Text),
			zap.Int("attempts", res.Attempts),
			zap.Error(err))
	} else {
		rep.Succeeded++
		ev.OK = true
		c.logger.Debug("field committed",
			zap.String("question", block.Text),
			zap.String("source", ans.Source),
			zap.Int("retries", res.Retries))
	}
	c.notifier.FieldDone(ev)
}

func (c *Controller) settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func (c *Controller) fieldSettle() time.Duration {
	if c.cfg.FieldSettleMs <= 0 {
		return 150 * time.Millisecond
	}
	return time.Duration(c.cfg.FieldSettleMs) * time.Millisecond
}

func (c *Controller) countrySettle() time.Duration {
	if c.cfg.CountrySettleMs <= 0 {
		return 750 * time.Millisecond
	}
	return time.Duration(c.cfg.CountrySettleMs) * time.Millisecond
}
