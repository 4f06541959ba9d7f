package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"formpilot/internal/config"
)

// Scanner produces the ordered question blocks for a page, including any
// same-origin iframes.
type Scanner struct {
	cfg    config.ScanConfig
	waiter *OptionWaiter
	logger *zap.Logger
}

// New builds a scanner.
func New(cfg config.ScanConfig, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		cfg:    cfg,
		waiter: NewOptionWaiter(time.Duration(cfg.OptionWaitMs)*time.Millisecond, cfg.MinOptions, logger),
		logger: logger,
	}
}

// Scan walks the main document and every reachable iframe, assembles
// question blocks, and populates option lists for choice-style controls.
// Scanning the same static document twice yields identical hashes and
// ordering.
func (s *Scanner) Scan(ctx context.Context, page *rod.Page) ([]QuestionBlock, error) {
	info, err := page.Context(ctx).Info()
	if err != nil {
		return nil, fmt.Errorf("read page info: %w", err)
	}
	pageURL := info.URL

	blocks, err := s.scanFrame(ctx, page, pageURL, "")
	if err != nil {
		return nil, err
	}

	// Embedded application frames (common on ATS-hosted forms).
	iframes, err := page.Context(ctx).Elements("iframe")
	if err == nil {
		for i, el := range iframes {
			frame, err := el.Frame()
			if err != nil {
				continue
			}
			frameID := fmt.Sprintf("frame-%d", i)
			fb, err := s.scanFrame(ctx, frame, pageURL, frameID)
			if err != nil {
				s.logger.Debug("iframe scan failed", zap.String("frame", frameID), zap.Error(err))
				continue
			}
			blocks = append(blocks, fb...)
		}
	}

	return blocks, nil
}

func (s *Scanner) scanFrame(ctx context.Context, page *rod.Page, pageURL, frameID string) ([]QuestionBlock, error) {
	p := page.Context(ctx)

	res, err := p.Evaluate(rod.Eval(walkJS, s.cfg.MaxNodes, s.cfg.ChunkBudgetMs).ByPromise())
	if err != nil {
		return nil, fmt.Errorf("walk page: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("decode walk result: %w", err)
	}
	var wr walkResult
	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, fmt.Errorf("decode walk result: %w", err)
	}
	if wr.Truncated {
		s.logger.Warn("scan truncated at node cap", zap.Int("max_nodes", s.cfg.MaxNodes))
	}

	blocks := assembleBlocks(pageURL, frameID, wr, s.cfg.QuestionMaxChars)

	// Custom dropdowns need their overlay menus observed; menu-open
	// animations and lazy option fetches legitimately need a second chance,
	// hence the backoff retry when the first pass comes up empty.
	for i := range blocks {
		if blocks[i].Kind != KindDropdown || len(blocks[i].Options) > 0 {
			continue
		}
		blocks[i].Options = s.collectWithRetry(ctx, page, blocks[i])
	}

	s.logger.Info("frame scanned",
		zap.String("frame", frameID),
		zap.Int("controls", len(wr.Controls)),
		zap.Int("blocks", len(blocks)),
		zap.Int("step", wr.StepIndex))
	return blocks, nil
}

// collectWithRetry wraps the option waiter in a bounded retry loop with
// exponential backoff, doubling the base delay per attempt.
func (s *Scanner) collectWithRetry(ctx context.Context, page *rod.Page, block QuestionBlock) []string {
	backoff := time.Duration(s.cfg.OptionBackoffMs) * time.Millisecond
	attempts := s.cfg.OptionRetries + 1

	var options []string
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return options
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		got, err := s.waiter.Collect(ctx, page, block)
		if err != nil {
			s.logger.Debug("option collection attempt failed",
				zap.String("selector", block.Selector), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		options = got
		if len(options) > 0 {
			break
		}
	}
	// Empty is not an error: the caller falls back to free text.
	return options
}
