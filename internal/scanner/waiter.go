package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"go.uber.org/zap"
)

// OptionWaiter returns the rendered labels of an asynchronously populated
// choice menu. Native selects never get here — their options are read
// statically during the walk. Timeouts are not errors: the waiter returns
// whatever it found and the caller treats an empty list as free-text
// fallback.
type OptionWaiter struct {
	Timeout  time.Duration
	MinCount int
	logger   *zap.Logger
}

// NewOptionWaiter builds a waiter with the given settle parameters.
func NewOptionWaiter(timeout time.Duration, minCount int, logger *zap.Logger) *OptionWaiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	if minCount <= 0 {
		minCount = 2
	}
	return &OptionWaiter{Timeout: timeout, MinCount: minCount, logger: logger}
}

// collectOptionsJS scans likely menu roots (portal/overlay containers, the
// document body, and any shadow subtrees found by a bounded tree walk) for
// visible option-like elements. If not enough are found immediately it
// installs a MutationObserver plus an animation-frame recheck and waits
// until the minimum count is satisfied or the timeout elapses. The observer
// is always disconnected before the promise settles.
const collectOptionsJS = `
async (minCount, timeoutMs) => {
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return false;
		const st = window.getComputedStyle(el);
		return st.display !== 'none' && st.visibility !== 'hidden' && parseFloat(st.opacity || '1') > 0;
	};

	const collectFrom = (root, out) => {
		const nodes = root.querySelectorAll(
			'[role="option"], [data-value], ' +
			'ul[class*="menu"] li, ul[class*="dropdown"] li, ul[role="listbox"] li, ' +
			'[class*="option"]:not(option)');
		for (const n of nodes) {
			if (!visible(n)) continue;
			const t = (n.textContent || '').replace(/\s+/g, ' ').trim();
			if (t && t.length < 200) out.add(t);
		}
	};

	const shadowRoots = () => {
		const found = [];
		const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_ELEMENT);
		let count = 0;
		let node;
		while ((node = walker.nextNode()) && count < 3000) {
			count++;
			if (node.shadowRoot) found.push(node.shadowRoot);
		}
		return found;
	};

	const snapshot = () => {
		const out = new Set();
		const roots = document.querySelectorAll(
			'[class*="portal"], [class*="overlay"], [class*="popover"], [class*="popper"], ' +
			'[id*="portal"], [id*="menu"], [data-radix-popper-content-wrapper]');
		for (const r of roots) collectFrom(r, out);
		collectFrom(document.body, out);
		for (const sr of shadowRoots()) collectFrom(sr, out);
		return Array.from(out);
	};

	let found = snapshot();
	if (found.length >= minCount) return found;

	return await new Promise((resolve) => {
		let done = false;
		let rafId = 0;
		const obs = new MutationObserver(() => check());
		const finish = (result) => {
			if (done) return;
			done = true;
			obs.disconnect();
			if (rafId) cancelAnimationFrame(rafId);
			clearTimeout(timer);
			resolve(result);
		};
		const check = () => {
			if (done) return;
			found = snapshot();
			if (found.length >= minCount) finish(found);
		};
		const loop = () => {
			if (done) return;
			check();
			rafId = requestAnimationFrame(loop);
		};
		const timer = setTimeout(() => finish(found), timeoutMs);
		obs.observe(document.body, { childList: true, subtree: true });
		rafId = requestAnimationFrame(loop);
	});
}
`

// Collect opens the dropdown rooted at block.Selector, gathers its rendered
// option labels, and closes the menu again. An empty result is valid.
func (w *OptionWaiter) Collect(ctx context.Context, page *rod.Page, block QuestionBlock) ([]string, error) {
	p := page.Context(ctx)

	el, err := p.Element(block.Selector)
	if err != nil {
		return nil, fmt.Errorf("locate dropdown %s: %w", block.Selector, err)
	}
	if err := el.Click("left", 1); err != nil {
		return nil, fmt.Errorf("open dropdown %s: %w", block.Selector, err)
	}

	res, err := p.Evaluate(rod.Eval(collectOptionsJS, w.MinCount, int(w.Timeout.Milliseconds())).ByPromise())
	// Close the menu regardless of how collection went.
	_ = p.Keyboard.Press(input.Escape)
	if err != nil {
		return nil, fmt.Errorf("collect options for %s: %w", block.Selector, err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	var options []string
	if err := json.Unmarshal(raw, &options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}

	w.logger.Debug("dropdown options collected",
		zap.String("selector", block.Selector), zap.Int("count", len(options)))
	return options, nil
}
