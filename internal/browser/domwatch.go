package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
)

// DOMWatcher counts interactive elements added to the document after
// installation. Used by the reactive filling mode to detect the fields a
// form reveals once key answers are committed.
type DOMWatcher struct {
	page *rod.Page
}

// NewDOMWatcher builds a watcher for page.
func NewDOMWatcher(page *rod.Page) *DOMWatcher {
	return &DOMWatcher{page: page}
}

const installWatchJS = `
() => {
	if (window.__fpDomWatch) return true;
	const interactive = 'input, textarea, select, [role="combobox"], [role="listbox"]';
	const state = { count: 0, obs: null };
	state.obs = new MutationObserver((mutations) => {
		for (const m of mutations) {
			for (const node of m.addedNodes) {
				if (node.nodeType !== 1) continue;
				if (node.matches && node.matches(interactive)) state.count++;
				if (node.querySelectorAll) state.count += node.querySelectorAll(interactive).length;
			}
		}
	});
	state.obs.observe(document.body, { childList: true, subtree: true });
	window.__fpDomWatch = state;
	return true;
}
`

const readWatchJS = `
() => window.__fpDomWatch ? window.__fpDomWatch.count : 0
`

const uninstallWatchJS = `
() => {
	if (window.__fpDomWatch) {
		window.__fpDomWatch.obs.disconnect();
		delete window.__fpDomWatch;
	}
	return true;
}
`

// Install starts observing DOM additions.
func (w *DOMWatcher) Install(ctx context.Context) error {
	if _, err := w.page.Context(ctx).Eval(installWatchJS); err != nil {
		return fmt.Errorf("install dom watcher: %w", err)
	}
	return nil
}

// NewFieldCount returns the number of interactive elements added since
// Install.
func (w *DOMWatcher) NewFieldCount(ctx context.Context) (int, error) {
	res, err := w.page.Context(ctx).Eval(readWatchJS)
	if err != nil {
		return 0, fmt.Errorf("read dom watcher: %w", err)
	}
	return res.Value.Int(), nil
}

// Uninstall disconnects the in-page observer. Must run on every exit path
// of the quiescence wait.
func (w *DOMWatcher) Uninstall(ctx context.Context) error {
	if _, err := w.page.Context(ctx).Eval(uninstallWatchJS); err != nil {
		return fmt.Errorf("uninstall dom watcher: %w", err)
	}
	return nil
}
