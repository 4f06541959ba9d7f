package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"formpilot/internal/textmatch"
)

// Committer implements the per-widget commit primitives against rod. Every
// primitive verifies its own effect by re-reading the committed value; an
// unverified mutation is reported as an error so the synchronizer can retry.
type Committer struct {
	page   *rod.Page
	logger *zap.Logger
}

// NewCommitter builds a committer for page.
func NewCommitter(page *rod.Page, logger *zap.Logger) *Committer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Committer{page: page, logger: logger}
}

func (c *Committer) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := c.page.Context(ctx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", selector, err)
	}
	_ = el.ScrollIntoView()
	return el, nil
}

// FillText types value into a text-like control and verifies the committed
// value reads back.
func (c *Committer) FillText(ctx context.Context, selector, value string) error {
	el, err := c.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("input into %s: %w", selector, err)
	}

	got, err := el.Property("value")
	if err != nil {
		return fmt.Errorf("read back %s: %w", selector, err)
	}
	if strings.TrimSpace(got.Str()) != strings.TrimSpace(value) {
		return fmt.Errorf("text commit did not verify on %s: got %q want %q", selector, got.Str(), value)
	}
	return nil
}

// SelectChoice picks the option whose label matches value. Handles both a
// native select and a radio group (the block's representative control is a
// single radio input; the matching sibling is found by label text).
func (c *Committer) SelectChoice(ctx context.Context, selector, value string) error {
	el, err := c.element(ctx, selector)
	if err != nil {
		return err
	}

	tag, err := el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", selector, err)
	}
	if tag.Value.Str() != "select" {
		return c.selectRadio(ctx, el, selector, value)
	}

	if err := el.Select([]string{value}, true, rod.SelectorTypeText); err != nil {
		return fmt.Errorf("select %q on %s: %w", value, selector, err)
	}

	res, err := el.Eval(`() => this.selectedOptions[0] ? this.selectedOptions[0].textContent.trim() : ''`)
	if err != nil {
		return fmt.Errorf("read back %s: %w", selector, err)
	}
	if textmatch.Normalize(res.Value.Str()) != textmatch.Normalize(value) {
		return fmt.Errorf("select commit did not verify on %s: got %q want %q", selector, res.Value.Str(), value)
	}
	return nil
}

// selectRadioJS clicks the radio in this control's group whose label
// matches the wanted text, returning whether a click landed and verified.
const selectRadioJS = `
(want) => {
	const norm = (s) => s.toLowerCase().replace(/[*?!.,;:'"]/g, '').replace(/\s+/g, ' ').trim();
	const nw = norm(want);
	const name = this.getAttribute('name');
	const radios = name
		? Array.from(document.querySelectorAll('input[type="radio"][name="' + CSS.escape(name) + '"]'))
		: [this];
	const labelOf = (r) => {
		if (r.id) {
			const l = document.querySelector('label[for="' + CSS.escape(r.id) + '"]');
			if (l) return l.textContent || '';
		}
		const wrap = r.closest('label');
		return wrap ? (wrap.textContent || '') : '';
	};
	let target = radios.find(r => norm(labelOf(r)) === nw);
	if (!target) target = radios.find(r => norm(labelOf(r)).includes(nw) || nw.includes(norm(labelOf(r))));
	if (!target) return false;
	target.click();
	return target.checked === true;
}
`

func (c *Committer) selectRadio(ctx context.Context, el *rod.Element, selector, value string) error {
	res, err := el.Eval(selectRadioJS, value)
	if err != nil {
		return fmt.Errorf("select radio on %s: %w", selector, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("radio commit did not verify on %s for %q", selector, value)
	}
	return nil
}

// SetCheckbox toggles the control to the desired state, clicking only when
// the current state differs.
func (c *Committer) SetCheckbox(ctx context.Context, selector string, checked bool) error {
	el, err := c.element(ctx, selector)
	if err != nil {
		return err
	}
	cur, err := el.Property("checked")
	if err != nil {
		return fmt.Errorf("read %s: %w", selector, err)
	}
	if cur.Bool() != checked {
		if err := el.Click("left", 1); err != nil {
			return fmt.Errorf("click %s: %w", selector, err)
		}
	}

	got, err := el.Property("checked")
	if err != nil {
		return fmt.Errorf("read back %s: %w", selector, err)
	}
	if got.Bool() != checked {
		return fmt.Errorf("checkbox commit did not verify on %s", selector)
	}
	return nil
}

// pickOptionJS clicks the first visible rendered option whose text matches
// the wanted value, exact normalized match first, then containment.
// Returns the clicked option's text, or "" when nothing matched.
const pickOptionJS = `
(want) => {
	const norm = (s) => s.toLowerCase().replace(/[*?!.,;:'"]/g, '').replace(/\s+/g, ' ').trim();
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return false;
		const st = window.getComputedStyle(el);
		return st.display !== 'none' && st.visibility !== 'hidden';
	};
	const nodes = Array.from(document.querySelectorAll(
		'[role="option"], [data-value], ul[class*="menu"] li, ul[class*="dropdown"] li, ul[role="listbox"] li'))
		.filter(visible);
	const nw = norm(want);
	let target = nodes.find(n => norm(n.textContent || '') === nw);
	if (!target) target = nodes.find(n => norm(n.textContent || '').includes(nw) || nw.includes(norm(n.textContent || '')));
	if (!target) return '';
	const text = (target.textContent || '').replace(/\s+/g, ' ').trim();
	target.click();
	return text;
}
`

// SelectFromCustomDropdown opens an ARIA combobox-style widget, clicks the
// matching rendered option, and verifies the widget now displays it.
func (c *Committer) SelectFromCustomDropdown(ctx context.Context, selector, value string) error {
	el, err := c.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click("left", 1); err != nil {
		return fmt.Errorf("open dropdown %s: %w", selector, err)
	}

	res, err := c.page.Context(ctx).Eval(pickOptionJS, value)
	if err != nil {
		return fmt.Errorf("pick option on %s: %w", selector, err)
	}
	clicked := res.Value.Str()
	if clicked == "" {
		return fmt.Errorf("no rendered option matched %q on %s", value, selector)
	}

	// Re-read: the widget shows the selection either as its value or text.
	shown, err := el.Eval(`() => (this.value || this.textContent || '').replace(/\s+/g, ' ').trim()`)
	if err != nil {
		return fmt.Errorf("read back %s: %w", selector, err)
	}
	display := textmatch.Normalize(shown.Value.Str())
	if display != "" && !strings.Contains(display, textmatch.Normalize(clicked)) {
		return fmt.Errorf("dropdown commit did not verify on %s: shows %q, picked %q", selector, shown.Value.Str(), clicked)
	}

	c.logger.Debug("dropdown option committed", zap.String("selector", selector), zap.String("option", clicked))
	return nil
}

// UploadFile attaches path to a file input and verifies a file is present.
func (c *Committer) UploadFile(ctx context.Context, selector, path string) error {
	el, err := c.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SetFiles([]string{path}); err != nil {
		return fmt.Errorf("set files on %s: %w", selector, err)
	}

	res, err := el.Eval(`() => this.files ? this.files.length : 0`)
	if err != nil {
		return fmt.Errorf("read back %s: %w", selector, err)
	}
	if res.Value.Int() == 0 {
		return fmt.Errorf("file commit did not verify on %s", selector)
	}
	return nil
}
