package scanner

// controlSnapshot is the raw per-control record produced by the in-page
// walker. Everything that requires live DOM access is captured here; the
// rest of the pipeline works on these snapshots.
type controlSnapshot struct {
	Tag          string   `json:"tag"`
	Type         string   `json:"type"`
	Role         string   `json:"role"`
	Selector     string   `json:"selector"`
	AutomationID string   `json:"automationId"`
	AriaLabel    string   `json:"ariaLabel"`
	LabelledBy   string   `json:"labelledBy"`
	LabelFor     string   `json:"labelFor"`
	NearLabel    string   `json:"nearLabel"`
	Placeholder  string   `json:"placeholder"`
	OwnLabel     string   `json:"ownLabel"` // radio/checkbox item label
	Legend       string   `json:"legend"`
	BlockText    string   `json:"blockText"`
	GroupKey     string   `json:"groupKey"`
	Required     bool     `json:"required"`
	AriaRequired bool     `json:"ariaRequired"`
	Options      []string `json:"options"` // native select only
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
}

// walkResult is the full output of one frame walk.
type walkResult struct {
	Controls  []controlSnapshot `json:"controls"`
	StepIndex int               `json:"stepIndex"`
	Truncated bool              `json:"truncated"`
}

// walkJS walks visible interactive nodes and snapshots them. The walk is
// chunk-yielded: after each chunk budget expires it yields the event loop
// with setTimeout(0) so the host page stays responsive, and it hard-caps
// the number of nodes visited. Parameters: maxNodes, chunkBudgetMs.
const walkJS = `
async (maxNodes, chunkBudgetMs) => {
	const visible = (el) => {
		if (!el || !el.getBoundingClientRect) return false;
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return false;
		const st = window.getComputedStyle(el);
		if (st.display === 'none' || st.visibility === 'hidden') return false;
		if (parseFloat(st.opacity || '1') === 0) return false;
		return true;
	};

	const text = (el) => (el && el.textContent ? el.textContent.replace(/\s+/g, ' ').trim() : '');

	const cssPath = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		const parts = [];
		let cur = el;
		while (cur && cur.nodeType === 1 && parts.length < 6) {
			let part = cur.tagName.toLowerCase();
			if (cur.id) { parts.unshift(part + '#' + CSS.escape(cur.id)); break; }
			const name = cur.getAttribute('name');
			if (name) part += '[name="' + name.replace(/"/g, '\\"') + '"]';
			else {
				let idx = 1, sib = cur;
				while ((sib = sib.previousElementSibling)) {
					if (sib.tagName === cur.tagName) idx++;
				}
				part += ':nth-of-type(' + idx + ')';
			}
			parts.unshift(part);
			cur = cur.parentElement;
		}
		return parts.join(' > ');
	};

	// Block root: prefer a semantic grouping container, else climb until the
	// accumulated text is long enough, bounded so we never swallow the page.
	const blockRoot = (el) => {
		const sem = el.closest('fieldset, [role="group"], [role="radiogroup"], ' +
			'[class*="question"], [class*="form-group"], [class*="form-field"], ' +
			'[class*="field-wrapper"], [id*="question"]');
		if (sem && text(sem).length < 900) return sem;
		let cur = el.parentElement;
		let depth = 0;
		while (cur && depth < 6) {
			const t = text(cur);
			if (t.length >= 30) {
				if (t.length > 600) return cur.children.length ? el.parentElement : cur;
				return cur;
			}
			cur = cur.parentElement;
			depth++;
		}
		return el.parentElement || el;
	};

	const labelledByText = (el) => {
		const ids = (el.getAttribute('aria-labelledby') || '').split(/\s+/).filter(Boolean);
		return ids.map(id => text(document.getElementById(id))).filter(Boolean).join(' ');
	};

	const labelForText = (el) => {
		if (!el.id) return '';
		try {
			const lbl = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
			return text(lbl);
		} catch (e) { return ''; }
	};

	const nearLabelText = (el, root) => {
		const wrap = el.closest('label');
		if (wrap) return text(wrap);
		let prev = el.previousElementSibling;
		while (prev) {
			if (prev.tagName === 'LABEL' || /^H[1-6]$/.test(prev.tagName)) return text(prev);
			prev = prev.previousElementSibling;
		}
		const lbl = root ? root.querySelector('label, legend') : null;
		return text(lbl);
	};

	// Pipeline-step indicator, default 0.
	let stepIndex = 0;
	const active = document.querySelector('[aria-current="step"], .step.active, .step--active, [class*="step"][class*="active"]');
	if (active && active.parentElement) {
		const sibs = Array.from(active.parentElement.children);
		const i = sibs.indexOf(active);
		if (i >= 0) stepIndex = i;
	}

	const sel = 'input, textarea, select, [role="combobox"], [role="listbox"], ' +
		'[role="spinbutton"], [aria-haspopup="listbox"]';
	const all = Array.from(document.querySelectorAll(sel));

	const controls = [];
	let visited = 0;
	let truncated = false;
	let chunkStart = Date.now();

	for (const el of all) {
		if (visited >= maxNodes) { truncated = true; break; }
		visited++;

		if (Date.now() - chunkStart > chunkBudgetMs) {
			await new Promise(r => setTimeout(r, 0));
			chunkStart = Date.now();
		}

		if (el.disabled || el.type === 'hidden' || !visible(el)) continue;

		const root = blockRoot(el);
		const r = el.getBoundingClientRect();
		const typ = (el.getAttribute('type') || '').toLowerCase();
		const role = (el.getAttribute('role') || '').toLowerCase();

		let options = [];
		if (el.tagName === 'SELECT') {
			options = Array.from(el.options).map(o => o.textContent.trim()).filter(Boolean);
		}

		let groupKey = '';
		if (typ === 'radio' || typ === 'checkbox') {
			groupKey = el.getAttribute('name') || (root ? cssPath(root) : '');
		}

		controls.push({
			tag: el.tagName.toLowerCase(),
			type: typ,
			role: role,
			selector: cssPath(el),
			automationId: el.getAttribute('data-automation-id') || el.getAttribute('data-testid') || '',
			ariaLabel: el.getAttribute('aria-label') || '',
			labelledBy: labelledByText(el),
			labelFor: labelForText(el),
			nearLabel: nearLabelText(el, root),
			placeholder: el.getAttribute('placeholder') || '',
			ownLabel: (typ === 'radio' || typ === 'checkbox') ? (labelForText(el) || text(el.closest('label'))) : '',
			legend: root ? text(root.querySelector('legend')) : '',
			blockText: text(root),
			groupKey: groupKey,
			required: el.required === true,
			ariaRequired: el.getAttribute('aria-required') === 'true',
			options: options,
			x: r.left,
			y: r.top,
		});
	}

	return { controls: controls, stepIndex: stepIndex, truncated: truncated };
}
`
