package scanner

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// assembleBlocks turns raw control snapshots into deduplicated, ordered
// question blocks. Pure function so the association heuristics are testable
// without a browser.
func assembleBlocks(pageURL, frameID string, res walkResult, maxQuestionChars int) []QuestionBlock {
	type group struct {
		rep     controlSnapshot
		kind    ControlKind
		labels  []string
		anyReq  bool
	}

	var singles []controlSnapshot
	groups := make(map[string]*group)
	order := make([]string, 0)

	for _, c := range res.Controls {
		kind := inferKind(c)
		if kind == KindRadio || kind == KindCheckbox {
			key := string(kind) + "|" + c.GroupKey
			g, ok := groups[key]
			if !ok {
				g = &group{rep: c, kind: kind}
				groups[key] = g
				order = append(order, key)
			}
			if lbl := strings.TrimSpace(c.OwnLabel); lbl != "" {
				g.labels = append(g.labels, lbl)
			}
			g.anyReq = g.anyReq || isRequired(c)
			continue
		}
		singles = append(singles, c)
	}

	blocks := make([]QuestionBlock, 0, len(singles)+len(groups))
	seen := make(map[uint64]bool)

	add := func(c controlSnapshot, kind ControlKind, options []string, required bool, questionText string) {
		text := truncate(strings.TrimSpace(questionText), maxQuestionChars)
		if text == "" {
			// Discovery miss: no resolvable question text, drop silently.
			return
		}
		h := BlockHash(pageURL, res.StepIndex, text, kind)
		if seen[h] {
			return
		}
		seen[h] = true
		blocks = append(blocks, QuestionBlock{
			Hash:         h,
			Text:         text,
			Kind:         kind,
			Selector:     c.Selector,
			AutomationID: c.AutomationID,
			Required:     required,
			StepIndex:    res.StepIndex,
			Options:      options,
			FrameID:      frameID,
			X:            c.X,
			Y:            c.Y,
		})
	}

	for _, c := range singles {
		kind := inferKind(c)
		add(c, kind, c.Options, isRequired(c), questionText(c, kind))
	}

	for _, key := range order {
		g := groups[key]
		// A multi-control group reads as one block; the group label comes
		// from the container, never from an individual item.
		text := firstNonEmpty(g.rep.Legend, g.rep.AriaLabel, groupLabel(g.rep), g.rep.BlockText)
		add(g.rep, g.kind, dedupeStrings(g.labels), g.anyReq || strings.Contains(g.rep.BlockText, "*"), text)
	}

	// Reading order: vertical position first, then horizontal.
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Y != blocks[j].Y {
			return blocks[i].Y < blocks[j].Y
		}
		return blocks[i].X < blocks[j].X
	})
	return blocks
}

// inferKind maps tag/role/type onto the closed control-kind set. ARIA
// combobox and listbox roles win over the generic text-input check because
// several platforms render custom dropdowns as a text input with an
// accessibility role overlay.
func inferKind(c controlSnapshot) ControlKind {
	switch c.Role {
	case "combobox", "listbox":
		return KindDropdown
	}
	switch c.Tag {
	case "select":
		return KindSelect
	case "textarea":
		return KindTextarea
	}
	switch c.Type {
	case "radio":
		return KindRadio
	case "checkbox":
		return KindCheckbox
	case "file":
		return KindFile
	case "date", "datetime-local", "month":
		return KindDate
	}
	return KindText
}

// questionText derives the block's question by label priority: explicit
// accessible label, labelledby association, label[for], nearest label,
// placeholder.
func questionText(c controlSnapshot, kind ControlKind) string {
	return firstNonEmpty(c.AriaLabel, c.LabelledBy, c.LabelFor, c.NearLabel, c.Placeholder)
}

// groupLabel strips the member option labels out of the block text so a
// radio group's question is not polluted by its choices.
func groupLabel(c controlSnapshot) string {
	text := c.BlockText
	if c.OwnLabel != "" {
		text = strings.ReplaceAll(text, c.OwnLabel, "")
	}
	return strings.TrimSpace(text)
}

func isRequired(c controlSnapshot) bool {
	return c.Required || c.AriaRequired || strings.Contains(c.BlockText, "*")
}

func firstNonEmpty(candidates ...string) string {
	for _, s := range candidates {
		if strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
