// Package scanner discovers fillable questions on the current page. The
// in-page walk runs as injected JavaScript returning raw control snapshots;
// block grouping, question-text derivation, control-kind inference, hashing
// and ordering happen in Go.
package scanner

import (
	"fmt"
	"hash/fnv"

	"formpilot/internal/textmatch"
)

// ControlKind is the closed set of widget technologies the pipeline can
// commit into.
type ControlKind string

const (
	KindText     ControlKind = "text"
	KindTextarea ControlKind = "textarea"
	KindSelect   ControlKind = "select"   // native <select>
	KindDropdown ControlKind = "dropdown" // ARIA combobox/listbox overlay widget
	KindRadio    ControlKind = "radio"
	KindCheckbox ControlKind = "checkbox"
	KindFile     ControlKind = "file"
	KindDate     ControlKind = "date"
)

// QuestionBlock is one discovered question plus its primary control.
// Blocks are recreated on every scan pass and never persisted.
type QuestionBlock struct {
	Hash         uint64
	Text         string
	Kind         ControlKind
	Selector     string
	AutomationID string
	Required     bool
	StepIndex    int
	Options      []string
	FrameID      string

	// Reading-order position.
	X, Y float64
}

// BlockHash derives the stable hash for duplicate detection. It must be
// reproducible across scans of the same page state and must differ across
// steps of a multi-step form, so the step index participates.
func BlockHash(pageURL string, step int, questionText string, kind ControlKind) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%s|%s", pageURL, step, textmatch.Normalize(questionText), kind)
	return h.Sum64()
}
