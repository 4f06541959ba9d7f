package fill

import (
	"context"
	"fmt"

	"formpilot/internal/scanner"
	"formpilot/internal/textmatch"
)

// Committer is the per-widget commit primitive surface. The browser package
// provides the rod-backed implementation; tests substitute fakes.
type Committer interface {
	FillText(ctx context.Context, selector, value string) error
	SelectChoice(ctx context.Context, selector, value string) error
	SetCheckbox(ctx context.Context, selector string, checked bool) error
	SelectFromCustomDropdown(ctx context.Context, selector, value string) error
	UploadFile(ctx context.Context, selector, path string) error
}

// Commit dispatches one resolved value into the widget technology behind
// the block's control.
func Commit(ctx context.Context, c Committer, block scanner.QuestionBlock, value string) error {
	switch block.Kind {
	case scanner.KindText, scanner.KindTextarea, scanner.KindDate:
		return c.FillText(ctx, block.Selector, value)
	case scanner.KindSelect, scanner.KindRadio:
		return c.SelectChoice(ctx, block.Selector, value)
	case scanner.KindDropdown:
		return c.SelectFromCustomDropdown(ctx, block.Selector, value)
	case scanner.KindCheckbox:
		v := textmatch.Normalize(value)
		checked := v != "" && v != "no" && v != "false"
		return c.SetCheckbox(ctx, block.Selector, checked)
	case scanner.KindFile:
		return c.UploadFile(ctx, block.Selector, value)
	default:
		return fmt.Errorf("no commit primitive for control kind %q", block.Kind)
	}
}
