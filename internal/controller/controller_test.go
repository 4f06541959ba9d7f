package controller

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-rod/rod"

	"formpilot/internal/config"
	"formpilot/internal/fill"
	"formpilot/internal/resolver"
	"formpilot/internal/scanner"
)

func fastFillConfig() config.FillConfig {
	return config.FillConfig{
		OperationTimeoutMs: 1000,
		MaxAttempts:        3,
		BackoffBaseMs:      1,
		BackoffMultiplier:  2.0,
		FieldSettleMs:      1,
		CountrySettleMs:    1,
	}
}

func fastSync() *fill.Synchronizer {
	return fill.NewSynchronizer(fill.Policy{MaxAttempts: 3, BackoffBase: 1, BackoffMult: 2}, nil)
}

// fakeDiscoverer returns a fixed block set per scan call.
type fakeDiscoverer struct {
	scans [][]scanner.QuestionBlock
	calls int
}

func (f *fakeDiscoverer) Scan(ctx context.Context, page *rod.Page) ([]scanner.QuestionBlock, error) {
	i := f.calls
	f.calls++
	if i >= len(f.scans) {
		i = len(f.scans) - 1
	}
	return f.scans[i], nil
}

// fakeAnswerer resolves every block to its own text, except blocks listed
// in skip.
type fakeAnswerer struct {
	skip map[string]string
}

func (f *fakeAnswerer) Resolve(ctx context.Context, blocks []scanner.QuestionBlock) []resolver.Outcome {
	out := make([]resolver.Outcome, len(blocks))
	for i, b := range blocks {
		out[i].Block = b
		if reason, ok := f.skip[b.Text]; ok {
			out[i].Reason = reason
			continue
		}
		out[i].Answer = &resolver.ResolvedAnswer{
			Selector: b.Selector,
			Question: b.Text,
			Value:    "v:" + b.Text,
			Source:   resolver.SourceCanonical,
		}
	}
	return out
}

// orderCommitter records commit order and fails configured selectors.
type orderCommitter struct {
	mu    sync.Mutex
	order []string
	fail  map[string]int // selector -> remaining failures
}

func (o *orderCommitter) record(sel string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.order = append(o.order, sel)
	if n, ok := o.fail[sel]; ok && n > 0 {
		o.fail[sel] = n - 1
		return errors.New("widget rejected value")
	}
	return nil
}

func (o *orderCommitter) FillText(ctx context.Context, sel, v string) error { return o.record(sel) }
func (o *orderCommitter) SelectChoice(ctx context.Context, sel, v string) error {
	return o.record(sel)
}
func (o *orderCommitter) SetCheckbox(ctx context.Context, sel string, c bool) error {
	return o.record(sel)
}
func (o *orderCommitter) SelectFromCustomDropdown(ctx context.Context, sel, v string) error {
	return o.record(sel)
}
func (o *orderCommitter) UploadFile(ctx context.Context, sel, p string) error { return o.record(sel) }

// stubQuiescer records whether the wait ran.
type stubQuiescer struct{ waited bool }

func (s *stubQuiescer) Wait(ctx context.Context) error {
	s.waited = true
	return nil
}

// recordingNotifier captures emitted events.
type recordingNotifier struct {
	fields []FieldEvent
	runs   []Report
}

func (r *recordingNotifier) FieldDone(ev FieldEvent) { r.fields = append(r.fields, ev) }
func (r *recordingNotifier) RunDone(rep Report)      { r.runs = append(r.runs, rep) }

func textBlock(text, selector string) scanner.QuestionBlock {
	return scanner.QuestionBlock{Text: text, Kind: scanner.KindText, Selector: selector}
}

func TestDetectMode(t *testing.T) {
	if got := DetectMode("https://acme.wd1.myworkdaysite.com/careers"); got != ModeReactive {
		t.Fatalf("workday mode = %s, want reactive", got)
	}
	if got := DetectMode("https://company.myworkdayjobs.com/en-US/External"); got != ModeReactive {
		t.Fatalf("workday mode = %s, want reactive", got)
	}
	if got := DetectMode("https://jobs.example.com/apply"); got != ModeSimple {
		t.Fatalf("generic mode = %s, want simple", got)
	}
}

func TestRunSimpleModeCounts(t *testing.T) {
	disc := &fakeDiscoverer{scans: [][]scanner.QuestionBlock{{
		textBlock("First Name", "#first"),
		textBlock("Last Name", "#last"),
		textBlock("Puzzle", "#puzzle"),
	}}}
	ans := &fakeAnswerer{skip: map[string]string{"Puzzle": "no tier produced an answer"}}
	committer := &orderCommitter{}
	notifier := &recordingNotifier{}

	ctrl := New(disc, ans, fastSync(), committer, nil, notifier, fastFillConfig(), nil)
	rep, err := ctrl.Run(context.Background(), nil, "https://jobs.example.com", ModeSimple)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rep.Total != 3 || rep.Succeeded != 2 || rep.Failed != 0 || rep.Skipped != 1 {
		t.Fatalf("report = %+v, want 2 succeeded / 1 skipped of 3", rep)
	}
	if rep.RunID == "" {
		t.Fatal("report has no run ID")
	}
	if len(rep.Failures) != 1 || rep.Failures[0].Question != "Puzzle" {
		t.Fatalf("failures = %+v", rep.Failures)
	}
	if len(notifier.fields) != 3 || len(notifier.runs) != 1 {
		t.Fatalf("notifier got %d field events / %d run events", len(notifier.fields), len(notifier.runs))
	}
	if disc.calls != 1 {
		t.Fatalf("scans = %d, want 1 in simple mode", disc.calls)
	}
}

func TestRunCommitFailureCountedNotFatal(t *testing.T) {
	disc := &fakeDiscoverer{scans: [][]scanner.QuestionBlock{{
		textBlock("A", "#a"),
		textBlock("B", "#b"),
	}}}
	committer := &orderCommitter{fail: map[string]int{"#a": 99}}

	ctrl := New(disc, &fakeAnswerer{}, fastSync(), committer, nil, nil, fastFillConfig(), nil)
	rep, err := ctrl.Run(context.Background(), nil, "https://jobs.example.com", ModeSimple)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Succeeded != 1 || rep.Failed != 1 {
		t.Fatalf("report = %+v, want one success and one failure", rep)
	}
}

func TestRunReactivePriorityOrderAndRescan(t *testing.T) {
	first := []scanner.QuestionBlock{
		textBlock("First Name", "#first"),
		textBlock("Country of residence", "#country"),
		textBlock("Current location", "#location"),
	}
	// After the reload the first-name field gets a new selector.
	second := []scanner.QuestionBlock{
		{Text: "First Name", Kind: scanner.KindText, Selector: "#first-v2", AutomationID: "firstName"},
	}
	oldFirst := first[0]
	oldFirst.AutomationID = "firstName"
	first[0] = oldFirst

	disc := &fakeDiscoverer{scans: [][]scanner.QuestionBlock{first, second}}
	committer := &orderCommitter{}
	q := &stubQuiescer{}

	ctrl := New(disc, &fakeAnswerer{}, fastSync(), committer, nil, nil, fastFillConfig(), nil)
	ctrl.newQuiescer = func(_ *rod.Page) Quiescer { return q }

	rep, err := ctrl.Run(context.Background(), nil, "https://x.myworkdayjobs.com/a", ModeReactive)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Succeeded != 3 {
		t.Fatalf("report = %+v, want all 3 committed", rep)
	}
	if !q.waited {
		t.Fatal("reactive run must wait for quiescence after priority fields")
	}
	if disc.calls != 2 {
		t.Fatalf("scans = %d, want rescan after quiescence", disc.calls)
	}

	// Country commits first, then location, then the regular field via its
	// rescanned selector.
	want := []string{"#country", "#location", "#first-v2"}
	if len(committer.order) != len(want) {
		t.Fatalf("commit order = %v, want %v", committer.order, want)
	}
	for i := range want {
		if committer.order[i] != want[i] {
			t.Fatalf("commit order = %v, want %v", committer.order, want)
		}
	}
}

func TestRunReactiveNoPrioritySkipsQuiescence(t *testing.T) {
	disc := &fakeDiscoverer{scans: [][]scanner.QuestionBlock{{
		textBlock("First Name", "#first"),
	}}}
	q := &stubQuiescer{}
	ctrl := New(disc, &fakeAnswerer{}, fastSync(), &orderCommitter{}, nil, nil, fastFillConfig(), nil)
	ctrl.newQuiescer = func(_ *rod.Page) Quiescer { return q }

	if _, err := ctrl.Run(context.Background(), nil, "https://x.myworkdayjobs.com/a", ModeReactive); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if q.waited {
		t.Fatal("no priority fields, quiescence wait must be skipped")
	}
	if disc.calls != 1 {
		t.Fatalf("scans = %d, want no rescan", disc.calls)
	}
}

func TestPartition(t *testing.T) {
	mk := func(text string) resolver.Outcome {
		return resolver.Outcome{
			Block:  textBlock(text, "#"+text),
			Answer: &resolver.ResolvedAnswer{Value: "v"},
		}
	}
	priority, regular := partition([]resolver.Outcome{
		mk("First Name"),
		mk("Current location"),
		mk("Country"),
		mk("Email"),
	})
	if len(priority) != 2 || len(regular) != 2 {
		t.Fatalf("partition = %d priority / %d regular, want 2/2", len(priority), len(regular))
	}
	if priority[0].Block.Text != "Country" {
		t.Fatalf("priority[0] = %q, want country-like forced to the front", priority[0].Block.Text)
	}
}

func TestMatchBlockAutomationIDBeatsText(t *testing.T) {
	old := scanner.QuestionBlock{Text: "Phone", Kind: scanner.KindText, Selector: "#p", AutomationID: "phone"}
	fresh := []scanner.QuestionBlock{
		{Text: "Phone", Kind: scanner.KindText, Selector: "#p-similar"},
		{Text: "Mobile number", Kind: scanner.KindText, Selector: "#p-auto", AutomationID: "phone"},
	}
	got, ok := matchBlock(old, fresh)
	if !ok || got.Selector != "#p-auto" {
		t.Fatalf("matchBlock = %+v, want automation-ID match to win", got)
	}
}

func TestMatchBlockTextSimilarityFallback(t *testing.T) {
	old := scanner.QuestionBlock{Text: "Years of professional experience", Kind: scanner.KindText}
	fresh := []scanner.QuestionBlock{
		{Text: "Years of professional experience *", Kind: scanner.KindText, Selector: "#exp"},
		{Text: "Salary expectation", Kind: scanner.KindText, Selector: "#sal"},
	}
	got, ok := matchBlock(old, fresh)
	if !ok || got.Selector != "#exp" {
		t.Fatalf("matchBlock = %+v, want text-similarity match", got)
	}

	if _, ok := matchBlock(scanner.QuestionBlock{Text: "Completely different", Kind: scanner.KindText}, fresh); ok {
		t.Fatal("matchBlock must not match below the similarity threshold")
	}
}

func TestRematchRevalidatesOptions(t *testing.T) {
	oldBlock := scanner.QuestionBlock{
		Text: "State", Kind: scanner.KindSelect, Selector: "#state", AutomationID: "state",
		Options: []string{"California", "Nevada", "Oregon"},
	}
	resolved := []resolver.Outcome{
		{Block: oldBlock, Answer: &resolver.ResolvedAnswer{Selector: "#state", Value: "Nevada"}},
		{Block: oldBlock, Answer: &resolver.ResolvedAnswer{Selector: "#state", Value: "Oregon"}},
	}
	// The reload narrowed the menu: Oregon is gone, Nevada survives.
	fresh := []scanner.QuestionBlock{{
		Text: "State", Kind: scanner.KindSelect, Selector: "#state-v2", AutomationID: "state",
		Options: []string{"California", "Nevada"},
	}}

	out := rematch(resolved, fresh)
	if len(out) != 2 {
		t.Fatalf("rematch returned %d outcomes, want 2", len(out))
	}
	if !out[0].Resolved() || out[0].Answer.Value != "Nevada" || out[0].Answer.Selector != "#state-v2" {
		t.Fatalf("surviving value = %+v, want Nevada rebound to #state-v2", out[0].Answer)
	}
	if out[1].Resolved() {
		t.Fatalf("value missing from the reloaded options must become a skip, got %+v", out[1].Answer)
	}
	if out[1].Reason == "" {
		t.Fatal("downgraded outcome carries no reason")
	}
}

func TestRematchCanonicalizesToFreshOptionText(t *testing.T) {
	oldBlock := scanner.QuestionBlock{
		Text: "Gender", Kind: scanner.KindSelect, Selector: "#g", AutomationID: "gender",
		Options: []string{"Male", "Female"},
	}
	resolved := []resolver.Outcome{
		{Block: oldBlock, Answer: &resolver.ResolvedAnswer{Selector: "#g", Value: "Male"}},
	}
	fresh := []scanner.QuestionBlock{{
		Text: "Gender", Kind: scanner.KindSelect, Selector: "#g2", AutomationID: "gender",
		Options: []string{"Man", "Woman"},
	}}

	out := rematch(resolved, fresh)
	if !out[0].Resolved() || out[0].Answer.Value != "Man" {
		t.Fatalf("rebound value = %+v, want canonicalized to the live option text", out[0].Answer)
	}
}

// fakeRecorder captures RecordRun calls.
type fakeRecorder struct {
	runID     string
	succeeded int
	failed    int
}

func (f *fakeRecorder) RecordRun(runID, url string, succeeded, failed int) error {
	f.runID, f.succeeded, f.failed = runID, succeeded, failed
	return nil
}

func TestRunRecordsOutcome(t *testing.T) {
	disc := &fakeDiscoverer{scans: [][]scanner.QuestionBlock{{
		textBlock("A", "#a"),
	}}}
	rec := &fakeRecorder{}
	ctrl := New(disc, &fakeAnswerer{}, fastSync(), &orderCommitter{}, rec, nil, fastFillConfig(), nil)
	rep, err := ctrl.Run(context.Background(), nil, "https://jobs.example.com", ModeSimple)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.runID != rep.RunID || rec.succeeded != 1 || rec.failed != 0 {
		t.Fatalf("recorded %+v, want run %s with 1/0", rec, rep.RunID)
	}
}
