package controller

// FieldEvent describes the outcome of one field commit, emitted as it
// happens so a presentation layer can show progress.
type FieldEvent struct {
	Question string
	Value    string
	Source   string
	OK       bool
	Retries  int
	Reason   string
}

// Notifier receives progress and completion signals. It is a notification
// surface only; nothing reads back from it.
type Notifier interface {
	FieldDone(ev FieldEvent)
	RunDone(rep Report)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) FieldDone(FieldEvent) {}
func (NopNotifier) RunDone(Report)       {}

// FieldFailure is one failed or skipped field in the final report.
type FieldFailure struct {
	Question string
	Reason   string
}

// Report aggregates a fill run.
type Report struct {
	RunID     string
	URL       string
	Mode      Mode
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Failures  []FieldFailure
}
