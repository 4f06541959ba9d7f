package controller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"formpilot/internal/browser"
)

// Quiescence timing. The wait resolves early once new fields have appeared,
// no requests are in flight, and the network has been silent for the settle
// window; pages already quiet by the early ceiling stop there, everything
// else stops at the hard ceiling.
const (
	quiesceSettle       = 500 * time.Millisecond
	quiesceEarlyCeiling = 2 * time.Second
	quiesceHardCeiling  = 8 * time.Second
	quiescePollInterval = 100 * time.Millisecond
)

// FieldCounter reports interactive elements added to the document since
// installation. browser.DOMWatcher is the production implementation.
type FieldCounter interface {
	Install(ctx context.Context) error
	NewFieldCount(ctx context.Context) (int, error)
	Uninstall(ctx context.Context) error
}

// Quiescer blocks until the page has settled after a form-reloading commit.
type Quiescer interface {
	Wait(ctx context.Context) error
}

// networkQuiescer composes a DOM watcher and a network activity monitor.
// Both are always torn down when the wait ends, on every exit path.
type networkQuiescer struct {
	fields  FieldCounter
	network browser.ActivityMonitor
	logger  *zap.Logger
}

// NewQuiescer builds the production quiescence waiter.
func NewQuiescer(fields FieldCounter, network browser.ActivityMonitor, logger *zap.Logger) Quiescer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &networkQuiescer{fields: fields, network: network, logger: logger}
}

// Wait blocks until the page is quiescent or a ceiling elapses. A timeout
// is not an error: the caller proceeds with whatever fields exist.
func (q *networkQuiescer) Wait(ctx context.Context) error {
	if err := q.fields.Install(ctx); err != nil {
		return err
	}
	defer func() {
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := q.fields.Uninstall(uctx); err != nil {
			q.logger.Warn("failed to uninstall dom watcher", zap.Error(err))
		}
	}()

	if err := q.network.Start(ctx); err != nil {
		return err
	}
	defer q.network.Stop()

	start := time.Now()
	sawNewFields := false

	err := browser.WaitFor(ctx, quiescePollInterval, quiesceHardCeiling, func() (bool, error) {
		if !sawNewFields {
			n, err := q.fields.NewFieldCount(ctx)
			if err != nil {
				return false, err
			}
			sawNewFields = n > 0
		}
		quiet := q.network.Pending() == 0 && time.Since(q.network.LastActivity()) >= quiesceSettle

		if sawNewFields && quiet {
			return true, nil
		}
		// Nothing reloaded and nothing in flight by the early ceiling:
		// this answer did not trigger a form reload, stop waiting.
		if !sawNewFields && quiet && time.Since(start) >= quiesceEarlyCeiling {
			return true, nil
		}
		return false, nil
	})
	if err == browser.ErrWaitTimeout {
		q.logger.Debug("quiescence wait hit hard ceiling", zap.Duration("elapsed", time.Since(start)))
		return nil
	}
	return err
}
