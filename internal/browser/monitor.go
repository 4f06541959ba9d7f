package browser

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// ActivityMonitor tracks a page's outbound network activity so the
// controller can wait for quiescence. Implementations must be safe to stop
// on every exit path; Stop is idempotent.
type ActivityMonitor interface {
	Start(ctx context.Context) error
	Stop()
	Pending() int
	LastActivity() time.Time
}

// NetworkMonitor implements ActivityMonitor over CDP network events. It
// keeps a pending-request set keyed by request ID and a last-activity
// timestamp updated on every request start and finish.
type NetworkMonitor struct {
	page   *rod.Page
	logger *zap.Logger

	mu      sync.Mutex
	pending map[proto.NetworkRequestID]struct{}
	last    time.Time
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewNetworkMonitor builds a monitor for page.
func NewNetworkMonitor(page *rod.Page, logger *zap.Logger) *NetworkMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkMonitor{
		page:    page,
		logger:  logger,
		pending: make(map[proto.NetworkRequestID]struct{}),
	}
}

// Start begins consuming network events until Stop or ctx cancellation.
func (m *NetworkMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	evCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.last = time.Now()
	m.started = true

	wait := m.page.Context(evCtx).EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			m.mu.Lock()
			m.pending[ev.RequestID] = struct{}{}
			m.last = time.Now()
			m.mu.Unlock()
		},
		func(ev *proto.NetworkLoadingFinished) {
			m.mu.Lock()
			delete(m.pending, ev.RequestID)
			m.last = time.Now()
			m.mu.Unlock()
		},
		func(ev *proto.NetworkLoadingFailed) {
			m.mu.Lock()
			delete(m.pending, ev.RequestID)
			m.last = time.Now()
			m.mu.Unlock()
		},
	)

	go func() {
		defer close(m.done)
		wait()
	}()
	return nil
}

// Stop tears the event stream down. Safe to call more than once.
func (m *NetworkMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.started = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			m.logger.Warn("network monitor did not stop promptly")
		}
	}
}

// Pending returns the number of in-flight requests.
func (m *NetworkMonitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// LastActivity returns the time of the most recent network event.
func (m *NetworkMonitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
