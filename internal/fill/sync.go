// Package fill serializes commit attempts per field and retries transient
// failures. Independent fields commit fully concurrently; attempts on the
// same field run strictly in arrival order, at most one at a time.
package fill

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Policy holds the retry and timeout parameters for locked operations.
type Policy struct {
	OperationTimeout time.Duration
	MaxAttempts      int
	BackoffBase      time.Duration
	BackoffMult      float64
}

// DefaultPolicy mirrors the production defaults: 20s per attempt, up to 3
// attempts, backoff starting at 180ms doubling each retry.
func DefaultPolicy() Policy {
	return Policy{
		OperationTimeout: 20 * time.Second,
		MaxAttempts:      3,
		BackoffBase:      180 * time.Millisecond,
		BackoffMult:      2.0,
	}
}

// Result reports how a locked operation went.
type Result struct {
	Attempts int
	Retries  int
}

// Synchronizer provides per-key mutual exclusion with FIFO ordering. Each
// Do call appends itself to the tail of its key's queue and waits for the
// previous holder to release, the Go rendition of a chained promise per
// key.
type Synchronizer struct {
	policy Policy
	logger *zap.Logger

	mu    sync.Mutex
	tails map[string]chan struct{}
}

// NewSynchronizer builds a synchronizer with the given policy.
func NewSynchronizer(policy Policy, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BackoffMult <= 0 {
		policy.BackoffMult = 2.0
	}
	return &Synchronizer{
		policy: policy,
		logger: logger,
		tails:  make(map[string]chan struct{}),
	}
}

// LockKey derives the lock key for a field: the stable selector when there
// is one, else a hash of the question text.
func LockKey(selector, questionText string) string {
	if selector != "" {
		return selector
	}
	h := fnv.New64a()
	h.Write([]byte(questionText))
	return fmt.Sprintf("q-%x", h.Sum64())
}

// Do runs op under the key's lock with timeout and bounded retry. The lock
// is held for the whole attempt sequence and released on success or
// exhausted retries; queued callers for the same key run in arrival order.
func (s *Synchronizer) Do(ctx context.Context, key string, op func(ctx context.Context) error) (Result, error) {
	// Append to the tail of the key's chain.
	s.mu.Lock()
	prev := s.tails[key]
	slot := make(chan struct{})
	s.tails[key] = slot
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if s.tails[key] == slot {
			delete(s.tails, key) // queue drained, allow GC of the key
		}
		s.mu.Unlock()
		close(slot)
	}

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Our slot is already linked into the chain, so it must not
			// open until the predecessor releases; otherwise the caller
			// queued behind us would overlap the current holder.
			go func() {
				<-prev
				release()
			}()
			return Result{}, ctx.Err()
		}
	}
	defer release()

	var res Result
	var lastErr error
	backoff := s.policy.BackoffBase

	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			res.Retries++
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * s.policy.BackoffMult)
		}
		res.Attempts = attempt

		lastErr = s.runOnce(ctx, op)
		if lastErr == nil {
			return res, nil
		}
		s.logger.Debug("locked operation attempt failed",
			zap.String("key", key), zap.Int("attempt", attempt), zap.Error(lastErr))
	}

	return res, fmt.Errorf("after %d attempts: %w", res.Attempts, lastErr)
}

// runOnce executes op with the per-operation timeout. Exceeding the timeout
// counts as a failure for retry purposes.
func (s *Synchronizer) runOnce(ctx context.Context, op func(ctx context.Context) error) error {
	opCtx := ctx
	if s.policy.OperationTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, s.policy.OperationTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- op(opCtx) }()

	select {
	case err := <-done:
		return err
	case <-opCtx.Done():
		return fmt.Errorf("operation timed out: %w", opCtx.Err())
	}
}
