package session

import (
	"context"
	"sync"
	"time"
)

// SubmissionRecord is the finalized-submission outcome shared by every
// submit path.
type SubmissionRecord struct {
	SubmissionID string    `json:"submission_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Finalizer performs the remote finalize call. Implementations must be
// check-then-set on submittedAt: a repeated call returns the already
// finalized record instead of erroring.
type Finalizer interface {
	Finalize(ctx context.Context, submissionID string) (SubmissionRecord, error)
}

// FinalizeFunc adapts a function to the Finalizer interface.
type FinalizeFunc func(ctx context.Context, submissionID string) (SubmissionRecord, error)

func (f FinalizeFunc) Finalize(ctx context.Context, submissionID string) (SubmissionRecord, error) {
	return f(ctx, submissionID)
}

type submitOutcome struct {
	rec SubmissionRecord
	err error
}

// Coordinator guarantees at most one effective finalize per session. The
// first caller performs the network round-trip; concurrent callers wait on
// the same outcome; once a call succeeds every later call returns the cached
// record without touching the network. A failed call releases the in-flight
// guard so the user can retry.
type Coordinator struct {
	mu        sync.Mutex
	finalizer Finalizer
	inFlight  bool
	waiters   []chan submitOutcome
	done      *SubmissionRecord
}

func NewCoordinator(f Finalizer) *Coordinator {
	return &Coordinator{finalizer: f}
}

// Submitted reports whether a finalize has already succeeded.
func (c *Coordinator) Submitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done != nil
}

// Submit is safe to call concurrently and repeatedly; the expiry edge and
// the user action both land here and converge on one result.
func (c *Coordinator) Submit(ctx context.Context, submissionID string) (SubmissionRecord, error) {
	c.mu.Lock()
	if c.done != nil {
		rec := *c.done
		c.mu.Unlock()
		return rec, nil
	}
	if c.inFlight {
		ch := make(chan submitOutcome, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		select {
		case out := <-ch:
			return out.rec, out.err
		case <-ctx.Done():
			return SubmissionRecord{}, ctx.Err()
		}
	}
	c.inFlight = true
	c.mu.Unlock()

	rec, err := c.finalizer.Finalize(ctx, submissionID)

	c.mu.Lock()
	c.inFlight = false
	if err == nil {
		c.done = &rec
	}
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- submitOutcome{rec: rec, err: err}
	}
	return rec, err
}
