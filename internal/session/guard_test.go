package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zaqqye/exam_session_v1/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

type guardFixture struct {
	guard      *Guard
	clock      *fakeClock
	durable    *storage.MemStore
	finalizer  *countingFinalizer
	terminated chan TerminateReason
	applied    chan Edit
	cancel     context.CancelFunc
}

func startGuard(t *testing.T, policy PolicyConfig, untilEnd time.Duration, durable *storage.MemStore) *guardFixture {
	t.Helper()
	return startGuardWith(t, policy, untilEnd, durable, &countingFinalizer{})
}

func startGuardWith(t *testing.T, policy PolicyConfig, untilEnd time.Duration, durable *storage.MemStore, fin *countingFinalizer) *guardFixture {
	t.Helper()
	clk := newFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	if durable == nil {
		durable = storage.NewMemStore()
	}
	fx := &guardFixture{
		clock:      clk,
		durable:    durable,
		finalizer:  fin,
		terminated: make(chan TerminateReason, 1),
		applied:    make(chan Edit, maxPendingEdits),
	}

	guard, err := NewGuard(GuardConfig{
		AttemptID:    "attempt-1",
		SubmissionID: "sub-1",
		End:          clk.Now().Add(untilEnd),
		Start:        clk.Now(),
		Policy:       policy,
		TickInterval: 5 * time.Millisecond,
		Now:          clk.Now,
	}, durable, storage.NewMemStore(), fin, Hooks{
		ApplyEdit: func(ctx context.Context, e Edit) error {
			fx.applied <- e
			return nil
		},
		OnTerminated: func(attemptID string, reason TerminateReason) {
			fx.terminated <- reason
		},
	})
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	fx.guard = guard

	ctx, cancel := context.WithCancel(context.Background())
	fx.cancel = cancel
	t.Cleanup(cancel)
	go guard.Run(ctx)
	return fx
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestGuardTerminatesOnTabHidden(t *testing.T) {
	policy := punishPolicy(5)
	policy.TabHiddenAction = TabHiddenTerminate
	fx := startGuard(t, policy, time.Hour, nil)

	waitFor(t, "active state", func() bool { return fx.guard.Snapshot().State == StateActive })

	if err := fx.guard.HandleSignal(SignalVisibilityHidden); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	// The violation emits once the debounce window closes.
	fx.clock.Advance(200 * time.Millisecond)
	waitFor(t, "terminated state", func() bool { return fx.guard.Snapshot().State == StateTerminated })

	select {
	case reason := <-fx.terminated:
		if reason != ReasonTabSwitch {
			t.Fatalf("terminate reason = %s, want %s", reason, ReasonTabSwitch)
		}
	case <-time.After(time.Second):
		t.Fatal("OnTerminated hook never fired")
	}

	// Terminated clears both durable records.
	if _, ok := fx.durable.Get(storage.KeyTabSwitchCount); ok {
		t.Fatal("violation counter survived termination")
	}
	if _, ok := fx.durable.Get(storage.KeySecurityPauseState); ok {
		t.Fatal("pause record survived termination")
	}

	// The redirect reason is consumable exactly once.
	if reason, ok := fx.guard.RedirectReason(); !ok || reason != string(ReasonTabSwitch) {
		t.Fatalf("RedirectReason = (%q, %v), want (%q, true)", reason, ok, ReasonTabSwitch)
	}
	if _, ok := fx.guard.RedirectReason(); ok {
		t.Fatal("redirect reason consumable twice")
	}

	// Terminated is absorbing: submit is refused, signals are no-ops.
	if _, err := fx.guard.RequestSubmit(context.Background()); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("RequestSubmit after termination = %v, want ErrSessionEnded", err)
	}
	fx.guard.HandleSignal(SignalDevtoolsOpened)
	time.Sleep(20 * time.Millisecond)
	if got := fx.guard.Snapshot().State; got != StateTerminated {
		t.Fatalf("state = %s after post-terminal signal, want terminated", got)
	}
}

func TestGuardPunishmentRoundTrip(t *testing.T) {
	policy := punishPolicy(2)
	fx := startGuard(t, policy, time.Hour, nil)
	waitFor(t, "active state", func() bool { return fx.guard.Snapshot().State == StateActive })

	// First violation: below threshold, ignored.
	fx.guard.HandleSignal(SignalVisibilityHidden)
	fx.clock.Advance(time.Second)
	waitFor(t, "first violation counted", func() bool { return fx.guard.Snapshot().ViolationCount == 1 })
	if got := fx.guard.Snapshot().State; got != StateActive {
		t.Fatalf("state = %s after first violation, want active", got)
	}

	// Second violation hits the threshold and opens the pause.
	fx.guard.HandleSignal(SignalVisibilityHidden)
	fx.clock.Advance(time.Second)
	waitFor(t, "paused state", func() bool { return fx.guard.Snapshot().State == StatePaused })

	rec, state := storage.ReadPauseRecord(fx.durable)
	if state != storage.Valid {
		t.Fatal("pause record not persisted")
	}
	if rec.TabSwitchCount != 2 {
		t.Fatalf("pause record violation count = %d, want 2", rec.TabSwitchCount)
	}

	// Acknowledging early is refused.
	if fx.guard.AcknowledgePunishment() {
		t.Fatal("ack accepted while the pause is still running")
	}

	// Let the pause elapse; the session stays Paused until acknowledged.
	fx.clock.Advance(31 * time.Second)
	waitFor(t, "awaiting-ack phase", func() bool {
		return fx.guard.Snapshot().PunishmentPhase == PunishmentAwaitingAck
	})
	if got := fx.guard.Snapshot().State; got != StatePaused {
		t.Fatalf("state = %s while awaiting ack, want paused", got)
	}

	if !fx.guard.AcknowledgePunishment() {
		t.Fatal("ack refused in awaiting-ack")
	}
	waitFor(t, "active after ack", func() bool { return fx.guard.Snapshot().State == StateActive })
	if _, ok := fx.durable.Get(storage.KeySecurityPauseState); ok {
		t.Fatal("pause record survived acknowledgement")
	}
}

func TestGuardExpiryAutoSubmitsOnce(t *testing.T) {
	fx := startGuard(t, punishPolicy(5), 2*time.Second, nil)
	waitFor(t, "active state", func() bool { return fx.guard.Snapshot().State == StateActive })

	fx.clock.Advance(3 * time.Second)
	waitFor(t, "submitted state", func() bool { return fx.guard.Snapshot().State == StateSubmitted })

	if got := fx.finalizer.callCount(); got != 1 {
		t.Fatalf("finalize called %d times on expiry, want 1", got)
	}

	// A user submit after the automatic one returns the same record.
	rec, err := fx.guard.RequestSubmit(context.Background())
	if err != nil {
		t.Fatalf("RequestSubmit after expiry: %v", err)
	}
	if !rec.SubmittedAt.Equal(fx.finalizer.record().SubmittedAt) {
		t.Fatal("user submit returned a different record than the expiry submit")
	}
	if got := fx.finalizer.callCount(); got != 1 {
		t.Fatalf("finalize called %d times after converging submits, want 1", got)
	}
}

func TestGuardExpiryWinsOverArmedFocusGrace(t *testing.T) {
	policy := punishPolicy(5)
	policy.FocusLossAction = FocusLossTerminateAfterGrace
	policy.FocusLossGrace = 3 * time.Second
	fin := &countingFinalizer{delay: 50 * time.Millisecond}
	fx := startGuardWith(t, policy, 2*time.Second, nil, fin)
	waitFor(t, "active state", func() bool { return fx.guard.Snapshot().State == StateActive })

	// Blur arms the grace deadline once its debounce window closes.
	fx.guard.HandleSignal(SignalWindowBlur)
	fx.clock.Advance(time.Second)
	waitFor(t, "blur violation", func() bool { return fx.guard.Snapshot().ViolationCount == 1 })

	// The exam ends before the grace elapses. Ticks past the armed deadline,
	// with the finalize still in flight, must submit the session, not
	// terminate it.
	fx.clock.Advance(5 * time.Second)
	waitFor(t, "submitted state", func() bool { return fx.guard.Snapshot().State == StateSubmitted })

	select {
	case reason := <-fx.terminated:
		t.Fatalf("expired session was terminated (reason=%s) instead of submitting", reason)
	default:
	}
	if got := fx.finalizer.callCount(); got != 1 {
		t.Fatalf("finalize called %d times, want 1", got)
	}
}

func TestGuardRehydratesIntoPause(t *testing.T) {
	durable := storage.NewMemStore()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	storage.WritePauseRecord(durable, storage.PauseRecord{
		IsActive:       true,
		TimeLeft:       30,
		StartTime:      start.Add(-35 * time.Second).UnixMilli(),
		TabSwitchCount: 4,
	})

	fx := startGuard(t, punishPolicy(2), time.Hour, durable)
	waitFor(t, "paused on start", func() bool {
		snap := fx.guard.Snapshot()
		return snap.State == StatePaused && snap.PunishmentPhase == PunishmentAwaitingAck
	})

	if !fx.guard.AcknowledgePunishment() {
		t.Fatal("ack refused for rehydrated pause")
	}
	waitFor(t, "active after rehydrated ack", func() bool { return fx.guard.Snapshot().State == StateActive })
}

func TestGuardQueuesEditsWhilePaused(t *testing.T) {
	fx := startGuard(t, punishPolicy(1), time.Hour, nil)
	waitFor(t, "active state", func() bool { return fx.guard.Snapshot().State == StateActive })

	// Threshold 1: the first violation pauses as soon as its window closes.
	fx.guard.HandleSignal(SignalVisibilityHidden)
	fx.clock.Advance(200 * time.Millisecond)
	waitFor(t, "paused state", func() bool { return fx.guard.Snapshot().State == StatePaused })

	saved := make(chan error, 1)
	go func() {
		saved <- fx.guard.SaveAnswer(context.Background(), Edit{
			SubmissionID: "sub-1",
			QuestionID:   "q-1",
			Text:         "queued while paused",
		})
	}()

	// The edit must block, not apply and not fail.
	select {
	case err := <-saved:
		t.Fatalf("edit completed during pause: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	fx.clock.Advance(31 * time.Second)
	waitFor(t, "awaiting-ack phase", func() bool {
		return fx.guard.Snapshot().PunishmentPhase == PunishmentAwaitingAck
	})
	if !fx.guard.AcknowledgePunishment() {
		t.Fatal("ack refused")
	}

	select {
	case err := <-saved:
		if err != nil {
			t.Fatalf("queued edit failed after resume: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued edit never flushed after resume")
	}
	select {
	case e := <-fx.applied:
		if e.Text != "queued while paused" {
			t.Fatalf("applied wrong edit: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("ApplyEdit hook never saw the queued edit")
	}
}

func TestGuardDrainsQueuedEditsOnTermination(t *testing.T) {
	policy := punishPolicy(1)
	policy.DevtoolsAction = DevtoolsTerminate
	fx := startGuard(t, policy, time.Hour, nil)
	waitFor(t, "active state", func() bool { return fx.guard.Snapshot().State == StateActive })

	fx.guard.HandleSignal(SignalVisibilityHidden)
	fx.clock.Advance(200 * time.Millisecond)
	waitFor(t, "paused state", func() bool { return fx.guard.Snapshot().State == StatePaused })

	saved := make(chan error, 1)
	go func() {
		saved <- fx.guard.SaveAnswer(context.Background(), Edit{QuestionID: "q-1"})
	}()
	time.Sleep(20 * time.Millisecond)

	fx.cancel()
	select {
	case err := <-saved:
		if !errors.Is(err, ErrSessionEnded) {
			t.Fatalf("queued edit error = %v, want ErrSessionEnded", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued edit left blocked after shutdown")
	}
}

func TestNewGuardRequiresEndInstant(t *testing.T) {
	_, err := NewGuard(GuardConfig{
		AttemptID: "attempt-1",
		Policy:    punishPolicy(5),
	}, storage.NewMemStore(), storage.NewMemStore(), &countingFinalizer{}, Hooks{})
	if !errors.Is(err, ErrInvalidEnd) {
		t.Fatalf("NewGuard without end = %v, want ErrInvalidEnd", err)
	}
}
