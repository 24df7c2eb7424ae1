package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/zaqqye/exam_session_v1/internal/storage"
)

// State is the session lifecycle state. Terminated and Submitted are
// absorbing: all later events are no-ops by construction.
type State string

const (
	StateLoading    State = "loading"
	StateActive     State = "active"
	StatePaused     State = "paused"
	StateExpired    State = "expired"
	StateSubmitted  State = "submitted"
	StateTerminated State = "terminated"
)

func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateTerminated
}

var (
	ErrSessionEnded   = errors.New("session already ended")
	ErrNotEditable    = errors.New("answers can no longer be edited")
	ErrEditBacklog    = errors.New("too many edits queued during pause")
	ErrInvalidEnd     = errors.New("session end instant missing or invalid")
	ErrUnknownSignal  = errors.New("unknown platform signal")
	ErrRuntimeStopped = errors.New("session runtime stopped")
)

// Snapshot is the session view pushed to the exam client on every tick and
// on every transition.
type Snapshot struct {
	AttemptID           string          `json:"attempt_id"`
	State               State           `json:"state"`
	RemainingSeconds    int             `json:"remaining_seconds"`
	Progress            float64         `json:"progress"`
	ViolationCount      int             `json:"violation_count"`
	PunishmentPhase     PunishmentPhase `json:"punishment_phase"`
	PunishmentRemaining int             `json:"punishment_remaining_seconds"`
	RedirectReason      string          `json:"redirect_reason,omitempty"`
}

// Edit is one pending answer write. While the session is Paused, edits queue
// inside the guard and flush on resume instead of being dropped.
type Edit struct {
	SubmissionID string
	QuestionID   string
	Text         string
}

// Hooks are the guard's outbound effects; every one is optional.
type Hooks struct {
	// ApplyEdit persists an answer. Called outside the event loop.
	ApplyEdit func(ctx context.Context, e Edit) error
	// OnViolation relays a logical violation (proctor broadcast).
	OnViolation func(attemptID string, ev ViolationEvent)
	// OnSnapshot pushes a session view to the client channel.
	OnSnapshot func(snap Snapshot)
	// OnTerminated records a termination and tears the runtime down.
	OnTerminated func(attemptID string, reason TerminateReason)
	// OnSubmitted is called once after a successful finalize.
	OnSubmitted func(attemptID string, rec SubmissionRecord)
}

// GuardConfig wires one session runtime.
type GuardConfig struct {
	AttemptID      string
	SubmissionID   string
	End            time.Time
	Start          time.Time // zero when unknown
	Policy         PolicyConfig
	DebounceWindow time.Duration
	TickInterval   time.Duration
	Now            func() time.Time
}

type signalMsg struct {
	kind SignalKind
	at   time.Time
}

type editMsg struct {
	edit  Edit
	reply chan error
}

type submitMsg struct {
	ctx   context.Context
	reply chan submitOutcome
}

type finalizedMsg struct {
	rec SubmissionRecord
}

type ackMsg struct {
	reply chan bool
}

type snapReq struct {
	reply chan Snapshot
}

// Guard is the session state machine. One goroutine owns all state; the
// public methods hand typed events to that goroutine, so there is no shared
// mutable session data and a handler firing after an absorbing state is a
// no-op by the state check, not by an auxiliary flag.
type Guard struct {
	cfg         GuardConfig
	hooks       Hooks
	durable     storage.Store
	tab         storage.Store
	clock       *Clock
	monitor     *Monitor
	punishment  *Punishment
	coordinator *Coordinator
	identity    storage.StudentData

	state         State
	graceDeadline time.Time
	pending       []editMsg
	reason        TerminateReason

	signals   chan signalMsg
	edits     chan editMsg
	submits   chan submitMsg
	finalized chan finalizedMsg
	acks      chan ackMsg
	snaps     chan snapReq
	stopped   chan struct{}
}

const maxPendingEdits = 64

// NewGuard builds a session runtime in the Loading state. The end instant is
// validated here: without it the session can never become Active.
func NewGuard(cfg GuardConfig, durable, tab storage.Store, finalizer Finalizer, hooks Hooks) (*Guard, error) {
	if cfg.End.IsZero() {
		return nil, ErrInvalidEnd
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	now := cfg.Now()
	g := &Guard{
		cfg:         cfg,
		hooks:       hooks,
		durable:     durable,
		tab:         tab,
		clock:       NewClock(cfg.End, cfg.Start, now, nil),
		monitor:     NewMonitor(durable, cfg.DebounceWindow),
		punishment:  RehydratePunishment(durable, now),
		coordinator: NewCoordinator(finalizer),
		state:       StateLoading,
		signals:     make(chan signalMsg, 64),
		edits:       make(chan editMsg),
		submits:     make(chan submitMsg),
		finalized:   make(chan finalizedMsg, 1),
		acks:        make(chan ackMsg),
		snaps:       make(chan snapReq),
		stopped:     make(chan struct{}),
	}
	if sd, state := storage.ReadStudentData(tab); state == storage.Valid {
		g.identity = sd
	}
	return g, nil
}

func (g *Guard) Identity() storage.StudentData {
	return g.identity
}

// Run drives the session until ctx is cancelled. The exam clock and the
// punishment countdown tick on independent intervals; every handler is
// panic-wrapped so one failure cannot kill the loop.
func (g *Guard) Run(ctx context.Context) {
	defer close(g.stopped)

	clockTick := time.NewTicker(g.cfg.TickInterval)
	defer clockTick.Stop()
	punishTick := time.NewTicker(g.cfg.TickInterval)
	defer punishTick.Stop()

	// Loading -> Active, or straight to Paused when a pause window was
	// rehydrated from storage.
	g.step("start", func() {
		if g.punishment.Phase() != PunishmentIdle {
			g.state = StatePaused
		} else {
			g.state = StateActive
		}
		g.push()
	})

	for {
		select {
		case <-ctx.Done():
			g.step("stop", g.drainPending)
			return
		case sig := <-g.signals:
			g.step("signal", func() { g.handleSignal(sig) })
		case <-clockTick.C:
			g.step("clock-tick", g.handleClockTick)
		case <-punishTick.C:
			g.step("punishment-tick", g.handlePunishTick)
		case msg := <-g.edits:
			g.step("edit", func() { g.handleEdit(msg) })
		case msg := <-g.submits:
			g.step("submit", func() { g.handleSubmit(msg) })
		case msg := <-g.finalized:
			g.step("finalized", func() { g.handleFinalized(msg) })
		case msg := <-g.acks:
			g.step("ack", func() { g.handleAck(msg) })
		case req := <-g.snaps:
			req.reply <- g.snapshot()
		}
	}
}

func (g *Guard) step(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session %s: %s handler panicked: %v", g.cfg.AttemptID, name, r)
		}
	}()
	fn()
}

// HandleSignal feeds one raw platform signal into the session. Signals are
// best-effort client reports; when the runtime is stopped or the buffer is
// full they are dropped.
func (g *Guard) HandleSignal(kind SignalKind) error {
	if !KnownSignal(kind) {
		return ErrUnknownSignal
	}
	msg := signalMsg{kind: kind, at: g.cfg.Now()}
	select {
	case g.signals <- msg:
		return nil
	case <-g.stopped:
		return ErrRuntimeStopped
	default:
		log.Printf("session %s: signal buffer full, dropping %s", g.cfg.AttemptID, kind)
		return nil
	}
}

// SaveAnswer persists an answer through the session gate. While Paused the
// call blocks until the punishment is acknowledged (or the session ends).
func (g *Guard) SaveAnswer(ctx context.Context, e Edit) error {
	msg := editMsg{edit: e, reply: make(chan error, 1)}
	select {
	case g.edits <- msg:
	case <-g.stopped:
		return ErrRuntimeStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-msg.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestSubmit finalizes the session on behalf of a user action. It shares
// the coordinator with the automatic expiry path, so repeated and concurrent
// calls converge on one effective finalize.
func (g *Guard) RequestSubmit(ctx context.Context) (SubmissionRecord, error) {
	msg := submitMsg{ctx: ctx, reply: make(chan submitOutcome, 1)}
	select {
	case g.submits <- msg:
	case <-g.stopped:
		return SubmissionRecord{}, ErrRuntimeStopped
	case <-ctx.Done():
		return SubmissionRecord{}, ctx.Err()
	}
	select {
	case out := <-msg.reply:
		return out.rec, out.err
	case <-ctx.Done():
		return SubmissionRecord{}, ctx.Err()
	}
}

// AcknowledgePunishment is the explicit user action that closes a completed
// pause window.
func (g *Guard) AcknowledgePunishment() bool {
	msg := ackMsg{reply: make(chan bool, 1)}
	select {
	case g.acks <- msg:
		return <-msg.reply
	case <-g.stopped:
		return false
	}
}

// Snapshot returns the current session view.
func (g *Guard) Snapshot() Snapshot {
	req := snapReq{reply: make(chan Snapshot, 1)}
	select {
	case g.snaps <- req:
		return <-req.reply
	case <-g.stopped:
		return Snapshot{AttemptID: g.cfg.AttemptID, State: g.state}
	}
}

// RedirectReason consumes the termination reason exactly once.
func (g *Guard) RedirectReason() (string, bool) {
	return storage.ConsumeRedirectReason(g.tab)
}

func (g *Guard) handleSignal(sig signalMsg) {
	if g.state != StateActive && g.state != StatePaused {
		return
	}
	if sig.kind == SignalWindowFocus {
		g.graceDeadline = time.Time{}
	}
	if ev, ok := g.monitor.Observe(sig.kind, sig.at); ok {
		g.processViolation(ev)
	}
}

// processViolation handles one logical (debounced) violation, whether it
// surfaced from a raw signal or from a clock-tick flush.
func (g *Guard) processViolation(ev ViolationEvent) {
	if g.hooks.OnViolation != nil {
		g.hooks.OnViolation(g.cfg.AttemptID, ev)
	}
	if g.state == StatePaused {
		// Violations during a pause keep counting but cannot stack a
		// second pause or terminate; Paused only exits via ack.
		g.push()
		return
	}
	switch Decide(ev, g.cfg.Policy) {
	case ActionTerminate:
		if ev.Kind == SignalWindowBlur && g.cfg.Policy.FocusLossGrace > 0 {
			// Grace window: a focus signal before the deadline cancels it.
			g.graceDeadline = ev.At.Add(g.cfg.Policy.FocusLossGrace)
			g.push()
			return
		}
		g.terminate(reasonFor(ev.Kind))
	case ActionPunish:
		g.enterPaused(ev)
	case ActionIgnore:
		g.push()
	}
}

func (g *Guard) handleClockTick() {
	if g.state.Terminal() {
		return
	}
	now := g.cfg.Now()
	if g.state == StateActive || g.state == StatePaused {
		if ev, ok := g.monitor.Flush(now); ok {
			g.processViolation(ev)
		}
		if g.state.Terminal() {
			return
		}
	}
	_, edge := g.clock.Tick(now)
	switch {
	case edge:
		// Expiry wins over an armed focus-loss grace: a timed-out student
		// is submitted, never terminated.
		g.graceDeadline = time.Time{}
		if g.state == StateActive || g.state == StatePaused {
			g.state = StateExpired
		}
		g.autoSubmit()
	case g.state == StateExpired:
		// The edge is latched, so a failed finalize is retried from the
		// regular tick until one lands.
		g.autoSubmit()
	case g.state == StateActive && !g.graceDeadline.IsZero() && !now.Before(g.graceDeadline):
		g.terminate(ReasonFocusLoss)
		return
	}
	g.push()
}

func (g *Guard) handlePunishTick() {
	if g.state != StatePaused {
		return
	}
	_, completed := g.punishment.Tick(g.cfg.Now())
	if completed {
		g.push()
		return
	}
	if g.punishment.Phase() == PunishmentActive {
		g.push()
	}
}

func (g *Guard) handleEdit(msg editMsg) {
	switch {
	case g.state.Terminal() || g.state == StateExpired:
		msg.reply <- ErrNotEditable
	case g.state == StatePaused:
		if len(g.pending) >= maxPendingEdits {
			msg.reply <- ErrEditBacklog
			return
		}
		g.pending = append(g.pending, msg)
	default:
		g.applyEditAsync(msg)
	}
}

func (g *Guard) applyEditAsync(msg editMsg) {
	apply := g.hooks.ApplyEdit
	if apply == nil {
		msg.reply <- nil
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		msg.reply <- apply(ctx, msg.edit)
	}()
}

func (g *Guard) handleSubmit(msg submitMsg) {
	if g.state == StateTerminated {
		msg.reply <- submitOutcome{err: ErrSessionEnded}
		return
	}
	go func() {
		rec, err := g.coordinator.Submit(msg.ctx, g.cfg.SubmissionID)
		if err == nil {
			select {
			case g.finalized <- finalizedMsg{rec: rec}:
			default:
			}
		}
		msg.reply <- submitOutcome{rec: rec, err: err}
	}()
}

// autoSubmit is the expiry-edge trigger. Failures are logged and retried on
// the next tick because the edge itself is latched but Expired sessions keep
// ticking until a finalize lands.
func (g *Guard) autoSubmit() {
	if g.coordinator.Submitted() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		rec, err := g.coordinator.Submit(ctx, g.cfg.SubmissionID)
		if err != nil {
			log.Printf("session %s: auto finalize failed: %v", g.cfg.AttemptID, err)
			return
		}
		select {
		case g.finalized <- finalizedMsg{rec: rec}:
		default:
		}
	}()
}

func (g *Guard) handleFinalized(msg finalizedMsg) {
	if g.state.Terminal() {
		return
	}
	g.state = StateSubmitted
	g.monitor.Reset()
	g.punishment.Clear()
	g.drainPending()
	g.push()
	if g.hooks.OnSubmitted != nil {
		g.hooks.OnSubmitted(g.cfg.AttemptID, msg.rec)
	}
}

func (g *Guard) handleAck(msg ackMsg) {
	if g.state != StatePaused || !g.punishment.Acknowledge() {
		msg.reply <- false
		return
	}
	if !g.clock.Expired() {
		g.state = StateActive
	}
	pending := g.pending
	g.pending = nil
	for _, e := range pending {
		g.applyEditAsync(e)
	}
	g.push()
	msg.reply <- true
}

func (g *Guard) enterPaused(ev ViolationEvent) {
	if err := g.punishment.Trigger(ev.At, g.cfg.Policy.PunishmentDuration, ev.CountAfter); err != nil {
		log.Printf("session %s: pause record persist: %v", g.cfg.AttemptID, err)
	}
	g.state = StatePaused
	g.push()
}

func (g *Guard) terminate(reason TerminateReason) {
	if g.state.Terminal() {
		return
	}
	g.state = StateTerminated
	g.reason = reason
	g.monitor.Reset()
	g.punishment.Clear()
	storage.WriteRedirectReason(g.tab, string(reason))
	g.drainPending()
	g.push()
	if g.hooks.OnTerminated != nil {
		g.hooks.OnTerminated(g.cfg.AttemptID, reason)
	}
}

// drainPending fails queued edits instead of leaving their callers blocked.
func (g *Guard) drainPending() {
	for _, e := range g.pending {
		e.reply <- ErrSessionEnded
	}
	g.pending = nil
}

func (g *Guard) snapshot() Snapshot {
	now := g.cfg.Now()
	snap := Snapshot{
		AttemptID:           g.cfg.AttemptID,
		State:               g.state,
		RemainingSeconds:    int(g.clock.Remaining(now) / time.Second),
		Progress:            g.clock.Progress(now),
		ViolationCount:      g.monitor.Count(),
		PunishmentPhase:     g.punishment.Phase(),
		PunishmentRemaining: int(g.punishment.Remaining(now) / time.Second),
	}
	if g.state == StateTerminated {
		snap.RedirectReason = string(g.reason)
	}
	return snap
}

func (g *Guard) push() {
	if g.hooks.OnSnapshot != nil {
		g.hooks.OnSnapshot(g.snapshot())
	}
}
