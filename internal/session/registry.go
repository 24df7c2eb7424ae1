package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zaqqye/exam_session_v1/internal/storage"
)

// RuntimeConfig is the registry-level wiring shared by every session.
type RuntimeConfig struct {
	DataDir        string
	Policy         PolicyConfig
	DebounceWindow time.Duration
	TickInterval   time.Duration
	Now            func() time.Time
}

// AttemptInfo is what the registry needs to spin up a runtime.
type AttemptInfo struct {
	AttemptID    string
	SubmissionID string
	End          time.Time
	Start        time.Time
	Identity     storage.StudentData
}

type runtime struct {
	guard  *Guard
	cancel context.CancelFunc
}

// Registry owns the live session runtimes, one per attached attempt. Attach
// is idempotent: a reconnecting client gets the existing runtime, whose
// durable state already survived the disconnect.
type Registry struct {
	mu       sync.Mutex
	cfg      RuntimeConfig
	finalize Finalizer
	hooks    Hooks
	runtimes map[string]*runtime
}

func NewRegistry(cfg RuntimeConfig, finalize Finalizer, hooks Hooks) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	r := &Registry{
		cfg:      cfg,
		finalize: finalize,
		hooks:    hooks,
		runtimes: map[string]*runtime{},
	}
	// Absorbing states tear the runtime down after the hooks ran.
	userTerminated := hooks.OnTerminated
	r.hooks.OnTerminated = func(attemptID string, reason TerminateReason) {
		if userTerminated != nil {
			userTerminated(attemptID, reason)
		}
		go r.Detach(attemptID)
	}
	userSubmitted := hooks.OnSubmitted
	r.hooks.OnSubmitted = func(attemptID string, rec SubmissionRecord) {
		if userSubmitted != nil {
			userSubmitted(attemptID, rec)
		}
		go r.Detach(attemptID)
	}
	return r
}

// Attach returns the live runtime for the attempt, creating and rehydrating
// one when none exists.
func (r *Registry) Attach(info AttemptInfo) (*Guard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.runtimes[info.AttemptID]; ok {
		return rt.guard, nil
	}

	durable, err := storage.OpenFileStore(r.cfg.DataDir, info.AttemptID)
	if err != nil {
		return nil, err
	}
	tab := storage.NewMemStore()
	if info.Identity.Email != "" {
		if err := storage.WriteStudentData(tab, info.Identity); err != nil {
			log.Printf("session %s: identity snapshot: %v", info.AttemptID, err)
		}
	}

	guard, err := NewGuard(GuardConfig{
		AttemptID:      info.AttemptID,
		SubmissionID:   info.SubmissionID,
		End:            info.End,
		Start:          info.Start,
		Policy:         r.cfg.Policy,
		DebounceWindow: r.cfg.DebounceWindow,
		TickInterval:   r.cfg.TickInterval,
		Now:            r.cfg.Now,
	}, durable, tab, r.finalize, r.hooks)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.runtimes[info.AttemptID] = &runtime{guard: guard, cancel: cancel}
	go guard.Run(ctx)
	return guard, nil
}

// Get returns the live runtime for an attempt, if any.
func (r *Registry) Get(attemptID string) (*Guard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.runtimes[attemptID]
	if !ok {
		return nil, false
	}
	return rt.guard, true
}

// Detach stops and forgets a runtime. All its timers stop with the context.
func (r *Registry) Detach(attemptID string) {
	r.mu.Lock()
	rt, ok := r.runtimes[attemptID]
	if ok {
		delete(r.runtimes, attemptID)
	}
	r.mu.Unlock()
	if ok {
		rt.cancel()
	}
}

// Shutdown stops every runtime, used on server exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	runtimes := r.runtimes
	r.runtimes = map[string]*runtime{}
	r.mu.Unlock()
	for _, rt := range runtimes {
		rt.cancel()
	}
}
