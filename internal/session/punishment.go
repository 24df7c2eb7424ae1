package session

import (
	"time"

	"github.com/zaqqye/exam_session_v1/internal/storage"
)

// PunishmentPhase is the sub-state of the mandatory pause machine.
type PunishmentPhase string

const (
	PunishmentIdle        PunishmentPhase = "idle"
	PunishmentActive      PunishmentPhase = "active"
	PunishmentAwaitingAck PunishmentPhase = "awaiting-ack"
)

// Punishment is the mandatory pause sub-machine. The remaining time is
// always derived from the persisted start instant, never from a decrementing
// counter, and the completed state is gated on an explicit acknowledgement so
// reloading past the end of the pause cannot skip it.
type Punishment struct {
	store          storage.Store
	phase          PunishmentPhase
	start          time.Time
	duration       time.Duration
	countAtTrigger int
}

// RehydratePunishment restores the pause machine from durable storage. An
// absent or corrupt record starts Idle; a record whose window already elapsed
// lands in AwaitingAck with zero remaining, not Idle.
func RehydratePunishment(store storage.Store, now time.Time) *Punishment {
	p := &Punishment{store: store, phase: PunishmentIdle}
	rec, state := storage.ReadPauseRecord(store)
	if state != storage.Valid || !rec.IsActive {
		return p
	}
	p.start = rec.Start()
	p.duration = rec.Duration()
	p.countAtTrigger = rec.TabSwitchCount
	if now.Sub(p.start) < p.duration {
		p.phase = PunishmentActive
	} else {
		p.phase = PunishmentAwaitingAck
	}
	return p
}

func (p *Punishment) Phase() PunishmentPhase {
	return p.phase
}

// Remaining is the pause time left, zero once elapsed or when not Active.
func (p *Punishment) Remaining(now time.Time) time.Duration {
	if p.phase != PunishmentActive {
		return 0
	}
	r := p.duration - now.Sub(p.start)
	if r < 0 {
		return 0
	}
	return r
}

// Trigger opens a pause window and persists it before anything else reads it.
func (p *Punishment) Trigger(now time.Time, duration time.Duration, violationCount int) error {
	p.phase = PunishmentActive
	p.start = now
	p.duration = duration
	p.countAtTrigger = violationCount
	return storage.WritePauseRecord(p.store, storage.PauseRecord{
		IsActive:       true,
		TimeLeft:       int(duration / time.Second),
		StartTime:      now.UnixMilli(),
		TabSwitchCount: violationCount,
	})
}

// Tick re-derives remaining time. The completion edge moves the machine to
// AwaitingAck; the persisted record deliberately stays until Acknowledge.
func (p *Punishment) Tick(now time.Time) (remaining time.Duration, completed bool) {
	if p.phase != PunishmentActive {
		return 0, false
	}
	remaining = p.Remaining(now)
	if remaining > 0 {
		return remaining, false
	}
	p.phase = PunishmentAwaitingAck
	return 0, true
}

// Acknowledge is the only transition out of AwaitingAck and the only path
// that clears the persisted record.
func (p *Punishment) Acknowledge() bool {
	if p.phase != PunishmentAwaitingAck {
		return false
	}
	p.phase = PunishmentIdle
	storage.ClearPauseRecord(p.store)
	return true
}

// Clear drops both the machine and the persisted record, used on terminal
// session transitions.
func (p *Punishment) Clear() {
	p.phase = PunishmentIdle
	storage.ClearPauseRecord(p.store)
}
