package session

import (
	"log"
	"time"

	"github.com/zaqqye/exam_session_v1/internal/storage"
)

// DefaultDebounceWindow collapses raw platform events that fire together
// (visibility change plus blur arrive in platform-dependent order).
const DefaultDebounceWindow = 100 * time.Millisecond

// Monitor turns raw platform signals into logical violations. Raw events
// inside the debounce window collapse into one pending violation whose kind
// is the last event seen; the violation is emitted once the window closes,
// on the next Observe or Flush. Window-focus never counts as a violation but
// still participates in the window, cancelling a pending one, so the
// sequence of logical violations is deterministic regardless of platform
// event ordering. The counter is persisted write-through on every emission.
type Monitor struct {
	store       storage.Store
	window      time.Duration
	count       int
	last        time.Time
	pending     SignalKind
	havePending bool
	haveRaw     bool
}

// NewMonitor loads the persisted counter; a corrupt value self-heals to zero.
func NewMonitor(store storage.Store, window time.Duration) *Monitor {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Monitor{
		store:  store,
		window: window,
		count:  storage.ReadCounter(store),
	}
}

func (m *Monitor) Count() int {
	return m.count
}

// Observe processes one raw signal. A pending violation whose window already
// closed is emitted first; the new signal then opens (or refreshes) the
// window and overwrites the pending kind. Window-focus clears the pending
// violation instead of recording one.
func (m *Monitor) Observe(kind SignalKind, at time.Time) (ViolationEvent, bool) {
	ev, flushed := m.Flush(at)
	m.last = at
	m.haveRaw = true
	if kind == SignalWindowFocus {
		m.havePending = false
	} else {
		m.pending = kind
		m.havePending = true
	}
	return ev, flushed
}

// Flush emits the pending violation once the debounce window has closed. The
// session loop calls this on every clock tick so a lone raw event does not
// wait for the next signal.
func (m *Monitor) Flush(now time.Time) (ViolationEvent, bool) {
	if !m.havePending || now.Sub(m.last) < m.window {
		return ViolationEvent{}, false
	}
	m.havePending = false
	m.count++
	// Write-through: a crash between increment and persist loses at most
	// this one count. The in-memory counter stays authoritative live.
	if err := storage.WriteCounter(m.store, m.count); err != nil {
		log.Printf("violation counter persist: %v", err)
	}
	return ViolationEvent{Kind: m.pending, CountAfter: m.count, At: m.last}, true
}

// Reset clears the counter and any pending violation, used when the session
// terminates.
func (m *Monitor) Reset() {
	m.count = 0
	m.havePending = false
	storage.ClearCounter(m.store)
}
