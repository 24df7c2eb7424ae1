package session

import "time"

// SignalKind identifies a raw platform signal reported by the exam client.
type SignalKind string

const (
	SignalVisibilityHidden SignalKind = "visibility-hidden"
	SignalWindowBlur       SignalKind = "window-blur"
	SignalWindowFocus      SignalKind = "window-focus"
	SignalDevtoolsOpened   SignalKind = "devtools-opened"
	SignalWindowResized    SignalKind = "window-resized"
)

// KnownSignal reports whether kind is one of the signals the monitor accepts.
func KnownSignal(kind SignalKind) bool {
	switch kind {
	case SignalVisibilityHidden, SignalWindowBlur, SignalWindowFocus,
		SignalDevtoolsOpened, SignalWindowResized:
		return true
	}
	return false
}

// ViolationEvent is one logical (debounced) integrity violation.
type ViolationEvent struct {
	Kind       SignalKind
	CountAfter int
	At         time.Time
}

// TerminateReason tags why a session was terminated, consumed by the entry
// screen via the redirectReason key.
type TerminateReason string

const (
	ReasonTabSwitch TerminateReason = "tab-switch"
	ReasonFocusLoss TerminateReason = "focus-loss"
	ReasonDevtools  TerminateReason = "devtools"
	ReasonResize    TerminateReason = "window-resize"
)

func reasonFor(kind SignalKind) TerminateReason {
	switch kind {
	case SignalVisibilityHidden:
		return ReasonTabSwitch
	case SignalWindowBlur, SignalWindowFocus:
		return ReasonFocusLoss
	case SignalDevtoolsOpened:
		return ReasonDevtools
	default:
		return ReasonResize
	}
}
