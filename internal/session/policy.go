package session

import (
	"fmt"
	"time"
)

// Action is the policy verdict for one logical violation.
type Action string

const (
	ActionTerminate Action = "terminate"
	ActionPunish    Action = "punish"
	ActionIgnore    Action = "ignore"
)

const (
	TabHiddenTerminate      = "terminate"
	TabHiddenCountAndPunish = "countAndPunish"

	FocusLossDisabled            = "disabled"
	FocusLossTerminateAfterGrace = "terminateAfterGrace"

	DevtoolsTerminate = "terminate"
	DevtoolsIgnore    = "ignore"

	ResizeTerminate = "terminate"
	ResizeIgnore    = "ignore"
)

// PolicyConfig enumerates how each violation kind is handled. It is supplied
// by server configuration; both the immediate-terminate and the
// count-and-punish modes are first-class.
type PolicyConfig struct {
	TabHiddenAction     string
	FocusLossAction     string
	DevtoolsAction      string
	ResizeAction        string
	PunishmentThreshold int
	PunishmentDuration  time.Duration
	FocusLossGrace      time.Duration
}

func (c PolicyConfig) Validate() error {
	switch c.TabHiddenAction {
	case TabHiddenTerminate, TabHiddenCountAndPunish:
	default:
		return fmt.Errorf("invalid tab hidden action %q", c.TabHiddenAction)
	}
	switch c.FocusLossAction {
	case FocusLossDisabled, FocusLossTerminateAfterGrace:
	default:
		return fmt.Errorf("invalid focus loss action %q", c.FocusLossAction)
	}
	switch c.DevtoolsAction {
	case DevtoolsTerminate, DevtoolsIgnore:
	default:
		return fmt.Errorf("invalid devtools action %q", c.DevtoolsAction)
	}
	switch c.ResizeAction {
	case ResizeTerminate, ResizeIgnore:
	default:
		return fmt.Errorf("invalid resize action %q", c.ResizeAction)
	}
	if c.TabHiddenAction == TabHiddenCountAndPunish && c.PunishmentThreshold <= 0 {
		return fmt.Errorf("punishment threshold must be positive, got %d", c.PunishmentThreshold)
	}
	return nil
}

// Decide maps one violation event to an action. Pure: no timers, no storage.
func Decide(ev ViolationEvent, cfg PolicyConfig) Action {
	switch ev.Kind {
	case SignalVisibilityHidden:
		if cfg.TabHiddenAction == TabHiddenTerminate {
			return ActionTerminate
		}
		if cfg.PunishmentThreshold > 0 && ev.CountAfter%cfg.PunishmentThreshold == 0 {
			return ActionPunish
		}
		return ActionIgnore
	case SignalWindowBlur:
		if cfg.FocusLossAction == FocusLossTerminateAfterGrace {
			return ActionTerminate
		}
		return ActionIgnore
	case SignalDevtoolsOpened:
		if cfg.DevtoolsAction == DevtoolsTerminate {
			return ActionTerminate
		}
		return ActionIgnore
	case SignalWindowResized:
		if cfg.ResizeAction == ResizeTerminate {
			return ActionTerminate
		}
		return ActionIgnore
	default:
		return ActionIgnore
	}
}
