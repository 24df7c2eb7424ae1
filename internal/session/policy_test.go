package session

import (
	"testing"
	"time"
)

func punishPolicy(threshold int) PolicyConfig {
	return PolicyConfig{
		TabHiddenAction:     TabHiddenCountAndPunish,
		FocusLossAction:     FocusLossDisabled,
		DevtoolsAction:      DevtoolsTerminate,
		ResizeAction:        ResizeIgnore,
		PunishmentThreshold: threshold,
		PunishmentDuration:  30 * time.Second,
	}
}

func TestDecide(t *testing.T) {
	terminatePolicy := PolicyConfig{
		TabHiddenAction: TabHiddenTerminate,
		FocusLossAction: FocusLossTerminateAfterGrace,
		DevtoolsAction:  DevtoolsTerminate,
		ResizeAction:    ResizeTerminate,
	}

	cases := []struct {
		name  string
		event ViolationEvent
		cfg   PolicyConfig
		want  Action
	}{
		{"count-and-punish at threshold", ViolationEvent{Kind: SignalVisibilityHidden, CountAfter: 5}, punishPolicy(5), ActionPunish},
		{"count-and-punish below threshold", ViolationEvent{Kind: SignalVisibilityHidden, CountAfter: 4}, punishPolicy(5), ActionIgnore},
		{"count-and-punish at double threshold", ViolationEvent{Kind: SignalVisibilityHidden, CountAfter: 10}, punishPolicy(5), ActionPunish},
		{"terminate mode ignores counter", ViolationEvent{Kind: SignalVisibilityHidden, CountAfter: 1}, terminatePolicy, ActionTerminate},
		{"blur disabled", ViolationEvent{Kind: SignalWindowBlur, CountAfter: 3}, punishPolicy(5), ActionIgnore},
		{"blur with grace termination", ViolationEvent{Kind: SignalWindowBlur, CountAfter: 1}, terminatePolicy, ActionTerminate},
		{"devtools terminate", ViolationEvent{Kind: SignalDevtoolsOpened, CountAfter: 1}, punishPolicy(5), ActionTerminate},
		{"resize ignored", ViolationEvent{Kind: SignalWindowResized, CountAfter: 7}, punishPolicy(5), ActionIgnore},
		{"resize terminate", ViolationEvent{Kind: SignalWindowResized, CountAfter: 1}, terminatePolicy, ActionTerminate},
	}
	for _, tc := range cases {
		if got := Decide(tc.event, tc.cfg); got != tc.want {
			t.Errorf("%s: Decide = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	valid := punishPolicy(5)
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	broken := valid
	broken.TabHiddenAction = "explode"
	if err := broken.Validate(); err == nil {
		t.Error("unknown tab hidden action accepted")
	}

	noThreshold := punishPolicy(0)
	if err := noThreshold.Validate(); err == nil {
		t.Error("countAndPunish with zero threshold accepted")
	}
}
