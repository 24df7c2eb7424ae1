package storage

import (
	"testing"
	"time"
)

func TestCounterRoundTrip(t *testing.T) {
	s := NewMemStore()
	if got := ReadCounter(s); got != 0 {
		t.Fatalf("counter on empty store = %d, want 0", got)
	}
	if err := WriteCounter(s, 7); err != nil {
		t.Fatalf("WriteCounter: %v", err)
	}
	if got := ReadCounter(s); got != 7 {
		t.Fatalf("counter = %d, want 7", got)
	}
}

func TestCounterCorruptValues(t *testing.T) {
	cases := []string{"garbage", "-3", "1.5", ""}
	for _, raw := range cases {
		s := NewMemStore()
		s.Set(KeyTabSwitchCount, raw)
		if got := ReadCounter(s); got != 0 {
			t.Errorf("counter from %q = %d, want 0", raw, got)
		}
		if _, ok := s.Get(KeyTabSwitchCount); ok {
			t.Errorf("corrupt counter %q not cleared", raw)
		}
	}
}

func TestPauseRecordRoundTrip(t *testing.T) {
	s := NewMemStore()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	in := PauseRecord{IsActive: true, TimeLeft: 30, StartTime: start.UnixMilli(), TabSwitchCount: 5}
	if err := WritePauseRecord(s, in); err != nil {
		t.Fatalf("WritePauseRecord: %v", err)
	}

	out, state := ReadPauseRecord(s)
	if state != Valid {
		t.Fatalf("state = %v, want Valid", state)
	}
	if out != in {
		t.Fatalf("record = %+v, want %+v", out, in)
	}
	if !out.Start().Equal(start) {
		t.Fatalf("Start() = %v, want %v", out.Start(), start)
	}
	if out.Duration() != 30*time.Second {
		t.Fatalf("Duration() = %v, want 30s", out.Duration())
	}

	ClearPauseRecord(s)
	if _, state := ReadPauseRecord(s); state != Absent {
		t.Fatal("record survived clear")
	}
}

func TestPauseRecordCorruptIsAbsentAndCleared(t *testing.T) {
	cases := []string{"{not json", `"a string"`, `{"isActive":true,"timeLeft":0,"startTime":0}`}
	for _, raw := range cases {
		s := NewMemStore()
		s.Set(KeySecurityPauseState, raw)
		if _, state := ReadPauseRecord(s); state != Corrupt {
			t.Errorf("state for %q = %v, want Corrupt", raw, state)
		}
		if _, ok := s.Get(KeySecurityPauseState); ok {
			t.Errorf("corrupt record %q not cleared", raw)
		}
	}
}

func TestStudentDataRoundTrip(t *testing.T) {
	s := NewMemStore()
	if _, state := ReadStudentData(s); state != Absent {
		t.Fatal("empty store did not report Absent")
	}
	in := StudentData{Email: "ada@lovelace.test", FirstName: "Ada", LastName: "Lovelace"}
	if err := WriteStudentData(s, in); err != nil {
		t.Fatalf("WriteStudentData: %v", err)
	}
	out, state := ReadStudentData(s)
	if state != Valid || out != in {
		t.Fatalf("read = (%+v, %v), want (%+v, Valid)", out, state, in)
	}
}

func TestRedirectReasonConsumedOnce(t *testing.T) {
	s := NewMemStore()
	if _, ok := ConsumeRedirectReason(s); ok {
		t.Fatal("empty store yielded a reason")
	}
	WriteRedirectReason(s, "tab-switch")
	reason, ok := ConsumeRedirectReason(s)
	if !ok || reason != "tab-switch" {
		t.Fatalf("consume = (%q, %v), want (tab-switch, true)", reason, ok)
	}
	if _, ok := ConsumeRedirectReason(s); ok {
		t.Fatal("reason consumable twice")
	}
}
