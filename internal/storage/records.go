package storage

import (
	"encoding/json"
	"strconv"
	"time"
)

// ReadState tags the outcome of decoding a persisted record. Downstream code
// switches on the tag and never touches raw storage bytes.
type ReadState int

const (
	Absent ReadState = iota
	Valid
	Corrupt
)

// PauseRecord is the persisted shape of an in-progress punishment pause.
// Field names match the client storage layout; timeLeft carries the full
// configured pause duration in seconds, startTime is unix milliseconds.
type PauseRecord struct {
	IsActive       bool  `json:"isActive"`
	TimeLeft       int   `json:"timeLeft"`
	StartTime      int64 `json:"startTime"`
	TabSwitchCount int   `json:"tabSwitchCount"`
}

func (r PauseRecord) Start() time.Time {
	return time.UnixMilli(r.StartTime)
}

func (r PauseRecord) Duration() time.Duration {
	return time.Duration(r.TimeLeft) * time.Second
}

// StudentData is the identity snapshot captured at onboarding.
type StudentData struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ReadCounter returns the persisted violation counter. A corrupt value is
// self-healed: the key is cleared and the counter restarts at zero.
func ReadCounter(s Store) int {
	raw, ok := s.Get(KeyTabSwitchCount)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.Delete(KeyTabSwitchCount)
		return 0
	}
	return n
}

func WriteCounter(s Store, n int) error {
	return s.Set(KeyTabSwitchCount, strconv.Itoa(n))
}

func ClearCounter(s Store) error {
	return s.Delete(KeyTabSwitchCount)
}

// ReadPauseRecord decodes the persisted pause state. Corrupt records clear
// the key and report Corrupt so the caller can fall back to Idle.
func ReadPauseRecord(s Store) (PauseRecord, ReadState) {
	raw, ok := s.Get(KeySecurityPauseState)
	if !ok {
		return PauseRecord{}, Absent
	}
	var rec PauseRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.Delete(KeySecurityPauseState)
		return PauseRecord{}, Corrupt
	}
	if rec.TimeLeft <= 0 || rec.StartTime <= 0 {
		s.Delete(KeySecurityPauseState)
		return PauseRecord{}, Corrupt
	}
	return rec, Valid
}

func WritePauseRecord(s Store, rec PauseRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.Set(KeySecurityPauseState, string(raw))
}

func ClearPauseRecord(s Store) error {
	return s.Delete(KeySecurityPauseState)
}

func ReadStudentData(s Store) (StudentData, ReadState) {
	raw, ok := s.Get(KeyStudentData)
	if !ok {
		return StudentData{}, Absent
	}
	var sd StudentData
	if err := json.Unmarshal([]byte(raw), &sd); err != nil {
		s.Delete(KeyStudentData)
		return StudentData{}, Corrupt
	}
	return sd, Valid
}

func WriteStudentData(s Store, sd StudentData) error {
	raw, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	return s.Set(KeyStudentData, string(raw))
}

// WriteRedirectReason tags why the student was sent back to the entry point.
func WriteRedirectReason(s Store, reason string) error {
	return s.Set(KeyRedirectReason, reason)
}

// ConsumeRedirectReason reads the reason and clears it, so the entry screen
// shows the message exactly once.
func ConsumeRedirectReason(s Store) (string, bool) {
	raw, ok := s.Get(KeyRedirectReason)
	if !ok {
		return "", false
	}
	s.Delete(KeyRedirectReason)
	return raw, true
}
