package storage

// Store is a string key-value store shared by the session core. Two
// implementations exist: FileStore survives a process restart (the exam
// client's reload-surviving storage), MemStore lives only as long as the
// session runtime (tab-lifetime storage).
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Well-known keys, shared with the exam client.
const (
	KeyTabSwitchCount     = "tabSwitchCount"
	KeySecurityPauseState = "securityPauseState"
	KeyStudentData        = "studentData"
	KeyRedirectReason     = "redirectReason"
)
