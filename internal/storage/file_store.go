package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists keys as one JSON document per attempt under the
// configured data dir. Writes go through a temp file plus rename so an
// interrupted write leaves the previous document intact, never a torn one.
// An unreadable or unparsable document is treated as empty.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

func OpenFileStore(dir, attemptID string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, attemptID), 0o755); err != nil {
		return nil, err
	}
	fs := &FileStore{
		path: filepath.Join(dir, attemptID, "durable.json"),
		data: map[string]string{},
	}
	raw, err := os.ReadFile(fs.path)
	if err == nil {
		if jsonErr := json.Unmarshal(raw, &fs.data); jsonErr != nil {
			fs.data = map[string]string{}
		}
	}
	return fs, nil
}

func (f *FileStore) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return f.flushLocked()
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return nil
	}
	delete(f.data, key)
	return f.flushLocked()
}

func (f *FileStore) flushLocked() error {
	raw, err := json.Marshal(f.data)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
