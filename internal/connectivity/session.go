package connectivity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fieldops/fieldsync/internal/logging"
)

// sessionFile is the persisted shadow of the connectivity state. It exists
// so a restart does not flash "online" before the first real probe
// completes.
const sessionFile = "session_state.json"

// SessionStore persists the offline flag between runs.
type SessionStore struct {
	path string
}

type sessionState struct {
	Offline   bool  `json:"offline"`
	UpdatedAt int64 `json:"updatedAt"`
}

// NewSessionStore creates a SessionStore under dataDir. The directory does
// not have to exist yet; writes create it lazily.
func NewSessionStore(dataDir string) *SessionStore {
	return &SessionStore{path: filepath.Join(dataDir, sessionFile)}
}

// WasOffline reports whether the previous session ended offline. A missing
// or unreadable file means no shadow, i.e. optimistic online.
func (s *SessionStore) WasOffline() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}

	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return false
	}
	return state.Offline
}

// SetOffline persists the current offline flag. Failures are logged, not
// surfaced: the shadow is an optimization, never load-bearing.
func (s *SessionStore) SetOffline(offline bool) {
	state := sessionState{Offline: offline, UpdatedAt: time.Now().Unix()}
	data, err := json.Marshal(&state)
	if err != nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		logging.Debug("Session shadow not writable", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		logging.Debug("Session shadow not writable", map[string]interface{}{"error": err.Error()})
	}
}
