// Package daemon tracks a background console server through a small JSON
// state file holding its pid and listen address.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// State describes a running server.
type State struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Uptime is the time since the server started, or zero when unknown.
func (s *State) Uptime() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return time.Since(s.StartedAt)
}

// StateFile manages the state file at Path.
type StateFile struct {
	Path string
}

// NewStateFile creates a StateFile manager for the given path.
func NewStateFile(path string) *StateFile {
	return &StateFile{Path: path}
}

// WriteCurrent records the current process as serving on addr.
func (f *StateFile) WriteCurrent(addr string) error {
	return f.Write(State{PID: os.Getpid(), Addr: addr, StartedAt: time.Now().UTC()})
}

// Write replaces the file with st.
func (f *StateFile) Write(st State) error {
	if st.PID <= 0 {
		return fmt.Errorf("invalid pid %d", st.PID)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, append(data, '\n'), 0o644)
}

// Read loads the recorded state.
func (f *StateFile) Read() (*State, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("invalid state file content: %w", err)
	}
	if st.PID <= 0 {
		return nil, fmt.Errorf("invalid state file content: pid %d", st.PID)
	}
	return &st, nil
}

// Remove deletes the state file.
func (f *StateFile) Remove() error {
	return os.Remove(f.Path)
}
