//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// Running reads the state file and reports whether its process is alive.
// The state is returned whenever the file is readable.
func (f *StateFile) Running() (*State, bool) {
	st, err := f.Read()
	if err != nil {
		return nil, false
	}
	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return st, false
	}
	// FindProcess always succeeds on Windows.
	err = proc.Signal(syscall.Signal(0))
	return st, err == nil
}

// Signal sends sig to the recorded process. Only os.Kill is reliable here.
func (f *StateFile) Signal(sig syscall.Signal) error {
	st, err := f.Read()
	if err != nil {
		return fmt.Errorf("read state file: %w", err)
	}
	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return fmt.Errorf("find process %d: %w", st.PID, err)
	}
	return proc.Signal(sig)
}
