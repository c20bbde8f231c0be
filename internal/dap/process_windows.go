//go:build windows

package dap

import (
	"errors"
	"os"
	"os/exec"
)

// KillProcessGroup kills an adapter process on Windows.
// There are no Unix-style process groups, so the process is killed directly.
func KillProcessGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
