//go:build !windows

package adapters

import (
	"os/exec"
	"syscall"
)

// setProcAttr makes the adapter a session leader so that killing its process
// group also takes down the debuggee it launched.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
