//go:build unix

package toolchain

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the toolchain in its own process group so a timeout
// also stops the compiler processes cargo spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
