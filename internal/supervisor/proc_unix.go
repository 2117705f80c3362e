//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcAttr places the child in its own process group so that
// terminate reaches anything the entry point forks.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (c *child) terminate() error {
	if err := unix.Kill(-c.pid, unix.SIGTERM); err != nil {
		return c.cmd.Process.Signal(unix.SIGTERM)
	}
	return nil
}

func (c *child) kill() error {
	if err := unix.Kill(-c.pid, unix.SIGKILL); err != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}
