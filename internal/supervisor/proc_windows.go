//go:build windows

package supervisor

import "os/exec"

func configureProcAttr(*exec.Cmd) {}

func (c *child) terminate() error {
	return c.cmd.Process.Kill()
}

func (c *child) kill() error {
	return c.cmd.Process.Kill()
}
