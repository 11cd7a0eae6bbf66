// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

//go:build !windows

package platform

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// processTree starts the tool in its own process group so a timeout kills
// the tool together with everything it spawned.
type processTree struct {
	cmd *exec.Cmd
}

func newProcessTree(cmd *exec.Cmd) *processTree {
	t := &processTree{cmd: cmd}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = t.kill

	return t
}

// attach is a no-op: children join the group when they are forked.
func (t *processTree) attach() error {
	return nil
}

func (t *processTree) kill() error {
	if t.cmd.Process == nil {
		return nil
	}

	return unix.Kill(-t.cmd.Process.Pid, unix.SIGKILL)
}

func (t *processTree) release() {}
