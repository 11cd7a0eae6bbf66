// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

//go:build windows

package platform

import (
	"os/exec"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/windows"
)

// processTree keeps the tool from flashing a console window and places it
// in a job object, so a timeout terminates the installers winget started
// along with winget itself.
type processTree struct {
	cmd      *exec.Cmd
	job      windows.Handle
	attached atomic.Bool
}

func newProcessTree(cmd *exec.Cmd) *processTree {
	t := &processTree{cmd: cmd}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
	cmd.Cancel = t.kill

	if job, err := windows.CreateJobObject(nil, nil); err == nil {
		t.job = job
	}

	return t
}

// attach assigns the started tool to the job. Processes it creates from
// then on belong to the job as well.
func (t *processTree) attach() error {
	if t.job == 0 {
		return nil
	}

	process, err := windows.OpenProcess(
		windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE,
		false,
		uint32(t.cmd.Process.Pid), //nolint:gosec
	)
	if err != nil {
		return err
	}

	defer func() { _ = windows.CloseHandle(process) }()

	if err := windows.AssignProcessToJobObject(t.job, process); err != nil {
		return err
	}

	t.attached.Store(true)

	return nil
}

func (t *processTree) kill() error {
	if t.attached.Load() {
		if err := windows.TerminateJobObject(t.job, 1); err == nil {
			return nil
		}
	}

	if t.cmd.Process == nil {
		return nil
	}

	return t.cmd.Process.Kill()
}

// release closes the job handle. Processes still running after a normal
// exit are left alone.
func (t *processTree) release() {
	if t.job != 0 {
		_ = windows.CloseHandle(t.job)
		t.job = 0
	}
}
