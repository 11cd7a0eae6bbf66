// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"context"
	"time"
)

// ProcessResult is the captured outcome of one external tool run.
type ProcessResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CommandRunner executes the external package tool synchronously. Callers
// run it off the control loop; implementations must not keep process
// handles between calls and must kill the process when timeout expires.
type CommandRunner interface {
	// Run launches the tool with args. A non-zero exit returns both the
	// result and a *ProcessError of kind KindNonZeroExit.
	Run(ctx context.Context, args []string, timeout time.Duration) (*ProcessResult, error)

	// Available reports whether the tool binary can be located.
	Available() bool
}

// PinReader answers pin membership during projection.
type PinReader interface {
	IsPinned(id string) bool
}

// StatusSource answers the operation status of a package during projection.
type StatusSource interface {
	Status(id string) OperationStatus
}

// ToolInfo describes the package tool found on the host.
type ToolInfo struct {
	Tool       string `json:"tool"`
	Available  bool   `json:"available"`
	Version    string `json:"version,omitempty"`
	Supported  bool   `json:"supported"`
	PinSupport bool   `json:"pin_support"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
}
