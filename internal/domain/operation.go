// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"fmt"
	"time"
)

// OperationKind is the action a user can request against a package.
type OperationKind int

// Supported actions.
const (
	OpInstall OperationKind = iota
	OpUpgrade
	OpUninstall
	OpPin
	OpUnpin
)

func (k OperationKind) String() string {
	switch k {
	case OpInstall:
		return "install"
	case OpUpgrade:
		return "upgrade"
	case OpUninstall:
		return "uninstall"
	case OpPin:
		return "pin"
	case OpUnpin:
		return "unpin"
	default:
		return fmt.Sprintf("operation(%d)", int(k))
	}
}

// Title returns the capitalised label used in messages.
func (k OperationKind) Title() string {
	switch k {
	case OpInstall:
		return "Install"
	case OpUpgrade:
		return "Upgrade"
	case OpUninstall:
		return "Uninstall"
	case OpPin:
		return "Pin"
	case OpUnpin:
		return "Unpin"
	default:
		return k.String()
	}
}

// ChangesPackages reports whether the action runs the external tool and
// therefore changes the installed package set.
func (k OperationKind) ChangesPackages() bool {
	return k == OpInstall || k == OpUpgrade || k == OpUninstall
}

// OperationStatus is the lifecycle state of an action against one target.
type OperationStatus int

// Operation states.
const (
	StatusIdle OperationStatus = iota
	StatusPending
	StatusSucceeded
	StatusFailed
)

func (s OperationStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status by name in JSON output.
func (s OperationStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// OperationRecord tracks one in-flight or finished action on one target.
type OperationRecord struct {
	ID         string
	BatchID    string
	TargetID   string
	Kind       OperationKind
	Status     OperationStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// OperationEvent is published whenever an OperationRecord changes status.
type OperationEvent struct {
	BatchID  string
	TargetID string
	Kind     OperationKind
	Status   OperationStatus
	Err      error
}

// BatchResult is the per-target outcome of a dispatched action.
type BatchResult struct {
	BatchID string
	Kind    OperationKind
	Order   []string
	Status  map[string]OperationStatus
	Errors  map[string]error
}

// Failed returns the targets that did not succeed, in dispatch order.
func (r BatchResult) Failed() []string {
	var failed []string

	for _, id := range r.Order {
		if r.Status[id] != StatusSucceeded {
			failed = append(failed, id)
		}
	}

	return failed
}
