// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import "github.com/wingetpro/wingetpro/internal/domain"

// SnapshotMsg carries a tab projection published on the control loop.
type SnapshotMsg struct {
	Snapshot domain.TabSnapshot
}

// OperationMsg carries an operation status change.
type OperationMsg struct {
	Event domain.OperationEvent
}

// BatchDoneMsg reports the outcome of a dispatched batch.
type BatchDoneMsg struct {
	Result domain.BatchResult
	Err    error
}

// DetailsMsg carries the "winget show" text for a package.
type DetailsMsg struct {
	ID   string
	Text string
	Err  error
}

// CloseMsg asks the parent to close an overlay.
type CloseMsg struct{}
