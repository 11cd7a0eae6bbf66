// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package testutil holds mocks and winget output fixtures shared by tests.
package testutil

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/mock"
	"github.com/wingetpro/wingetpro/internal/domain"
)

// MockCommandRunner mocks the CommandRunner port for testing.
type MockCommandRunner struct {
	mock.Mock
}

// Run mocks a tool invocation.
func (m *MockCommandRunner) Run(ctx context.Context, args []string, timeout time.Duration) (*domain.ProcessResult, error) {
	called := m.Called(ctx, args, timeout)
	if result := called.Get(0); result != nil {
		res, ok := result.(*domain.ProcessResult)
		if !ok {
			return nil, called.Error(1)
		}

		return res, called.Error(1)
	}

	return nil, called.Error(1)
}

// Available mocks the tool lookup.
func (m *MockCommandRunner) Available() bool {
	args := m.Called()

	return args.Bool(0)
}

// OnRun registers an expectation for exact args with any context and timeout.
func (m *MockCommandRunner) OnRun(args ...string) *mock.Call {
	return m.On("Run", mock.Anything, args, mock.Anything)
}

// RunCount returns how often Run was called with exactly args.
func (m *MockCommandRunner) RunCount(args ...string) int {
	count := 0

	for _, call := range m.Calls {
		if call.Method != "Run" {
			continue
		}

		if got, ok := call.Arguments.Get(1).([]string); ok && equalArgs(got, args) {
			count++
		}
	}

	return count
}

func equalArgs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// Output wraps stdout in a successful result.
func Output(stdout string) *domain.ProcessResult {
	return &domain.ProcessResult{Stdout: stdout}
}

// Exit returns a result and the matching non-zero exit error.
func Exit(code int, stdout string) (*domain.ProcessResult, error) {
	return &domain.ProcessResult{Stdout: stdout, ExitCode: code}, &domain.ProcessError{
		Kind:     domain.KindNonZeroExit,
		Command:  "winget",
		ExitCode: code,
		Stderr:   strings.TrimSpace(stdout),
	}
}

// Table renders rows the way winget aligns them: every column is as wide as
// its longest cell plus one space, under a dashed separator.
func Table(header []string, rows ...[]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && utf8.RuneCountInString(cell) > widths[i] {
				widths[i] = utf8.RuneCountInString(cell)
			}
		}
	}

	line := func(cells []string) string {
		var b strings.Builder

		for i, cell := range cells {
			b.WriteString(cell)

			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+1))
			}
		}

		return strings.TrimRight(b.String(), " ")
	}

	total := len(widths)
	for _, w := range widths {
		total += w
	}

	lines := []string{line(header), strings.Repeat("-", total)}
	for _, row := range rows {
		lines = append(lines, line(row))
	}

	return strings.Join(lines, "\r\n") + "\r\n"
}

// SearchOutput renders "winget search" output for records.
func SearchOutput(records ...domain.PackageRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Name, r.ID, r.CurrentVersion, r.Match, r.Source})
	}

	return Table([]string{"Name", "Id", "Version", "Match", "Source"}, rows...)
}

// ListOutput renders "winget list" output for records.
func ListOutput(records ...domain.PackageRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Name, r.ID, r.CurrentVersion, r.AvailableVersion, r.Source})
	}

	return Table([]string{"Name", "Id", "Version", "Available", "Source"}, rows...)
}

// UpgradeOutput renders "winget upgrade" output including its summary line.
func UpgradeOutput(records ...domain.PackageRecord) string {
	if len(records) == 0 {
		return "No installed package found matching input criteria.\r\n"
	}

	return ListOutput(records...) + "1 upgrades available.\r\n"
}

// Record builds a package record with the name derived from the id.
func Record(id, version, available string) domain.PackageRecord {
	name := id
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		name = id[i+1:]
	}

	return domain.PackageRecord{ID: id, Name: name, CurrentVersion: version, AvailableVersion: available, Source: "winget"}
}

// WaitWithTimeout polls fn until it returns true or timeout expires.
func WaitWithTimeout(fn func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}

		time.Sleep(10 * time.Millisecond)
	}

	return false
}
