// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wingetpro/wingetpro/internal/domain"
)

// TestExitErrorFormatting tests that ExitError properly formats messages.
func TestExitErrorFormatting(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 1")

	withCause := domain.NewExitError(22, "2 of 3 packages failed", cause)
	assert.Equal(t, "2 of 3 packages failed: exit status 1", withCause.Error())
	assert.Equal(t, 22, withCause.Code)
	require.ErrorIs(t, withCause, cause)

	bare := domain.NewExitError(3, "Invalid configuration", nil)
	assert.Equal(t, "Invalid configuration", bare.Error())
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind domain.ErrorKind
		ok   bool
	}{
		{"nil", nil, 0, false},
		{"plain", errors.New("boom"), 0, false},
		{"process", &domain.ProcessError{Kind: domain.KindTimeout, Command: "winget list"}, domain.KindTimeout, true},
		{"wrapped process", fmt.Errorf("refresh: %w", &domain.ProcessError{Kind: domain.KindCanceled}), domain.KindCanceled, true},
		{"parse", &domain.ParseError{Kind: domain.KindNoHeader}, domain.KindNoHeader, true},
		{"store", &domain.StoreError{Kind: domain.KindPersistFailure, Err: errors.New("disk full")}, domain.KindPersistFailure, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			kind, ok := domain.KindOf(tc.err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestProcessErrorMessages(t *testing.T) {
	t.Parallel()

	nonZero := &domain.ProcessError{
		Kind: domain.KindNonZeroExit, Command: "winget uninstall --id Foo", ExitCode: 1, Stderr: "access is denied",
	}
	assert.Equal(t, "winget uninstall --id Foo exited with code 1: access is denied", nonZero.Error())

	timeout := &domain.ProcessError{Kind: domain.KindTimeout, Command: "winget list"}
	assert.Equal(t, "winget list timed out", timeout.Error())

	launch := &domain.ProcessError{Kind: domain.KindLaunchFailure, Command: "winget", Err: errors.New("not found")}
	assert.Equal(t, "winget: launch failure: not found", launch.Error())

	cause := errors.New("read-only file system")
	storeErr := &domain.StoreError{Kind: domain.KindPersistFailure, Path: "/x/pins.toml", Err: cause}
	require.ErrorIs(t, storeErr, cause)
	assert.Contains(t, storeErr.Error(), "persist failure")

	row := &domain.ParseError{Kind: domain.KindMalformedRow, Line: 4, Text: "x"}
	assert.Equal(t, `malformed row at line 4: "x"`, row.Error())
}

// TestFormatErrorMessage tests user-friendly error formatting.
func TestFormatErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		err              error
		packageID        string
		verbose          bool
		shouldContain    []string
		shouldNotContain []string
	}{
		{
			name: "package not found from tool output",
			err: &domain.ProcessError{
				Kind: domain.KindNonZeroExit, Command: "winget install", ExitCode: 1,
				Stderr: "No package found matching input criteria.",
			},
			packageID:        "Foo.Bar",
			shouldContain:    []string{"✗ Foo.Bar", "Package 'Foo.Bar' not found", "Check the package id spelling"},
			shouldNotContain: []string{"Technical details"},
		},
		{
			name:          "timeout by kind",
			err:           &domain.ProcessError{Kind: domain.KindTimeout, Command: "winget upgrade"},
			shouldContain: []string{"WinGet did not answer in time", "Try again"},
		},
		{
			name:      "permission verbose",
			err:       errors.New("Access is denied."),
			packageID: "Git.Git",
			verbose:   true,
			shouldContain: []string{
				"Permission denied",
				"Technical details: Access is denied.",
				"Suggestions:",
				"• Run from an elevated terminal",
			},
		},
		{
			name:          "persist failure",
			err:           &domain.StoreError{Kind: domain.KindPersistFailure, Path: "p", Err: errors.New("disk full")},
			shouldContain: []string{"Pin list could not be saved"},
		},
		{
			name:          "unknown error",
			err:           errors.New("something odd"),
			shouldContain: []string{"Operation failed", "--verbose"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			msg := domain.FormatErrorMessage(tc.err, tc.packageID, tc.verbose)

			for _, want := range tc.shouldContain {
				assert.Contains(t, msg, want)
			}

			for _, unwanted := range tc.shouldNotContain {
				assert.False(t, strings.Contains(msg, unwanted), "message should not contain %q: %s", unwanted, msg)
			}
		})
	}
}

func TestKindMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "WinGet did not answer in time", domain.KindMessage(domain.KindTimeout))
	assert.Equal(t, "Unexpected WinGet output", domain.KindMessage(domain.KindMalformedRow))
	assert.Equal(t, "WinGet reported an error", domain.KindMessage(domain.KindNonZeroExit))
	assert.Equal(t, "Operation failed", domain.KindMessage(domain.ErrorKind(99)))
}
