// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies the failures the core can surface to the user.
type ErrorKind int

// Error kinds. Process kinds come from the runner, parse kinds from the
// output parser and store kinds from the pin store.
const (
	KindTimeout ErrorKind = iota + 1
	KindLaunchFailure
	KindNonZeroExit
	KindCanceled
	KindNoHeader
	KindMalformedRow
	KindLoadFailure
	KindPersistFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindLaunchFailure:
		return "launch failure"
	case KindNonZeroExit:
		return "non-zero exit"
	case KindCanceled:
		return "canceled"
	case KindNoHeader:
		return "no header"
	case KindMalformedRow:
		return "malformed row"
	case KindLoadFailure:
		return "load failure"
	case KindPersistFailure:
		return "persist failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Ptr returns a pointer to a copy of k, for optional fields.
func (k ErrorKind) Ptr() *ErrorKind {
	return &k
}

// ProcessError reports a failed external tool invocation.
type ProcessError struct {
	Kind     ErrorKind
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	switch e.Kind {
	case KindNonZeroExit:
		msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
		if e.Stderr != "" {
			msg += ": " + e.Stderr
		}

		return msg
	case KindTimeout:
		return fmt.Sprintf("%s timed out", e.Command)
	case KindCanceled:
		return fmt.Sprintf("%s canceled", e.Command)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Command, e.Kind, e.Err)
		}

		return fmt.Sprintf("%s: %s", e.Command, e.Kind)
	}
}

func (e *ProcessError) Unwrap() error { return e.Err }

// ParseError reports tool output that does not have the expected shape.
type ParseError struct {
	Kind ErrorKind
	Line int
	Text string
}

func (e *ParseError) Error() string {
	if e.Kind == KindMalformedRow {
		return fmt.Sprintf("malformed row at line %d: %q", e.Line, e.Text)
	}

	return "no table header in tool output"
}

// StoreError reports pin store I/O failures.
type StoreError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("pin store %s (%s): %v", e.Kind, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind carried by err. The second result is false
// for errors that do not originate from the runner, parser or store.
func KindOf(err error) (ErrorKind, bool) {
	if err == nil {
		return 0, false
	}

	var procErr *ProcessError
	if errors.As(err, &procErr) {
		return procErr.Kind, true
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Kind, true
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind, true
	}

	return 0, false
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// NewExitError creates an ExitError with the specified code and message.
func NewExitError(code int, message string, err error) *ExitError {
	return &ExitError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// ErrorInfo provides user-friendly error information.
type ErrorInfo struct {
	Message     string   // User-friendly message
	Suggestions []string // Actionable suggestions
	ShowDetails bool     // Whether to show technical details
}

func kindInfo(kind ErrorKind, verbose bool) (ErrorInfo, bool) {
	switch kind {
	case KindTimeout:
		return ErrorInfo{
			Message:     "WinGet did not answer in time",
			Suggestions: []string{"Try again, the package sources may be updating", "Raise tool.query_timeout in config.toml"},
			ShowDetails: verbose,
		}, true
	case KindLaunchFailure:
		return ErrorInfo{
			Message:     "WinGet could not be started",
			Suggestions: []string{"Install 'App Installer' from the Microsoft Store", "Point --tool at winget.exe"},
			ShowDetails: verbose,
		}, true
	case KindNoHeader, KindMalformedRow:
		return ErrorInfo{
			Message:     "Unexpected WinGet output",
			Suggestions: []string{"Run with --verbose to see the raw output", "Update WinGet to a supported version"},
			ShowDetails: verbose,
		}, true
	case KindLoadFailure:
		return ErrorInfo{
			Message:     "Pin list could not be read",
			Suggestions: []string{"Check the pins file, it was ignored for this session"},
			ShowDetails: verbose,
		}, true
	case KindPersistFailure:
		return ErrorInfo{
			Message:     "Pin list could not be saved",
			Suggestions: []string{"Check permissions of the data directory"},
			ShowDetails: verbose,
		}, true
	case KindCanceled:
		return ErrorInfo{Message: "Operation canceled", ShowDetails: verbose}, true
	default:
		return ErrorInfo{}, false
	}
}

// KindMessage returns the short user-facing message for kind.
func KindMessage(kind ErrorKind) string {
	if info, ok := kindInfo(kind, false); ok {
		return info.Message
	}

	if kind == KindNonZeroExit {
		return "WinGet reported an error"
	}

	return "Operation failed"
}

// getErrorMatchers returns output patterns and their corresponding info.
func getErrorMatchers() []struct {
	patterns []string
	getInfo  func(string, bool) ErrorInfo
} {
	return []struct {
		patterns []string
		getInfo  func(string, bool) ErrorInfo
	}{
		{
			patterns: []string{"no package found", "no installed package found"},
			getInfo: func(pkg string, verbose bool) ErrorInfo {
				if pkg != "" {
					return ErrorInfo{
						Message:     "Package '" + pkg + "' not found",
						Suggestions: []string{"Check the package id spelling", "Search first: wingetpro search <term>"},
						ShowDetails: verbose,
					}
				}

				return ErrorInfo{
					Message:     "Package not found",
					Suggestions: []string{"Verify the package id"},
					ShowDetails: verbose,
				}
			},
		},
		{
			patterns: []string{"no applicable upgrade", "no available upgrade", "no newer package"},
			getInfo: func(_ string, verbose bool) ErrorInfo {
				return ErrorInfo{
					Message:     "Already up to date",
					Suggestions: []string{"Nothing to upgrade"},
					ShowDetails: verbose,
				}
			},
		},
		{
			patterns: []string{"agreement", "terms of transaction"},
			getInfo: func(_ string, verbose bool) ErrorInfo {
				return ErrorInfo{
					Message:     "Source or package agreements were not accepted",
					Suggestions: []string{"Enable actions.accept_agreements"},
					ShowDetails: verbose,
				}
			},
		},
		{
			patterns: []string{"administrator", "access is denied", "elevation"},
			getInfo: func(_ string, verbose bool) ErrorInfo {
				return ErrorInfo{
					Message:     "Permission denied",
					Suggestions: []string{"Run from an elevated terminal"},
					ShowDetails: verbose,
				}
			},
		},
		{
			patterns: []string{"network", "connection", "internet"},
			getInfo: func(_ string, verbose bool) ErrorInfo {
				return ErrorInfo{
					Message:     "Network connection failed",
					Suggestions: []string{"Check your internet connection", "Try again in a few moments"},
					ShowDetails: verbose,
				}
			},
		},
	}
}

// GetErrorInfo analyzes an error and returns user-friendly information.
func GetErrorInfo(err error, packageID string, verbose bool) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}

	errStr := strings.ToLower(err.Error())

	for _, matcher := range getErrorMatchers() {
		for _, pattern := range matcher.patterns {
			if strings.Contains(errStr, pattern) {
				return matcher.getInfo(packageID, verbose)
			}
		}
	}

	if kind, ok := KindOf(err); ok {
		if info, known := kindInfo(kind, verbose); known {
			return info
		}
	}

	return ErrorInfo{
		Message:     "Operation failed",
		Suggestions: []string{"Run with --verbose for more details"},
		ShowDetails: verbose,
	}
}

// FormatErrorMessage formats an error for display.
func FormatErrorMessage(err error, packageID string, verbose bool) string {
	info := GetErrorInfo(err, packageID, verbose)

	var result strings.Builder

	if packageID != "" {
		result.WriteString("✗ ")
		result.WriteString(packageID)

		if info.Message != "" {
			result.WriteString(": ")
			result.WriteString(info.Message)
		}
	} else {
		result.WriteString("✗ ")
		result.WriteString(info.Message)
	}

	if info.ShowDetails && err != nil {
		result.WriteString("\n  Technical details: ")
		result.WriteString(err.Error())
	}

	if len(info.Suggestions) > 0 && !verbose {
		result.WriteString(" (")
		result.WriteString(info.Suggestions[0])
		result.WriteString(")")
	} else if len(info.Suggestions) > 0 {
		result.WriteString("\n  Suggestions:")

		for _, suggestion := range info.Suggestions {
			result.WriteString("\n    • ")
			result.WriteString(suggestion)
		}
	}

	return result.String()
}
