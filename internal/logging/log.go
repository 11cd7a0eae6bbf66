// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package logging configures the global zerolog logger.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Mode selects where log output goes.
type Mode int

// Output modes.
const (
	// ModeCLI writes human-readable lines to stderr.
	ModeCLI Mode = iota
	// ModeTUI appends JSON lines to a file so the alternate screen stays clean.
	ModeTUI
)

// ErrInvalidLevel indicates a level name zerolog does not know.
var ErrInvalidLevel = errors.New("invalid log level")

// Options configure Setup.
type Options struct {
	Mode    Mode
	Level   string
	Verbose bool
	File    string
	// Writer replaces stderr in CLI mode.
	Writer io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures log.Logger and the global level. The returned closer
// releases the log file in TUI mode.
func Setup(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	if opts.Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(level)

	var closer io.Closer = nopCloser{}

	switch opts.Mode {
	case ModeTUI:
		file, err := openLogFile(opts.File)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, err
		}

		closer = file
		log.Logger = zerolog.New(file).With().Timestamp().Logger()
	default:
		out := opts.Writer
		if out == nil {
			out = os.Stderr
		}

		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    !isTerminal(out),
			TimeFormat: "15:04:05",
		}).With().Timestamp().Logger()
	}

	return log.Logger, closer, nil
}

// ParseLevel maps a config level name to a zerolog level. Empty means info.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return zerolog.InfoLevel, nil
	}

	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("%w: %q", ErrInvalidLevel, name)
	}

	return level, nil
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}

	// #nosec G301 - state directory of the current user
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// #nosec G304 - path comes from configuration
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return file, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec
}
