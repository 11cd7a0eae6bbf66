// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package platform provides the process and filesystem adapters.
package platform

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
	"github.com/wingetpro/wingetpro/internal/domain"
)

// waitDelay bounds how long Run keeps draining pipes after the process was
// killed. Grandchildren outside the process group may hold them open.
const waitDelay = 2 * time.Second

// CommandRunner implements the CommandRunner port for the real tool binary.
type CommandRunner struct {
	tool   string
	logger zerolog.Logger
}

// NewCommandRunner creates a runner for the tool at path, or on PATH when
// tool is a bare name.
func NewCommandRunner(tool string, logger zerolog.Logger) *CommandRunner {
	return &CommandRunner{
		tool:   tool,
		logger: logger.With().Str("component", "runner").Logger(),
	}
}

// Available checks if the tool can be located.
func (r *CommandRunner) Available() bool {
	_, err := exec.LookPath(r.tool)

	return err == nil
}

// Run executes the tool with args and waits for it to exit or for timeout
// to expire. A zero timeout leaves only ctx in charge.
func (r *CommandRunner) Run(ctx context.Context, args []string, timeout time.Duration) (*domain.ProcessResult, error) {
	command := shellquote.Join(append([]string{r.tool}, args...)...)

	path, err := exec.LookPath(r.tool)
	if err != nil {
		return nil, &domain.ProcessError{Kind: domain.KindLaunchFailure, Command: command, Err: err}
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	var stdout, stderr bytes.Buffer

	// #nosec G204 - arguments are built by the winget command builder
	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.Stdin = nil
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	tree := newProcessTree(cmd)
	defer tree.release()

	r.logger.Debug().Str("command", command).Dur("timeout", timeout).Msg("$ " + command)

	start := time.Now()

	if err := cmd.Start(); err != nil {
		return nil, &domain.ProcessError{Kind: domain.KindLaunchFailure, Command: command, Err: err}
	}

	if err := tree.attach(); err != nil {
		r.logger.Warn().Err(err).Str("command", command).Msg("tool children will not be killed on timeout")
	}

	runErr := cmd.Wait()
	elapsed := time.Since(start)

	result := &domain.ProcessResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: elapsed,
	}

	if kind, interrupted := interruption(runErr, runCtx, ctx); interrupted {
		r.logger.Debug().Str("command", command).Str("kind", kind.String()).Dur("elapsed", elapsed).Msg("tool killed")

		return nil, &domain.ProcessError{Kind: kind, Command: command, Err: runCtx.Err()}
	}

	r.logger.Debug().
		Str("command", command).
		Int("exit_code", result.ExitCode).
		Dur("elapsed", elapsed).
		Int("stdout_bytes", stdout.Len()).
		Msg("tool finished")

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) && !errors.Is(runErr, exec.ErrWaitDelay) {
			return result, &domain.ProcessError{Kind: domain.KindLaunchFailure, Command: command, Err: runErr}
		}

		if result.ExitCode == 0 {
			return result, nil
		}

		return result, &domain.ProcessError{
			Kind:     domain.KindNonZeroExit,
			Command:  command,
			ExitCode: result.ExitCode,
			Stderr:   detail(result),
			Err:      runErr,
		}
	}

	return result, nil
}

// interruption reports whether a run failed because its context ended. A
// run that exited cleanly keeps its result even when the deadline passed
// while it was being reaped.
func interruption(runErr error, runCtx, parent context.Context) (domain.ErrorKind, bool) {
	if runErr == nil || runCtx.Err() == nil {
		return 0, false
	}

	if parent.Err() != nil {
		return domain.KindCanceled, true
	}

	return domain.KindTimeout, true
}

// detail picks the text shown for a failed run. winget reports most
// failures on stdout, so the last stdout line stands in for empty stderr.
func detail(result *domain.ProcessResult) string {
	if msg := strings.TrimSpace(result.Stderr); msg != "" {
		return msg
	}

	lines := strings.Split(strings.ReplaceAll(result.Stdout, "\r", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}

	return ""
}
