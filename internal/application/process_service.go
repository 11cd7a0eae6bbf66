// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package application holds the services that orchestrate winget runs,
// catalog state and package actions on the control loop.
package application

import (
	"context"
	"errors"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/loop"
	"github.com/wingetpro/wingetpro/internal/winget"
	"golang.org/x/sync/semaphore"
)

// ProcessService runs the tool off the control loop and delivers results
// back onto it. At most maxConcurrent processes run at once.
type ProcessService struct {
	loop   *loop.Loop
	runner domain.CommandRunner
	sem    *semaphore.Weighted
	logger zerolog.Logger
}

type processOutcome struct {
	result *domain.ProcessResult
	err    error
}

type queryOutcome struct {
	records []domain.PackageRecord
	err     error
}

// NewProcessService creates the asynchronous bridge over runner.
func NewProcessService(l *loop.Loop, runner domain.CommandRunner, maxConcurrent int, logger zerolog.Logger) *ProcessService {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &ProcessService{
		loop:   l,
		runner: runner,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		logger: logger.With().Str("component", "process").Logger(),
	}
}

// Start launches the tool with args and returns immediately. done runs on
// the control loop with the result and error from the runner.
func (s *ProcessService) Start(ctx context.Context, args []string, timeout time.Duration, done func(*domain.ProcessResult, error)) {
	loop.Spawn(s.loop, func() processOutcome {
		result, err := s.run(ctx, args, timeout)

		return processOutcome{result: result, err: err}
	}, func(o processOutcome) {
		done(o.result, o.err)
	})
}

// Query runs a listing command and parses its output as kind off the loop.
// The "no applications found" exit code yields an empty slice.
func (s *ProcessService) Query(
	ctx context.Context,
	kind winget.CommandKind,
	args []string,
	timeout time.Duration,
	done func([]domain.PackageRecord, error),
) {
	loop.Spawn(s.loop, func() queryOutcome {
		result, err := s.run(ctx, args, timeout)
		if err != nil {
			if isNoResults(err) {
				return queryOutcome{records: []domain.PackageRecord{}}
			}

			return queryOutcome{err: err}
		}

		records, err := winget.Parse(kind, result.Stdout)
		if err != nil {
			s.logger.Debug().Err(err).Str("kind", kind.String()).Str("stdout", result.Stdout).Msg("unparsable output")
		}

		return queryOutcome{records: records, err: err}
	}, func(o queryOutcome) {
		done(o.records, o.err)
	})
}

func (s *ProcessService) run(ctx context.Context, args []string, timeout time.Duration) (*domain.ProcessResult, error) {
	// Acquire may succeed on a done context, so check it first.
	if err := ctx.Err(); err != nil {
		return nil, canceled(args, err)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, canceled(args, err)
	}
	defer s.sem.Release(1)

	start := time.Now()
	result, err := s.runner.Run(ctx, args, timeout)

	event := s.logger.Debug()
	if err != nil {
		event = s.logger.Info().Err(err)
	}

	event.Str("args", shellquote.Join(args...)).Dur("elapsed", time.Since(start)).Msg("tool finished")

	return result, err
}

func canceled(args []string, err error) error {
	return &domain.ProcessError{
		Kind:    domain.KindCanceled,
		Command: shellquote.Join(args...),
		Err:     err,
	}
}

func isNoResults(err error) bool {
	var procErr *domain.ProcessError
	if !errors.As(err, &procErr) {
		return false
	}

	return procErr.Kind == domain.KindNonZeroExit && winget.IsNoResultsExit(procErr.ExitCode)
}
