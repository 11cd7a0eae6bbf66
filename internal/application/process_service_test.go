// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package application_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wingetpro/wingetpro/internal/application"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/loop"
	"github.com/wingetpro/wingetpro/internal/testutil"
	"github.com/wingetpro/wingetpro/internal/winget"
)

func startLoop(t *testing.T) (*loop.Loop, context.Context) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l := loop.New(8)

	go func() { _ = l.Run(ctx) }()

	return l, ctx
}

func TestProcessService_StartDeliversOnLoop(t *testing.T) {
	t.Parallel()

	l, ctx := startLoop(t)
	runner := &testutil.MockCommandRunner{}
	runner.OnRun("--version").Return(testutil.Output("v1.8.1619\r\n"), nil)

	svc := application.NewProcessService(l, runner, 1, zerolog.Nop())

	type delivered struct {
		result *domain.ProcessResult
		err    error
	}

	ch := make(chan delivered, 1)
	require.NoError(t, l.Do(ctx, func() {
		svc.Start(ctx, winget.VersionArgs(), time.Second, func(res *domain.ProcessResult, err error) {
			ch <- delivered{res, err}
		})
	}))

	got := wait(t, ch)
	require.NoError(t, got.err)
	assert.Equal(t, "v1.8.1619\r\n", got.result.Stdout)
	runner.AssertExpectations(t)
}

func TestProcessService_QueryParsesAndMapsNoResults(t *testing.T) {
	t.Parallel()

	l, ctx := startLoop(t)
	runner := &testutil.MockCommandRunner{}
	runner.OnRun("list").Return(testutil.Output(testutil.ListOutput(testutil.Record("Git.Git", "2.45.1", ""))), nil)
	runner.OnRun("search", "nothing").Return(testutil.Exit(0x8A150014, "No package found matching input criteria."))
	runner.OnRun("search", "broken").Return(testutil.Exit(2, "boom"))

	svc := application.NewProcessService(l, runner, 2, zerolog.Nop())

	type queried struct {
		records []domain.PackageRecord
		err     error
	}

	query := func(kind winget.CommandKind, args ...string) queried {
		ch := make(chan queried, 1)
		svc.Query(ctx, kind, args, time.Second, func(records []domain.PackageRecord, err error) {
			ch <- queried{records, err}
		})

		return wait(t, ch)
	}

	listed := query(winget.KindListInstalled, "list")
	require.NoError(t, listed.err)
	require.Len(t, listed.records, 1)
	assert.Equal(t, "Git.Git", listed.records[0].ID)

	empty := query(winget.KindSearch, "search", "nothing")
	require.NoError(t, empty.err)
	assert.NotNil(t, empty.records)
	assert.Empty(t, empty.records)

	failed := query(winget.KindSearch, "search", "broken")
	kind, ok := domain.KindOf(failed.err)
	require.True(t, ok)
	assert.Equal(t, domain.KindNonZeroExit, kind)
}

func TestProcessService_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	l, ctx := startLoop(t)
	runner := &testutil.MockCommandRunner{}

	var running, peak atomic.Int32

	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}

			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		}).
		Return(testutil.Output(""), nil)

	svc := application.NewProcessService(l, runner, 2, zerolog.Nop())

	done := make(chan struct{}, 6)
	for range 6 {
		svc.Start(ctx, []string{"list"}, time.Second, func(*domain.ProcessResult, error) { done <- struct{}{} })
	}

	for range 6 {
		wait(t, done)
	}

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProcessService_CanceledBeforeStart(t *testing.T) {
	t.Parallel()

	l, ctx := startLoop(t)
	runner := &testutil.MockCommandRunner{}
	svc := application.NewProcessService(l, runner, 1, zerolog.Nop())

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	ch := make(chan error, 1)
	svc.Start(canceled, []string{"list"}, time.Second, func(_ *domain.ProcessResult, err error) { ch <- err })

	kind, ok := domain.KindOf(wait(t, ch))
	require.True(t, ok)
	assert.Equal(t, domain.KindCanceled, kind)
	assert.Empty(t, runner.Calls)
}
