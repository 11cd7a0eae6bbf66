// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/wingetpro/wingetpro/internal/application"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/loop"
	"github.com/wingetpro/wingetpro/internal/pins"
	"github.com/wingetpro/wingetpro/internal/testutil"
	"github.com/wingetpro/wingetpro/internal/winget"
)

const (
	waitFor  = 5 * time.Second
	pinsPath = "/data/wingetpro/pins.toml"
)

type harness struct {
	t       *testing.T
	ctx     context.Context
	loop    *loop.Loop
	runner  *testutil.MockCommandRunner
	events  *application.Events
	catalog *application.CatalogService
	actions *application.ActionService
	store   *pins.Store
	fs      afero.Fs

	mu        sync.Mutex
	snapshots []domain.TabSnapshot
	opEvents  []domain.OperationEvent
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	fs            afero.Fs
	includePinned bool
}

func withFs(fs afero.Fs) harnessOption {
	return func(c *harnessConfig) { c.fs = fs }
}

func withIncludePinned() harnessOption {
	return func(c *harnessConfig) { c.includePinned = true }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := harnessConfig{fs: afero.NewMemMapFs()}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l := loop.New(16)

	go func() { _ = l.Run(ctx) }()

	runner := &testutil.MockCommandRunner{}
	events := application.NewEvents()
	processes := application.NewProcessService(l, runner, 2, zerolog.Nop())
	store := pins.NewStoreFs(cfg.fs, pinsPath, zerolog.Nop())

	catalog := application.NewCatalogService(ctx, processes, events, store, application.CatalogConfig{
		Timeout: time.Minute,
	}, zerolog.Nop())

	actions := application.NewActionService(ctx, processes, catalog, store, events, application.ActionConfig{
		Action:        winget.ActionOptions{Silent: true},
		ActionTimeout: time.Minute,
		QueryTimeout:  time.Minute,
		IncludePinned: cfg.includePinned,
	}, zerolog.Nop())

	h := &harness{
		t:       t,
		ctx:     ctx,
		loop:    l,
		runner:  runner,
		events:  events,
		catalog: catalog,
		actions: actions,
		store:   store,
		fs:      cfg.fs,
	}

	events.SubscribeTabs(func(s domain.TabSnapshot) {
		h.mu.Lock()
		h.snapshots = append(h.snapshots, s)
		h.mu.Unlock()
	})
	events.SubscribeOperations(func(e domain.OperationEvent) {
		h.mu.Lock()
		h.opEvents = append(h.opEvents, e)
		h.mu.Unlock()
	})

	return h
}

// do runs fn on the control loop and waits for it.
func (h *harness) do(fn func()) {
	h.t.Helper()
	require.NoError(h.t, h.loop.Do(h.ctx, fn))
}

func wait[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for callback")

		var zero T

		return zero
	}
}

func (h *harness) refresh(tab domain.TabKind) error {
	h.t.Helper()

	ch := make(chan error, 1)
	h.do(func() { h.catalog.Refresh(tab, func(err error) { ch <- err }) })

	return wait(h.t, ch)
}

func (h *harness) search(query string) error {
	h.t.Helper()

	ch := make(chan error, 1)
	h.do(func() { h.catalog.Search(query, func(err error) { ch <- err }) })

	return wait(h.t, ch)
}

func (h *harness) dispatch(kind domain.OperationKind, ids ...string) domain.BatchResult {
	h.t.Helper()

	ch := make(chan domain.BatchResult, 1)
	h.do(func() { h.actions.Dispatch(kind, ids, func(r domain.BatchResult) { ch <- r }) })

	return wait(h.t, ch)
}

func (h *harness) snapshot(tab domain.TabKind) domain.TabSnapshot {
	h.t.Helper()

	var snap domain.TabSnapshot
	h.do(func() { snap = h.catalog.Snapshot(tab) })

	return snap
}

func (h *harness) operationEvents() []domain.OperationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]domain.OperationEvent(nil), h.opEvents...)
}

func (h *harness) lastSnapshot(tab domain.TabKind) (domain.TabSnapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.snapshots) - 1; i >= 0; i-- {
		if h.snapshots[i].Tab == tab {
			return h.snapshots[i], true
		}
	}

	return domain.TabSnapshot{}, false
}

func ids(rows []domain.ViewRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}

	return out
}
