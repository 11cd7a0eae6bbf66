// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wingetpro/wingetpro/internal/config"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/loop"
	"github.com/wingetpro/wingetpro/internal/pins"
	"github.com/wingetpro/wingetpro/internal/winget"
)

// ErrSessionClosed is returned by blocking helpers after Close.
var ErrSessionClosed = errors.New("session closed")

// Session wires the control loop, process bridge, catalog and dispatcher.
type Session struct {
	Loop    *loop.Loop
	Events  *Events
	Catalog *CatalogService
	Actions *ActionService
	Pins    *pins.Store

	cfg     *config.Config
	ctx     context.Context //nolint:containedctx // canceled by Close
	cancel  context.CancelFunc
	loadErr error
	runErr  chan error
	logger  zerolog.Logger
}

// NewSession builds a session from cfg. The pin file is loaded here; a
// corrupt file leaves the set empty and is reported by PinLoadError.
func NewSession(cfg *config.Config, runner domain.CommandRunner, store *pins.Store, logger zerolog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	l := loop.New(64, loop.WithLogger(logger))
	events := NewEvents()
	processes := NewProcessService(l, runner, cfg.Tool.MaxConcurrentQueries, logger)

	queryOpts := QueryOptions(cfg)

	catalog := NewCatalogService(ctx, processes, events, store, CatalogConfig{
		Query:   queryOpts,
		Timeout: cfg.Tool.QueryTimeout.Std(),
	}, logger)

	actions := NewActionService(ctx, processes, catalog, store, events, ActionConfig{
		Action: winget.ActionOptions{
			Silent:                cfg.Actions.Silent,
			AcceptAgreements:      cfg.Actions.AcceptAgreements,
			UninstallWingetSource: cfg.Actions.UninstallWingetSource,
			DisableInteractivity:  cfg.Actions.DisableInteractivity,
		},
		Query:         queryOpts,
		ActionTimeout: cfg.Tool.ActionTimeout.Std(),
		QueryTimeout:  cfg.Tool.QueryTimeout.Std(),
		IncludePinned: cfg.Upgrades.IncludePinned,
	}, logger)

	_, loadErr := store.Load()

	return &Session{
		Loop:    l,
		Events:  events,
		Catalog: catalog,
		Actions: actions,
		Pins:    store,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		loadErr: loadErr,
		runErr:  make(chan error, 1),
		logger:  logger.With().Str("component", "session").Logger(),
	}
}

// QueryOptions derives the listing flags from cfg.
func QueryOptions(cfg *config.Config) winget.QueryOptions {
	return winget.QueryOptions{
		IncludeUnknown:         cfg.Upgrades.IncludeUnknown,
		IncludePinned:          cfg.Upgrades.IncludePinned,
		AcceptSourceAgreements: cfg.Actions.AcceptAgreements,
		DisableInteractivity:   cfg.Actions.DisableInteractivity,
	}
}

// Config returns the configuration the session was built from.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// PinLoadError returns the error from loading the pin file, if any.
func (s *Session) PinLoadError() error {
	return s.loadErr
}

// Start runs the control loop on a new goroutine.
func (s *Session) Start() {
	s.logger.Debug().Int("pins", len(s.Pins.IDs())).Msg("session started")

	go func() {
		s.runErr <- s.Loop.Run(s.ctx)
	}()
}

// Close cancels running tool processes and stops the loop.
func (s *Session) Close() {
	s.cancel()
	s.Loop.Stop()
}

// Wait blocks until the loop started by Start has returned.
func (s *Session) Wait() error {
	err := <-s.runErr
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// Post schedules fn on the control loop.
func (s *Session) Post(fn func()) bool {
	return s.Loop.Post(fn)
}

// await posts start to the loop and blocks until start's callback fires.
func await[T any](ctx context.Context, s *Session, start func(done func(T))) (T, error) {
	ch := make(chan T, 1)

	var zero T

	if !s.Loop.Post(func() { start(func(v T) { ch <- v }) }) {
		return zero, ErrSessionClosed
	}

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.Loop.Done():
		return zero, ErrSessionClosed
	}
}

type outcome[T any] struct {
	value T
	err   error
}

// Refresh reloads tab and waits for the outcome.
func (s *Session) Refresh(ctx context.Context, tab domain.TabKind) error {
	refreshErr, err := await(ctx, s, func(done func(error)) {
		s.Catalog.Refresh(tab, done)
	})
	if err != nil {
		return err
	}

	return refreshErr
}

// Search runs a query on the Search tab and waits for the outcome.
func (s *Session) Search(ctx context.Context, query string) error {
	searchErr, err := await(ctx, s, func(done func(error)) {
		s.Catalog.Search(query, done)
	})
	if err != nil {
		return err
	}

	return searchErr
}

// Snapshot applies view to tab and returns its projection.
func (s *Session) Snapshot(ctx context.Context, tab domain.TabKind, view ViewOptions) (domain.TabSnapshot, error) {
	var snap domain.TabSnapshot

	err := s.Loop.Do(ctx, func() {
		s.Catalog.SetFilter(tab, view.Filter)
		s.Catalog.SetSort(tab, view.SortColumn, view.Ascending)
		snap = s.Catalog.Snapshot(tab)
	})

	return snap, err
}

// Dispatch runs kind against ids and waits for the batch result.
func (s *Session) Dispatch(ctx context.Context, kind domain.OperationKind, ids []string) (domain.BatchResult, error) {
	return await(ctx, s, func(done func(domain.BatchResult)) {
		s.Actions.Dispatch(kind, ids, done)
	})
}

// UpgradeAll upgrades every upgradable package and waits for the result.
func (s *Session) UpgradeAll(ctx context.Context) (domain.BatchResult, error) {
	out, err := await(ctx, s, func(done func(outcome[domain.BatchResult])) {
		s.Actions.UpgradeAll(func(res domain.BatchResult, err error) {
			done(outcome[domain.BatchResult]{value: res, err: err})
		})
	})
	if err != nil {
		return domain.BatchResult{}, err
	}

	return out.value, out.err
}

// ImportToolPins replaces local pins with winget's own pins.
func (s *Session) ImportToolPins(ctx context.Context) ([]domain.PackageRecord, error) {
	out, err := await(ctx, s, func(done func(outcome[[]domain.PackageRecord])) {
		s.Actions.ImportToolPins(func(records []domain.PackageRecord, err error) {
			done(outcome[[]domain.PackageRecord]{value: records, err: err})
		})
	})
	if err != nil {
		return nil, err
	}

	return out.value, out.err
}

// Show returns the "winget show" text for id.
func (s *Session) Show(ctx context.Context, id string) (string, error) {
	out, err := await(ctx, s, func(done func(outcome[string])) {
		s.Catalog.Show(id, func(text string, err error) {
			done(outcome[string]{value: text, err: err})
		})
	})
	if err != nil {
		return "", err
	}

	if out.err != nil {
		return "", fmt.Errorf("show %s: %w", id, out.err)
	}

	return out.value, nil
}

// PinnedIDs returns the pinned ids.
func (s *Session) PinnedIDs(ctx context.Context) ([]string, error) {
	var ids []string

	err := s.Loop.Do(ctx, func() { ids = s.Pins.IDs() })

	return ids, err
}
