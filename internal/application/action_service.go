// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package application

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/winget"
)

// ErrNothingToUpgrade is returned by UpgradeAll when every upgradable
// package is pinned or none exist.
var ErrNothingToUpgrade = errors.New("nothing to upgrade")

// PinStore is the pin persistence the dispatcher mutates.
type PinStore interface {
	domain.PinReader
	Pin(id string) bool
	Unpin(id string) bool
	IDs() []string
	Replace(ids []string) []string
	Persist() error
}

// ActionConfig configures an ActionService.
type ActionConfig struct {
	Action        winget.ActionOptions
	Query         winget.QueryOptions
	ActionTimeout time.Duration
	QueryTimeout  time.Duration
	// IncludePinned lets UpgradeAll upgrade pinned packages.
	IncludePinned bool
}

type batch struct {
	id      string
	kind    domain.OperationKind
	targets []*domain.OperationRecord
	done    func(domain.BatchResult)
}

// ActionService dispatches install, upgrade, uninstall, pin and unpin
// batches. Batches run one at a time in request order and the targets of a
// batch run sequentially. Every method must be called on the control loop.
type ActionService struct {
	base      context.Context //nolint:containedctx // parent of every action run, canceled on session close
	processes *ProcessService
	catalog   *CatalogService
	pins      PinStore
	events    *Events
	cfg       ActionConfig
	queue     []*batch
	running   *batch
	latest    map[string]*domain.OperationRecord
	logger    zerolog.Logger
}

// NewActionService creates a dispatcher and registers it as the status
// source of catalog.
func NewActionService(
	ctx context.Context,
	processes *ProcessService,
	catalog *CatalogService,
	pins PinStore,
	events *Events,
	cfg ActionConfig,
	logger zerolog.Logger,
) *ActionService {
	s := &ActionService{
		base:      ctx,
		processes: processes,
		catalog:   catalog,
		pins:      pins,
		events:    events,
		cfg:       cfg,
		latest:    make(map[string]*domain.OperationRecord),
		logger:    logger.With().Str("component", "actions").Logger(),
	}

	catalog.SetStatusSource(s)

	return s
}

// Dispatch queues kind for ids. Duplicate and blank ids are dropped. Every
// target is marked pending immediately; done receives the per-target
// outcome after the batch and its follow-up refreshes finished.
func (s *ActionService) Dispatch(kind domain.OperationKind, ids []string, done func(domain.BatchResult)) {
	b := &batch{id: ksuid.New().String(), kind: kind, done: done}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}

		rec := &domain.OperationRecord{
			ID:       ksuid.New().String(),
			BatchID:  b.id,
			TargetID: id,
			Kind:     kind,
			Status:   domain.StatusPending,
		}
		b.targets = append(b.targets, rec)
		s.latest[id] = rec
		s.publish(rec)
	}

	if len(b.targets) == 0 {
		if done != nil {
			done(result(b))
		}

		return
	}

	s.logger.Info().Str("batch", b.id).Str("kind", kind.String()).Int("targets", len(b.targets)).Msg("batch queued")

	s.queue = append(s.queue, b)
	s.catalog.ReprojectAll()
	s.next()
}

func (s *ActionService) next() {
	if s.running != nil || len(s.queue) == 0 {
		return
	}

	b := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.running = b

	if b.kind.ChangesPackages() {
		s.runTarget(b, 0)

		return
	}

	s.runLocal(b)
}

func (s *ActionService) runTarget(b *batch, i int) {
	if i == len(b.targets) {
		s.afterToolBatch(b)

		return
	}

	rec := b.targets[i]
	rec.StartedAt = time.Now()

	args, err := winget.ActionArgs(b.kind, rec.TargetID, s.cfg.Action)
	if err != nil {
		s.settle(rec, err)
		s.runTarget(b, i+1)

		return
	}

	s.processes.Start(s.base, args, s.cfg.ActionTimeout, func(_ *domain.ProcessResult, err error) {
		s.settle(rec, err)
		s.catalog.ReprojectAll()
		s.runTarget(b, i+1)
	})
}

// afterToolBatch refreshes Installed and Upgrades once each and completes
// the batch when both have reported back.
func (s *ActionService) afterToolBatch(b *batch) {
	remaining := 2

	refreshed := func(err error) {
		if err != nil && !errors.Is(err, ErrSuperseded) {
			s.logger.Warn().Err(err).Str("batch", b.id).Msg("refresh after batch failed")
		}

		remaining--
		if remaining > 0 {
			return
		}

		s.catalog.Reproject(domain.TabSearch)
		s.complete(b)
	}

	s.catalog.Refresh(domain.TabInstalled, refreshed)
	s.catalog.Refresh(domain.TabUpgrades, refreshed)
}

func (s *ActionService) runLocal(b *batch) {
	changed := make([]string, 0, len(b.targets))

	for _, rec := range b.targets {
		rec.StartedAt = time.Now()

		var mutated bool
		if b.kind == domain.OpPin {
			mutated = s.pins.Pin(rec.TargetID)
		} else {
			mutated = s.pins.Unpin(rec.TargetID)
		}

		if mutated {
			changed = append(changed, rec.TargetID)
		}
	}

	var err error
	if len(changed) > 0 {
		err = s.pins.Persist()
	}

	if err != nil {
		for _, id := range changed {
			if b.kind == domain.OpPin {
				s.pins.Unpin(id)
			} else {
				s.pins.Pin(id)
			}
		}
	}

	for _, rec := range b.targets {
		s.settle(rec, err)
	}

	s.catalog.ReprojectAll()
	s.complete(b)
}

func (s *ActionService) settle(rec *domain.OperationRecord, err error) {
	rec.FinishedAt = time.Now()
	rec.Err = err
	rec.Status = domain.StatusSucceeded

	elapsed := rec.FinishedAt.Sub(rec.StartedAt)

	if err != nil {
		rec.Status = domain.StatusFailed
		s.logger.Warn().Err(err).Str("id", rec.TargetID).Str("kind", rec.Kind.String()).Dur("elapsed", elapsed).Msg("operation failed")
	} else {
		s.logger.Info().Str("id", rec.TargetID).Str("kind", rec.Kind.String()).Dur("elapsed", elapsed).Msg("operation succeeded")
	}

	s.publish(rec)
}

func (s *ActionService) complete(b *batch) {
	s.running = nil

	if b.done != nil {
		b.done(result(b))
	}

	s.next()
}

func (s *ActionService) publish(rec *domain.OperationRecord) {
	s.events.publishOperation(domain.OperationEvent{
		BatchID:  rec.BatchID,
		TargetID: rec.TargetID,
		Kind:     rec.Kind,
		Status:   rec.Status,
		Err:      rec.Err,
	})
}

func result(b *batch) domain.BatchResult {
	res := domain.BatchResult{
		BatchID: b.id,
		Kind:    b.kind,
		Order:   make([]string, 0, len(b.targets)),
		Status:  make(map[string]domain.OperationStatus, len(b.targets)),
		Errors:  make(map[string]error),
	}

	for _, rec := range b.targets {
		res.Order = append(res.Order, rec.TargetID)
		res.Status[rec.TargetID] = rec.Status

		if rec.Err != nil {
			res.Errors[rec.TargetID] = rec.Err
		}
	}

	return res
}

// UpgradeAll reloads the upgrade listing and upgrades every package in it.
// Pinned packages are skipped unless IncludePinned is set.
func (s *ActionService) UpgradeAll(done func(domain.BatchResult, error)) {
	s.catalog.Refresh(domain.TabUpgrades, func(err error) {
		if err != nil {
			done(domain.BatchResult{Kind: domain.OpUpgrade}, err)

			return
		}

		var ids []string

		for _, rec := range s.catalog.Records(domain.TabUpgrades) {
			if s.pins.IsPinned(rec.ID) && !s.cfg.IncludePinned {
				continue
			}

			ids = append(ids, rec.ID)
		}

		if len(ids) == 0 {
			done(domain.BatchResult{Kind: domain.OpUpgrade}, ErrNothingToUpgrade)

			return
		}

		s.Dispatch(domain.OpUpgrade, ids, func(res domain.BatchResult) { done(res, nil) })
	})
}

// ImportToolPins replaces the local pin set with the pins winget itself
// reports and persists it. done receives the imported records, one per id,
// sorted by id. On failure the previous set is restored.
func (s *ActionService) ImportToolPins(done func([]domain.PackageRecord, error)) {
	args := winget.PinListArgs(s.cfg.Query)

	s.processes.Query(s.base, winget.KindPinList, args, s.cfg.QueryTimeout, func(records []domain.PackageRecord, err error) {
		if err != nil {
			done(nil, err)

			return
		}

		ids := make([]string, 0, len(records))
		imported := make([]domain.PackageRecord, 0, len(records))
		seen := make(map[string]struct{}, len(records))

		for _, rec := range records {
			if _, dup := seen[rec.ID]; dup || rec.ID == "" {
				continue
			}

			seen[rec.ID] = struct{}{}
			ids = append(ids, rec.ID)
			imported = append(imported, rec)
		}

		sort.SliceStable(imported, func(i, j int) bool { return imported[i].ID < imported[j].ID })

		previous := s.pins.Replace(ids)
		if err := s.pins.Persist(); err != nil {
			s.pins.Replace(previous)
			done(nil, err)

			return
		}

		s.catalog.ReprojectAll()
		done(imported, nil)
	})
}

// Status returns the status of the latest operation on id. Records of a
// finished batch are only reachable through here, one per package, so the
// terminal status stays visible until the next operation on the same id.
func (s *ActionService) Status(id string) domain.OperationStatus {
	if rec, ok := s.latest[id]; ok {
		return rec.Status
	}

	return domain.StatusIdle
}
