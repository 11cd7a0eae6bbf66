// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/winget"
)

// ErrSuperseded is passed to a refresh callback whose result was discarded
// because a newer refresh of the same tab was started.
var ErrSuperseded = errors.New("refresh superseded")

type tabState struct {
	records     []domain.PackageRecord
	loaded      bool
	loading     bool
	query       string
	view        ViewOptions
	errKind     *domain.ErrorKind
	seq         uint64
	cancel      context.CancelFunc
	refreshedAt time.Time
}

// CatalogConfig configures a CatalogService.
type CatalogConfig struct {
	Query   winget.QueryOptions
	Timeout time.Duration
}

// CatalogService owns the per-tab record caches and view settings. Every
// method must be called on the control loop.
type CatalogService struct {
	base      context.Context //nolint:containedctx // parent of every refresh, canceled on session close
	processes *ProcessService
	events    *Events
	pins      domain.PinReader
	status    domain.StatusSource
	cfg       CatalogConfig
	tabs      map[domain.TabKind]*tabState
	upgrades  map[string]domain.PackageRecord
	logger    zerolog.Logger
}

// NewCatalogService creates a catalog with every tab empty and sorted by
// name ascending.
func NewCatalogService(
	ctx context.Context,
	processes *ProcessService,
	events *Events,
	pins domain.PinReader,
	cfg CatalogConfig,
	logger zerolog.Logger,
) *CatalogService {
	c := &CatalogService{
		base:      ctx,
		processes: processes,
		events:    events,
		pins:      pins,
		cfg:       cfg,
		tabs:      make(map[domain.TabKind]*tabState, len(domain.AllTabs)),
		logger:    logger.With().Str("component", "catalog").Logger(),
	}

	for _, tab := range domain.AllTabs {
		c.tabs[tab] = &tabState{view: ViewOptions{SortColumn: domain.SortByName, Ascending: true}}
	}

	return c
}

// SetStatusSource sets where row operation status comes from.
func (c *CatalogService) SetStatusSource(status domain.StatusSource) {
	c.status = status
}

func (c *CatalogService) state(tab domain.TabKind) *tabState {
	st, ok := c.tabs[tab]
	if !ok {
		st = &tabState{view: ViewOptions{SortColumn: domain.SortByName, Ascending: true}}
		c.tabs[tab] = st
	}

	return st
}

// Activate shows tab. A loaded tab is only re-projected; an unloaded one
// is refreshed.
func (c *CatalogService) Activate(tab domain.TabKind) {
	if c.state(tab).loaded {
		c.Reproject(tab)

		return
	}

	c.Refresh(tab, nil)
}

// Refresh reloads tab from the tool. A refresh already in flight for tab is
// canceled and its result discarded. On success the records are replaced;
// on failure they are kept and the error is recorded. done, if set, runs on
// the control loop once the outcome is known.
func (c *CatalogService) Refresh(tab domain.TabKind, done func(error)) {
	st := c.state(tab)
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}

	st.seq++
	seq := st.seq

	if tab == domain.TabSearch && strings.TrimSpace(st.query) == "" {
		c.apply(tab, seq, []domain.PackageRecord{}, nil)
		finish(done, nil)

		return
	}

	ctx, cancel := context.WithCancel(c.base)
	st.cancel = cancel
	st.loading = true
	c.Reproject(tab)

	args := winget.QueryArgs(tab, st.query, c.cfg.Query)

	c.processes.Query(ctx, winget.KindForTab(tab), args, c.cfg.Timeout, func(records []domain.PackageRecord, err error) {
		cancel()

		if !c.apply(tab, seq, records, err) {
			finish(done, ErrSuperseded)

			return
		}

		finish(done, err)
	})
}

// apply stores a refresh outcome unless a newer refresh started. It
// reports whether the outcome was current.
func (c *CatalogService) apply(tab domain.TabKind, seq uint64, records []domain.PackageRecord, err error) bool {
	st := c.state(tab)
	if st.seq != seq {
		c.logger.Debug().Str("tab", tab.String()).Uint64("seq", seq).Uint64("current", st.seq).Msg("discarding stale refresh")

		return false
	}

	st.loading = false
	st.cancel = nil

	if err != nil {
		kind, ok := domain.KindOf(err)
		if !ok {
			kind = domain.KindLaunchFailure
		}

		st.errKind = kind.Ptr()

		c.logger.Warn().Err(err).Str("tab", tab.String()).Msg("refresh failed, keeping previous records")
		c.Reproject(tab)

		return true
	}

	st.records = records
	st.loaded = true
	st.errKind = nil
	st.refreshedAt = time.Now()

	if tab == domain.TabUpgrades {
		c.upgrades = make(map[string]domain.PackageRecord, len(records))
		for _, rec := range records {
			c.upgrades[rec.ID] = rec
		}

		c.ReprojectAll()

		return true
	}

	c.Reproject(tab)

	return true
}

func finish(done func(error), err error) {
	if done != nil {
		done(err)
	}
}

// Search sets the Search tab query and refreshes it. Repeating the loaded
// query only re-projects.
func (c *CatalogService) Search(query string, done func(error)) {
	query = strings.TrimSpace(query)
	st := c.state(domain.TabSearch)

	if query == st.query && st.loaded && st.errKind == nil {
		c.Reproject(domain.TabSearch)
		finish(done, nil)

		return
	}

	st.query = query
	c.Refresh(domain.TabSearch, done)
}

// SetFilter sets the filter text of tab and re-projects it.
func (c *CatalogService) SetFilter(tab domain.TabKind, text string) {
	c.state(tab).view.Filter = text
	c.Reproject(tab)
}

// SetSort sets the sort column and direction of tab.
func (c *CatalogService) SetSort(tab domain.TabKind, col domain.SortColumn, ascending bool) {
	st := c.state(tab)
	st.view.SortColumn = col
	st.view.Ascending = ascending
	c.Reproject(tab)
}

// ToggleSort flips the direction when col is already the sort column and
// otherwise sorts ascending by col.
func (c *CatalogService) ToggleSort(tab domain.TabKind, col domain.SortColumn) {
	st := c.state(tab)
	if st.view.SortColumn == col {
		c.SetSort(tab, col, !st.view.Ascending)

		return
	}

	c.SetSort(tab, col, true)
}

// View returns the display settings of tab.
func (c *CatalogService) View(tab domain.TabKind) ViewOptions {
	return c.state(tab).view
}

// Project returns the current rows of tab without publishing them.
func (c *CatalogService) Project(tab domain.TabKind) []domain.ViewRow {
	st := c.state(tab)

	return Project(tab, st.records, st.view, Annotations{
		Pins:     c.pins,
		Status:   c.status,
		Upgrades: c.upgrades,
	})
}

// Snapshot returns the presentation view of tab.
func (c *CatalogService) Snapshot(tab domain.TabKind) domain.TabSnapshot {
	st := c.state(tab)

	var errKind *domain.ErrorKind
	if st.errKind != nil {
		errKind = st.errKind.Ptr()
	}

	return domain.TabSnapshot{
		Tab:           tab,
		Rows:          c.Project(tab),
		Err:           errKind,
		Loading:       st.loading,
		Query:         st.query,
		Filter:        st.view.Filter,
		SortColumn:    st.view.SortColumn,
		SortAscending: st.view.Ascending,
		Total:         len(st.records),
		RefreshedAt:   st.refreshedAt,
	}
}

// Reproject publishes a fresh snapshot of tab without running the tool.
func (c *CatalogService) Reproject(tab domain.TabKind) {
	c.events.publishTab(c.Snapshot(tab))
}

// ReprojectAll publishes every tab.
func (c *CatalogService) ReprojectAll() {
	for _, tab := range domain.AllTabs {
		c.Reproject(tab)
	}
}

// Records returns a copy of the raw records of tab.
func (c *CatalogService) Records(tab domain.TabKind) []domain.PackageRecord {
	return append([]domain.PackageRecord(nil), c.state(tab).records...)
}

// Show runs "winget show" for id and hands the cleaned output to done.
func (c *CatalogService) Show(id string, done func(string, error)) {
	args := winget.ShowArgs(id, c.cfg.Query)

	c.processes.Start(c.base, args, c.cfg.Timeout, func(result *domain.ProcessResult, err error) {
		if err != nil {
			done("", err)

			return
		}

		done(winget.Normalize(result.Stdout), nil)
	})
}
