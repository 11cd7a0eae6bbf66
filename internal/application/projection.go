// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package application

import (
	"slices"
	"strings"

	"github.com/wingetpro/wingetpro/internal/domain"
	"golang.org/x/text/cases"
)

// ViewOptions are the per-tab display settings.
type ViewOptions struct {
	Filter     string
	SortColumn domain.SortColumn
	Ascending  bool
}

// Annotations supply the state a row is decorated with.
type Annotations struct {
	Pins   domain.PinReader
	Status domain.StatusSource
	// Upgrades indexes the upgrade listing by id. Nil means the listing has
	// not been loaded, in which case a record's own Available column is used.
	Upgrades map[string]domain.PackageRecord
}

// Project filters, annotates and sorts records for tab. It does not modify
// its inputs and always returns a new slice.
func Project(tab domain.TabKind, records []domain.PackageRecord, view ViewOptions, ann Annotations) []domain.ViewRow {
	fold := cases.Fold()
	// Surrounding whitespace is not part of the filter: "git " matches
	// "Git.Git" and a blank filter passes every record.
	needle := fold.String(strings.TrimSpace(view.Filter))

	rows := make([]domain.ViewRow, 0, len(records))

	for _, rec := range records {
		if needle != "" &&
			!strings.Contains(fold.String(rec.Name), needle) &&
			!strings.Contains(fold.String(rec.ID), needle) {
			continue
		}

		rows = append(rows, annotate(tab, rec, ann))
	}

	slices.SortStableFunc(rows, func(a, b domain.ViewRow) int {
		c := compareColumn(fold, a, b, view.SortColumn)
		if !view.Ascending {
			c = -c
		}

		if c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return rows
}

func annotate(tab domain.TabKind, rec domain.PackageRecord, ann Annotations) domain.ViewRow {
	row := domain.ViewRow{PackageRecord: rec}

	if ann.Pins != nil {
		row.Pinned = ann.Pins.IsPinned(rec.ID)
	}

	if ann.Status != nil {
		row.Status = ann.Status.Status(rec.ID)
	}

	switch {
	case tab == domain.TabUpgrades:
		row.Upgradable = true
	case ann.Upgrades != nil:
		if up, ok := ann.Upgrades[rec.ID]; ok {
			row.Upgradable = true

			if row.AvailableVersion == "" {
				row.AvailableVersion = up.AvailableVersion
			}
		}
	default:
		row.Upgradable = tab == domain.TabInstalled && rec.AvailableVersion != ""
	}

	return row
}

func compareColumn(fold cases.Caser, a, b domain.ViewRow, col domain.SortColumn) int {
	switch col {
	case domain.SortByName:
		return strings.Compare(fold.String(a.Name), fold.String(b.Name))
	case domain.SortByID:
		return strings.Compare(fold.String(a.ID), fold.String(b.ID))
	case domain.SortByVersion:
		return domain.CompareVersions(a.CurrentVersion, b.CurrentVersion)
	case domain.SortByAvailable:
		return domain.CompareVersions(a.AvailableVersion, b.AvailableVersion)
	case domain.SortBySource:
		return strings.Compare(fold.String(a.Source), fold.String(b.Source))
	case domain.SortByPinned:
		return compareBool(a.Pinned, b.Pinned)
	case domain.SortByStatus:
		return int(a.Status) - int(b.Status)
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}
