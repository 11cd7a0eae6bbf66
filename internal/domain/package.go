// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package domain holds the core types shared by the catalog, the action
// dispatcher and the presentation layers.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownSortColumn indicates a column name that does not map to a SortColumn.
var ErrUnknownSortColumn = errors.New("unknown sort column")

// TabKind identifies one of the logical catalog views.
type TabKind int

// Catalog views. Each has independent filter, sort and record state.
const (
	TabSearch TabKind = iota
	TabInstalled
	TabUpgrades
)

// AllTabs lists every tab in display order.
var AllTabs = []TabKind{TabSearch, TabInstalled, TabUpgrades} //nolint:gochecknoglobals

func (t TabKind) String() string {
	switch t {
	case TabSearch:
		return "search"
	case TabInstalled:
		return "installed"
	case TabUpgrades:
		return "upgrades"
	default:
		return fmt.Sprintf("tab(%d)", int(t))
	}
}

// Title returns the human label used in headers.
func (t TabKind) Title() string {
	switch t {
	case TabSearch:
		return "Search"
	case TabInstalled:
		return "Installed"
	case TabUpgrades:
		return "Upgrades"
	default:
		return t.String()
	}
}

// PackageRecord is one package as reported by the external tool.
// ID is the merge key across query kinds.
type PackageRecord struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	CurrentVersion   string `json:"version,omitempty"`
	AvailableVersion string `json:"available,omitempty"`
	Source           string `json:"source,omitempty"`
	Match            string `json:"match,omitempty"`
	// PinType is set for records from "winget pin list": Pinning, Blocking
	// or Gating.
	PinType string `json:"pinType,omitempty"`
}

// ViewRow is a display row: a record annotated with pin, upgrade and
// operation state. Rows are values and are rebuilt on every projection.
type ViewRow struct {
	PackageRecord

	Pinned     bool            `json:"pinned"`
	Upgradable bool            `json:"upgradable"`
	Status     OperationStatus `json:"status"`
}

// SortColumn selects the column a tab is ordered by.
type SortColumn int

// Sortable columns.
const (
	SortByName SortColumn = iota
	SortByID
	SortByVersion
	SortByAvailable
	SortBySource
	SortByPinned
	SortByStatus
)

// AllSortColumns lists the columns in the order the TUI cycles through them.
var AllSortColumns = []SortColumn{ //nolint:gochecknoglobals
	SortByName, SortByID, SortByVersion, SortByAvailable, SortBySource, SortByPinned, SortByStatus,
}

func (c SortColumn) String() string {
	switch c {
	case SortByName:
		return "name"
	case SortByID:
		return "id"
	case SortByVersion:
		return "version"
	case SortByAvailable:
		return "available"
	case SortBySource:
		return "source"
	case SortByPinned:
		return "pinned"
	case SortByStatus:
		return "status"
	default:
		return fmt.Sprintf("column(%d)", int(c))
	}
}

// ParseSortColumn maps a user supplied column name to a SortColumn.
func ParseSortColumn(name string) (SortColumn, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, c := range AllSortColumns {
		if c.String() == needle {
			return c, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownSortColumn, name)
}

// TabSnapshot is the immutable projection handed to presentation layers.
type TabSnapshot struct {
	Tab           TabKind
	Rows          []ViewRow
	Err           *ErrorKind
	Loading       bool
	Query         string
	Filter        string
	SortColumn    SortColumn
	SortAscending bool
	Total         int
	// RefreshedAt is when the rows were last loaded; zero until the first
	// successful refresh.
	RefreshedAt time.Time
}
