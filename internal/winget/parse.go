// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package winget

import (
	"fmt"
	"strings"

	"github.com/wingetpro/wingetpro/internal/domain"
)

// CommandKind selects which field set a table is expected to carry.
type CommandKind int

// Output families the parser understands.
const (
	KindSearch CommandKind = iota
	KindListInstalled
	KindListUpgrades
	KindPinList
)

func (k CommandKind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindListInstalled:
		return "list"
	case KindListUpgrades:
		return "upgrade"
	case KindPinList:
		return "pin list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindForTab returns the command kind backing a catalog tab.
func KindForTab(tab domain.TabKind) CommandKind {
	switch tab {
	case domain.TabInstalled:
		return KindListInstalled
	case domain.TabUpgrades:
		return KindListUpgrades
	default:
		return KindSearch
	}
}

type field int

const (
	fieldNone field = iota
	fieldName
	fieldID
	fieldVersion
	fieldAvailable
	fieldSource
	fieldMatch
	fieldPinType
)

// headerAliases maps lower-cased column titles to record fields.
var headerAliases = map[string]field{ //nolint:gochecknoglobals
	"name":      fieldName,
	"package":   fieldName,
	"id":        fieldID,
	"version":   fieldVersion,
	"available": fieldAvailable,
	"source":    fieldSource,
	"match":     fieldMatch,
	"pin type":  fieldPinType,
}

// positional returns the field order used when none of the header titles
// are recognised, for example with a localised tool.
func (k CommandKind) positional(columns int) []field {
	switch k {
	case KindSearch:
		if columns >= 5 {
			return []field{fieldName, fieldID, fieldVersion, fieldMatch, fieldSource}
		}

		return []field{fieldName, fieldID, fieldVersion, fieldSource}
	case KindListInstalled:
		if columns >= 5 {
			return []field{fieldName, fieldID, fieldVersion, fieldAvailable, fieldSource}
		}

		return []field{fieldName, fieldID, fieldVersion, fieldSource}
	case KindListUpgrades:
		return []field{fieldName, fieldID, fieldVersion, fieldAvailable, fieldSource}
	case KindPinList:
		return []field{fieldName, fieldID, fieldVersion, fieldSource, fieldPinType}
	default:
		return nil
	}
}

// accepts reports whether the kind carries the field. Fields a kind does
// not define are dropped even when a tool version prints them.
func (k CommandKind) accepts(f field) bool {
	switch f {
	case fieldAvailable:
		return k == KindListInstalled || k == KindListUpgrades
	case fieldMatch:
		return k == KindSearch
	case fieldPinType:
		return k == KindPinList
	case fieldNone:
		return false
	default:
		return true
	}
}

func (k CommandKind) fieldMap(columns []Column) []field {
	fields := make([]field, len(columns))
	known := false

	for i, c := range columns {
		f := headerAliases[strings.ToLower(c.Name)]
		if f == fieldName || f == fieldID {
			known = true
		}

		fields[i] = f
	}

	if known {
		return fields
	}

	order := k.positional(len(columns))
	for i := range fields {
		fields[i] = fieldNone
		if i < len(order) {
			fields[i] = order[i]
		}
	}

	return fields
}

// Parse converts raw tool output into package records in output order.
// Rows without a package id cannot be merged or acted on and are dropped.
func Parse(kind CommandKind, raw string) ([]domain.PackageRecord, error) {
	table, err := ParseTable(raw)
	if err != nil {
		return nil, err
	}

	return Records(kind, table), nil
}

// Records maps an already parsed table onto package records.
func Records(kind CommandKind, table *Table) []domain.PackageRecord {
	records := make([]domain.PackageRecord, 0, table.Len())

	for _, section := range table.Sections {
		fields := kind.fieldMap(section.Columns)

		for _, row := range section.Rows {
			var rec domain.PackageRecord

			for i, cell := range row.Cells {
				if !kind.accepts(fields[i]) {
					continue
				}

				assign(&rec, fields[i], cell)
			}

			if rec.ID == "" {
				continue
			}

			records = append(records, rec)
		}
	}

	return records
}

func assign(rec *domain.PackageRecord, f field, value string) {
	switch f {
	case fieldName:
		rec.Name = value
	case fieldID:
		rec.ID = value
	case fieldVersion:
		rec.CurrentVersion = value
	case fieldAvailable:
		rec.AvailableVersion = value
	case fieldSource:
		rec.Source = value
	case fieldMatch:
		rec.Match = value
	case fieldPinType:
		rec.PinType = value
	case fieldNone:
	}
}
