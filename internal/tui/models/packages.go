// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/wingetpro/wingetpro/internal/console"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/tui/styles"
)

// Column sizing.
const (
	cellPadding     = 2 // table cells pad one space per side
	markerWidth     = 1
	minTextColumn   = 10
	maxVersionWidth = 18
	maxSourceWidth  = 10
	stateWidth      = 17 // "pinned,upgrade,ok" fits
	defaultWidth    = 80
	defaultHeight   = 20
	selectedMarker  = "●"
)

// PackageList is one tab's package table with a multi-row selection.
type PackageList struct {
	styles   *styles.Styles
	table    table.Model
	rows     []domain.ViewRow
	selected map[string]bool
	width    int
	height   int
}

// NewPackageList creates an empty, focused package table.
func NewPackageList(styleConfig *styles.Styles) *PackageList {
	list := &PackageList{
		styles:   styleConfig,
		selected: make(map[string]bool),
		width:    defaultWidth,
		height:   defaultHeight,
	}

	list.table = table.New(
		table.WithColumns(columns(defaultWidth, nil)),
		table.WithFocused(true),
		table.WithHeight(defaultHeight),
		table.WithKeyMap(TableKeyMap()),
		table.WithStyles(styleConfig.Table()),
	)

	return list
}

// SetSize resizes the table and recomputes the column widths.
func (p *PackageList) SetSize(width, height int) {
	p.width = width
	p.height = height

	p.table.SetWidth(width)
	p.table.SetHeight(height)
	p.rebuild()
}

// SetSnapshot replaces the rows. The cursor stays on the same package when
// it is still present.
func (p *PackageList) SetSnapshot(snap domain.TabSnapshot) {
	current, hadCurrent := p.Current()

	p.rows = snap.Rows
	p.rebuild()

	cursor := 0

	if hadCurrent {
		for i, row := range p.rows {
			if row.ID == current.ID {
				cursor = i

				break
			}
		}
	}

	p.table.SetCursor(cursor)
}

func (p *PackageList) rebuild() {
	rows := make([]table.Row, 0, len(p.rows))

	for _, row := range p.rows {
		marker := " "
		if p.selected[row.ID] {
			marker = selectedMarker
		}

		rows = append(rows, table.Row{
			marker,
			row.Name,
			row.ID,
			row.CurrentVersion,
			row.AvailableVersion,
			row.Source,
			console.Flags(row),
		})
	}

	// Columns first: the table renders every row against the column set.
	p.table.SetRows(nil)
	p.table.SetColumns(columns(p.width, p.rows))
	p.table.SetRows(rows)
}

// columns sizes the table to width. Version, source and state columns take
// what their content needs; name and id share the rest.
func columns(width int, rows []domain.ViewRow) []table.Column {
	version := contentWidth(rows, "Version", maxVersionWidth, func(r domain.ViewRow) string { return r.CurrentVersion })
	available := contentWidth(rows, "Available", maxVersionWidth, func(r domain.ViewRow) string { return r.AvailableVersion })
	source := contentWidth(rows, "Source", maxSourceWidth, func(r domain.ViewRow) string { return r.Source })

	const columnCount = 7

	fixed := markerWidth + version + available + source + stateWidth + columnCount*cellPadding

	rest := max(width-fixed, 2*minTextColumn)
	name := max(rest*2/5, minTextColumn)
	id := max(rest-name, minTextColumn)

	return []table.Column{
		{Title: "", Width: markerWidth},
		{Title: "Name", Width: name},
		{Title: "Id", Width: id},
		{Title: "Version", Width: version},
		{Title: "Available", Width: available},
		{Title: "Source", Width: source},
		{Title: "State", Width: stateWidth},
	}
}

func contentWidth(rows []domain.ViewRow, title string, limit int, field func(domain.ViewRow) string) int {
	width := runewidth.StringWidth(title)

	for _, row := range rows {
		width = max(width, runewidth.StringWidth(field(row)))
	}

	return min(width, limit)
}

// Update forwards navigation keys to the table.
func (p *PackageList) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	p.table, cmd = p.table.Update(msg)

	return cmd
}

// View renders the table.
func (p *PackageList) View() string {
	return p.table.View()
}

// Len returns the number of visible rows.
func (p *PackageList) Len() int {
	return len(p.rows)
}

// Cursor returns the index of the highlighted row.
func (p *PackageList) Cursor() int {
	return p.table.Cursor()
}

// Current returns the highlighted row.
func (p *PackageList) Current() (domain.ViewRow, bool) {
	i := p.table.Cursor()
	if i < 0 || i >= len(p.rows) {
		return domain.ViewRow{}, false
	}

	return p.rows[i], true
}

// Toggle flips the selection of the highlighted row and moves down.
func (p *PackageList) Toggle() {
	row, ok := p.Current()
	if !ok {
		return
	}

	if p.selected[row.ID] {
		delete(p.selected, row.ID)
	} else {
		p.selected[row.ID] = true
	}

	cursor := p.table.Cursor()
	p.rebuild()
	p.table.SetCursor(cursor)
	p.table.MoveDown(1)
}

// Selected returns the number of selected packages that are visible.
func (p *PackageList) Selected() int {
	n := 0

	for _, row := range p.rows {
		if p.selected[row.ID] {
			n++
		}
	}

	return n
}

// Targets returns the visible selected ids in row order, or the highlighted
// id when nothing visible is selected.
func (p *PackageList) Targets() []string {
	var ids []string

	for _, row := range p.rows {
		if p.selected[row.ID] {
			ids = append(ids, row.ID)
		}
	}

	if len(ids) > 0 {
		return ids
	}

	if row, ok := p.Current(); ok {
		return []string{row.ID}
	}

	return nil
}

// ClearSelection drops every selection.
func (p *PackageList) ClearSelection() {
	if len(p.selected) == 0 {
		return
	}

	cursor := p.table.Cursor()
	p.selected = make(map[string]bool)
	p.rebuild()
	p.table.SetCursor(cursor)
}
