// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package winget

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/wingetpro/wingetpro/internal/domain"
)

// Column is one header column and the display column it starts at.
type Column struct {
	Name  string
	Start int
}

// Row is one data line sliced into cells. Cells always has one entry per
// column of the section it belongs to.
type Row struct {
	Line  int
	Cells []string
}

// Section is a header with the rows printed beneath it. winget prints a
// second section for upgrades that require explicit targeting.
type Section struct {
	Columns []Column
	Rows    []Row
}

// Table is the parsed form of one command's output.
type Table struct {
	Sections []Section
}

// Len returns the number of data rows across all sections.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.Sections {
		n += len(s.Rows)
	}

	return n
}

// multiWordHeaders are column titles that contain a single space.
var multiWordHeaders = map[string]bool{ //nolint:gochecknoglobals
	"pin type": true,
}

// emptyResultPrefixes are the sentences winget prints instead of a table
// when a query matched nothing.
var emptyResultPrefixes = []string{ //nolint:gochecknoglobals
	"no package found",
	"no installed package found",
	"no available upgrade found",
	"no applicable update found",
	"no applicable upgrade found",
	"no newer package versions are available",
	"there are no pins configured",
}

var wideGap = regexp.MustCompile(`\s{2,}`)

// trailerLine matches the summary sentences winget prints below a table.
// Sentences it does not know are still dropped when they run across a
// column boundary.
var trailerLine = regexp.MustCompile(`(?i)^(\d+ (upgrades?|packages?)\b|the following packages\b)`)

// columnWidth measures display columns the way the console host renders
// winget output: East Asian ambiguous runes such as the ellipsis are narrow.
var columnWidth = func() *runewidth.Condition { //nolint:gochecknoglobals
	c := runewidth.NewCondition()
	c.EastAsianWidth = false

	return c
}()

// ParseTable slices column-aligned tool output into cells. Column offsets
// come from the header row, measured in display columns, so additional or
// reordered columns in newer tool versions are picked up automatically.
func ParseTable(raw string) (*Table, error) {
	if err := checkEncoding(raw); err != nil {
		return nil, err
	}

	lines := strings.Split(Normalize(raw), "\n")

	headers := findHeaders(lines)
	if len(headers) == 0 {
		if isEmptyResult(lines) {
			return &Table{}, nil
		}

		return nil, &domain.ParseError{Kind: domain.KindNoHeader}
	}

	table := &Table{Sections: make([]Section, 0, len(headers))}

	for i, h := range headers {
		end := len(lines)
		if i+1 < len(headers) {
			end = headers[i+1].index
		}

		table.Sections = append(table.Sections, parseSection(lines, h, end))
	}

	return table, nil
}

// checkEncoding rejects output that is not UTF-8 text. NUL bytes show up
// when the tool wrote UTF-16 to the pipe.
func checkEncoding(raw string) error {
	if utf8.ValidString(raw) && !strings.ContainsRune(raw, 0) {
		return nil
	}

	for i, line := range strings.Split(raw, "\n") {
		if !utf8.ValidString(line) || strings.ContainsRune(line, 0) {
			return &domain.ParseError{
				Kind: domain.KindMalformedRow,
				Line: i + 1,
				Text: strings.ToValidUTF8(strings.ReplaceAll(line, "\x00", ""), "?"),
			}
		}
	}

	return nil
}

type headerPos struct {
	index    int
	firstRow int
}

func findHeaders(lines []string) []headerPos {
	var headers []headerPos

	prev := -1
	lowerBound := 0

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if isSeparator(line) {
			if prev >= lowerBound {
				headers = append(headers, headerPos{index: prev, firstRow: i + 1})
				lowerBound = i + 1
			}

			continue
		}

		prev = i
	}

	if len(headers) > 0 {
		return headers
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if isEmptyResultLine(line) || !looksLikeHeader(line) {
			return nil
		}

		return []headerPos{{index: i, firstRow: i + 1}}
	}

	return nil
}

// looksLikeHeader accepts a line without a separator beneath it only when it
// has at least two gap-separated titles. Error sentences have none.
func looksLikeHeader(line string) bool {
	return len(wideGap.Split(strings.TrimSpace(line), -1)) >= 2
}

func parseSection(lines []string, h headerPos, end int) Section {
	section := Section{Columns: parseHeader(lines[h.index])}

	for i := h.firstRow; i < end; i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" || isSeparator(line) || trailerLine.MatchString(strings.TrimSpace(line)) {
			continue
		}

		cells, ok := splitRow(line, section.Columns)
		if !ok {
			continue
		}

		section.Rows = append(section.Rows, Row{Line: i + 1, Cells: cells})
	}

	return section
}

func parseHeader(line string) []Column {
	type token struct {
		text       string
		start, end int
	}

	var (
		tokens []token
		cur    strings.Builder
	)

	col, start := 0, -1

	flush := func() {
		if start >= 0 {
			tokens = append(tokens, token{text: cur.String(), start: start, end: col})
			cur.Reset()

			start = -1
		}
	}

	for _, r := range line {
		if r == ' ' {
			flush()
		} else {
			if start < 0 {
				start = col
			}

			cur.WriteRune(r)
		}

		col += columnWidth.RuneWidth(r)
	}

	flush()

	columns := make([]Column, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]

		if i+1 < len(tokens) && tokens[i+1].start == t.end+1 {
			joined := t.text + " " + tokens[i+1].text
			if multiWordHeaders[strings.ToLower(joined)] {
				t.text = joined
				i++
			}
		}

		columns = append(columns, Column{Name: t.text, Start: t.start})
	}

	return columns
}

// splitRow slices a line by the header offsets. Lines whose text runs
// across a column boundary without a gap are re-split on runs of two or
// more spaces; a single unbroken run is a summary sentence, not a row.
func splitRow(line string, columns []Column) ([]string, bool) {
	if cells, ok := sliceAligned(line, columns); ok {
		return cells, true
	}

	fields := wideGap.Split(strings.TrimSpace(line), -1)
	if len(fields) < 2 {
		return nil, false
	}

	n := len(columns)
	if len(fields) > n {
		last := strings.Join(fields[n-1:], "  ")
		fields = append(fields[:n-1], last)
	}

	cells := make([]string, n)
	copy(cells, fields)

	return cells, true
}

func sliceAligned(line string, columns []Column) ([]string, bool) {
	builders := make([]strings.Builder, len(columns))

	idx, col := 0, 0
	prev := ' '

	for _, r := range line {
		for idx+1 < len(columns) && col >= columns[idx+1].Start {
			if prev != ' ' {
				return nil, false
			}

			idx++
		}

		builders[idx].WriteRune(r)
		prev = r
		col += columnWidth.RuneWidth(r)
	}

	cells := make([]string, len(columns))
	for i := range builders {
		cells[i] = strings.TrimSpace(builders[i].String())
	}

	return cells, true
}

func isSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if utf8.RuneCountInString(trimmed) < 3 {
		return false
	}

	return strings.Trim(trimmed, "-─") == ""
}

func isEmptyResultLine(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, prefix := range emptyResultPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}

	return false
}

func isEmptyResult(lines []string) bool {
	for _, line := range lines {
		if isEmptyResultLine(line) {
			return true
		}
	}

	return false
}
