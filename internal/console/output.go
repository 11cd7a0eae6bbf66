// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package console renders CLI results. Primary output goes to stdout,
// messages to stderr, so results stay pipeable.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/wingetpro/wingetpro/internal/domain"
	"golang.org/x/term"
)

// OutputState holds global output configuration.
type OutputState struct {
	Verbose bool
	JSON    bool
	Plain   bool

	// Out and Err default to os.Stdout and os.Stderr.
	Out io.Writer
	Err io.Writer
}

// DefaultOutput provides output formatting utilities.
var DefaultOutput = &OutputState{} //nolint:gochecknoglobals

// SetMode configures output mode.
func (o *OutputState) SetMode(verbose, json, plain bool) {
	o.Verbose = verbose
	o.JSON = json
	o.Plain = plain
}

func (o *OutputState) stdout() io.Writer {
	if o.Out != nil {
		return o.Out
	}

	return os.Stdout
}

func (o *OutputState) stderr() io.Writer {
	if o.Err != nil {
		return o.Err
	}

	return os.Stderr
}

// IsTTY checks if output is going to a terminal (not piped/redirected).
func (o *OutputState) IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd)) //nolint:gosec
}

func (o *OutputState) stdoutIsTTY() bool {
	f, ok := o.stdout().(*os.File)

	return ok && o.IsTTY(f.Fd())
}

func colorDisabled() bool {
	return os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb"
}

// Bold formats text with bold when in TTY, uppercase when piped.
func (o *OutputState) Bold(text string) string {
	if o.JSON || o.Plain {
		return text
	}

	// no-color.org
	if colorDisabled() {
		return text
	}

	if o.stdoutIsTTY() {
		return "\033[1m" + text + "\033[0m"
	}

	return strings.ToUpper(text)
}

// Header formats section headers consistently.
func (o *OutputState) Header(text string) string {
	return o.Bold(text)
}

// Progressf writes progress messages to stderr (only if verbose and not JSON/Plain).
func (o *OutputState) Progressf(format string, args ...any) {
	if o.Verbose && !o.JSON && !o.Plain {
		_, _ = fmt.Fprintf(o.stderr(), format+"\n", args...)
	}
}

// Successf writes success messages to stderr (only if not JSON/Plain).
func (o *OutputState) Successf(format string, args ...any) {
	if !o.JSON && !o.Plain {
		_, _ = fmt.Fprintf(o.stderr(), "✓ "+format+"\n", args...)
	}
}

// Warningf writes warning messages to stderr (always visible).
func (o *OutputState) Warningf(format string, args ...any) {
	if o.Plain {
		_, _ = fmt.Fprintf(o.stderr(), "warning: "+format+"\n", args...)
	} else {
		_, _ = fmt.Fprintf(o.stderr(), "⚠ "+format+"\n", args...)
	}
}

// Errorf writes error messages to stderr (always visible).
func (o *OutputState) Errorf(format string, args ...any) {
	if o.Plain {
		_, _ = fmt.Fprintf(o.stderr(), "error: "+format+"\n", args...)
	} else {
		_, _ = fmt.Fprintf(o.stderr(), "✗ "+format+"\n", args...)
	}
}

// Result writes command results to stdout (machine-readable primary output).
func (o *OutputState) Result(data any) {
	_, _ = fmt.Fprintf(o.stdout(), "%v\n", data)
}

// JSONResult writes structured JSON results to stdout.
func (o *OutputState) JSONResult(status string, data map[string]any) {
	result := map[string]any{
		"status": status,
	}
	maps.Copy(result, data)

	enc := json.NewEncoder(o.stdout())
	enc.SetEscapeHTML(false)

	if err := enc.Encode(result); err != nil {
		_, _ = fmt.Fprintf(o.stderr(), "error encoding JSON: %v\n", err)
	}
}

// PlainKeyValue outputs key:value pairs for machine parsing.
func (o *OutputState) PlainKeyValue(key, value string) {
	_, _ = fmt.Fprintf(o.stdout(), "%s:%s\n", key, value)
}

// PlainList outputs a simple list of items, one per line.
func (o *OutputState) PlainList(items []string) {
	for _, item := range items {
		_, _ = fmt.Fprintf(o.stdout(), "%s\n", item)
	}
}

// Table writes rows under headers. Terminals get a bordered table, pipes an
// aligned text table, plain mode tab-separated values without headers.
func (o *OutputState) Table(headers []string, rows [][]string) {
	switch {
	case o.Plain:
		for _, row := range rows {
			_, _ = fmt.Fprintln(o.stdout(), strings.Join(row, "\t"))
		}
	case o.stdoutIsTTY() && !colorDisabled():
		headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}

				return cellStyle
			}).
			Headers(headers...).
			Rows(rows...)

		_, _ = fmt.Fprintln(o.stdout(), t.Render())
	default:
		w := tabwriter.NewWriter(o.stdout(), 0, 0, 2, ' ', 0)

		_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))

		separators := make([]string, len(headers))
		for i := range headers {
			separators[i] = strings.Repeat("-", len(headers[i]))
		}

		_, _ = fmt.Fprintln(w, strings.Join(separators, "\t"))

		for _, row := range rows {
			_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
		}

		_ = w.Flush()
	}
}

// PackageTable renders a tab snapshot.
func (o *OutputState) PackageTable(snap domain.TabSnapshot) {
	if o.JSON {
		o.JSONResult("success", map[string]any{
			"tab":   snap.Tab.String(),
			"query": snap.Query,
			"total": snap.Total,
			"rows":  snap.Rows,
		})

		return
	}

	if len(snap.Rows) == 0 {
		if !o.Plain {
			o.Warningf("No packages found")
		}

		return
	}

	versionHeader := "Available"
	if snap.Tab == domain.TabSearch {
		versionHeader = "Match"
	}

	headers := []string{"Name", "Id", "Version", versionHeader, "Source", "Flags"}
	rows := make([][]string, 0, len(snap.Rows))

	for _, r := range snap.Rows {
		third := r.AvailableVersion
		if snap.Tab == domain.TabSearch {
			third = r.Match
		}

		rows = append(rows, []string{r.Name, r.ID, r.CurrentVersion, third, r.Source, Flags(r)})
	}

	o.Table(headers, rows)

	if !o.Plain && len(snap.Rows) != snap.Total {
		o.Progressf("%d of %d packages shown", len(snap.Rows), snap.Total)
	}
}

// Flags summarises the annotations of a row.
func Flags(r domain.ViewRow) string {
	var flags []string

	if r.Pinned {
		flags = append(flags, "pinned")
	}

	if r.Upgradable {
		flags = append(flags, "upgrade")
	}

	if r.Status != domain.StatusIdle {
		flags = append(flags, r.Status.String())
	}

	return strings.Join(flags, ",")
}

// BatchResult reports per-target outcomes of an action.
func (o *OutputState) BatchResult(res domain.BatchResult, verbose bool) {
	if o.JSON {
		targets := make([]map[string]any, 0, len(res.Order))
		for _, id := range res.Order {
			entry := map[string]any{"id": id, "status": res.Status[id].String()}
			if err := res.Errors[id]; err != nil {
				entry["error"] = err.Error()
			}

			targets = append(targets, entry)
		}

		status := "success"
		if len(res.Failed()) > 0 {
			status = "error"
		}

		o.JSONResult(status, map[string]any{
			"action":  res.Kind.String(),
			"batch":   res.BatchID,
			"targets": targets,
		})

		return
	}

	for _, id := range res.Order {
		if o.Plain {
			_, _ = fmt.Fprintf(o.stdout(), "%s:%s\n", id, res.Status[id])

			continue
		}

		if res.Status[id] == domain.StatusSucceeded {
			o.Successf("%s %s", res.Kind.Title(), id)

			continue
		}

		_, _ = fmt.Fprintln(o.stderr(), domain.FormatErrorMessage(res.Errors[id], id, verbose))
	}
}
