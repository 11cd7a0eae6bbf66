// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/tui/styles"
	"github.com/wingetpro/wingetpro/internal/winget"
)

// Details shows the "winget show" output of one package.
type Details struct {
	styles   *styles.Styles
	viewport viewport.Model
	renderer *glamour.TermRenderer
	back     key.Binding
	id       string
	name     string
	markdown string
}

// NewDetails creates an empty details pane.
func NewDetails(styleConfig *styles.Styles, width, height int) *Details {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styleConfig.Primary).
		Padding(0, 1)

	return &Details{
		styles:   styleConfig,
		viewport: vp,
		renderer: newRenderer(width),
		back: key.NewBinding(
			key.WithKeys("esc", "d", "q"),
			key.WithHelp("esc", "back"),
		),
	}
}

// Load shows a loading placeholder for row until Set is called.
func (m *Details) Load(row domain.ViewRow) {
	m.id = row.ID
	m.name = row.Name
	m.markdown = fmt.Sprintf("# %s\n\nLoading details for `%s`...", displayName(row.Name, row.ID), row.ID)
	m.render()
}

// ID returns the package the pane is showing.
func (m *Details) ID() string {
	return m.id
}

// Set fills the pane from a DetailsMsg for the loaded package.
func (m *Details) Set(msg DetailsMsg) {
	if msg.ID != m.id {
		return
	}

	m.markdown = detailsMarkdown(m.id, m.name, msg.Text, msg.Err)
	m.render()
}

// SetSize resizes the viewport.
func (m *Details) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.renderer = newRenderer(width)
	m.render()
}

// Markdown returns the source of the rendered page.
func (m *Details) Markdown() string {
	return m.markdown
}

func (m *Details) render() {
	rendered, err := m.renderer.Render(m.markdown)
	if err != nil {
		rendered = m.markdown
	}

	m.viewport.SetContent(rendered)
	m.viewport.GotoTop()
}

// Update scrolls the pane; the back key closes it.
func (m *Details) Update(msg tea.Msg) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && key.Matches(keyMsg, m.back) {
		return func() tea.Msg { return CloseMsg{} }
	}

	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)

	return cmd
}

// View renders the pane.
func (m *Details) View() string {
	return m.viewport.View()
}

// detailsMarkdown turns the key/value text of "winget show" into a page.
func detailsMarkdown(id, name, text string, err error) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", displayName(name, id))

	if err != nil {
		fmt.Fprintf(&b, "> %s\n\n", domain.GetErrorInfo(err, id, false).Message)
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		label, value, found := strings.Cut(trimmed, ":")

		switch {
		case strings.HasPrefix(trimmed, "Found "):
			fmt.Fprintf(&b, "_%s_\n\n", trimmed)
		case found && strings.TrimSpace(value) == "":
			fmt.Fprintf(&b, "\n## %s\n\n", strings.TrimSpace(label))
		case found && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t"):
			fmt.Fprintf(&b, "- **%s:** %s\n", strings.TrimSpace(label), strings.TrimSpace(value))
		default:
			fmt.Fprintf(&b, "  - %s\n", trimmed)
		}
	}

	fmt.Fprintf(&b, "\n---\n\nPage: %s\n", winget.PackagePageURL(id, name))

	return b.String()
}

func displayName(name, id string) string {
	if name == "" {
		return id
	}

	return name
}
