// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/wingetpro/wingetpro/internal/tui/styles"
)

// HelpSection represents a help documentation section.
type HelpSection struct {
	Title   string
	Content string
}

// Help represents the help overlay.
type Help struct {
	styles         *styles.Styles
	sections       []HelpSection
	viewport       viewport.Model
	renderer       *glamour.TermRenderer
	currentSection int
	keyMap         HelpKeyMap
}

// HelpKeyMap defines key bindings for the help overlay.
type HelpKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Left  key.Binding
	Right key.Binding
	Home  key.Binding
	End   key.Binding
	Tab   key.Binding
	Back  key.Binding
}

// DefaultHelpKeyMap returns the default key bindings.
func DefaultHelpKeyMap() HelpKeyMap {
	return HelpKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "previous section"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next section"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("home/g", "go to top"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("end/G", "go to bottom"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next section"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "?", "q"),
			key.WithHelp("esc", "close help"),
		),
	}
}

// NewHelp creates the help overlay. The key table is generated from keys.
func NewHelp(styleConfig *styles.Styles, keys KeyMap, width, height int) *Help {
	sections := []HelpSection{
		{Title: "Keys", Content: keysMarkdown(keys)},
		{
			Title: "Tabs",
			Content: `# Tabs

**Search** lists the result of the last query. Press ` + "`enter`" + ` to type a
query; an empty query clears the tab.

**Installed** lists every package winget reports as installed.

**Upgrades** lists installed packages with a newer version in a source.
It is refreshed after every install, upgrade or uninstall.

Every tab keeps its own filter and sort order. The filter matches name
and id, case-insensitively. Rows with equal sort keys are ordered by id.`,
		},
		{
			Title: "Pins",
			Content: `# Pins

Pinned packages are skipped by ` + "`U`" + ` (upgrade all) unless
` + "`upgrades.include_pinned`" + ` is set in config.toml.

Pins are stored by wingetpro in ` + "`pins.toml`" + ` and survive restarts.
` + "`wingetpro pins import`" + ` replaces them with winget's own pin list.`,
		},
		{
			Title: "Troubleshooting",
			Content: `# Troubleshooting

- The status line shows the last error of the current tab. The previous
  rows stay visible after a failed refresh.
- ` + "`wingetpro doctor`" + ` checks that winget can be started and is recent.
- Logs of this session are written to the file set by ` + "`log.file`" + `.
- Slow sources: raise ` + "`tool.query_timeout`" + ` in config.toml.`,
		},
	}

	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styleConfig.Primary).
		Padding(0, 1)

	helpModel := &Help{
		styles:   styleConfig,
		sections: sections,
		viewport: vp,
		renderer: newRenderer(width),
		keyMap:   DefaultHelpKeyMap(),
	}

	helpModel.updateContent()

	return helpModel
}

// newRenderer builds a markdown renderer without querying the terminal.
func newRenderer(width int) *glamour.TermRenderer {
	style := "dark"
	if os.Getenv("NO_COLOR") != "" {
		style = "notty"
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width-6, 20)),
	)
	if err != nil {
		renderer, _ = glamour.NewTermRenderer()
	}

	return renderer
}

func keysMarkdown(keys KeyMap) string {
	var b strings.Builder

	b.WriteString("# Keys\n\n| Key | Action |\n|-----|--------|\n")

	for _, group := range keys.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
	}

	b.WriteString("| `↑/↓` `j/k` | move |\n| `g/G` | first/last row |\n")

	return b.String()
}

// Section returns the title of the visible section.
func (m *Help) Section() string {
	return m.sections[m.currentSection].Title
}

// SetSize resizes the viewport.
func (m *Help) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height - lipgloss.Height(m.renderHeader())
	m.renderer = newRenderer(width)
	m.updateContent()
}

// Update handles scrolling and section navigation.
func (m *Help) Update(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch {
	case key.Matches(keyMsg, m.keyMap.Back):
		return func() tea.Msg { return CloseMsg{} }
	case key.Matches(keyMsg, m.keyMap.Left):
		m.handleSectionNavigation(-1)
	case key.Matches(keyMsg, m.keyMap.Right), key.Matches(keyMsg, m.keyMap.Tab):
		m.handleSectionNavigation(1)
	case key.Matches(keyMsg, m.keyMap.Home):
		m.viewport.GotoTop()
	case key.Matches(keyMsg, m.keyMap.End):
		m.viewport.GotoBottom()
	default:
		var cmd tea.Cmd

		m.viewport, cmd = m.viewport.Update(msg)

		return cmd
	}

	return nil
}

// View renders the section tabs and content.
func (m *Help) View() string {
	return m.renderHeader() + "\n" + m.viewport.View()
}

func (m *Help) handleSectionNavigation(direction int) {
	next := (m.currentSection + direction + len(m.sections)) % len(m.sections)
	if next != m.currentSection {
		m.currentSection = next
		m.updateContent()
	}
}

// renderHeader creates the header with section navigation.
func (m *Help) renderHeader() string {
	tabs := make([]string, 0, len(m.sections))

	for i, section := range m.sections {
		style := m.styles.Unselected.MarginRight(1).Faint(true)
		if i == m.currentSection {
			style = m.styles.Selected.MarginRight(1)
		}

		tabs = append(tabs, style.Render(section.Title))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// updateContent renders the current section content and updates the viewport.
func (m *Help) updateContent() {
	section := m.sections[m.currentSection]

	rendered, err := m.renderer.Render(section.Content)
	if err != nil {
		rendered = section.Content
	}

	m.viewport.SetContent(rendered)
	m.viewport.GotoTop()
}
