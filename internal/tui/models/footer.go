// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/wingetpro/wingetpro/internal/tui/styles"
)

// RenderFooter renders the enabled bindings as "[key] action" pairs.
func RenderFooter(styleConfig *styles.Styles, width int, bindings []key.Binding, includeHelp bool) string {
	keyStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(styleConfig.Primary)

	actionStyle := lipgloss.NewStyle().
		Foreground(styleConfig.Muted)

	formatAction := func(k, action string) string {
		return keyStyle.Render("["+k+"]") + " " + actionStyle.Render(action)
	}

	actionStrings := make([]string, 0, len(bindings)+1)

	for _, binding := range bindings {
		if !binding.Enabled() {
			continue
		}

		h := binding.Help()
		actionStrings = append(actionStrings, formatAction(h.Key, h.Desc))
	}

	if includeHelp {
		helpKey := lipgloss.NewStyle().Bold(true).Foreground(styleConfig.Warning).Render("[?]")
		actionStrings = append(actionStrings, helpKey+" "+actionStyle.Render("help"))
	}

	return lipgloss.NewStyle().
		Padding(0, 1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(lipgloss.Color("240")).
		Width(width).
		Render(strings.Join(actionStrings, "  "))
}
