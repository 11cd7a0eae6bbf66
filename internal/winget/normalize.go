// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package winget

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// spinnerRunes are the frames winget draws while it contacts sources.
const spinnerRunes = `-\|/`

// progressRunes appear in download and install progress bars.
const progressRunes = "█▓▒░"

// Normalize turns raw terminal output into plain lines: ANSI sequences are
// removed, carriage-return overwrites are resolved to the final text and
// spinner or progress-bar lines are dropped.
func Normalize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = ansi.Strip(raw)

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if i := strings.LastIndexByte(line, '\r'); i >= 0 {
			line = line[i+1:]
		}

		line = strings.ReplaceAll(line, "\t", " ")
		line = strings.TrimRight(line, " ")

		if isProgressLine(line) {
			continue
		}

		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

func isProgressLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	if len(trimmed) == 1 && strings.Contains(spinnerRunes, trimmed) {
		return true
	}

	return strings.ContainsAny(trimmed, progressRunes)
}
