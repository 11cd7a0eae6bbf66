// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/winget"
)

// MinimumToolVersion is the oldest winget release whose table layout and
// flags the front-end has been checked against.
const MinimumToolVersion = "1.4.0"

// PinToolVersion is the first winget release with "winget pin".
const PinToolVersion = "1.5.0"

const versionTimeout = 15 * time.Second

// SystemDetector reports on the host and the package tool.
type SystemDetector struct {
	commandRunner domain.CommandRunner
	tool          string
}

// NewSystemDetector creates a new system detector.
func NewSystemDetector(commandRunner domain.CommandRunner, tool string) *SystemDetector {
	return &SystemDetector{
		commandRunner: commandRunner,
		tool:          tool,
	}
}

// DetectTool returns information about the tool installation. A missing
// tool is reported through ToolInfo.Available, not as an error.
func (d *SystemDetector) DetectTool(ctx context.Context) (*domain.ToolInfo, error) {
	info := &domain.ToolInfo{
		Tool: d.tool,
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if !d.commandRunner.Available() {
		return info, nil
	}

	info.Available = true

	result, err := d.commandRunner.Run(ctx, winget.VersionArgs(), versionTimeout)
	if err != nil {
		return info, fmt.Errorf("failed to query tool version: %w", err)
	}

	info.Version = parseToolVersion(result.Stdout)
	info.Supported = info.Version != "" && domain.CompareVersions(info.Version, MinimumToolVersion) >= 0
	info.PinSupport = info.Version != "" && domain.CompareVersions(info.Version, PinToolVersion) >= 0

	return info, nil
}

// parseToolVersion extracts "1.6.3133" from output such as "v1.6.3133".
func parseToolVersion(output string) string {
	for _, line := range strings.Split(winget.Normalize(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)

		return strings.TrimPrefix(strings.TrimPrefix(fields[len(fields)-1], "v"), "V")
	}

	return ""
}
