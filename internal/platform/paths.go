// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package platform resolves the per-user directories wingetpro reads and
// writes.
package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName is the directory name used below every XDG base directory.
const AppName = "wingetpro"

// GetXDGConfigHome returns XDG config directory.
func GetXDGConfigHome() string {
	return GetXDGConfigHomeWithEnv(os.Getenv("XDG_CONFIG_HOME"))
}

// GetXDGConfigHomeWithEnv returns XDG config directory with custom environment override for testing.
func GetXDGConfigHomeWithEnv(xdgConfigHome string) string {
	return baseDir(xdgConfigHome, "APPDATA", ".config")
}

// GetXDGDataHome returns XDG data directory.
func GetXDGDataHome() string {
	return GetXDGDataHomeWithEnv(os.Getenv("XDG_DATA_HOME"))
}

// GetXDGDataHomeWithEnv returns XDG data directory with custom environment override for testing.
func GetXDGDataHomeWithEnv(xdgDataHome string) string {
	return baseDir(xdgDataHome, "LOCALAPPDATA", filepath.Join(".local", "share"))
}

// GetXDGStateHome returns XDG state directory, used for log files.
func GetXDGStateHome() string {
	return GetXDGStateHomeWithEnv(os.Getenv("XDG_STATE_HOME"))
}

// GetXDGStateHomeWithEnv returns XDG state directory with custom environment override for testing.
func GetXDGStateHomeWithEnv(xdgStateHome string) string {
	return baseDir(xdgStateHome, "LOCALAPPDATA", filepath.Join(".local", "state"))
}

// baseDir resolves an XDG directory: the explicit value, then the Windows
// known folder variable, then the conventional directory below home.
func baseDir(explicit, windowsVar, homeRelative string) string {
	if explicit != "" {
		return explicit
	}

	if dir := os.Getenv(windowsVar); dir != "" {
		return dir
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, homeRelative)
	}

	return ""
}

// DefaultConfigPath returns the location of config.toml.
func DefaultConfigPath() string {
	return filepath.Join(GetXDGConfigHome(), AppName, "config.toml")
}

// DefaultPinsPath returns the location of the pin store.
func DefaultPinsPath() string {
	return filepath.Join(GetXDGDataHome(), AppName, "pins.toml")
}

// DefaultLogPath returns the log file used while the TUI owns the terminal.
func DefaultLogPath() string {
	return filepath.Join(GetXDGStateHome(), AppName, AppName+".log")
}

// ExpandPath expands ~ and XDG variables.
func ExpandPath(path string) string {
	return ExpandPathWithEnv(path, "", "")
}

// ExpandPathWithEnv expands paths with custom XDG environment variables for testing.
func ExpandPathWithEnv(path, xdgConfigHome, xdgDataHome string) string {
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}

	if after, found := strings.CutPrefix(path, "$XDG_CONFIG_HOME"); found {
		configHome := xdgConfigHome
		if configHome == "" {
			configHome = GetXDGConfigHome()
		}

		return configHome + after
	}

	if after, found := strings.CutPrefix(path, "$XDG_DATA_HOME"); found {
		dataHome := xdgDataHome
		if dataHome == "" {
			dataHome = GetXDGDataHome()
		}

		return dataHome + after
	}

	return path
}
