// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathUtils_XDGOverrides(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/custom/config", GetXDGConfigHomeWithEnv("/custom/config"))
	assert.Equal(t, "/custom/data", GetXDGDataHomeWithEnv("/custom/data"))
	assert.Equal(t, "/custom/state", GetXDGStateHomeWithEnv("/custom/state"))
}

func TestPathUtils_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/x/config")
	t.Setenv("XDG_DATA_HOME", "/x/data")
	t.Setenv("XDG_STATE_HOME", "/x/state")

	assert.Equal(t, filepath.Join("/x/config", "wingetpro", "config.toml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join("/x/data", "wingetpro", "pins.toml"), DefaultPinsPath())
	assert.Equal(t, filepath.Join("/x/state", "wingetpro", "wingetpro.log"), DefaultLogPath())
}

func TestPathUtils_HomeFallback(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("LOCALAPPDATA", "")

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".local", "share"), GetXDGDataHome())
}

func TestPathUtils_ExpandPath(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"home", "~/pins.toml", filepath.Join(home, "pins.toml")},
		{"config", "$XDG_CONFIG_HOME/wingetpro", "/cfg/wingetpro"},
		{"data", "$XDG_DATA_HOME/wingetpro/pins.toml", "/data/wingetpro/pins.toml"},
		{"absolute", "/etc/wingetpro.toml", "/etc/wingetpro.toml"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ExpandPathWithEnv(tc.path, "/cfg", "/data"))
		})
	}
}
