// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTabKind_Names(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tab   TabKind
		name  string
		title string
	}{
		{TabSearch, "search", "Search"},
		{TabInstalled, "installed", "Installed"},
		{TabUpgrades, "upgrades", "Upgrades"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.name, tt.tab.String())
			assert.Equal(t, tt.title, tt.tab.Title())
		})
	}
}

func TestOperationKind_ChangesPackages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind    OperationKind
		changes bool
	}{
		{OpInstall, true},
		{OpUpgrade, true},
		{OpUninstall, true},
		{OpPin, false},
		{OpUnpin, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.changes, tt.kind.ChangesPackages())
			assert.NotEmpty(t, tt.kind.Title())
		})
	}
}

func TestOperationStatus_MarshalText(t *testing.T) {
	t.Parallel()

	text, err := StatusSucceeded.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "succeeded", string(text))
}
