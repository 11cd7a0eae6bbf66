// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package application_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wingetpro/wingetpro/internal/application"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/testutil"
)

func uninstallArgs(id string) []string {
	return []string{"uninstall", "--id", id, "--exact", "--silent", "--force"}
}

func TestActions_UninstallBatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.runner.OnRun(uninstallArgs("Vendor.One")...).Return(testutil.Output("Successfully uninstalled\r\n"), nil)
	h.runner.OnRun(uninstallArgs("Vendor.Two")...).Return(testutil.Exit(1, "Uninstall failed with exit code: 1603"))
	h.runner.OnRun("list").Return(testutil.Output(testutil.ListOutput(testutil.Record("Vendor.Two", "1.0", ""))), nil)
	h.runner.OnRun("upgrade").Return(testutil.Output(testutil.UpgradeOutput()), nil)

	res := h.dispatch(domain.OpUninstall, "Vendor.One", "Vendor.Two", "Vendor.One", " ")

	assert.Equal(t, []string{"Vendor.One", "Vendor.Two"}, res.Order)
	assert.Equal(t, map[string]domain.OperationStatus{
		"Vendor.One": domain.StatusSucceeded,
		"Vendor.Two": domain.StatusFailed,
	}, res.Status)
	assert.Equal(t, []string{"Vendor.Two"}, res.Failed())

	kind, ok := domain.KindOf(res.Errors["Vendor.Two"])
	require.True(t, ok)
	assert.Equal(t, domain.KindNonZeroExit, kind)

	assert.Equal(t, 1, h.runner.RunCount("list"), "installed refreshed exactly once")
	assert.Equal(t, 1, h.runner.RunCount("upgrade"), "upgrades refreshed exactly once")
	assert.Equal(t, 1, h.runner.RunCount(uninstallArgs("Vendor.One")...), "duplicates are dropped")

	installed := h.snapshot(domain.TabInstalled)
	require.Len(t, installed.Rows, 1)
	assert.Equal(t, domain.StatusFailed, installed.Rows[0].Status)
}

func TestActions_EventsPerTarget(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.runner.OnRun("install", "--id", "Git.Git", "--exact", "--silent").Return(testutil.Output(""), nil)
	h.runner.OnRun("list").Return(testutil.Output(testutil.ListOutput(testutil.Record("Git.Git", "2.46.0", ""))), nil)
	h.runner.OnRun("upgrade").Return(testutil.Output(testutil.UpgradeOutput()), nil)

	res := h.dispatch(domain.OpInstall, "Git.Git")
	require.Empty(t, res.Failed())

	events := h.operationEvents()
	require.Len(t, events, 2)
	assert.Equal(t, domain.StatusPending, events[0].Status)
	assert.Equal(t, domain.StatusSucceeded, events[1].Status)
	assert.Equal(t, "Git.Git", events[1].TargetID)
	assert.Equal(t, domain.OpInstall, events[1].Kind)
	assert.Equal(t, res.BatchID, events[1].BatchID)
	assert.NoError(t, events[1].Err)

	h.do(func() {
		assert.Equal(t, domain.StatusSucceeded, h.actions.Status("Git.Git"), "the terminal status outlives the batch")
		assert.Equal(t, domain.StatusIdle, h.actions.Status("7zip.7zip"))
	})
}

func TestActions_BatchesRunInOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	release := make(chan struct{})

	var order []string

	h.runner.OnRun("install", "--id", "A.A", "--exact", "--silent").
		Run(func(mock.Arguments) {
			<-release

			order = append(order, "A.A")
		}).
		Return(testutil.Output(""), nil)
	h.runner.OnRun("install", "--id", "B.B", "--exact", "--silent").
		Run(func(mock.Arguments) { order = append(order, "B.B") }).
		Return(testutil.Output(""), nil)
	h.runner.OnRun("list").Return(testutil.Output(testutil.ListOutput()), nil)
	h.runner.OnRun("upgrade").Return(testutil.Output(testutil.UpgradeOutput()), nil)

	first := make(chan domain.BatchResult, 1)
	second := make(chan domain.BatchResult, 1)

	h.do(func() {
		h.actions.Dispatch(domain.OpInstall, []string{"A.A"}, func(r domain.BatchResult) { first <- r })
		h.actions.Dispatch(domain.OpInstall, []string{"B.B"}, func(r domain.BatchResult) { second <- r })
		assert.Equal(t, domain.StatusPending, h.actions.Status("B.B"), "queued targets are pending")
	})

	close(release)

	wait(t, first)
	wait(t, second)

	assert.Equal(t, []string{"A.A", "B.B"}, order)
	assert.Equal(t, 2, h.runner.RunCount("list"), "each batch refreshes once")
	h.do(func() {
		assert.Equal(t, domain.StatusSucceeded, h.actions.Status("A.A"))
		assert.Equal(t, domain.StatusSucceeded, h.actions.Status("B.B"))
	})
}

func TestActions_EmptyBatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	res := h.dispatch(domain.OpUpgrade, "", "  ")
	assert.Empty(t, res.Order)
	assert.Empty(t, h.runner.Calls)
}

func TestActions_PinAndUnpinPersist(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	h := newHarness(t, withFs(fs))

	res := h.dispatch(domain.OpPin, "Git.Git", "7zip.7zip")
	assert.Empty(t, res.Failed())

	data, err := afero.ReadFile(fs, pinsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Git.Git")
	assert.Contains(t, string(data), "7zip.7zip")

	res = h.dispatch(domain.OpUnpin, "Git.Git")
	assert.Empty(t, res.Failed())

	h.do(func() {
		assert.False(t, h.store.IsPinned("Git.Git"))
		assert.True(t, h.store.IsPinned("7zip.7zip"))
	})

	assert.Empty(t, h.runner.Calls, "pinning never runs the tool")
}

func TestActions_PersistFailureReverts(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, pinsPath, []byte(`pins = ["Git.Git"]`), 0o644))

	h := newHarness(t, withFs(afero.NewReadOnlyFs(base)))
	h.do(func() {
		_, err := h.store.Load()
		assert.NoError(t, err)
	})

	res := h.dispatch(domain.OpPin, "Git.Git", "Mozilla.Firefox")

	assert.Equal(t, map[string]domain.OperationStatus{
		"Git.Git":         domain.StatusFailed,
		"Mozilla.Firefox": domain.StatusFailed,
	}, res.Status)

	kind, ok := domain.KindOf(res.Errors["Mozilla.Firefox"])
	require.True(t, ok)
	assert.Equal(t, domain.KindPersistFailure, kind)

	h.do(func() {
		assert.Equal(t, []string{"Git.Git"}, h.store.IDs(), "memory matches the file again")
	})

	res = h.dispatch(domain.OpUnpin, "Git.Git")
	assert.Equal(t, []string{"Git.Git"}, res.Failed())
	h.do(func() { assert.True(t, h.store.IsPinned("Git.Git")) })
}

func TestActions_PinReprojects(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.runner.OnRun("list").Return(testutil.Output(testutil.ListOutput(testutil.Record("Git.Git", "2.45.1", ""))), nil)

	require.NoError(t, h.refresh(domain.TabInstalled))
	h.dispatch(domain.OpPin, "Git.Git")

	published, ok := h.lastSnapshot(domain.TabInstalled)
	require.True(t, ok)
	require.Len(t, published.Rows, 1)
	assert.True(t, published.Rows[0].Pinned)
}

func TestActions_UpgradeAllSkipsPinned(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.runner.OnRun("upgrade").Return(testutil.Output(testutil.UpgradeOutput(
		testutil.Record("Git.Git", "2.45.1", "2.46.0"),
		testutil.Record("Mozilla.Firefox", "126.0", "127.0"),
	)), nil)
	h.runner.OnRun("upgrade", "--id", "Mozilla.Firefox", "--exact", "--silent").Return(testutil.Output(""), nil)
	h.runner.OnRun("list").Return(testutil.Output(testutil.ListOutput()), nil)

	h.dispatch(domain.OpPin, "Git.Git")

	type upgraded struct {
		res domain.BatchResult
		err error
	}

	ch := make(chan upgraded, 1)
	h.do(func() {
		h.actions.UpgradeAll(func(res domain.BatchResult, err error) { ch <- upgraded{res, err} })
	})

	got := wait(t, ch)
	require.NoError(t, got.err)
	assert.Equal(t, []string{"Mozilla.Firefox"}, got.res.Order)
	assert.Equal(t, 0, h.runner.RunCount("upgrade", "--id", "Git.Git", "--exact", "--silent"))
}

func TestActions_UpgradeAllIncludePinned(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withIncludePinned())
	h.runner.OnRun("upgrade").Return(testutil.Output(testutil.UpgradeOutput(
		testutil.Record("Git.Git", "2.45.1", "2.46.0"),
	)), nil)
	h.runner.OnRun("upgrade", "--id", "Git.Git", "--exact", "--silent").Return(testutil.Output(""), nil)
	h.runner.OnRun("list").Return(testutil.Output(testutil.ListOutput()), nil)

	h.dispatch(domain.OpPin, "Git.Git")

	ch := make(chan domain.BatchResult, 1)
	h.do(func() {
		h.actions.UpgradeAll(func(res domain.BatchResult, err error) {
			assert.NoError(t, err)
			ch <- res
		})
	})

	assert.Equal(t, []string{"Git.Git"}, wait(t, ch).Order)
}

func TestActions_UpgradeAllNothingToDo(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.runner.OnRun("upgrade").Return(testutil.Exit(0x8A150014, ""))

	ch := make(chan error, 1)
	h.do(func() {
		h.actions.UpgradeAll(func(_ domain.BatchResult, err error) { ch <- err })
	})

	assert.ErrorIs(t, wait(t, ch), application.ErrNothingToUpgrade)
}

func TestActions_ImportToolPins(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	h := newHarness(t, withFs(fs))
	h.runner.OnRun("pin", "list").Return(testutil.Output(testutil.Table(
		[]string{"Name", "Id", "Version", "Source", "Pin type"},
		[]string{"Git", "Git.Git", "2.45.1", "winget", "Pinning"},
		[]string{"PowerToys", "Microsoft.PowerToys", "0.81.0", "winget", "Blocking"},
	)), nil)

	h.dispatch(domain.OpPin, "Local.Only")

	type imported struct {
		records []domain.PackageRecord
		err     error
	}

	ch := make(chan imported, 1)
	h.do(func() {
		h.actions.ImportToolPins(func(records []domain.PackageRecord, err error) { ch <- imported{records, err} })
	})

	got := wait(t, ch)
	require.NoError(t, got.err)
	require.Len(t, got.records, 2)
	assert.Equal(t, "Git.Git", got.records[0].ID)
	assert.Equal(t, "Pinning", got.records[0].PinType)
	assert.Equal(t, "Microsoft.PowerToys", got.records[1].ID)
	assert.Equal(t, "Blocking", got.records[1].PinType)
	h.do(func() { assert.Equal(t, []string{"Git.Git", "Microsoft.PowerToys"}, h.store.IDs()) })

	data, err := afero.ReadFile(fs, pinsPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Local.Only")
}

func TestActions_ImportToolPinsFailureKeepsPins(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.runner.OnRun("pin", "list").Return(nil, &domain.ProcessError{Kind: domain.KindLaunchFailure, Command: "winget pin list"})

	h.dispatch(domain.OpPin, "Local.Only")

	ch := make(chan error, 1)
	h.do(func() {
		h.actions.ImportToolPins(func(_ []domain.PackageRecord, err error) { ch <- err })
	})

	err := wait(t, ch)
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindLaunchFailure, kind)
	h.do(func() { assert.Equal(t, []string{"Local.Only"}, h.store.IDs()) })
}
