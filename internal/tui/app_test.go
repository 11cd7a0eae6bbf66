// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wingetpro/wingetpro/internal/application"
	"github.com/wingetpro/wingetpro/internal/config"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/pins"
	"github.com/wingetpro/wingetpro/internal/testutil"
	"github.com/wingetpro/wingetpro/internal/tui/models"
)

const waitFor = 5 * time.Second

func newSession(t *testing.T) (*application.Session, *testutil.MockCommandRunner) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	cfg := config.Default()
	cfg.Actions.Silent = true
	cfg.Actions.AcceptAgreements = false
	cfg.Actions.UninstallWingetSource = false

	runner := &testutil.MockCommandRunner{}
	runner.OnRun("list").Return(testutil.Output(testutil.ListOutput(
		testutil.Record("Git.Git", "2.45.1", "2.46.0"),
		testutil.Record("7zip.7zip", "23.01", ""),
	)), nil).Maybe()
	runner.OnRun("upgrade").Return(testutil.Output(testutil.UpgradeOutput(
		testutil.Record("Git.Git", "2.45.1", "2.46.0"),
	)), nil).Maybe()

	store := pins.NewStoreFs(afero.NewMemMapFs(), "/data/wingetpro/pins.toml", zerolog.Nop())
	session := application.NewSession(cfg, runner, store, zerolog.Nop())
	session.Start()
	t.Cleanup(session.Close)

	return session, runner
}

func newTestApp(t *testing.T) (*App, *application.Session, *testutil.MockCommandRunner) {
	t.Helper()

	session, runner := newSession(t)
	app := NewApp(context.Background(), session)
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	return app, session, runner
}

func installedSnapshot() models.SnapshotMsg {
	return models.SnapshotMsg{Snapshot: domain.TabSnapshot{
		Tab:           domain.TabInstalled,
		Total:         2,
		SortAscending: true,
		Rows: []domain.ViewRow{
			{PackageRecord: testutil.Record("7zip.7zip", "23.01", "")},
			{PackageRecord: testutil.Record("Git.Git", "2.45.1", "2.46.0"), Upgradable: true},
		},
	}}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(app *App, msg tea.KeyMsg) tea.Cmd {
	_, cmd := app.Update(msg)

	return cmd
}

func typeText(app *App, text string) {
	for _, r := range text {
		press(app, keyRunes(string(r)))
	}
}

// view reads tab's display settings after every posted update ran.
func view(t *testing.T, session *application.Session, tab domain.TabKind) application.ViewOptions {
	t.Helper()

	var opts application.ViewOptions

	require.NoError(t, session.Loop.Do(context.Background(), func() { opts = session.Catalog.View(tab) }))

	return opts
}

func TestBridgeForwardsEvents(t *testing.T) {
	session, _ := newSession(t)

	received := make(chan tea.Msg, 64)

	stop, err := Bridge(context.Background(), session, func(msg tea.Msg) { received <- msg })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, session.Refresh(context.Background(), domain.TabInstalled))

	var loaded *domain.TabSnapshot

	deadline := time.After(waitFor)
	for loaded == nil {
		select {
		case msg := <-received:
			if snap, ok := msg.(models.SnapshotMsg); ok && snap.Snapshot.Tab == domain.TabInstalled && !snap.Snapshot.Loading {
				loaded = &snap.Snapshot
			}
		case <-deadline:
			t.Fatal("no loaded snapshot forwarded")
		}
	}

	assert.Len(t, loaded.Rows, 2)

	_, err = session.Dispatch(context.Background(), domain.OpPin, []string{"Git.Git"})
	require.NoError(t, err)

	assert.True(t, testutil.WaitWithTimeout(func() bool {
		for {
			select {
			case msg := <-received:
				if op, ok := msg.(models.OperationMsg); ok && op.Event.Status == domain.StatusSucceeded {
					return op.Event.TargetID == "Git.Git"
				}
			default:
				return false
			}
		}
	}, waitFor))
}

func TestAppInitLoadsInstalledAndUpgrades(t *testing.T) {
	app, _, runner := newTestApp(t)

	assert.NotNil(t, app.Init())
	assert.Equal(t, domain.TabInstalled, app.active)

	assert.True(t, testutil.WaitWithTimeout(func() bool {
		return runner.RunCount("list") == 1 && runner.RunCount("upgrade") == 1
	}, waitFor))
}

func TestAppTabSwitching(t *testing.T) {
	app, _, _ := newTestApp(t)

	press(app, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, domain.TabUpgrades, app.active)

	press(app, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, domain.TabSearch, app.active)

	press(app, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, domain.TabUpgrades, app.active)

	press(app, keyRunes("2"))
	assert.Equal(t, domain.TabInstalled, app.active)

	press(app, keyRunes("1"))
	assert.Equal(t, domain.TabSearch, app.active)
	assert.Contains(t, app.View(), "Press enter to search")
}

func TestAppSnapshotRendering(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(installedSnapshot())

	out := app.View()
	assert.Contains(t, out, "Git.Git")
	assert.Contains(t, out, "7zip.7zip")
	assert.Contains(t, out, "Installed (2)")

	failed := installedSnapshot()
	failed.Snapshot.Err = domain.KindTimeout.Ptr()
	app.Update(failed)

	assert.Contains(t, app.View(), "WinGet did not answer in time")
	assert.Contains(t, app.View(), "Git.Git", "rows survive a failed refresh")
}

func TestAppShowsRefreshTime(t *testing.T) {
	app, _, _ := newTestApp(t)

	loaded := installedSnapshot()
	loaded.Snapshot.RefreshedAt = time.Date(2025, 3, 4, 9, 30, 0, 0, time.Local)
	app.Update(loaded)
	assert.Contains(t, app.View(), "updated 09:30")

	loaded.Snapshot.Err = domain.KindTimeout.Ptr()
	app.Update(loaded)
	assert.Contains(t, app.View(), "showing results from 09:30")
}

func TestAppLoadingPlaceholder(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(models.SnapshotMsg{Snapshot: domain.TabSnapshot{Tab: domain.TabInstalled, Loading: true}})

	assert.Contains(t, app.View(), "Loading installed")
}

func TestAppSelectAndPin(t *testing.T) {
	app, session, _ := newTestApp(t)
	app.Update(installedSnapshot())

	press(app, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	press(app, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.Equal(t, 2, app.lists[domain.TabInstalled].Selected())

	cmd := press(app, keyRunes("p"))
	require.NotNil(t, cmd)
	assert.Equal(t, 0, app.lists[domain.TabInstalled].Selected(), "dispatch clears the selection")

	done, ok := cmd().(models.BatchDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.Err)
	assert.Equal(t, []string{"7zip.7zip", "Git.Git"}, done.Result.Order)

	app.Update(done)
	assert.Contains(t, app.View(), "Pin: 2 succeeded, 0 failed")

	ids, err := session.PinnedIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"7zip.7zip", "Git.Git"}, ids)
}

func TestAppUninstallConfirmation(t *testing.T) {
	app, _, runner := newTestApp(t)
	app.Update(installedSnapshot())

	assert.Nil(t, press(app, keyRunes("x")))
	assert.Equal(t, modeConfirm, app.mode)
	assert.Contains(t, app.View(), "Uninstall 1 package(s)?")

	assert.Nil(t, press(app, keyRunes("n")))
	assert.Equal(t, modeBrowse, app.mode)
	assert.Contains(t, app.View(), "Uninstall canceled")

	press(app, keyRunes("j"))
	press(app, keyRunes("x"))

	cmd := press(app, keyRunes("y"))
	require.NotNil(t, cmd)
	assert.Equal(t, modeBrowse, app.mode)

	runner.OnRun("uninstall", "--id", "Git.Git", "--exact", "--silent", "--force").
		Return(testutil.Exit(1, "Uninstall failed"))

	done, ok := cmd().(models.BatchDoneMsg)
	require.True(t, ok)
	assert.Equal(t, domain.StatusFailed, done.Result.Status["Git.Git"])

	app.Update(done)
	assert.Contains(t, app.View(), "Uninstall: 0 succeeded, 1 failed")
}

func TestAppFilterInput(t *testing.T) {
	app, session, _ := newTestApp(t)

	press(app, keyRunes("/"))
	assert.Equal(t, modeFilter, app.mode)

	typeText(app, "git")
	assert.Equal(t, "git", view(t, session, domain.TabInstalled).Filter)

	press(app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeBrowse, app.mode)
	assert.Equal(t, "git", view(t, session, domain.TabInstalled).Filter)

	press(app, keyRunes("/"))
	press(app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, view(t, session, domain.TabInstalled).Filter, "esc clears the filter")
}

func TestAppSortKeys(t *testing.T) {
	app, session, _ := newTestApp(t)

	press(app, keyRunes("s"))

	opts := view(t, session, domain.TabInstalled)
	assert.Equal(t, domain.SortByID, opts.SortColumn)
	assert.True(t, opts.Ascending)

	press(app, keyRunes("S"))

	opts = view(t, session, domain.TabInstalled)
	assert.Equal(t, domain.SortByID, opts.SortColumn, "direction flips the current column")
	assert.False(t, opts.Ascending)

	press(app, keyRunes("s"))

	opts = view(t, session, domain.TabInstalled)
	assert.Equal(t, domain.SortByVersion, opts.SortColumn)
	assert.True(t, opts.Ascending, "a new column starts ascending")
}

func TestAppSearchQuery(t *testing.T) {
	app, _, runner := newTestApp(t)
	runner.OnRun("search", "git").Return(testutil.Output(testutil.SearchOutput(
		testutil.Record("Git.Git", "2.46.0", ""),
	)), nil)

	press(app, keyRunes("1"))
	press(app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeQuery, app.mode)

	typeText(app, "git")
	press(app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeBrowse, app.mode)

	assert.True(t, testutil.WaitWithTimeout(func() bool {
		return runner.RunCount("search", "git") == 1
	}, waitFor))
}

func TestAppEnterOutsideSearchDoesNotOpenQuery(t *testing.T) {
	app, _, _ := newTestApp(t)

	press(app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeBrowse, app.mode)
}

func TestAppDetails(t *testing.T) {
	app, _, runner := newTestApp(t)
	app.Update(installedSnapshot())
	runner.OnRun("show", "--id", "7zip.7zip", "--exact").
		Return(testutil.Output("Found 7-Zip [7zip.7zip]\r\nVersion: 23.01\r\nPublisher: Igor Pavlov\r\n"), nil)

	cmd := press(app, keyRunes("d"))
	require.NotNil(t, cmd)
	assert.Equal(t, modeDetails, app.mode)

	details, ok := cmd().(models.DetailsMsg)
	require.True(t, ok)
	require.NoError(t, details.Err)

	app.Update(details)
	assert.Contains(t, app.details.Markdown(), "**Publisher:** Igor Pavlov")
	assert.Contains(t, app.details.Markdown(), "https://winstall.app/apps/7zip.7zip")

	closeCmd := press(app, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, closeCmd)
	app.Update(closeCmd())
	assert.Equal(t, modeBrowse, app.mode)
}

func TestAppHelpOverlay(t *testing.T) {
	app, _, _ := newTestApp(t)

	press(app, keyRunes("?"))
	assert.Equal(t, modeHelp, app.mode)
	assert.Contains(t, app.View(), "Troubleshooting")

	closeCmd := press(app, keyRunes("?"))
	require.NotNil(t, closeCmd)
	app.Update(closeCmd())
	assert.Equal(t, modeBrowse, app.mode)
}

func TestAppUpgradeAllNothingToDo(t *testing.T) {
	session, runner := newSession(t)
	runner.ExpectedCalls = nil
	runner.OnRun("upgrade").Return(testutil.Output(testutil.UpgradeOutput()), nil)

	app := NewApp(context.Background(), session)

	cmd := press(app, keyRunes("U"))
	require.NotNil(t, cmd)

	app.Update(cmd())
	assert.Contains(t, app.View(), "Everything is up to date")
}

func TestAppOperationEventsUpdateStatus(t *testing.T) {
	app, _, _ := newTestApp(t)

	app.Update(models.OperationMsg{Event: domain.OperationEvent{
		TargetID: "Git.Git",
		Kind:     domain.OpUpgrade,
		Status:   domain.StatusPending,
	}})
	assert.Contains(t, app.View(), "Upgrade Git.Git: pending")
	assert.False(t, app.statusErr)

	app.Update(models.OperationMsg{Event: domain.OperationEvent{
		TargetID: "Git.Git",
		Kind:     domain.OpUpgrade,
		Status:   domain.StatusFailed,
		Err:      &domain.ProcessError{Kind: domain.KindTimeout, Command: "winget upgrade"},
	}})
	assert.True(t, app.statusErr)
	assert.Contains(t, app.status, "Upgrade Git.Git: failed")
}

func TestAppQuit(t *testing.T) {
	app, _, _ := newTestApp(t)

	cmd := press(app, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, app.View())
}

func TestNextSortColumnWraps(t *testing.T) {
	t.Parallel()

	last := domain.AllSortColumns[len(domain.AllSortColumns)-1]
	assert.Equal(t, domain.SortByName, nextSortColumn(last))
	assert.Equal(t, domain.SortByID, nextSortColumn(domain.SortByName))
}
