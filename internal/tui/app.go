// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package tui implements the interactive three-tab package browser.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/wingetpro/wingetpro/internal/application"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/tui/models"
	"github.com/wingetpro/wingetpro/internal/tui/styles"
	"golang.org/x/term"
)

// Layout constants for consistent spacing.
// refreshedLayout formats the time a tab was last loaded.
const refreshedLayout = "15:04"

const (
	chromeHeight    = 5 // tab bar, info line, status line, footer
	minTableHeight  = 3
	defaultWidth    = 100
	defaultHeight   = 30
	inputCharLimit  = 200
	bridgeQueueSize = 256
)

// ErrNoTerminal is returned when the TUI is launched in a non-terminal environment.
var ErrNoTerminal = errors.New("TUI requires a terminal environment")

type mode int

const (
	modeBrowse mode = iota
	modeFilter
	modeQuery
	modeConfirm
	modeDetails
	modeHelp
)

// App is the root model. It owns one package list per tab and routes keys
// to whichever overlay is open.
//
//nolint:containedctx // blocking session calls run in tea.Cmds and need the program context
type App struct {
	ctx     context.Context
	session *application.Session
	styles  *styles.Styles
	keys    models.KeyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model

	lists    map[domain.TabKind]*models.PackageList
	snaps    map[domain.TabKind]domain.TabSnapshot
	details  *models.Details
	helpView *models.Help

	active    domain.TabKind
	mode      mode
	pending   []string
	status    string
	statusErr bool
	width     int
	height    int
	quitting  bool
}

// NewApp creates the browser for session. Installed is the first tab shown.
func NewApp(ctx context.Context, session *application.Session) *App {
	styleConfig := styles.New()
	keys := models.DefaultKeyMap()

	input := textinput.New()
	input.CharLimit = inputCharLimit

	app := &App{
		ctx:     ctx,
		session: session,
		styles:  styleConfig,
		keys:    keys,
		help:    help.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(styleConfig.PrimaryText),
		),
		input:    input,
		lists:    make(map[domain.TabKind]*models.PackageList, len(domain.AllTabs)),
		snaps:    make(map[domain.TabKind]domain.TabSnapshot, len(domain.AllTabs)),
		details:  models.NewDetails(styleConfig, defaultWidth, defaultHeight-chromeHeight),
		helpView: models.NewHelp(styleConfig, keys, defaultWidth, defaultHeight-chromeHeight),
		active:   domain.TabInstalled,
		width:    defaultWidth,
		height:   defaultHeight,
	}

	for _, tab := range domain.AllTabs {
		app.lists[tab] = models.NewPackageList(styleConfig)
		app.snaps[tab] = domain.TabSnapshot{Tab: tab, SortAscending: true}
	}

	if err := session.PinLoadError(); err != nil {
		app.setStatus(domain.GetErrorInfo(err, "", false).Message, true)
	}

	app.resize()

	return app
}

// Run opens the browser on the terminal and blocks until the user quits or
// ctx is canceled.
func Run(ctx context.Context, session *application.Session) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNoTerminal
	}

	app := NewApp(ctx, session)

	program := tea.NewProgram(
		app,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	stop, err := Bridge(ctx, session, program.Send)
	if err != nil {
		return fmt.Errorf("subscribe to session events: %w", err)
	}
	defer stop()

	if _, err := program.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("TUI application failed: %w", err)
	}

	return nil
}

// Bridge forwards tab snapshots and operation events from the control loop
// to send. Events are queued so a slow receiver does not stall the loop
// until the queue fills. stop unsubscribes and ends the forwarding.
func Bridge(ctx context.Context, session *application.Session, send func(tea.Msg)) (func(), error) {
	queue := make(chan tea.Msg, bridgeQueueSize)
	done := make(chan struct{})

	forward := func(msg tea.Msg) {
		select {
		case queue <- msg:
		case <-done:
		}
	}

	var unsubscribeTabs, unsubscribeOps func()

	err := session.Loop.Do(ctx, func() {
		unsubscribeTabs = session.Events.SubscribeTabs(func(snap domain.TabSnapshot) {
			forward(models.SnapshotMsg{Snapshot: snap})
		})
		unsubscribeOps = session.Events.SubscribeOperations(func(event domain.OperationEvent) {
			forward(models.OperationMsg{Event: event})
		})
	})
	if err != nil {
		return func() {}, err
	}

	go func() {
		for {
			select {
			case msg := <-queue:
				send(msg)
			case <-done:
				return
			}
		}
	}()

	return func() {
		unsubscribeTabs()
		unsubscribeOps()
		close(done)
	}, nil
}

// Init activates the Installed tab and loads Upgrades in the background so
// upgrade flags are known from the start.
func (a *App) Init() tea.Cmd {
	a.session.Post(func() {
		a.session.Catalog.Activate(domain.TabInstalled)
		a.session.Catalog.Refresh(domain.TabUpgrades, nil)
	})

	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()

		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd

		a.spinner, cmd = a.spinner.Update(msg)

		return a, cmd

	case models.SnapshotMsg:
		a.snaps[msg.Snapshot.Tab] = msg.Snapshot
		a.lists[msg.Snapshot.Tab].SetSnapshot(msg.Snapshot)

		return a, nil

	case models.OperationMsg:
		a.operationStatus(msg.Event)

		return a, nil

	case models.BatchDoneMsg:
		a.batchStatus(msg)

		return a, nil

	case models.DetailsMsg:
		a.details.Set(msg)

		return a, nil

	case models.CloseMsg:
		a.mode = modeBrowse

		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMessage(msg)
	}

	return a, nil
}

func (a *App) resize() {
	body := max(a.height-chromeHeight, minTableHeight)

	for _, list := range a.lists {
		list.SetSize(a.width, body)
	}

	a.details.SetSize(a.width, body)
	a.helpView.SetSize(a.width, body)
	a.help.Width = a.width
	a.input.Width = max(a.width-20, 10)
}

func (a *App) handleKeyMessage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		a.quitting = true

		return a, tea.Quit
	}

	switch a.mode {
	case modeHelp:
		return a, a.helpView.Update(msg)
	case modeDetails:
		return a, a.details.Update(msg)
	case modeConfirm:
		return a, a.handleConfirm(msg)
	case modeFilter:
		return a, a.handleFilterInput(msg)
	case modeQuery:
		return a, a.handleQueryInput(msg)
	case modeBrowse:
	}

	return a, a.handleBrowseKey(msg)
}

func (a *App) handleBrowseKey(msg tea.KeyMsg) tea.Cmd {
	list := a.lists[a.active]
	snap := a.snaps[a.active]

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.quitting = true

		return tea.Quit
	case key.Matches(msg, a.keys.NextTab):
		a.switchTab(a.offsetTab(1))
	case key.Matches(msg, a.keys.PrevTab):
		a.switchTab(a.offsetTab(-1))
	case key.Matches(msg, a.keys.Search):
		a.switchTab(domain.TabSearch)
	case key.Matches(msg, a.keys.Installed):
		a.switchTab(domain.TabInstalled)
	case key.Matches(msg, a.keys.Upgrades):
		a.switchTab(domain.TabUpgrades)
	case key.Matches(msg, a.keys.Filter):
		return a.openInput(modeFilter, "filter: ", "name or id", snap.Filter)
	case key.Matches(msg, a.keys.Query) && a.active == domain.TabSearch:
		return a.openInput(modeQuery, "search: ", "query winget sources", snap.Query)
	case key.Matches(msg, a.keys.Sort):
		a.toggleSort(nextSortColumn)
	case key.Matches(msg, a.keys.SortDir):
		a.toggleSort(func(col domain.SortColumn) domain.SortColumn { return col })
	case key.Matches(msg, a.keys.Select):
		list.Toggle()
	case key.Matches(msg, a.keys.Install):
		return a.dispatch(domain.OpInstall)
	case key.Matches(msg, a.keys.Upgrade):
		return a.dispatch(domain.OpUpgrade)
	case key.Matches(msg, a.keys.UpgradeAll):
		return a.upgradeAll()
	case key.Matches(msg, a.keys.Uninstall):
		a.pending = list.Targets()
		if len(a.pending) > 0 {
			a.mode = modeConfirm
		}
	case key.Matches(msg, a.keys.Pin):
		return a.dispatch(domain.OpPin)
	case key.Matches(msg, a.keys.Unpin):
		return a.dispatch(domain.OpUnpin)
	case key.Matches(msg, a.keys.Details):
		return a.showDetails()
	case key.Matches(msg, a.keys.Refresh):
		tab := a.active
		a.session.Post(func() { a.session.Catalog.Refresh(tab, nil) })
	case key.Matches(msg, a.keys.Help):
		a.mode = modeHelp
	default:
		return list.Update(msg)
	}

	return nil
}

func (a *App) offsetTab(delta int) domain.TabKind {
	n := len(domain.AllTabs)

	for i, tab := range domain.AllTabs {
		if tab == a.active {
			return domain.AllTabs[(i+delta+n)%n]
		}
	}

	return a.active
}

func (a *App) switchTab(tab domain.TabKind) {
	if tab == a.active {
		return
	}

	a.active = tab
	a.session.Post(func() { a.session.Catalog.Activate(tab) })
}

func nextSortColumn(current domain.SortColumn) domain.SortColumn {
	for i, col := range domain.AllSortColumns {
		if col == current {
			return domain.AllSortColumns[(i+1)%len(domain.AllSortColumns)]
		}
	}

	return domain.SortByName
}

// toggleSort sorts the active tab by pick(current column): the same column
// flips direction, another one starts ascending.
func (a *App) toggleSort(pick func(domain.SortColumn) domain.SortColumn) {
	tab := a.active
	catalog := a.session.Catalog

	a.session.Post(func() { catalog.ToggleSort(tab, pick(catalog.View(tab).SortColumn)) })
}

func (a *App) openInput(m mode, prompt, placeholder, value string) tea.Cmd {
	a.mode = m
	a.input.Prompt = prompt
	a.input.Placeholder = placeholder
	a.input.SetValue(value)
	a.input.CursorEnd()

	return a.input.Focus()
}

func (a *App) closeInput() {
	a.mode = modeBrowse
	a.input.Blur()
}

// handleFilterInput applies the filter on every edit. esc clears it.
func (a *App) handleFilterInput(msg tea.KeyMsg) tea.Cmd {
	tab := a.active

	switch msg.Type {
	case tea.KeyEnter:
		a.closeInput()

		return nil
	case tea.KeyEsc:
		a.closeInput()
		a.input.SetValue("")
		a.session.Post(func() { a.session.Catalog.SetFilter(tab, "") })

		return nil
	default:
	}

	before := a.input.Value()

	var cmd tea.Cmd

	a.input, cmd = a.input.Update(msg)

	if text := a.input.Value(); text != before {
		a.session.Post(func() { a.session.Catalog.SetFilter(tab, text) })
	}

	return cmd
}

func (a *App) handleQueryInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		query := strings.TrimSpace(a.input.Value())
		a.closeInput()
		a.session.Post(func() { a.session.Catalog.Search(query, nil) })

		return nil
	case tea.KeyEsc:
		a.closeInput()

		return nil
	default:
	}

	var cmd tea.Cmd

	a.input, cmd = a.input.Update(msg)

	return cmd
}

func (a *App) handleConfirm(msg tea.KeyMsg) tea.Cmd {
	ids := a.pending
	a.pending = nil
	a.mode = modeBrowse

	if msg.String() == "y" || msg.String() == "Y" {
		return a.dispatchIDs(domain.OpUninstall, ids)
	}

	a.setStatus("Uninstall canceled", false)

	return nil
}

func (a *App) dispatch(kind domain.OperationKind) tea.Cmd {
	return a.dispatchIDs(kind, a.lists[a.active].Targets())
}

// dispatchIDs runs kind off the update loop and reports a BatchDoneMsg.
func (a *App) dispatchIDs(kind domain.OperationKind, ids []string) tea.Cmd {
	if len(ids) == 0 {
		return nil
	}

	a.lists[a.active].ClearSelection()
	a.setStatus(fmt.Sprintf("%s %s...", kind.Title(), strings.Join(ids, ", ")), false)

	ctx, session := a.ctx, a.session

	return func() tea.Msg {
		res, err := session.Dispatch(ctx, kind, ids)

		return models.BatchDoneMsg{Result: res, Err: err}
	}
}

func (a *App) upgradeAll() tea.Cmd {
	a.setStatus("Upgrading all packages...", false)

	ctx, session := a.ctx, a.session

	return func() tea.Msg {
		res, err := session.UpgradeAll(ctx)
		if err == nil {
			res.Kind = domain.OpUpgrade
		}

		return models.BatchDoneMsg{Result: res, Err: err}
	}
}

func (a *App) showDetails() tea.Cmd {
	row, ok := a.lists[a.active].Current()
	if !ok {
		return nil
	}

	a.details.Load(row)
	a.mode = modeDetails

	ctx, session, id := a.ctx, a.session, row.ID

	return func() tea.Msg {
		text, err := session.Show(ctx, id)

		return models.DetailsMsg{ID: id, Text: text, Err: err}
	}
}

func (a *App) setStatus(text string, isErr bool) {
	a.status = text
	a.statusErr = isErr
}

func (a *App) operationStatus(event domain.OperationEvent) {
	text := fmt.Sprintf("%s %s: %s", event.Kind.Title(), event.TargetID, event.Status)
	if event.Err != nil {
		text += " (" + domain.GetErrorInfo(event.Err, event.TargetID, false).Message + ")"
	}

	a.setStatus(text, event.Status == domain.StatusFailed)
}

func (a *App) batchStatus(msg models.BatchDoneMsg) {
	switch {
	case errors.Is(msg.Err, application.ErrNothingToUpgrade):
		a.setStatus("Everything is up to date", false)
	case msg.Err != nil:
		a.setStatus(domain.GetErrorInfo(msg.Err, "", false).Message, true)
	default:
		failed := len(msg.Result.Failed())
		done := len(msg.Result.Order) - failed

		a.setStatus(fmt.Sprintf("%s: %d succeeded, %d failed", msg.Result.Kind.Title(), done, failed), failed > 0)
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	sections := []string{
		a.renderTabs(),
		a.renderBody(),
		a.renderInfo(),
		a.renderStatus(),
		a.renderFooter(),
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderTabs() string {
	tabs := []string{a.styles.Header.Render("wingetpro")}

	for i, tab := range domain.AllTabs {
		snap := a.snaps[tab]

		label := fmt.Sprintf("%d %s", i+1, tab.Title())
		if snap.Loading {
			label += " " + a.spinner.View()
		} else if snap.Total > 0 {
			label += fmt.Sprintf(" (%d)", snap.Total)
		}

		style := a.styles.InactiveTab
		if tab == a.active {
			style = a.styles.ActiveTab
		}

		tabs = append(tabs, style.Render(label))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a *App) renderBody() string {
	body := lipgloss.NewStyle().Height(max(a.height-chromeHeight, minTableHeight))

	switch a.mode {
	case modeHelp:
		return body.Render(a.helpView.View())
	case modeDetails:
		return body.Render(a.details.View())
	case modeConfirm:
		prompt := fmt.Sprintf("Uninstall %d package(s)? [y/N]\n\n%s", len(a.pending), strings.Join(a.pending, "\n"))

		return body.Render(a.styles.Dialog.Render(prompt))
	case modeBrowse, modeFilter, modeQuery:
	}

	list := a.lists[a.active]
	snap := a.snaps[a.active]

	if list.Len() > 0 {
		return body.Render(list.View())
	}

	var placeholder string

	switch {
	case snap.Loading:
		placeholder = a.spinner.View() + " Loading " + strings.ToLower(a.active.Title()) + "..."
	case a.active == domain.TabSearch && snap.Query == "":
		placeholder = "Press enter to search the winget sources"
	default:
		placeholder = "No packages found"
	}

	return body.Render(a.styles.Content.Render(a.styles.MutedText.Render(placeholder)))
}

func (a *App) renderInfo() string {
	if a.mode == modeFilter || a.mode == modeQuery {
		return a.input.View()
	}

	snap := a.snaps[a.active]
	list := a.lists[a.active]

	direction := "↑"
	if !snap.SortAscending {
		direction = "↓"
	}

	parts := []string{fmt.Sprintf("sort: %s %s", snap.SortColumn, direction)}

	if snap.Query != "" {
		parts = append(parts, "query: "+snap.Query)
	}

	if snap.Filter != "" {
		parts = append(parts, fmt.Sprintf("filter: %s (%d of %d)", snap.Filter, len(snap.Rows), snap.Total))
	}

	if n := list.Selected(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}

	if !snap.RefreshedAt.IsZero() {
		parts = append(parts, "updated "+snap.RefreshedAt.Format(refreshedLayout))
	}

	return a.styles.Content.Render(a.styles.MutedText.Render(strings.Join(parts, " · ")))
}

// renderStatus shows the active tab's last refresh error, else the latest
// operation message.
func (a *App) renderStatus() string {
	snap := a.snaps[a.active]

	switch {
	case snap.Err != nil:
		return a.styles.Content.Render(a.styles.ErrorText.Render("✗ " + refreshError(snap)))
	case a.status == "":
		return ""
	case a.statusErr:
		return a.styles.Content.Render(a.styles.ErrorText.Render(a.status))
	default:
		return a.styles.Content.Render(a.styles.SuccessText.Render(a.status))
	}
}

// refreshError describes a failed refresh and, when older rows are still
// shown, when those were loaded.
func refreshError(snap domain.TabSnapshot) string {
	msg := domain.KindMessage(*snap.Err)
	if snap.RefreshedAt.IsZero() {
		return msg
	}

	return fmt.Sprintf("%s (showing results from %s)", msg, snap.RefreshedAt.Format(refreshedLayout))
}

func (a *App) renderFooter() string {
	switch a.mode {
	case modeHelp, modeDetails:
		return a.help.ShortHelpView([]key.Binding{a.keys.Back, a.keys.Quit})
	case modeConfirm:
		return a.help.ShortHelpView([]key.Binding{
			key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "uninstall")),
			key.NewBinding(key.WithKeys("n"), key.WithHelp("n/esc", "cancel")),
		})
	case modeFilter, modeQuery:
		return a.help.ShortHelpView([]key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
			a.keys.Back,
		})
	case modeBrowse:
	}

	bindings := []key.Binding{a.keys.NextTab, a.keys.Filter, a.keys.Sort, a.keys.Select}
	if a.active == domain.TabSearch {
		bindings = append(bindings, a.keys.Query, a.keys.Install)
	} else {
		bindings = append(bindings, a.keys.Upgrade, a.keys.Uninstall, a.keys.Pin)
	}

	bindings = append(bindings, a.keys.Details, a.keys.Quit)

	return models.RenderFooter(a.styles, a.width, bindings, true)
}
