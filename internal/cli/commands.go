// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	adapters "github.com/wingetpro/wingetpro/internal/adapters/platform"
	"github.com/wingetpro/wingetpro/internal/application"
	"github.com/wingetpro/wingetpro/internal/config"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/logging"
	"github.com/wingetpro/wingetpro/internal/winget"
	"github.com/urfave/cli/v3"
)

func (app *CLI) createSearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the winget sources",
		ArgsUsage: "<query>",
		Description: `Search every configured winget source for packages whose name, id,
moniker or tag matches the query.

Examples:
  wingetpro search vscode
  wingetpro search "power toys" --sort version --desc`,
		Action: app.withSession(logging.ModeCLI, app.runSearch),
	}
}

func (app *CLI) runSearch(ctx context.Context, cmd *cli.Command, session *application.Session) error {
	view, err := app.viewOptions()
	if err != nil {
		return err
	}

	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return domain.NewExitError(ExitUsageError, "specify a search query", nil)
	}

	app.output.Progressf("Searching for %s...", query)

	if err := session.Search(ctx, query); err != nil {
		return err
	}

	return app.printTab(ctx, session, domain.TabSearch, view)
}

func (app *CLI) createListCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List installed packages",
		Action: app.withSession(logging.ModeCLI, app.listTab(domain.TabInstalled)),
	}
}

func (app *CLI) createUpgradesCommand() *cli.Command {
	return &cli.Command{
		Name:  "upgrades",
		Usage: "List packages with an available upgrade",
		Description: `List installed packages that have a newer version in a source.

Pinned packages are flagged. Use --include-unknown for packages whose
installed version winget cannot determine.`,
		Action: app.withSession(logging.ModeCLI, app.listTab(domain.TabUpgrades)),
	}
}

// listTab refreshes tab and prints it.
func (app *CLI) listTab(tab domain.TabKind) sessionAction {
	return func(ctx context.Context, _ *cli.Command, session *application.Session) error {
		view, err := app.viewOptions()
		if err != nil {
			return err
		}

		app.output.Progressf("Loading %s packages...", tab)

		if err := session.Refresh(ctx, tab); err != nil {
			return err
		}

		return app.printTab(ctx, session, tab, view)
	}
}

func (app *CLI) printTab(ctx context.Context, session *application.Session, tab domain.TabKind, view application.ViewOptions) error {
	snap, err := session.Snapshot(ctx, tab, view)
	if err != nil {
		return err
	}

	app.output.PackageTable(snap)

	return nil
}

func (app *CLI) createShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show package details",
		ArgsUsage: "<id>",
		Action:    app.withSession(logging.ModeCLI, app.runShow),
	}
}

func (app *CLI) runShow(ctx context.Context, cmd *cli.Command, session *application.Session) error {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return domain.NewExitError(ExitUsageError, "specify a package id", ErrNoPackagesSpecified)
	}

	details, err := session.Show(ctx, id)
	if err != nil {
		return err
	}

	page := winget.PackagePageURL(id, "")

	switch {
	case app.json:
		app.output.JSONResult("success", map[string]any{
			"id":      id,
			"details": details,
			"url":     page,
		})
	case app.plain:
		app.output.Result(strings.TrimRight(details, "\n"))
		app.output.PlainKeyValue("url", page)
	default:
		app.output.Result(strings.TrimRight(details, "\n"))
		app.output.Result("")
		app.output.Result(app.output.Header("Page:") + " " + page)
	}

	return nil
}

func (app *CLI) createTUICommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the interactive interface",
		Description: `Open the three-tab package browser (Search, Installed, Upgrades).

Press ? inside the interface for the key bindings. Logs are written to
the log file from config.toml while the interface is open.`,
		Action: app.handleTUIAction,
	}
}

func (app *CLI) handleTUIAction(ctx context.Context, cmd *cli.Command) error {
	return app.withSession(logging.ModeTUI, app.launchTUI)(ctx, cmd)
}

func (app *CLI) launchTUI(ctx context.Context, _ *cli.Command, session *application.Session) error {
	err := app.runTUI(ctx, session)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}

	if app.verbose {
		return domain.NewExitError(ExitGeneralError, fmt.Sprintf("Failed to launch TUI: %v", err), err)
	}

	return domain.NewExitError(ExitGeneralError, "Failed to launch interactive interface (terminal required)", err)
}

func (app *CLI) createDoctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check the winget installation and configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "show-config",
				Usage: "print the effective configuration as TOML",
			},
		},
		Action: app.runDoctor,
	}
}

func (app *CLI) runDoctor(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, closer, err := app.prepare(cmd, logging.ModeCLI)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	if cmd.Bool("show-config") {
		data, err := config.Encode(cfg)
		if err != nil {
			return domain.NewExitError(ExitConfigError, err.Error(), err)
		}

		app.output.Result(strings.TrimRight(string(data), "\n"))

		return nil
	}

	detector := adapters.NewSystemDetector(app.newRun(cfg.Tool.Path, logger), cfg.Tool.Path)

	info, detectErr := detector.DetectTool(ctx)
	app.printDoctor(cfg, info)

	switch {
	case detectErr != nil:
		return exitFor(detectErr, app.verbose)
	case !info.Available:
		return domain.NewExitError(ExitDependencyError,
			cfg.Tool.Path+" not found: install 'App Installer' from the Microsoft Store or set --tool", nil)
	case !info.Supported:
		return domain.NewExitError(ExitWarnings,
			fmt.Sprintf("winget %s is older than %s, output parsing may fail", info.Version, adapters.MinimumToolVersion), nil)
	}

	return nil
}

func (app *CLI) printDoctor(cfg *config.Config, info *domain.ToolInfo) {
	if app.json {
		app.output.JSONResult("success", map[string]any{
			"tool":      info,
			"config":    app.configPath,
			"pins_file": cfg.Store.PinsFile,
			"log_file":  cfg.Log.File,
		})

		return
	}

	rows := [][]string{
		{"tool", info.Tool},
		{"available", strconv.FormatBool(info.Available)},
		{"version", info.Version},
		{"supported", strconv.FormatBool(info.Supported)},
		{"pin_support", strconv.FormatBool(info.PinSupport)},
		{"platform", info.OS + "/" + info.Arch},
		{"config", app.configPath},
		{"pins_file", cfg.Store.PinsFile},
		{"log_file", cfg.Log.File},
	}

	if app.plain {
		for _, row := range rows {
			app.output.PlainKeyValue(row[0], row[1])
		}

		return
	}

	app.output.Table([]string{"Check", "Value"}, rows)
}
