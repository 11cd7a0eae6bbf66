// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/hashicorp/go-multierror"
	"github.com/wingetpro/wingetpro/internal/application"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/logging"
	"github.com/urfave/cli/v3"
)

func (app *CLI) createActionCommand(kind domain.OperationKind, usage string) *cli.Command {
	return &cli.Command{
		Name:      kind.String(),
		Usage:     usage,
		ArgsUsage: "<id>...",
		Description: fmt.Sprintf(`Ids are matched exactly and may be given as separate arguments or
as a comma-separated list.

Examples:
  wingetpro %[1]s Git.Git
  wingetpro %[1]s Git.Git,7zip.7zip`, kind),
		Action: app.withSession(logging.ModeCLI, app.dispatch(kind)),
	}
}

func (app *CLI) createUpgradeCommand() *cli.Command {
	return &cli.Command{
		Name:      "upgrade",
		Usage:     "Upgrade packages by id, or every upgradable package with --all",
		ArgsUsage: "[<id>...]",
		Description: `Upgrade the named packages, or with --all every package in the upgrade
list. Pinned packages are skipped by --all unless --include-pinned is set.

Examples:
  wingetpro upgrade Git.Git
  wingetpro upgrade --all --yes`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "upgrade every upgradable package",
			},
		},
		Action: app.withSession(logging.ModeCLI, app.runUpgrade),
	}
}

func (app *CLI) runUpgrade(ctx context.Context, cmd *cli.Command, session *application.Session) error {
	if !cmd.Bool("all") {
		return app.dispatch(domain.OpUpgrade)(ctx, cmd, session)
	}

	if cmd.Args().Present() {
		return domain.NewExitError(ExitUsageError, "specify either --all or package ids, not both", nil)
	}

	description := "Pinned packages are skipped."
	if session.Config().Upgrades.IncludePinned {
		description = "Pinned packages are included."
	}

	if err := app.confirmAction("Upgrade all packages?", description); err != nil {
		return err
	}

	app.output.Progressf("Upgrading all packages...")

	res, err := session.UpgradeAll(ctx)
	if errors.Is(err, application.ErrNothingToUpgrade) {
		if app.json {
			app.output.JSONResult("success", map[string]any{"action": domain.OpUpgrade.String(), "targets": []any{}})
		} else {
			app.output.Successf("Everything is up to date")
		}

		return nil
	}

	if err != nil {
		return err
	}

	app.output.BatchResult(res, app.verbose)

	return batchError(res)
}

// dispatch runs kind against the ids given as arguments.
func (app *CLI) dispatch(kind domain.OperationKind) sessionAction {
	return func(ctx context.Context, cmd *cli.Command, session *application.Session) error {
		ids := packageIDs(cmd.Args().Slice())
		if len(ids) == 0 {
			return domain.NewExitError(ExitUsageError, "specify at least one package id", ErrNoPackagesSpecified)
		}

		if kind == domain.OpUninstall {
			title := fmt.Sprintf("Uninstall %d package(s)?", len(ids))
			if err := app.confirmAction(title, strings.Join(ids, ", ")); err != nil {
				return err
			}
		}

		app.output.Progressf("%s %s...", kind.Title(), strings.Join(ids, ", "))

		res, err := session.Dispatch(ctx, kind, ids)
		if err != nil {
			return err
		}

		app.output.BatchResult(res, app.verbose)

		return batchError(res)
	}
}

// packageIDs splits comma-separated arguments and drops empty entries.
func packageIDs(args []string) []string {
	var ids []string

	for _, arg := range args {
		for _, id := range strings.Split(arg, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	return ids
}

// batchError aggregates per-target failures into one exit error.
func batchError(res domain.BatchResult) error {
	failed := res.Failed()
	if len(failed) == 0 {
		return nil
	}

	var merr *multierror.Error

	for _, id := range failed {
		err := res.Errors[id]
		if err == nil {
			err = errors.New(res.Status[id].String())
		}

		merr = multierror.Append(merr, fmt.Errorf("%s: %w", id, err))
	}

	return domain.NewExitError(ExitAppError,
		fmt.Sprintf("%d of %d %s operations failed", len(failed), len(res.Order), res.Kind),
		merr.ErrorOrNil())
}

func (app *CLI) createPinsCommand() *cli.Command {
	return &cli.Command{
		Name:  "pins",
		Usage: "List pinned packages",
		Description: `Pins are kept by wingetpro in pins.toml and exclude packages from
"upgrade --all". "pins import" replaces them with the pins winget itself knows.`,
		Action: app.withSession(logging.ModeCLI, app.runPins),
		Commands: []*cli.Command{
			{
				Name:   "import",
				Usage:  "Replace local pins with the output of 'winget pin list'",
				Action: app.withSession(logging.ModeCLI, app.runPinsImport),
			},
		},
	}
}

func (app *CLI) runPins(ctx context.Context, _ *cli.Command, session *application.Session) error {
	ids, err := session.PinnedIDs(ctx)
	if err != nil {
		return err
	}

	if app.json {
		app.output.JSONResult("success", map[string]any{"pins": nonNil(ids), "file": session.Pins.Path()})

		return nil
	}

	if len(ids) == 0 && !app.plain {
		app.output.Warningf("No pinned packages")

		return nil
	}

	app.output.PlainList(ids)

	return nil
}

func (app *CLI) runPinsImport(ctx context.Context, _ *cli.Command, session *application.Session) error {
	if err := app.confirmAction("Replace local pins?", "The pin list from winget replaces "+session.Pins.Path()); err != nil {
		return err
	}

	records, err := session.ImportToolPins(ctx)
	if err != nil {
		return err
	}

	if app.json {
		app.output.JSONResult("success", map[string]any{"pins": records})

		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{rec.ID, rec.Name, rec.PinType})
	}

	app.output.Successf("Imported %d pin(s) from winget", len(records))
	app.output.Table([]string{"Id", "Name", "Pin type"}, rows)

	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}

	return ids
}

// confirmAction asks before destructive actions unless --yes is set.
func (app *CLI) confirmAction(title, description string) error {
	if app.yes {
		return nil
	}

	if app.json || app.plain || !app.stdinTTY() {
		return domain.NewExitError(ExitUsageError, "confirmation required, pass --yes to proceed", ErrConfirmationRequired)
	}

	ok, err := app.confirm(title, description)
	if errors.Is(err, huh.ErrUserAborted) {
		return domain.NewExitError(ExitInterruptError, "aborted", err)
	}

	if err != nil {
		return domain.NewExitError(ExitGeneralError, "failed to read confirmation", err)
	}

	if !ok {
		return domain.NewExitError(ExitInterruptError, "aborted", nil)
	}

	return nil
}

// confirmPrompt shows a yes/no form on the terminal.
func confirmPrompt(title, description string) (bool, error) {
	var ok bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)

	if err := form.Run(); err != nil {
		return false, err
	}

	return ok, nil
}
