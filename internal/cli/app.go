// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package cli provides the wingetpro command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	adapters "github.com/wingetpro/wingetpro/internal/adapters/platform"
	"github.com/wingetpro/wingetpro/internal/application"
	"github.com/wingetpro/wingetpro/internal/config"
	"github.com/wingetpro/wingetpro/internal/console"
	"github.com/wingetpro/wingetpro/internal/domain"
	"github.com/wingetpro/wingetpro/internal/logging"
	"github.com/wingetpro/wingetpro/internal/pins"
	"github.com/wingetpro/wingetpro/internal/platform"
	"github.com/wingetpro/wingetpro/internal/tui"
	"github.com/urfave/cli/v3"
)

// Exit codes follow standard Unix conventions for better scripting support.
// Range 0-125 are safe to use (126+ have special meaning in shells).
const (
	// Standard Unix exit codes (0-10).
	ExitSuccess         = 0 // Operation completed successfully
	ExitGeneralError    = 1 // Generic failure (catch-all)
	ExitUsageError      = 2 // Invalid command line usage
	ExitConfigError     = 3 // Configuration file error
	ExitPermissionError = 4 // Permission denied
	ExitNotFoundError   = 5 // Requested command or package not found

	// Tool and system errors (10-19).
	ExitDependencyError = 10 // winget missing or not startable
	ExitNetworkError    = 11 // Source or network failure
	ExitSystemError     = 12 // Pin store or filesystem failure
	ExitTimeoutError    = 13 // winget did not answer in time
	ExitInterruptError  = 14 // User interrupted (Ctrl+C)

	// Application-specific errors (20-29).
	ExitAppError    = 22 // One or more package actions failed
	ExitOutputError = 23 // winget output could not be parsed

	// Warning (non-fatal issues occurred).
	ExitWarnings = 64 // Operation succeeded with warnings
)

var (
	// ErrNoPackagesSpecified is returned when an action gets no package ids.
	ErrNoPackagesSpecified = errors.New("no packages specified")
	// ErrConfirmationRequired is returned when a destructive action cannot prompt.
	ErrConfirmationRequired = errors.New("confirmation required")
)

// RunnerFactory builds the tool runner for the configured tool path.
type RunnerFactory func(tool string, logger zerolog.Logger) domain.CommandRunner

// StoreFactory builds the pin store for the configured pins file.
type StoreFactory func(path string, logger zerolog.Logger) *pins.Store

// TUILauncher runs the interactive interface over a started session.
type TUILauncher func(ctx context.Context, session *application.Session) error

// ConfirmFunc asks a yes/no question.
type ConfirmFunc func(title, description string) (bool, error)

// CLI holds the command tree and the global flag state.
type CLI struct {
	app *cli.Command

	verbose        bool
	json           bool
	plain          bool
	yes            bool
	tool           string
	configPath     string
	filter         string
	sort           string
	desc           bool
	includeUnknown bool
	includePinned  bool
	silent         bool

	output   *console.OutputState
	newRun   RunnerFactory
	newStore StoreFactory
	runTUI   TUILauncher
	confirm  ConfirmFunc
	stdinTTY func() bool
}

// Option customises a CLI, mostly for tests.
type Option func(*CLI)

// WithOutput directs results and messages to out.
func WithOutput(out *console.OutputState) Option {
	return func(c *CLI) { c.output = out }
}

// WithRunner replaces the winget process runner.
func WithRunner(runner domain.CommandRunner) Option {
	return func(c *CLI) {
		c.newRun = func(string, zerolog.Logger) domain.CommandRunner { return runner }
	}
}

// WithStoreFactory replaces how the pin store is opened.
func WithStoreFactory(factory StoreFactory) Option {
	return func(c *CLI) { c.newStore = factory }
}

// WithTUI replaces the interactive interface.
func WithTUI(launch TUILauncher) Option {
	return func(c *CLI) { c.runTUI = launch }
}

// WithConfirm replaces the confirmation prompt. The prompt is used even
// when stdin is not a terminal.
func WithConfirm(confirm ConfirmFunc) Option {
	return func(c *CLI) {
		c.confirm = confirm
		c.stdinTTY = func() bool { return true }
	}
}

// NewCLI creates the command tree.
func NewCLI(opts ...Option) *CLI {
	app := &CLI{
		output: console.DefaultOutput,
		newRun: func(tool string, logger zerolog.Logger) domain.CommandRunner {
			return adapters.NewCommandRunner(tool, logger)
		},
		newStore: pins.NewStore,
		runTUI: func(ctx context.Context, session *application.Session) error {
			return tui.Run(ctx, session)
		},
		confirm: confirmPrompt,
		stdinTTY: func() bool {
			return console.DefaultOutput.IsTTY(os.Stdin.Fd())
		},
	}

	for _, opt := range opts {
		opt(app)
	}

	app.app = &cli.Command{
		Name:    "wingetpro",
		Usage:   "Search, install, upgrade and pin Windows packages through winget",
		Version: Version,
		Suggest: true,
		Description: `A keyboard-driven front-end for the Windows Package Manager.

Without a command wingetpro opens the interactive interface.

EXAMPLES:
  wingetpro search vscode            Search the winget sources
  wingetpro upgrades --sort name     Show available upgrades
  wingetpro upgrade --all --yes      Upgrade everything that is not pinned
  wingetpro pin Git.Git              Keep Git out of "upgrade --all"
  wingetpro list --json              Installed packages as JSON`,
		Flags:           app.globalFlags(),
		Action:          app.defaultAction,
		Commands:        app.createAllCommands(),
		Writer:          app.output.Out,
		ErrWriter:       app.output.Err,
		HideHelpCommand: true,
	}

	return app
}

// Version is set at build time.
var Version = "dev" //nolint:gochecknoglobals

func (app *CLI) globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "verbose",
			Usage:       "show progress messages and debug logs on stderr",
			Sources:     cli.EnvVars("WINGETPRO_VERBOSE"),
			Destination: &app.verbose,
		},
		&cli.BoolFlag{
			Name:        "json",
			Aliases:     []string{"j"},
			Usage:       "output structured JSON results",
			Sources:     cli.EnvVars("WINGETPRO_JSON"),
			Destination: &app.json,
		},
		&cli.BoolFlag{
			Name:        "plain",
			Usage:       "output tab-separated text without formatting for scripts",
			Sources:     cli.EnvVars("WINGETPRO_PLAIN"),
			Destination: &app.plain,
		},
		&cli.BoolFlag{
			Name:        "yes",
			Aliases:     []string{"y"},
			Usage:       "answer yes to confirmation prompts",
			Sources:     cli.EnvVars("WINGETPRO_YES"),
			Destination: &app.yes,
		},
		&cli.StringFlag{
			Name:        "tool",
			Usage:       "winget executable name or path",
			Sources:     cli.EnvVars("WINGETPRO_TOOL"),
			Destination: &app.tool,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "config file",
			Value:       platform.DefaultConfigPath(),
			Sources:     cli.EnvVars("WINGETPRO_CONFIG"),
			Destination: &app.configPath,
		},
		&cli.StringFlag{
			Name:        "filter",
			Aliases:     []string{"f"},
			Usage:       "only show rows whose name or id contains `TEXT`",
			Destination: &app.filter,
		},
		&cli.StringFlag{
			Name:        "sort",
			Usage:       "sort column: name, id, version, available, source, pinned, status",
			Value:       domain.SortByName.String(),
			Destination: &app.sort,
		},
		&cli.BoolFlag{
			Name:        "desc",
			Usage:       "sort descending",
			Destination: &app.desc,
		},
		&cli.BoolFlag{
			Name:        "include-unknown",
			Usage:       "list upgrades for packages with an unknown installed version",
			Sources:     cli.EnvVars("WINGETPRO_INCLUDE_UNKNOWN"),
			Destination: &app.includeUnknown,
		},
		&cli.BoolFlag{
			Name:        "include-pinned",
			Usage:       "list and upgrade pinned packages too",
			Sources:     cli.EnvVars("WINGETPRO_INCLUDE_PINNED"),
			Destination: &app.includePinned,
		},
		&cli.BoolFlag{
			Name:        "silent",
			Usage:       "run installers silently instead of interactively",
			Sources:     cli.EnvVars("WINGETPRO_SILENT"),
			Destination: &app.silent,
		},
	}
}

// Run executes the CLI application.
func (app *CLI) Run(ctx context.Context, args []string) error {
	return app.app.Run(ctx, args)
}

// App returns the root command.
func App(opts ...Option) *cli.Command {
	return NewCLI(opts...).app
}

func (app *CLI) createAllCommands() []*cli.Command {
	return []*cli.Command{
		app.createSearchCommand(),
		app.createListCommand(),
		app.createUpgradesCommand(),
		app.createShowCommand(),
		app.createActionCommand(domain.OpInstall, "Install packages by id"),
		app.createUpgradeCommand(),
		app.createActionCommand(domain.OpUninstall, "Uninstall packages by id"),
		app.createActionCommand(domain.OpPin, "Pin packages so upgrade --all skips them"),
		app.createActionCommand(domain.OpUnpin, "Remove pins"),
		app.createPinsCommand(),
		app.createTUICommand(),
		app.createDoctorCommand(),
	}
}

// defaultAction opens the TUI when no command is given.
func (app *CLI) defaultAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Present() {
		app.output.Errorf("'%s' is not a command.", cmd.Args().First())
		_, _ = fmt.Fprintf(app.stderr(), "\nRun 'wingetpro --help' to see available commands.\n")

		return domain.NewExitError(ExitNotFoundError, "unknown command "+cmd.Args().First(), nil)
	}

	return app.handleTUIAction(ctx, cmd)
}

func (app *CLI) stderr() io.Writer {
	if app.output.Err != nil {
		return app.output.Err
	}

	return os.Stderr
}

// loadConfig reads the config file and applies flag overrides.
func (app *CLI) loadConfig(cmd *cli.Command) (*config.Config, error) {
	if app.json && app.plain {
		return nil, domain.NewExitError(ExitUsageError, "cannot use both --json and --plain flags simultaneously", nil)
	}

	cfg, err := config.Load(platform.ExpandPath(app.configPath))
	if err != nil {
		return nil, domain.NewExitError(ExitConfigError, "invalid configuration: "+err.Error(), err)
	}

	if cmd.IsSet("tool") && strings.TrimSpace(app.tool) != "" {
		cfg.Tool.Path = app.tool
	}

	if cmd.IsSet("include-unknown") {
		cfg.Upgrades.IncludeUnknown = app.includeUnknown
	}

	if cmd.IsSet("include-pinned") {
		cfg.Upgrades.IncludePinned = app.includePinned
	}

	if cmd.IsSet("silent") {
		cfg.Actions.Silent = app.silent
	}

	return cfg, nil
}

// viewOptions maps --filter, --sort and --desc.
func (app *CLI) viewOptions() (application.ViewOptions, error) {
	col, err := domain.ParseSortColumn(app.sort)
	if err != nil {
		return application.ViewOptions{}, domain.NewExitError(ExitUsageError, err.Error(), err)
	}

	return application.ViewOptions{
		Filter:     app.filter,
		SortColumn: col,
		Ascending:  !app.desc,
	}, nil
}

type sessionAction func(ctx context.Context, cmd *cli.Command, session *application.Session) error

// prepare applies the output mode, loads the config and sets up logging.
func (app *CLI) prepare(cmd *cli.Command, mode logging.Mode) (*config.Config, zerolog.Logger, io.Closer, error) {
	app.output.SetMode(app.verbose, app.json, app.plain)

	cfg, err := app.loadConfig(cmd)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	logger, closer, err := logging.Setup(logging.Options{
		Mode:    mode,
		Level:   cfg.Log.Level,
		Verbose: app.verbose,
		File:    cfg.Log.File,
		Writer:  app.output.Err,
	})
	if err != nil {
		return nil, zerolog.Nop(), nil, domain.NewExitError(ExitConfigError, "failed to set up logging: "+err.Error(), err)
	}

	return cfg, logger, closer, nil
}

// withSession wraps action with config loading, logging and a running
// session that is closed when action returns.
func (app *CLI) withSession(mode logging.Mode, action sessionAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, logger, closer, err := app.prepare(cmd, mode)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		store := app.newStore(cfg.Store.PinsFile, logger)
		session := application.NewSession(cfg, app.newRun(cfg.Tool.Path, logger), store, logger)

		if err := session.PinLoadError(); err != nil {
			logger.Warn().Err(err).Msg("pin file ignored")

			if mode == logging.ModeCLI {
				app.output.Warningf("%s", domain.GetErrorInfo(err, "", app.verbose).Message)
			}
		}

		session.Start()
		defer session.Close()

		return exitFor(action(ctx, cmd, session), app.verbose)
	}
}

// exitFor maps core errors to exit codes.
func exitFor(err error, verbose bool) error {
	if err == nil {
		return nil
	}

	var exitErr *domain.ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, application.ErrSessionClosed) {
		return domain.NewExitError(ExitInterruptError, "interrupted", err)
	}

	message := strings.TrimPrefix(domain.FormatErrorMessage(err, "", verbose), "✗ ")

	kind, ok := domain.KindOf(err)
	if !ok {
		return domain.NewExitError(ExitGeneralError, message, err)
	}

	switch kind {
	case domain.KindTimeout:
		return domain.NewExitError(ExitTimeoutError, message, err)
	case domain.KindLaunchFailure:
		return domain.NewExitError(ExitDependencyError, message, err)
	case domain.KindCanceled:
		return domain.NewExitError(ExitInterruptError, message, err)
	case domain.KindNoHeader, domain.KindMalformedRow:
		return domain.NewExitError(ExitOutputError, message, err)
	case domain.KindLoadFailure, domain.KindPersistFailure:
		return domain.NewExitError(ExitSystemError, message, err)
	default:
		return domain.NewExitError(ExitGeneralError, message, err)
	}
}
