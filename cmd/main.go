// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package main provides the CLI entry point for WingetPro.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/wingetpro/wingetpro/internal/cli"
	"github.com/wingetpro/wingetpro/internal/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Acquire process lock to prevent concurrent wingetpro instances
	lockPath := filepath.Join(os.TempDir(), "wingetpro.lock")
	lock := flock.New(lockPath)

	locked, err := lock.TryLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to acquire process lock: %v\n", err)

		return cli.ExitSystemError
	}

	if !locked {
		fmt.Fprintf(os.Stderr, "Another wingetpro instance is already running\n")

		return cli.ExitGeneralError
	}

	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to release process lock: %v\n", unlockErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewCLI().Run(ctx, os.Args); err != nil {
		exitErr := &domain.ExitError{}
		if errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "%s\n", exitErr.Message)

			return exitErr.Code
		}

		if ctx.Err() != nil {
			return cli.ExitInterruptError
		}

		// urfave/cli reports flag parse failures as plain errors
		fmt.Fprintf(os.Stderr, "%v\n", err)

		return cli.ExitUsageError
	}

	return cli.ExitSuccess
}
