// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package winget builds argument vectors for the winget command-line tool
// and parses its column-aligned text output into package records.
package winget

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wingetpro/wingetpro/internal/domain"
)

// DefaultTool is the executable looked up on PATH when no path is configured.
const DefaultTool = "winget"

// noApplicationsFound is APPINSTALLER_CLI_ERROR_NO_APPLICATIONS_FOUND.
const noApplicationsFound uint32 = 0x8A150014

// ErrNotToolAction indicates an operation that is handled locally and has no
// tool invocation.
var ErrNotToolAction = errors.New("operation does not invoke the tool")

// IsNoResultsExit reports whether a query exit code means "nothing matched".
func IsNoResultsExit(code int) bool {
	return uint32(code) == noApplicationsFound //nolint:gosec
}

// QueryOptions tune the read-only commands.
type QueryOptions struct {
	Source                 string
	IncludeUnknown         bool
	IncludePinned          bool
	AcceptSourceAgreements bool
	DisableInteractivity   bool
}

// ActionOptions tune install, upgrade and uninstall.
type ActionOptions struct {
	Silent                bool
	AcceptAgreements      bool
	UninstallWingetSource bool
	DisableInteractivity  bool
}

func (o QueryOptions) common() []string {
	var args []string

	if o.Source != "" {
		args = append(args, "--source", o.Source)
	}

	if o.AcceptSourceAgreements {
		args = append(args, "--accept-source-agreements")
	}

	if o.DisableInteractivity {
		args = append(args, "--disable-interactivity")
	}

	return args
}

// SearchArgs builds "winget search <query>".
func SearchArgs(query string, opts QueryOptions) []string {
	return append([]string{"search", query}, opts.common()...)
}

// ListArgs builds "winget list".
func ListArgs(opts QueryOptions) []string {
	return append([]string{"list"}, opts.common()...)
}

// UpgradesArgs builds the upgrade listing, "winget upgrade" without targets.
func UpgradesArgs(opts QueryOptions) []string {
	args := []string{"upgrade"}

	if opts.IncludeUnknown {
		args = append(args, "--include-unknown")
	}

	if opts.IncludePinned {
		args = append(args, "--include-pinned")
	}

	return append(args, opts.common()...)
}

// ShowArgs builds "winget show" for the details view.
func ShowArgs(id string, opts QueryOptions) []string {
	return append([]string{"show", "--id", id, "--exact"}, opts.common()...)
}

// PinListArgs builds "winget pin list".
func PinListArgs(opts QueryOptions) []string {
	return append([]string{"pin", "list"}, opts.common()...)
}

// VersionArgs builds the availability check.
func VersionArgs() []string {
	return []string{"--version"}
}

// QueryArgs returns the command backing a catalog tab.
func QueryArgs(tab domain.TabKind, query string, opts QueryOptions) []string {
	switch tab {
	case domain.TabInstalled:
		return ListArgs(opts)
	case domain.TabUpgrades:
		return UpgradesArgs(opts)
	default:
		return SearchArgs(query, opts)
	}
}

// ActionArgs builds the command for one target of a package-changing action.
func ActionArgs(kind domain.OperationKind, id string, opts ActionOptions) ([]string, error) {
	var args []string

	switch kind {
	case domain.OpInstall, domain.OpUpgrade:
		args = []string{kind.String(), "--id", id, "--exact", uiFlag(opts.Silent)}
		if opts.AcceptAgreements {
			args = append(args, "--accept-package-agreements", "--accept-source-agreements")
		}
	case domain.OpUninstall:
		args = []string{"uninstall", "--id", id, "--exact"}
		if opts.UninstallWingetSource {
			args = append(args, "--source", "winget")
		}

		args = append(args, uiFlag(opts.Silent))
		if opts.AcceptAgreements {
			args = append(args, "--accept-source-agreements")
		}

		args = append(args, "--force")
	case domain.OpPin, domain.OpUnpin:
		return nil, fmt.Errorf("%w: %s", ErrNotToolAction, kind)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotToolAction, kind)
	}

	if opts.DisableInteractivity {
		args = append(args, "--disable-interactivity")
	}

	return args, nil
}

func uiFlag(silent bool) string {
	if silent {
		return "--silent"
	}

	return "--interactive"
}

// isStoreStyleID reports ids of locally discovered entries, which have no
// manifest page (ARP\..., MSIX\...).
func isStoreStyleID(id string) bool {
	lower := strings.ToLower(id)

	return strings.Contains(id, `\`) || strings.HasPrefix(lower, `arp\`) || strings.HasPrefix(lower, `msix\`)
}

// PackagePageURL returns a web page describing the package. Manifest ids
// link to winstall.app; local entries fall back to a winget.run search.
func PackagePageURL(id, name string) string {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)

	if id != "" && !isStoreStyleID(id) {
		return "https://winstall.app/apps/" + url.PathEscape(id)
	}

	query := name
	if query == "" {
		query = id
	}

	return "https://winget.run/search?query=" + url.QueryEscape(query)
}
