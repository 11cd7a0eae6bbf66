// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"strings"

	version "github.com/hashicorp/go-version"
)

// CompareVersions orders two version strings as reported by the tool.
// Dotted-numeric versions compare numerically. Strings that do not parse
// compare lexicographically among themselves and sort after every parsable
// version, so the ordering stays total. Empty strings sort first.
func CompareVersions(a, b string) int {
	a, b = normalizeVersion(a), normalizeVersion(b)
	if a == b {
		return 0
	}

	if a == "" {
		return -1
	}

	if b == "" {
		return 1
	}

	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)

	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// normalizeVersion drops the "< " and "> " markers winget prints for
// versions it cannot determine exactly.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "<>= ")

	return strings.TrimSpace(v)
}
