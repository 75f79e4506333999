// SPDX-License-Identifier: MIT

// Package version carries build metadata injected with -ldflags.
package version

var (
	// Version is the release tag of the build.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
