//go:build !cgo_sqlite
// +build !cgo_sqlite

package tracker

// Pure Go build: no C toolchain required, suitable for cross-compiled
// deployments.
//
// Build command:
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
