// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package config owns trakd's on-disk layout and endpoint defaults.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

// Endpoint and tracking defaults, used to seed the first profile.
const (
	DefaultIP    = "127.0.0.1"
	DefaultPort  = 10101
	DefaultLimit = 8

	// LegacyPort is accepted in stored profiles but never written as a default.
	LegacyPort = 8000
)

// MinLimit and MaxLimit bound the tracked-process limit; values outside the
// range are clamped on read.
const (
	MinLimit = 1
	MaxLimit = 24
)

// homeOverride lets tests redirect the state directory.
var homeOverride string

// Home returns the trakd state directory: %ProgramData%\Trakd on Windows,
// ~/.trakd elsewhere. The directory is not created here; see EnsureHome.
func Home() string {
	if homeOverride != "" {
		return homeOverride
	}
	if runtime.GOOS == "windows" {
		programData := os.Getenv("ProgramData")
		if programData == "" {
			programData = `C:\ProgramData`
		}
		return filepath.Join(programData, "Trakd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".trakd")
}

// SetHome overrides the state directory. Pass "" to restore the default.
// Intended for tests.
func SetHome(dir string) {
	homeOverride = dir
}

// EnsureHome creates the state directory tree (home and logs root) if needed.
func EnsureHome() error {
	if err := os.MkdirAll(LogsDir(), 0o755); err != nil {
		return errors.Wrap(err, "creating trakd home")
	}
	return nil
}

// LogsDir returns the root of the per-user interval-log directories.
func LogsDir() string {
	return filepath.Join(Home(), "logs")
}

// UserLogsDir returns the interval-log directory for one profile.
func UserLogsDir(username string) string {
	return filepath.Join(LogsDir(), username)
}

// ProfilePath returns the profile store file.
func ProfilePath() string {
	return filepath.Join(Home(), "profile")
}

// LogFilePath returns the diagnostic log file written by long-lived
// processes (broker, trackers).
func LogFilePath() string {
	return filepath.Join(Home(), "trakd.log")
}
