// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package app holds the trakd command tree. Every subcommand lives in its
// own file and attaches itself to TrakdCmd in its init; handlers translate
// user commands into broker requests, tracker launches or local file
// operations.
package app

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/broker"
	"github.com/7ched7/trakd/pkg/config"
	"github.com/7ched7/trakd/pkg/profile"
	"github.com/7ched7/trakd/pkg/util/log"
)

var (
	// TrakdCmd is the root command.
	TrakdCmd = &cobra.Command{
		Use:   "trakd [command]",
		Short: "Track how long your processes run.",
		Long: `
trakd records the run time of designated processes. A long-lived server owns
the live set of tracked processes; one watcher per target observes it and
writes per-day interval logs, which the report command aggregates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupConsoleLogger()
		},
	}

	verbose bool
)

func init() {
	TrakdCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug details")
}

// Run executes the CLI and returns the process exit code: 0 on success, 1
// on a handled error, 2 on a usage error surfaced by the parser.
func Run() int {
	defer log.Flush()
	if err := TrakdCmd.Execute(); err != nil {
		var handled *commandError
		if errors.As(err, &handled) {
			return 1
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}
	return 0
}

// commandError marks a failure that was already reported through the
// logger. Run maps it to exit code 1; everything else Execute returns is a
// usage error.
type commandError struct {
	err error
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

// fail reports err through the logger and marks it handled.
func fail(err error) error {
	log.Error(err)
	return &commandError{err: err}
}

// failf is fail for formatted messages.
func failf(format string, args ...interface{}) error {
	return &commandError{err: log.Errorf(format, args...)}
}

// setupConsoleLogger routes diagnostics to the console only; one-shot
// commands stay quiet below warn unless -v raises the level.
func setupConsoleLogger() error {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return config.SetupLogger(level, "")
}

// setupDaemonLogger adds the rolling log file used by the broker and the
// trackers.
func setupDaemonLogger() error {
	if err := config.EnsureHome(); err != nil {
		return err
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	return config.SetupLogger(level, config.LogFilePath())
}

// currentProfile returns the selected profile, seeding the store on first
// use.
func currentProfile() (profile.Profile, error) {
	if err := config.EnsureHome(); err != nil {
		return profile.Profile{}, err
	}
	return profile.DefaultStore().EnsureDefault()
}

// dialServer opens one session to the configured broker endpoint.
func dialServer() (*broker.Client, profile.Profile, error) {
	p, err := currentProfile()
	if err != nil {
		return nil, profile.Profile{}, err
	}
	c, err := broker.Dial(p.IP, p.Port)
	if err != nil {
		return nil, p, errors.Wrapf(err, "server at %s:%d not reachable", p.IP, p.Port)
	}
	return c, p, nil
}

// newTable returns a stdout table in the house style.
func newTable(headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}
