// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/broker"
	"github.com/7ched7/trakd/pkg/config"
	"github.com/7ched7/trakd/pkg/daemonize"
	"github.com/7ched7/trakd/pkg/timelog"
	"github.com/7ched7/trakd/pkg/tracker"
)

var (
	addName       string
	addForeground bool
)

var addCmd = &cobra.Command{
	Use:   "add <process>",
	Short: "Start tracking a process, by pid or case-insensitive name",
	Args:  cobra.ExactArgs(1),
	RunE:  addProcess,
}

// trackWorkerCmd is the internal entry the daemonized add re-execs into.
var trackWorkerCmd = &cobra.Command{
	Use:    "track-worker <process>",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runTrackWorker,
}

func init() {
	addCmd.Flags().StringVarP(&addName, "name", "n", "", "tracking id to assign (3-24 chars: letters, digits, - and _)")
	addCmd.Flags().BoolVar(&addForeground, "fg", false, "run the tracker in the foreground")
	trackWorkerCmd.Flags().StringVarP(&addName, "name", "n", "", "tracking id to assign")
	TrakdCmd.AddCommand(addCmd)
	TrakdCmd.AddCommand(trackWorkerCmd)
}

func addProcess(cmd *cobra.Command, args []string) error {
	if addName != "" && !broker.ValidTrackingID(addName) {
		return failf("invalid tracking id %q: want 3-24 letters, digits, - or _", addName)
	}
	if addForeground {
		return runTrackWorker(cmd, args)
	}

	spawnArgs := []string{"track-worker", args[0]}
	if addName != "" {
		spawnArgs = append(spawnArgs, "-n", addName)
	}
	pid, err := daemonize.Spawn(spawnArgs...)
	if err != nil {
		return fail(errors.Wrap(err, "launching tracker"))
	}
	color.Green("tracker launched for %s (pid %d)", args[0], pid)
	return nil
}

func runTrackWorker(cmd *cobra.Command, args []string) error {
	if err := setupDaemonLogger(); err != nil {
		return fail(err)
	}
	p, err := currentProfile()
	if err != nil {
		return fail(err)
	}

	logs := timelog.NewManager(config.UserLogsDir(p.Username))
	tr := tracker.New(tracker.Config{
		Target: args[0],
		ID:     addName,
		IP:     p.IP,
		Port:   p.Port,
	}, logs)
	if err := tr.Run(); err != nil {
		return fail(err)
	}
	return nil
}
