// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/procutil"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List local processes available for tracking",
	Args:  cobra.NoArgs,
	RunE:  listProcesses,
}

func init() {
	TrakdCmd.AddCommand(lsCmd)
}

func listProcesses(cmd *cobra.Command, args []string) error {
	procs, err := procutil.Snapshot()
	if err != nil {
		return fail(err)
	}
	sort.Slice(procs, func(i, j int) bool {
		return procs[i].Pid() < procs[j].Pid()
	})

	table := newTable("USER", "PID", "NAME")
	for _, p := range procs {
		name := p.Name()
		if name == "" {
			name = "-"
		}
		table.Append([]string{p.Username(), strconv.Itoa(int(p.Pid())), name})
	}
	table.Render()
	return nil
}
