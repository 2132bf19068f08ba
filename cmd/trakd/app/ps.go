// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	psAll      bool
	psDetailed bool
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List tracked processes",
	Args:  cobra.NoArgs,
	RunE:  listTracked,
}

func init() {
	psCmd.Flags().BoolVarP(&psAll, "all", "a", false, "include stopped entries")
	psCmd.Flags().BoolVarP(&psDetailed, "detailed", "d", false, "include pid and session columns")
	TrakdCmd.AddCommand(psCmd)
}

func listTracked(cmd *cobra.Command, args []string) error {
	c, _, err := dialServer()
	if err != nil {
		return fail(err)
	}
	defer c.Close()

	entries, err := c.Ps(psAll, psDetailed)
	if err != nil {
		return fail(err)
	}
	if len(entries) == 0 {
		fmt.Println("no tracked processes")
		return nil
	}

	headers := []string{"ID", "PROCESS", "STARTED", "STATUS"}
	if psDetailed {
		headers = append(headers, "PID", "CONN")
	}
	table := newTable(headers...)
	for _, e := range entries {
		row := []string{e.ID, e.ProcessName, e.StartTime, string(e.Status)}
		if psDetailed {
			pid := "-"
			if e.Pid != nil {
				pid = strconv.Itoa(int(*e.Pid))
			}
			row = append(row, pid, e.Conn)
		}
		table.Append(row)
	}
	table.Render()
	return nil
}
