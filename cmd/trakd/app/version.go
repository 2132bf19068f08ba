// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		commit := version.Commit
		if commit == "" {
			commit = "unknown"
		}
		fmt.Printf("trakd %s (commit %s, %s)\n",
			color.CyanString(version.Version), commit, runtime.Version())
	},
}

func init() {
	TrakdCmd.AddCommand(versionCmd)
}
