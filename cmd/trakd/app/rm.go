// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/wire"
)

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Stop tracking the given id",
	Args:  cobra.ExactArgs(1),
	RunE:  removeTracked,
}

func init() {
	TrakdCmd.AddCommand(rmCmd)
}

func removeTracked(cmd *cobra.Command, args []string) error {
	c, _, err := dialServer()
	if err != nil {
		return fail(err)
	}
	defer c.Close()

	token, err := c.Remove(args[0])
	if err != nil {
		return fail(err)
	}
	if token != wire.TokenOK {
		return failf("no tracked process with id %q", args[0])
	}
	color.Green("stopped tracking %s", args[0])
	return nil
}
