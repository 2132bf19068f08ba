// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/broker"
	"github.com/7ched7/trakd/pkg/wire"
)

var renameCmd = &cobra.Command{
	Use:   "rename <id> <new_id>",
	Short: "Change a tracking id",
	Args:  cobra.ExactArgs(2),
	RunE:  renameTracked,
}

func init() {
	TrakdCmd.AddCommand(renameCmd)
}

func renameTracked(cmd *cobra.Command, args []string) error {
	id, newID := args[0], args[1]
	if !broker.ValidTrackingID(newID) {
		return failf("invalid tracking id %q: want 3-24 letters, digits, - or _", newID)
	}

	c, _, err := dialServer()
	if err != nil {
		return fail(err)
	}
	defer c.Close()

	token, err := c.Rename(id, newID)
	if err != nil {
		return fail(err)
	}
	switch token {
	case wire.TokenOK:
		color.Green("renamed %s to %s", id, newID)
		return nil
	case wire.TokenDuplicate:
		return failf("tracking id %q is already in use", newID)
	default:
		return failf("no tracked process with id %q", id)
	}
}
