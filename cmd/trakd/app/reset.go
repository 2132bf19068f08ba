// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/broker"
	"github.com/7ched7/trakd/pkg/config"
	"github.com/7ched7/trakd/pkg/profile"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:       "reset {all|config|logs}",
	Short:     "Delete trakd state",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"all", "config", "logs"},
	RunE:      resetState,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
	TrakdCmd.AddCommand(resetCmd)
}

func resetState(cmd *cobra.Command, args []string) error {
	scope := args[0]

	p, err := currentProfile()
	if err != nil {
		return fail(err)
	}
	if broker.Probe(p.IP, p.Port) {
		return failf("server is running on %s:%d; stop it before resetting", p.IP, p.Port)
	}

	if !resetYes && !confirmReset(scope) {
		fmt.Println("reset cancelled")
		return nil
	}

	var errs *multierror.Error
	if scope == "all" || scope == "logs" {
		if err := os.RemoveAll(config.LogsDir()); err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, "removing logs"))
		}
		if err := config.EnsureHome(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if scope == "all" || scope == "config" {
		if err := os.Remove(config.ProfilePath()); err != nil && !os.IsNotExist(err) {
			errs = multierror.Append(errs, errors.Wrap(err, "removing profile file"))
		}
		if _, err := profile.DefaultStore().EnsureDefault(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fail(err)
	}

	color.Green("reset %s done", scope)
	return nil
}

// confirmReset reads one line from stdin and accepts only y/yes.
func confirmReset(scope string) bool {
	fmt.Printf("This deletes your %s state. Continue? [y/N] ", scope)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
