// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"net"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/config"
	"github.com/7ched7/trakd/pkg/profile"
	"github.com/7ched7/trakd/pkg/util/log"
)

var (
	cfgIP    string
	cfgPort  int
	cfgLimit int
)

var configCmd = &cobra.Command{
	Use:   "config [command]",
	Short: "Show or change the selected profile's endpoint",
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change ip, port or tracking limit of the selected profile",
	Args:  cobra.NoArgs,
	RunE:  setConfig,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the selected profile",
	Args:  cobra.NoArgs,
	RunE:  showConfig,
}

func init() {
	configSetCmd.Flags().StringVarP(&cfgIP, "ip", "i", "", "server bind address")
	configSetCmd.Flags().IntVarP(&cfgPort, "port", "p", 0, "server port (1-65535)")
	configSetCmd.Flags().IntVarP(&cfgLimit, "limit", "l", 0, "tracked-process limit (1-24)")
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	TrakdCmd.AddCommand(configCmd)
}

func setConfig(cmd *cobra.Command, args []string) error {
	p, err := currentProfile()
	if err != nil {
		return fail(err)
	}

	if cmd.Flags().Changed("ip") {
		if net.ParseIP(cfgIP) == nil {
			return failf("invalid ip address %q", cfgIP)
		}
		p.IP = cfgIP
	}
	if cmd.Flags().Changed("port") {
		if cfgPort < 1 || cfgPort > 65535 {
			return failf("port %d out of range 1-65535", cfgPort)
		}
		p.Port = cfgPort
	}
	if cmd.Flags().Changed("limit") {
		limit := cfgLimit
		if limit < config.MinLimit {
			log.Warnf("limit %d below minimum, clamping to %d", limit, config.MinLimit)
			limit = config.MinLimit
		} else if limit > config.MaxLimit {
			log.Warnf("limit %d above maximum, clamping to %d", limit, config.MaxLimit)
			limit = config.MaxLimit
		}
		p.Limit = limit
	}

	ok, err := profile.DefaultStore().Update(p.Username, p.IP, p.Port, p.Limit)
	if err != nil {
		return fail(err)
	}
	if !ok {
		return failf("no profile named %q", p.Username)
	}
	color.Green("configuration updated")
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	p, err := currentProfile()
	if err != nil {
		return fail(err)
	}

	table := newTable("USERNAME", "IP", "PORT", "LIMIT")
	table.Append([]string{p.Username, p.IP, strconv.Itoa(p.Port), strconv.Itoa(p.Limit)})
	table.Render()
	return nil
}
