// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/broker"
	"github.com/7ched7/trakd/pkg/daemonize"
	"github.com/7ched7/trakd/pkg/service"
	"github.com/7ched7/trakd/pkg/util/log"
)

var serverCmd = &cobra.Command{
	Use:   "server [command]",
	Short: "Manage the tracking server",
}

var serverRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the server in the foreground",
	Args:  cobra.NoArgs,
	RunE:  runServer,
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	Args:  cobra.NoArgs,
	RunE:  startServer,
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server and every tracker",
	Args:  cobra.NoArgs,
	RunE:  stopServer,
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server summary",
	Args:  cobra.NoArgs,
	RunE:  serverStatus,
}

var serverInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the server with the system service manager",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.Install(); err != nil {
			return fail(err)
		}
		color.Green("service %s installed", service.Name)
		return nil
	},
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Unregister the server from the system service manager",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.Remove(); err != nil {
			return fail(err)
		}
		color.Green("service %s removed", service.Name)
		return nil
	},
}

var serverEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Start the server service at boot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.Enable(); err != nil {
			return fail(err)
		}
		color.Green("service %s enabled", service.Name)
		return nil
	},
}

var serverDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Do not start the server service at boot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.Disable(); err != nil {
			return fail(err)
		}
		color.Green("service %s disabled", service.Name)
		return nil
	},
}

func init() {
	serverCmd.AddCommand(serverRunCmd)
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	serverCmd.AddCommand(serverStatusCmd)
	serverCmd.AddCommand(serverInstallCmd)
	serverCmd.AddCommand(serverRemoveCmd)
	serverCmd.AddCommand(serverEnableCmd)
	serverCmd.AddCommand(serverDisableCmd)
	TrakdCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := setupDaemonLogger(); err != nil {
		return fail(err)
	}
	p, err := currentProfile()
	if err != nil {
		return fail(err)
	}

	ready := make(chan struct{})
	srv := broker.NewServer(p.IP, p.Port, p.Limit, broker.WithReadyChannel(ready))
	go func() {
		<-ready
		service.NotifyReady()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		log.Infof("received %s, shutting down", sig)
		srv.Shutdown()
	}()

	if err := srv.Run(); err != nil {
		if errors.Is(err, broker.ErrAlreadyRunning) {
			return failf("server is already running on %s:%d", p.IP, p.Port)
		}
		return fail(err)
	}
	return nil
}

func startServer(cmd *cobra.Command, args []string) error {
	p, err := currentProfile()
	if err != nil {
		return fail(err)
	}
	if broker.Probe(p.IP, p.Port) {
		return failf("server is already running on %s:%d", p.IP, p.Port)
	}

	pid, err := daemonize.Spawn("server", "run")
	if err != nil {
		return fail(errors.Wrap(err, "starting server"))
	}
	color.Green("server started (pid %d)", pid)
	return nil
}

func stopServer(cmd *cobra.Command, args []string) error {
	c, _, err := dialServer()
	if err != nil {
		return failf("server is not running")
	}
	defer c.Close()

	// The server sends no response to stop.
	if err := c.Stop(); err != nil {
		return fail(err)
	}
	color.Green("server stopped")
	return nil
}

func serverStatus(cmd *cobra.Command, args []string) error {
	p, err := currentProfile()
	if err != nil {
		return fail(err)
	}
	if !broker.Probe(p.IP, p.Port) {
		fmt.Printf("server is not running on %s:%d\n", p.IP, p.Port)
		return nil
	}

	c, err := broker.Dial(p.IP, p.Port)
	if err != nil {
		return fail(err)
	}
	defer c.Close()

	status, err := c.Status()
	if err != nil {
		return fail(err)
	}

	table := newTable("ADDRESS", "TRACKED", "RUNNING", "STOPPED")
	table.Append([]string{
		status.IP + ":" + strconv.Itoa(status.Port),
		strconv.Itoa(status.Tracked),
		strconv.Itoa(status.Running),
		strconv.Itoa(status.Stopped),
	})
	table.Render()
	return nil
}
