// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

//go:build linux

package service

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/pkg/errors"
)

const unitName = Name + ".service"
const unitPath = "/etc/systemd/system/" + unitName

const unitTemplate = `[Unit]
Description=trakd process-runtime tracking server
After=network.target

[Service]
Type=simple
ExecStart=%s server run
Restart=on-failure
User=%s

[Install]
WantedBy=multi-user.target
`

const dbusTimeout = 15 * time.Second

// Install writes the systemd unit for the current binary, reloads the
// daemon and enables the unit.
func Install() error {
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "resolving executable")
	}
	unit := fmt.Sprintf(unitTemplate, exe, serviceUser())
	if err := os.WriteFile(unitPath, []byte(unit), 0o644); err != nil {
		return errors.Wrap(err, "writing unit file (root required)")
	}
	return withSystemd(func(ctx context.Context, conn *dbus.Conn) error {
		if err := conn.ReloadContext(ctx); err != nil {
			return errors.Wrap(err, "systemd daemon-reload")
		}
		if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unitName}, false, true); err != nil {
			return errors.Wrap(err, "enabling unit")
		}
		return nil
	})
}

// Remove stops and disables the unit, then deletes its file.
func Remove() error {
	err := withSystemd(func(ctx context.Context, conn *dbus.Conn) error {
		done := make(chan string, 1)
		if _, err := conn.StopUnitContext(ctx, unitName, "replace", done); err == nil {
			select {
			case <-done:
			case <-ctx.Done():
			}
		}
		if _, err := conn.DisableUnitFilesContext(ctx, []string{unitName}, false); err != nil {
			return errors.Wrap(err, "disabling unit")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing unit file (root required)")
	}
	return withSystemd(func(ctx context.Context, conn *dbus.Conn) error {
		return errors.Wrap(conn.ReloadContext(ctx), "systemd daemon-reload")
	})
}

// Enable marks the unit to start at boot.
func Enable() error {
	return withSystemd(func(ctx context.Context, conn *dbus.Conn) error {
		_, _, err := conn.EnableUnitFilesContext(ctx, []string{unitName}, false, true)
		return errors.Wrap(err, "enabling unit")
	})
}

// Disable unmarks the unit from starting at boot.
func Disable() error {
	return withSystemd(func(ctx context.Context, conn *dbus.Conn) error {
		_, err := conn.DisableUnitFilesContext(ctx, []string{unitName}, false)
		return errors.Wrap(err, "disabling unit")
	})
}

// serviceUser is the account the unit runs as: the invoking sudo user when
// the installer runs under sudo, the current user otherwise.
func serviceUser() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		return sudoUser
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "root"
}

func withSystemd(fn func(context.Context, *dbus.Conn) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbusTimeout)
	defer cancel()
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return errors.Wrap(err, "connecting to systemd")
	}
	defer conn.Close()
	return fn(ctx, conn)
}
