// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package daemonize relaunches the current binary as a detached background
// process. The broker's `server start` and the default tracker launch both
// go through Spawn; the child finds its configuration on disk, so nothing
// but the argument vector crosses the boundary.
package daemonize

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Spawn re-execs the current binary with args, detached from this process
// and from the controlling terminal, with its stdio bound to the null
// device. It returns the child's pid; the child is released, not waited on.
func Spawn(args ...string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, errors.Wrap(err, "resolving executable")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, errors.Wrap(err, "opening null device")
	}
	defer devNull.Close()

	cmd := exec.Command(exe, args...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return 0, errors.Wrap(err, "launching background process")
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, errors.Wrap(err, "releasing background process")
	}
	return pid, nil
}
