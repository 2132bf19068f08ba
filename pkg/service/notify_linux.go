// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

//go:build linux

package service

import "github.com/coreos/go-systemd/v22/daemon"

// NotifyReady tells systemd the broker is serving. A no-op when the process
// does not run under a systemd unit.
func NotifyReady() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}
