// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package service registers the broker with the platform service manager:
// a systemd unit on Linux, a Windows service on Windows. Other platforms
// report the operations as unsupported. Installation needs the privileges
// the platform requires for unit/service management (effectively root or
// an elevated console).
package service

// Name is the name the broker is registered under with the platform
// service manager.
const Name = "trakd"
