// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

//go:build !linux && !windows

package service

import "github.com/pkg/errors"

var errUnsupported = errors.New("service integration is not supported on this platform")

// Install is unsupported on this platform.
func Install() error { return errUnsupported }

// Remove is unsupported on this platform.
func Remove() error { return errUnsupported }

// Enable is unsupported on this platform.
func Enable() error { return errUnsupported }

// Disable is unsupported on this platform.
func Disable() error { return errUnsupported }
