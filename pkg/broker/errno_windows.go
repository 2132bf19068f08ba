// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

//go:build windows

package broker

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

func isAddrInUse(err error) bool {
	return errors.Is(err, windows.WSAEADDRINUSE)
}

func isAddrDenied(err error) bool {
	return errors.Is(err, windows.WSAEACCES) || errors.Is(err, windows.WSAEADDRNOTAVAIL)
}
