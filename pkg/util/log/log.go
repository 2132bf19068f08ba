// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package log wraps seelog behind package-level helpers so call sites never
// hold a logger. Warn/Error variants return the logged message as an error,
// letting callers `return log.Errorf(...)` in one statement.
package log

import (
	"fmt"
	"sync"

	seelog "github.com/cihub/seelog"
)

var (
	mu     sync.RWMutex
	logger seelog.LoggerInterface = seelog.Default
)

// SetupLogger installs the logger every helper delegates to. The logger
// should already carry one extra frame of stack depth so %RelFile points at
// the caller, not this package.
func SetupLogger(l seelog.LoggerInterface) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

func current() seelog.LoggerInterface {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Trace logs at the trace level.
func Trace(v ...interface{}) {
	current().Trace(v...)
}

// Tracef formats and logs at the trace level.
func Tracef(format string, params ...interface{}) {
	current().Tracef(format, params...)
}

// Debug logs at the debug level.
func Debug(v ...interface{}) {
	current().Debug(v...)
}

// Debugf formats and logs at the debug level.
func Debugf(format string, params ...interface{}) {
	current().Debugf(format, params...)
}

// Info logs at the info level.
func Info(v ...interface{}) {
	current().Info(v...)
}

// Infof formats and logs at the info level.
func Infof(format string, params ...interface{}) {
	current().Infof(format, params...)
}

// Warn logs at the warn level and returns the message as an error.
func Warn(v ...interface{}) error {
	msg := fmt.Sprint(v...)
	current().Warn(msg)
	return fmt.Errorf("%s", msg)
}

// Warnf formats, logs at the warn level and returns the message as an error.
func Warnf(format string, params ...interface{}) error {
	msg := fmt.Sprintf(format, params...)
	current().Warn(msg)
	return fmt.Errorf("%s", msg)
}

// Error logs at the error level and returns the message as an error.
func Error(v ...interface{}) error {
	msg := fmt.Sprint(v...)
	current().Error(msg)
	return fmt.Errorf("%s", msg)
}

// Errorf formats, logs at the error level and returns the message as an error.
func Errorf(format string, params ...interface{}) error {
	msg := fmt.Sprintf(format, params...)
	current().Error(msg)
	return fmt.Errorf("%s", msg)
}

// Flush flushes any buffered log output.
func Flush() {
	current().Flush()
}
