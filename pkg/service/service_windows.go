// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

//go:build windows

package service

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// Install registers the broker as an auto-start Windows service running
// `server run`.
func Install() error {
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "resolving executable")
	}

	m, err := mgr.Connect()
	if err != nil {
		return errors.Wrap(err, "connecting to the service manager (elevation required)")
	}
	defer m.Disconnect()

	if s, err := m.OpenService(Name); err == nil {
		s.Close()
		return errors.Errorf("service %s is already installed", Name)
	}

	s, err := m.CreateService(Name, exe, mgr.Config{
		DisplayName: "Trakd tracking server",
		Description: "Tracks how long designated processes run.",
		StartType:   mgr.StartAutomatic,
	}, "server", "run")
	if err != nil {
		return errors.Wrap(err, "creating service")
	}
	return s.Close()
}

// Remove stops the service if it runs and deletes its registration.
func Remove() error {
	m, err := mgr.Connect()
	if err != nil {
		return errors.Wrap(err, "connecting to the service manager (elevation required)")
	}
	defer m.Disconnect()

	s, err := m.OpenService(Name)
	if err != nil {
		return errors.Errorf("service %s is not installed", Name)
	}
	defer s.Close()

	// Best effort; deleting a running service only marks it for deletion.
	_, _ = s.Control(svc.Stop)

	return errors.Wrap(s.Delete(), "deleting service")
}

// Enable sets the service to start automatically at boot.
func Enable() error {
	return setStartType(mgr.StartAutomatic)
}

// Disable prevents the service from starting at boot.
func Disable() error {
	return setStartType(mgr.StartDisabled)
}

func setStartType(startType uint32) error {
	m, err := mgr.Connect()
	if err != nil {
		return errors.Wrap(err, "connecting to the service manager (elevation required)")
	}
	defer m.Disconnect()

	s, err := m.OpenService(Name)
	if err != nil {
		return errors.Errorf("service %s is not installed", Name)
	}
	defer s.Close()

	cfg, err := s.Config()
	if err != nil {
		return errors.Wrap(err, "reading service configuration")
	}
	cfg.StartType = startType
	return errors.Wrap(s.UpdateConfig(cfg), "updating service configuration")
}
