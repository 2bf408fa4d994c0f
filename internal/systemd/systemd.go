// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package systemd controls the milter's systemd unit over D-Bus.
package systemd

import (
	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/util"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("opendkim.systemd")

// DBusAPI exposes the parts of the systemd manager API used here.
type DBusAPI interface {
	Close()
	ListUnits() ([]dbus.UnitStatus, error)
	RestartUnit(string, string, chan<- string) (int, error)
	ReloadOrRestartUnit(string, string, chan<- string) (int, error)
}

// DBusAPIFactory opens a connection to the systemd manager.
type DBusAPIFactory = func() (DBusAPI, error)

// NewDBusAPI connects to the message bus of the running init system.
var NewDBusAPI = func() (DBusAPI, error) {
	return dbus.New()
}

var newChan = func() chan string {
	return make(chan string)
}

// IsRunning reports whether systemd is the local init system.
func IsRunning() bool {
	return util.IsRunningSystemd()
}

// Service provides visibility into and control over a systemd service.
type Service struct {
	name     string
	unitName string
	newDBus  DBusAPIFactory
}

// NewService returns a Service controlling the named systemd unit.
func NewService(name string, newDBus DBusAPIFactory) *Service {
	return &Service{
		name:     name,
		unitName: name + ".service",
		newDBus:  newDBus,
	}
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.name
}

func (s *Service) newConn() (DBusAPI, error) {
	conn, err := s.newDBus()
	if err != nil {
		logger.Errorf("failed to connect to dbus for service %q: %v", s.name, err)
	}
	return conn, err
}

// Running reports whether the unit is loaded and active.
func (s *Service) Running() (bool, error) {
	conn, err := s.newConn()
	if err != nil {
		return false, errors.Trace(err)
	}
	defer conn.Close()

	units, err := conn.ListUnits()
	if err != nil {
		return false, errors.Annotatef(err, "querying systemd units for %q", s.name)
	}
	for _, unit := range units {
		if unit.Name == s.unitName {
			running := unit.LoadState == "loaded" && unit.ActiveState == "active"
			return running, nil
		}
	}
	return false, nil
}

// Restart stops and starts the unit. A unit that was not running is
// started.
func (s *Service) Restart() error {
	conn, err := s.newConn()
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	statusCh := newChan()
	if _, err := conn.RestartUnit(s.unitName, "fail", statusCh); err != nil {
		return errors.Annotatef(err, "dbus restart request for %q", s.unitName)
	}
	if err := s.wait("restart", statusCh); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("service %q restarted", s.name)
	return nil
}

// ReloadOrRestart asks the unit to reload its configuration, restarting
// it if it does not support reloading or is not running.
func (s *Service) ReloadOrRestart() error {
	conn, err := s.newConn()
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	statusCh := newChan()
	if _, err := conn.ReloadOrRestartUnit(s.unitName, "fail", statusCh); err != nil {
		return errors.Annotatef(err, "dbus reload-or-restart request for %q", s.unitName)
	}
	if err := s.wait("reload-or-restart", statusCh); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("service %q reloaded", s.name)
	return nil
}

// wait blocks until systemd reports the queued job finished. Anything
// but "done" means the job was cancelled, timed out or failed.
func (s *Service) wait(op string, statusCh chan string) error {
	status := <-statusCh
	if status != "done" {
		return errors.Errorf("failed to %s service %q (job status %q)", op, s.unitName, status)
	}
	return nil
}
