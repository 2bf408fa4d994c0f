// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package agent holds the operator agent's identity on disk: where its
// inputs and durable state live, where it logs, and the wiring that
// assembles the worker engine the agent command runs.
package agent

import (
	"path/filepath"

	"github.com/juju/errors"
)

// These are the locations used when the agent command is given no
// overrides.
const (
	DefaultDataDir = "/var/lib/opendkim-operator"
	DefaultLogDir  = "/var/log/opendkim-operator"
)

// Config exposes the agent's file locations to the workers. The agent
// never rewrites its own configuration, so a Config is immutable once
// built.
type Config interface {
	// DataDir returns the directory holding the agent's inputs,
	// published settings and durable state.
	DataDir() string

	// LogDir returns the directory the agent log is written to.
	LogDir() string
}

// Agent exposes the running agent's configuration to other components.
type Agent interface {
	// CurrentConfig returns the agent's configuration.
	CurrentConfig() Config
}

// LogFilename returns the agent's log file path.
func LogFilename(c Config) string {
	return filepath.Join(c.LogDir(), "opendkim-operator.log")
}

type conf struct {
	dataDir string
	logDir  string
}

// NewConfig returns a Config rooted at the given directories.
func NewConfig(dataDir, logDir string) (Config, error) {
	if dataDir == "" {
		return nil, errors.NotValidf("empty data directory")
	}
	if logDir == "" {
		return nil, errors.NotValidf("empty log directory")
	}
	return &conf{dataDir: dataDir, logDir: logDir}, nil
}

// DataDir is part of the Config interface.
func (c *conf) DataDir() string {
	return c.dataDir
}

// LogDir is part of the Config interface.
func (c *conf) LogDir() string {
	return c.logDir
}
