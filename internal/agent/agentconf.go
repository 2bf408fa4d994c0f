// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package agent

import (
	"sync"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// AgentConf handles the command line flags shared by every agent
// subcommand, and yields the resulting Config.
type AgentConf interface {
	// AddFlags injects the common agent flags into f.
	AddFlags(f *gnuflag.FlagSet)

	// CheckArgs reports whether the given args are valid for this
	// agent and fixes the configuration from the parsed flags.
	CheckArgs(args []string) error

	// DataDir returns the agent's data directory.
	DataDir() string

	// CurrentConfig returns the agent's configuration. CheckArgs must
	// have succeeded first.
	CurrentConfig() Config
}

// NewAgentConf returns a new AgentConf with an optional default data
// directory.
func NewAgentConf(dataDir string) AgentConf {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	return &agentConf{dataDir: dataDir, logDir: DefaultLogDir}
}

type agentConf struct {
	dataDir string
	logDir  string

	mu     sync.Mutex
	config Config
}

// AddFlags is part of the AgentConf interface.
func (c *agentConf) AddFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.dataDir, "data-dir", c.dataDir, "directory for the agent's state and inputs")
	f.StringVar(&c.logDir, "log-dir", c.logDir, "directory to write the agent's log to")
}

// CheckArgs is part of the AgentConf interface.
func (c *agentConf) CheckArgs(args []string) error {
	config, err := NewConfig(c.dataDir, c.logDir)
	if err != nil {
		return errors.Trace(err)
	}
	c.mu.Lock()
	c.config = config
	c.mu.Unlock()
	return cmd.CheckEmpty(args)
}

// DataDir is part of the AgentConf interface.
func (c *agentConf) DataDir() string {
	return c.dataDir
}

// CurrentConfig is part of the AgentConf interface.
func (c *agentConf) CurrentConfig() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}
