// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"time"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/canonical/opendkim-operator/internal/agent"
	"github.com/canonical/opendkim-operator/internal/sockets"
	"github.com/canonical/opendkim-operator/internal/unitdata"
	"github.com/canonical/opendkim-operator/internal/worker/listener"
)

var statusDoc = `
status reports the workload status last recorded by a reconcile pass
of the running agent. By default only the status value is printed; the
yaml and json formats include the message and timestamp.
`

// newStatusCommand returns a command that reports the workload status
// recorded by a running agent.
func newStatusCommand() cmd.Command {
	return &statusCommand{}
}

type statusCommand struct {
	cmd.CommandBase

	dataDir string
	out     cmd.Output
}

// Info is part of the cmd.Command interface.
func (c *statusCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "status",
		Purpose: "report the workload status recorded by the running agent",
		Doc:     statusDoc,
	}
}

// SetFlags is part of the cmd.Command interface.
func (c *statusCommand) SetFlags(f *gnuflag.FlagSet) {
	c.out.AddFlags(f, "smart", cmd.DefaultFormatters)
	f.StringVar(&c.dataDir, "data-dir", agent.DefaultDataDir, "directory holding the agent's state and inputs")
}

// Init is part of the cmd.Command interface.
func (c *statusCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run is part of the cmd.Command interface.
func (c *statusCommand) Run(ctx *cmd.Context) error {
	paths := unitdata.NewPaths(c.dataDir)
	client, err := sockets.Dial(sockets.Socket{
		Network: "unix",
		Address: paths.ControlSocketPath(),
	})
	if err != nil {
		return errors.Annotate(err, "cannot connect to the agent control socket")
	}
	defer func() { _ = client.Close() }()

	var result listener.StatusResult
	if err := client.Call(listener.StatusEndpoint, listener.StatusArgs{}, &result); err != nil {
		return errors.Trace(err)
	}
	if c.out.Name() == "smart" {
		return c.out.Write(ctx, result.Status)
	}
	details := map[string]interface{}{
		"status": result.Status,
	}
	if result.Message != "" {
		details["message"] = result.Message
	}
	if result.Since != nil {
		details["since"] = result.Since.Format(time.RFC3339)
	}
	return c.out.Write(ctx, details)
}
