// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/canonical/opendkim-operator/core/hook"
	"github.com/canonical/opendkim-operator/internal/agent"
	"github.com/canonical/opendkim-operator/internal/sockets"
	"github.com/canonical/opendkim-operator/internal/unitdata"
	"github.com/canonical/opendkim-operator/internal/worker/listener"
)

var triggerDoc = `
trigger queues a lifecycle event on a running operator agent. The
command blocks until the agent's hook queue has accepted the event, so
a zero exit status means the event is in line for the next reconcile
pass.

Examples:

    opendkim-operator trigger config-changed
    opendkim-operator trigger relation-changed --relation milter:0 --app postfix
    opendkim-operator trigger secret-changed --secret secret:9m4e2mr0ui3e8a215n4g
`

// newTriggerCommand returns a command that queues a lifecycle event on
// a running agent.
func newTriggerCommand() cmd.Command {
	return &triggerCommand{}
}

type triggerCommand struct {
	cmd.CommandBase

	dataDir    string
	kind       string
	relationId string
	remoteApp  string
	secretURI  string
}

// Info is part of the cmd.Command interface.
func (c *triggerCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "trigger",
		Args:    "<kind>",
		Purpose: "queue a lifecycle event on the running agent",
		Doc:     triggerDoc,
	}
}

// SetFlags is part of the cmd.Command interface.
func (c *triggerCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.dataDir, "data-dir", agent.DefaultDataDir, "directory holding the agent's state and inputs")
	f.StringVar(&c.relationId, "relation", "", "relation id for relation events")
	f.StringVar(&c.remoteApp, "app", "", "remote application name for relation events")
	f.StringVar(&c.secretURI, "secret", "", "secret URI for secret-changed events")
}

// Init is part of the cmd.Command interface.
func (c *triggerCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no event kind specified")
	}
	c.kind = args[0]
	if !hook.Kinds().Contains(c.kind) {
		return errors.NotValidf("event kind %q", c.kind)
	}
	return cmd.CheckEmpty(args[1:])
}

// Run is part of the cmd.Command interface.
func (c *triggerCommand) Run(ctx *cmd.Context) error {
	paths := unitdata.NewPaths(c.dataDir)
	client, err := sockets.Dial(sockets.Socket{
		Network: "unix",
		Address: paths.ControlSocketPath(),
	})
	if err != nil {
		return errors.Annotate(err, "cannot connect to the agent control socket")
	}
	defer func() { _ = client.Close() }()

	args := listener.TriggerHookArgs{
		Kind:       c.kind,
		RelationId: c.relationId,
		RemoteApp:  c.remoteApp,
		SecretURI:  c.secretURI,
	}
	var result listener.TriggerHookResult
	if err := client.Call(listener.TriggerHookEndpoint, args, &result); err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("queued %s", c.kind)
	return nil
}
