// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package listener

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/dependency"

	"github.com/canonical/opendkim-operator/internal/agent"
	"github.com/canonical/opendkim-operator/internal/sockets"
	"github.com/canonical/opendkim-operator/internal/unitdata"
)

// ManifoldConfig defines a Manifold's dependencies.
type ManifoldConfig struct {
	AgentName string
	HubName   string

	Logger Logger
}

// Validate is called by start to check for bad configuration.
func (config ManifoldConfig) Validate() error {
	if config.AgentName == "" {
		return errors.NotValidf("empty AgentName")
	}
	if config.HubName == "" {
		return errors.NotValidf("empty HubName")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Manifold packages a control listener for use in a dependency.Engine.
func Manifold(config ManifoldConfig) dependency.Manifold {
	return dependency.Manifold{
		Inputs: []string{
			config.AgentName,
			config.HubName,
		},
		Start: config.start,
	}
}

// start is a StartFunc for a control listener manifold.
func (config ManifoldConfig) start(ctx context.Context, getter dependency.Getter) (worker.Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	var thisAgent agent.Agent
	if err := getter.Get(config.AgentName, &thisAgent); err != nil {
		return nil, errors.Trace(err)
	}
	var hub *pubsub.SimpleHub
	if err := getter.Get(config.HubName, &hub); err != nil {
		return nil, errors.Trace(err)
	}
	paths := unitdata.NewPaths(thisAgent.CurrentConfig().DataDir())
	w, err := NewWorker(Config{
		Socket: sockets.Socket{
			Network: "unix",
			Address: paths.ControlSocketPath(),
		},
		Hub:    hub,
		Status: unitdata.NewStatusFile(paths.StatusFilePath()),
		Logger: config.Logger,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}
