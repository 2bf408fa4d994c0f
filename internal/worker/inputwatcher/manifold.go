// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package inputwatcher

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/dependency"

	"github.com/canonical/opendkim-operator/internal/agent"
	"github.com/canonical/opendkim-operator/internal/unitdata"
)

// ManifoldConfig defines a Manifold's dependencies.
type ManifoldConfig struct {
	AgentName string
	HubName   string
	ClockName string

	NewWatcher       func() (NotifyWatcher, error)
	CoalesceInterval time.Duration
	Logger           Logger
}

// Validate is called by start to check for bad configuration.
func (config ManifoldConfig) Validate() error {
	if config.AgentName == "" {
		return errors.NotValidf("empty AgentName")
	}
	if config.HubName == "" {
		return errors.NotValidf("empty HubName")
	}
	if config.ClockName == "" {
		return errors.NotValidf("empty ClockName")
	}
	if config.NewWatcher == nil {
		return errors.NotValidf("nil NewWatcher")
	}
	if config.CoalesceInterval <= 0 {
		return errors.NotValidf("non-positive CoalesceInterval")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Manifold packages a Worker for use in a dependency.Engine.
func Manifold(config ManifoldConfig) dependency.Manifold {
	return dependency.Manifold{
		Inputs: []string{
			config.AgentName,
			config.HubName,
			config.ClockName,
		},
		Start: config.start,
	}
}

// start is a StartFunc for a Worker manifold.
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
	var clk clock.Clock
	if err := getter.Get(config.ClockName, &clk); err != nil {
		return nil, errors.Trace(err)
	}
	w, err := NewWorker(Config{
		Paths:            unitdata.NewPaths(thisAgent.CurrentConfig().DataDir()),
		Hub:              hub,
		Clock:            clk,
		Logger:           config.Logger,
		NewWatcher:       config.NewWatcher,
		CoalesceInterval: config.CoalesceInterval,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}
