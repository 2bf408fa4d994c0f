// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookqueue

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/dependency"

	"github.com/canonical/opendkim-operator/core/hook"
)

// ManifoldConfig defines a Manifold's dependencies.
type ManifoldConfig struct {
	HubName   string
	ClockName string

	// Hooks is handed to the worker for delivering queued events; the
	// consumer holds the receiving end.
	Hooks chan<- hook.Info

	UpdateStatusInterval time.Duration
	Logger               Logger
}

// Validate is called by start to check for bad configuration.
func (config ManifoldConfig) Validate() error {
	if config.HubName == "" {
		return errors.NotValidf("empty HubName")
	}
	if config.ClockName == "" {
		return errors.NotValidf("empty ClockName")
	}
	if config.Hooks == nil {
		return errors.NotValidf("nil HooksChannel")
	}
	if config.UpdateStatusInterval <= 0 {
		return errors.NotValidf("non-positive UpdateStatusInterval")
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
	var hub *pubsub.SimpleHub
	if err := getter.Get(config.HubName, &hub); err != nil {
		return nil, errors.Trace(err)
	}
	var clk clock.Clock
	if err := getter.Get(config.ClockName, &clk); err != nil {
		return nil, errors.Trace(err)
	}
	w, err := NewWorker(Config{
		Hub:                  hub,
		Hooks:                config.Hooks,
		Clock:                clk,
		Logger:               config.Logger,
		UpdateStatusInterval: config.UpdateStatusInterval,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}
