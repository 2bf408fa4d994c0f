// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package simplesignalhandler

import (
	"context"
	"os"

	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/dependency"
)

// ManifoldConfig defines a Manifold's dependencies.
type ManifoldConfig struct {
	// Signals receives the process's signals. The agent command owns
	// the signal.Notify registration.
	Signals <-chan os.Signal

	// DefaultHandlerError is reported for any signal without a
	// specific mapping in HandlerErrors.
	DefaultHandlerError error

	HandlerErrors map[os.Signal]error
	Logger        Logger
}

// Validate is called by start to check for bad configuration.
func (config ManifoldConfig) Validate() error {
	if config.Signals == nil {
		return errors.NotValidf("nil Signals")
	}
	if config.DefaultHandlerError == nil {
		return errors.NotValidf("nil DefaultHandlerError")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Manifold packages a SignalWatcher for use in a dependency.Engine.
func Manifold(config ManifoldConfig) dependency.Manifold {
	return dependency.Manifold{
		Start: config.start,
	}
}

// start is a StartFunc for a SignalWatcher manifold.
func (config ManifoldConfig) start(ctx context.Context, getter dependency.Getter) (worker.Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w, err := NewSignalWatcher(
		config.Logger,
		config.Signals,
		SignalHandler(config.DefaultHandlerError, config.HandlerErrors),
	)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}
