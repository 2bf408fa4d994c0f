// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package reconciler

import (
	"context"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/mutex/v2"
	"github.com/juju/proxy"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/dependency"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/canonical/opendkim-operator/core/hook"
	"github.com/canonical/opendkim-operator/internal/agent"
	"github.com/canonical/opendkim-operator/internal/dkim"
	"github.com/canonical/opendkim-operator/internal/logrotate"
	"github.com/canonical/opendkim-operator/internal/packaging"
	"github.com/canonical/opendkim-operator/internal/systemd"
	"github.com/canonical/opendkim-operator/internal/unitdata"
)

// ManifoldConfig defines a reconciler Manifold's dependencies.
type ManifoldConfig struct {
	AgentName string
	ClockName string

	// Hooks is the delivery end of the channel the hook queue feeds.
	Hooks <-chan hook.Info

	Logger Logger

	// PrometheusRegisterer is optional.
	PrometheusRegisterer prometheus.Registerer
}

// Validate returns an error if the config cannot start a Manifold.
func (config ManifoldConfig) Validate() error {
	if config.AgentName == "" {
		return errors.NotValidf("empty AgentName")
	}
	if config.ClockName == "" {
		return errors.NotValidf("empty ClockName")
	}
	if config.Hooks == nil {
		return errors.NotValidf("nil HooksChannel")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Manifold returns a dependency.Manifold running the reconcile worker
// against the real host: apt for packages, systemd for the daemon and
// the agent's data dir for declared inputs and recorded outcomes.
func Manifold(config ManifoldConfig) dependency.Manifold {
	return dependency.Manifold{
		Inputs: []string{
			config.AgentName,
			config.ClockName,
		},
		Start: config.start,
	}
}

func (config ManifoldConfig) start(ctx context.Context, getter dependency.Getter) (worker.Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	var thisAgent agent.Agent
	if err := getter.Get(config.AgentName, &thisAgent); err != nil {
		return nil, errors.Trace(err)
	}
	var clk clock.Clock
	if err := getter.Get(config.ClockName, &clk); err != nil {
		return nil, errors.Trace(err)
	}

	packages, err := packaging.NewHostManager(clk, proxy.DetectProxies())
	if err != nil {
		return nil, errors.Trace(err)
	}

	paths := unitdata.NewPaths(thisAgent.CurrentConfig().DataDir())
	w, err := NewWorker(Config{
		ConfigSource:         unitdata.NewConfigSource(paths),
		Relations:            unitdata.NewRelations(paths),
		Secrets:              unitdata.NewSecretStore(paths),
		Packages:             packages,
		Service:              systemd.NewService(dkim.ServiceName, systemd.NewDBusAPI),
		StatusSetter:         unitdata.NewStatusFile(paths.StatusFilePath()),
		StateStore:           unitdata.NewStateFile(paths.StateFilePath()),
		Paths:                dkim.DefaultPaths(),
		Runner:               dkim.NewCommandRunner(),
		LogRotatePath:        logrotate.SyslogConf,
		AcquireLock:          mutex.Acquire,
		Hooks:                config.Hooks,
		Clock:                clk,
		Logger:               config.Logger,
		PrometheusRegisterer: config.PrometheusRegisterer,
	})
	return w, errors.Trace(err)
}
