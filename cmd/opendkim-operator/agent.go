// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"
	"github.com/juju/os/v2/series"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/dependency"

	"github.com/canonical/opendkim-operator/internal/agent"
	"github.com/canonical/opendkim-operator/internal/agent/addons"
	"github.com/canonical/opendkim-operator/internal/agent/engine"
	"github.com/canonical/opendkim-operator/internal/systemd"
	jworker "github.com/canonical/opendkim-operator/internal/worker"
	"github.com/canonical/opendkim-operator/internal/worker/introspection"
)

var agentDoc = `
agent runs the operator until it is asked to stop. Every lifecycle
event delivered while it runs triggers a single reconcile pass that
converges the local OpenDKIM deployment with the inputs under the
data directory.
`

// newAgentCommand returns the command that runs the operator agent.
func newAgentCommand(ctx *cmd.Context) cmd.Command {
	return &agentCommand{
		ctx:  ctx,
		conf: agent.NewAgentConf(""),
	}
}

type agentCommand struct {
	cmd.CommandBase

	ctx  *cmd.Context
	conf agent.AgentConf

	logToStdErr bool
}

// Info is part of the cmd.Command interface.
func (a *agentCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "agent",
		Purpose: "run the opendkim operator agent",
		Doc:     agentDoc,
	}
}

// SetFlags is part of the cmd.Command interface.
func (a *agentCommand) SetFlags(f *gnuflag.FlagSet) {
	a.conf.AddFlags(f)
	f.BoolVar(&a.logToStdErr, "log-to-stderr", false, "log to stderr instead of the agent log file")
}

// Init is part of the cmd.Command interface.
func (a *agentCommand) Init(args []string) error {
	if err := a.conf.CheckArgs(args); err != nil {
		return errors.Trace(err)
	}
	config := a.conf.CurrentConfig()
	if err := os.MkdirAll(config.LogDir(), 0755); err != nil {
		logger.Warningf("cannot create log dir: %v", err)
	}
	if !a.logToStdErr {
		// The context's stderr is set as the loggo writer in
		// github.com/juju/cmd/v3/logging.go.
		ljLogger := &lumberjack.Logger{
			Filename:   agent.LogFilename(config),
			MaxSize:    300, // megabytes
			MaxBackups: 2,
			Compress:   true,
		}
		logger.Debugf("created rotating log file %q with max size %d MB and max backups %d",
			ljLogger.Filename, ljLogger.MaxSize, ljLogger.MaxBackups)
		a.ctx.Stderr = ljLogger
	}
	return nil
}

// Run assembles the worker engine and blocks until it stops.
func (a *agentCommand) Run(ctx *cmd.Context) error {
	config := a.conf.CurrentConfig()
	logger.Infof("opendkim operator agent starting (data dir %q)", config.DataDir())
	if hostSeries, err := series.HostSeries(); err != nil {
		logger.Warningf("cannot determine host series: %v", err)
	} else {
		logger.Infof("running on series %q", hostSeries)
	}
	if !systemd.IsRunning() {
		logger.Warningf("systemd is not the local init system, opendkim service control will not work")
	}

	registry, err := addons.NewPrometheusRegistry()
	if err != nil {
		return errors.Trace(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	hub := pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
		Logger: loggo.GetLogger("opendkim.hub"),
	})

	eng, err := dependency.NewEngine(engine.DependencyEngineConfig(
		dependency.DefaultMetrics(),
		loggo.GetLogger("opendkim.worker.dependency"),
	))
	if err != nil {
		return errors.Trace(err)
	}
	manifolds := Manifolds(ManifoldsConfig{
		Agent:                a.conf,
		Clock:                clock.WallClock,
		Hub:                  hub,
		Signals:              sigCh,
		PrometheusRegisterer: registry,
	})
	if err := dependency.Install(eng, manifolds); err != nil {
		if stopErr := worker.Stop(eng); stopErr != nil {
			logger.Errorf("while stopping engine with bad manifolds: %v", stopErr)
		}
		return errors.Trace(err)
	}

	if err := addons.StartIntrospection(addons.IntrospectionConfig{
		Engine:             eng,
		PrometheusGatherer: registry,
		WorkerFunc:         introspection.NewWorker,
		Logger:             loggo.GetLogger("opendkim.introspection"),
	}); err != nil {
		// If the introspection worker failed to start, we just log error
		// and continue. It is very unlikely to happen in the real world
		// as the only issue is connecting to the abstract domain socket
		// and the agent is controlled by the OS to only have one.
		logger.Errorf("failed to start introspection worker: %v", err)
	}

	return agentDone(logger, eng.Wait())
}

// agentDone processes the error returned by the exiting agent. A
// terminate error is the agent's normal way out and maps to a clean
// exit so the init system does not restart a unit that asked to stop.
// A restart error propagates, so the process exits non-zero and the
// service manager starts it again.
func agentDone(logger loggo.Logger, err error) error {
	err = errors.Cause(err)
	switch err {
	case jworker.ErrTerminateAgent:
		err = nil
	case jworker.ErrRestartAgent:
		logger.Infof("agent restarting")
	}
	return err
}
