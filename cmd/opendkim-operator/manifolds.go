// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/dependency"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/canonical/opendkim-operator/core/hook"
	"github.com/canonical/opendkim-operator/internal/agent"
	"github.com/canonical/opendkim-operator/internal/agent/engine"
	"github.com/canonical/opendkim-operator/internal/reconciler"
	jworker "github.com/canonical/opendkim-operator/internal/worker"
	"github.com/canonical/opendkim-operator/internal/worker/hookqueue"
	"github.com/canonical/opendkim-operator/internal/worker/inputwatcher"
	"github.com/canonical/opendkim-operator/internal/worker/listener"
	"github.com/canonical/opendkim-operator/internal/worker/simplesignalhandler"
)

// Manifold names. Keep the list in Manifolds in sync with these.
const (
	agentName           = "agent"
	clockName           = "clock"
	hubName             = "hub"
	signalHandlerName   = "signal-handler"
	inputWatcherName    = "input-watcher"
	controlListenerName = "control-listener"
	hookQueueName       = "hook-queue"
	reconcilerName      = "reconciler"
)

// ManifoldsConfig allows specialisation of the result of Manifolds.
type ManifoldsConfig struct {
	// Agent contains the agent that will be wrapped and made available
	// to its dependencies via a dependency.Engine.
	Agent agent.Agent

	// Clock supplies timekeeping services to the workers.
	Clock clock.Clock

	// Hub is the central message hub the event sources publish hook
	// requests to and the queue consumes them from.
	Hub *pubsub.SimpleHub

	// Signals receives the process's signals. The agent command owns
	// the signal.Notify registration.
	Signals <-chan os.Signal

	// UpdateStatusInterval is the nominal period between the
	// self-generated update-status events. Zero means the default.
	UpdateStatusInterval time.Duration

	// PrometheusRegisterer is used by the reconciler to publish pass
	// metrics. It may be nil.
	PrometheusRegisterer prometheus.Registerer
}

// Manifolds returns a set of co-configured manifolds covering the
// various responsibilities of the operator agent. The queue feeds the
// reconciler over a channel created here; the unbuffered handoff is
// what holds the one-pass-at-a-time guarantee.
func Manifolds(config ManifoldsConfig) dependency.Manifolds {
	hooks := make(chan hook.Info)
	updateStatusInterval := config.UpdateStatusInterval
	if updateStatusInterval <= 0 {
		updateStatusInterval = hookqueue.DefaultUpdateStatusInterval
	}
	return dependency.Manifolds{
		// The agent manifold references the enclosing agent, and is the
		// foundation stone most other manifolds ultimately depend on.
		agentName: agentManifold(config.Agent),

		// The clock and hub manifolds wrap process-global values shared
		// by the workers below.
		clockName: clockManifold(config.Clock),
		hubName:   hubManifold(config.Hub),

		// The signal handler turns SIGTERM and SIGINT into a clean
		// engine shutdown.
		signalHandlerName: simplesignalhandler.Manifold(simplesignalhandler.ManifoldConfig{
			Signals:             config.Signals,
			DefaultHandlerError: jworker.ErrTerminateAgent,
			Logger:              loggo.GetLogger("opendkim.worker.signalhandler"),
		}),

		// The input watcher and the control listener publish hook
		// requests to the hub. Neither delivers to the reconciler
		// directly; the queue owns ordering and coalescing.
		inputWatcherName: inputwatcher.Manifold(inputwatcher.ManifoldConfig{
			AgentName:        agentName,
			HubName:          hubName,
			ClockName:        clockName,
			NewWatcher:       inputwatcher.NewNotifyWatcher,
			CoalesceInterval: inputwatcher.DefaultCoalesceInterval,
			Logger:           loggo.GetLogger("opendkim.worker.inputwatcher"),
		}),
		controlListenerName: listener.Manifold(listener.ManifoldConfig{
			AgentName: agentName,
			HubName:   hubName,
			Logger:    loggo.GetLogger("opendkim.worker.listener"),
		}),
		hookQueueName: hookqueue.Manifold(hookqueue.ManifoldConfig{
			HubName:              hubName,
			ClockName:            clockName,
			Hooks:                hooks,
			UpdateStatusInterval: updateStatusInterval,
			Logger:               loggo.GetLogger("opendkim.worker.hookqueue"),
		}),

		reconcilerName: reconciler.Manifold(reconciler.ManifoldConfig{
			AgentName:            agentName,
			ClockName:            clockName,
			Hooks:                hooks,
			Logger:               loggo.GetLogger("opendkim.worker.reconciler"),
			PrometheusRegisterer: config.PrometheusRegisterer,
		}),
	}
}

// agentManifold expresses the agent as a value manifold.
func agentManifold(agent agent.Agent) dependency.Manifold {
	return dependency.Manifold{
		Start: func(_ context.Context, _ dependency.Getter) (worker.Worker, error) {
			return engine.NewValueWorker(agent)
		},
		Output: engine.ValueWorkerOutput,
	}
}

// clockManifold expresses a Clock as a value manifold.
func clockManifold(clock clock.Clock) dependency.Manifold {
	return dependency.Manifold{
		Start: func(_ context.Context, _ dependency.Getter) (worker.Worker, error) {
			return engine.NewValueWorker(clock)
		},
		Output: engine.ValueWorkerOutput,
	}
}

// hubManifold expresses the message hub as a value manifold.
func hubManifold(hub *pubsub.SimpleHub) dependency.Manifold {
	return dependency.Manifold{
		Start: func(_ context.Context, _ dependency.Getter) (worker.Worker, error) {
			return engine.NewValueWorker(hub)
		},
		Output: engine.ValueWorkerOutput,
	}
}
