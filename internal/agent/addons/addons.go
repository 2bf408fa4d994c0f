// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package addons holds the agent's engine-adjacent plumbing: the
// prometheus registry the agent publishes over its introspection
// socket, and the introspection worker startup.
package addons

import (
	"runtime"

	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/dependency"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/canonical/opendkim-operator/internal/worker/introspection"
)

// Logger is the interface that the introspection worker uses to log
// details.
type Logger interface {
	Debugf(string, ...interface{})
}

// DefaultIntrospectionSocketName is the abstract domain socket name
// the introspection worker serves requests over. A host runs a single
// operator agent, so the name is fixed.
const DefaultIntrospectionSocketName = "opendkim-operator"

// IntrospectionConfig defines the various components that the
// introspection worker reports on or needs to start up.
type IntrospectionConfig struct {
	SocketName         string
	Engine             *dependency.Engine
	PrometheusGatherer prometheus.Gatherer
	Logger             Logger

	WorkerFunc func(config introspection.Config) (worker.Worker, error)
}

// StartIntrospection creates the introspection worker. It cannot and
// should not be in the engine itself as it reports on the engine, and
// other aspects of the runtime. If we put it in the engine, then it is
// mostly likely shut down in the times we need it most, which is when
// the agent is having problems shutting down. Here we effectively
// start the worker and tie its life to that of the engine.
func StartIntrospection(cfg IntrospectionConfig) error {
	if runtime.GOOS != "linux" {
		cfg.Logger.Debugf("introspection worker not supported on %q", runtime.GOOS)
		return nil
	}

	socketName := cfg.SocketName
	if socketName == "" {
		socketName = DefaultIntrospectionSocketName
	}
	w, err := cfg.WorkerFunc(introspection.Config{
		SocketName:         socketName,
		DepEngine:          cfg.Engine,
		PrometheusGatherer: cfg.PrometheusGatherer,
		Logger:             cfg.Logger,
	})
	if err != nil {
		return errors.Trace(err)
	}
	go func() {
		_ = cfg.Engine.Wait()
		cfg.Logger.Debugf("engine stopped, stopping introspection")
		w.Kill()
		_ = w.Wait()
		cfg.Logger.Debugf("introspection stopped")
	}()

	return nil
}

// NewPrometheusRegistry returns a new prometheus.Registry with the Go
// and process metric collectors registered. This registry is exposed
// by the introspection abstract domain socket.
func NewPrometheusRegistry() (*prometheus.Registry, error) {
	r := prometheus.NewRegistry()
	if err := r.Register(prometheus.NewGoCollector()); err != nil {
		return nil, errors.Trace(err)
	}
	if err := r.Register(prometheus.NewProcessCollector(
		prometheus.ProcessCollectorOpts{})); err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}
