// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package introspection serves the agent's internals over an abstract
// unix domain socket: prometheus metrics, the dependency engine report
// and the stdlib pprof surface. The socket is reachable only from the
// host, by name, so nothing here needs authentication.
package introspection

import (
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/tomb.v2"
	"gopkg.in/yaml.v3"
)

// logger is here to stop the desire of creating a package level logger.
// Don't do this, instead use the one passed as config.
type logger interface{}

var _ logger = struct{}{}

// Logger represents the methods used by the worker to log information.
type Logger interface {
	Debugf(string, ...interface{})
}

// Reporter provides insight into the running dependency engine of the
// agent. Report is expected to be goroutine-safe.
type Reporter interface {
	Report() map[string]interface{}
}

// Config describes the arguments required to create the worker.
type Config struct {
	// SocketName is the abstract domain socket name, without the
	// leading "@".
	SocketName string

	// DepEngine is optional; without it /depengine reports not found.
	DepEngine Reporter

	PrometheusGatherer prometheus.Gatherer
	Logger             Logger
}

// Validate checks the config values to assert they are valid to create
// the worker.
func (c *Config) Validate() error {
	if c.SocketName == "" {
		return errors.NotValidf("empty SocketName")
	}
	if c.PrometheusGatherer == nil {
		return errors.NotValidf("nil PrometheusGatherer")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// socketListener is a worker and constructed with NewWorker.
type socketListener struct {
	tomb     tomb.Tomb
	listener *net.UnixListener
	config   Config
	done     chan struct{}
}

// NewWorker starts an http server listening on an abstract domain
// socket which will be created with the specified name.
func NewWorker(config Config) (worker.Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if runtime.GOOS != "linux" {
		return nil, errors.NotSupportedf("os %q", runtime.GOOS)
	}

	path := "@" + config.SocketName
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, errors.Annotate(err, "unable to resolve unix socket")
	}
	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, errors.Annotate(err, "unable to listen on unix socket")
	}
	config.Logger.Debugf("introspection worker listening on %q", path)

	w := &socketListener{
		listener: l,
		config:   config,
		done:     make(chan struct{}),
	}
	go w.serve()
	w.tomb.Go(w.run)
	return w, nil
}

func (w *socketListener) serve() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		w.config.PrometheusGatherer, promhttp.HandlerOpts{}))
	mux.Handle("/depengine", depengineHandler{w.config.DepEngine})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := http.Server{Handler: mux}
	w.config.Logger.Debugf("introspection worker now serving")
	defer w.config.Logger.Debugf("introspection worker serving finished")
	defer close(w.done)
	_ = srv.Serve(w.listener)
}

func (w *socketListener) run() error {
	defer w.config.Logger.Debugf("introspection worker finished")
	<-w.tomb.Dying()
	w.config.Logger.Debugf("introspection worker closing listener")
	_ = w.listener.Close()
	// Don't mark the worker as done until the serve goroutine has
	// finished.
	<-w.done
	return nil
}

// Kill implements worker.Worker.
func (w *socketListener) Kill() {
	w.tomb.Kill(nil)
}

// Wait implements worker.Worker.
func (w *socketListener) Wait() error {
	return w.tomb.Wait()
}

type depengineHandler struct {
	reporter Reporter
}

// ServeHTTP is part of the http.Handler interface.
func (h depengineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		http.Error(w, "missing dependency engine reporter", http.StatusNotFound)
		return
	}
	bytes, err := yaml.Marshal(h.reporter.Report())
	if err != nil {
		http.Error(w, fmt.Sprintf("error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Dependency Engine Report\n\n")
	_, _ = w.Write(bytes)
}
