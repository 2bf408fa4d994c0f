// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package simplesignalhandler converts process signals into worker
// errors, so the dependency engine winds the agent down cleanly when
// the host asks it to stop.
package simplesignalhandler

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"
)

// logger is here to stop the desire of creating a package level logger.
// Don't do this, instead use the one passed as config.
type logger interface{}

var _ logger = struct{}{}

// Logger represents the methods used by the worker to log information.
type Logger interface {
	Infof(string, ...interface{})
}

// SignalHandlerFunc is func definition for returning an error based on
// a received signal.
type SignalHandlerFunc func(os.Signal) error

// SignalHandler is a default implementation that uses signal mapping
// and a default error.
func SignalHandler(defaultErr error, signalMap map[os.Signal]error) SignalHandlerFunc {
	return func(sig os.Signal) error {
		if signalMap == nil {
			return defaultErr
		}
		if err, exists := signalMap[sig]; exists {
			return err
		}
		return defaultErr
	}
}

// SignalWatcher is the worker responsible for watching signals and
// returning the appropriate error from a handler.
type SignalWatcher struct {
	catacomb catacomb.Catacomb
	handler  SignalHandlerFunc
	logger   Logger
	sigCh    <-chan os.Signal
}

// NewSignalWatcher constructs a new signal watcher worker with the
// specified signal channel and handler func.
func NewSignalWatcher(
	logger Logger,
	sig <-chan os.Signal,
	handler SignalHandlerFunc,
) (*SignalWatcher, error) {
	s := &SignalWatcher{
		handler: handler,
		logger:  logger,
		sigCh:   sig,
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &s.catacomb,
		Work: s.watch,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return s, nil
}

// watch watches for signals on the provided channel and returns the
// error returned by handler when a signal is received.
func (s *SignalWatcher) watch() error {
	select {
	case sig, ok := <-s.sigCh:
		if !ok {
			return errors.New("signal channel closed unexpectedly")
		}
		s.logger.Infof("received signal %v", sig)
		return s.handler(sig)
	case <-s.catacomb.Dying():
		return s.catacomb.ErrDying()
	}
}

// Kill implements worker.Worker.
func (s *SignalWatcher) Kill() {
	s.catacomb.Kill(nil)
}

// Wait implements worker.Worker.
func (s *SignalWatcher) Wait() error {
	return s.catacomb.Wait()
}
