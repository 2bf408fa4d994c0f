// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hookqueue provides the ordered, coalescing queue that sits
// between the event sources and the reconciler. Sources publish
// hook.Info values on the local hub; the queue hands them to the
// consumer one at a time, so at most one reconcile pass runs at once.
package hookqueue

import (
	"math/rand"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"

	"github.com/canonical/opendkim-operator/core/hook"
	"github.com/canonical/opendkim-operator/internal/pubsub/lifecycle"
)

// DefaultUpdateStatusInterval is the nominal gap between the periodic
// update-status events the queue generates by itself.
const DefaultUpdateStatusInterval = 5 * time.Minute

// logger is here to stop the desire of creating a package level logger.
// Don't do this, instead use the one passed as manifold config.
type logger interface{}

var _ logger = struct{}{}

// Logger represents the methods used by the worker to log information.
type Logger interface {
	Debugf(string, ...interface{})
	Warningf(string, ...interface{})
}

// Config defines the operation of the queue worker.
type Config struct {
	// Hub carries hook.Info publications from the event sources.
	Hub *pubsub.SimpleHub

	// Hooks is where queued events are delivered, one at a time. The
	// channel is shared with the consumer and is never closed by the
	// queue.
	Hooks chan<- hook.Info

	Clock  clock.Clock
	Logger Logger

	// UpdateStatusInterval is the nominal period of the self-generated
	// update-status events. The actual wait is jittered by up to ten
	// percent either side of it.
	UpdateStatusInterval time.Duration
}

// Validate returns an error if config cannot drive the Worker.
func (config Config) Validate() error {
	if config.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if config.Hooks == nil {
		return errors.NotValidf("nil HooksChannel")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if config.UpdateStatusInterval <= 0 {
		return errors.NotValidf("non-positive UpdateStatusInterval")
	}
	return nil
}

// NewWorker returns a hook queue worker backed by config, or an error.
func NewWorker(config Config) (worker.Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{
		config: config,
		in:     make(chan hook.Info),
	}
	err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	})
	return w, errors.Trace(err)
}

// Worker delivers received events to the consumer in the order they
// arrived, dropping events identical to one still waiting.
type Worker struct {
	catacomb catacomb.Catacomb
	config   Config

	// in carries events from the hub subscription into the loop.
	in chan hook.Info

	// pending holds events received but not yet delivered. Only the
	// loop goroutine touches it.
	pending []hook.Info
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.catacomb.Wait()
}

func (w *Worker) loop() error {
	unsubscribe := w.config.Hub.Subscribe(lifecycle.HookReceivedTopic, w.onHookReceived)
	defer unsubscribe()

	interval := w.config.UpdateStatusInterval
	timeout := w.config.Clock.After(withJitter(interval))
	for {
		// An empty queue must not deliver anything; a nil channel
		// makes that select case never ready.
		var out chan<- hook.Info
		var next hook.Info
		if len(w.pending) > 0 {
			out = w.config.Hooks
			next = w.pending[0]
		}
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case <-timeout:
			w.push(hook.Info{Kind: hook.UpdateStatus})
			timeout = w.config.Clock.After(withJitter(interval))
		case info := <-w.in:
			if err := info.Validate(); err != nil {
				w.config.Logger.Warningf("discarding received event: %v", err)
				continue
			}
			w.push(info)
		case out <- next:
			w.pending = w.pending[1:]
		}
	}
}

// onHookReceived runs on the hub's goroutine for every publication to
// the hook topic and feeds the loop.
func (w *Worker) onHookReceived(topic string, data interface{}) {
	info, ok := data.(hook.Info)
	if !ok {
		w.config.Logger.Warningf("discarding %q data of unexpected type %T", topic, data)
		return
	}
	select {
	case w.in <- info:
	case <-w.catacomb.Dying():
	}
}

// push queues info for delivery. An info equal to one still pending is
// dropped; install overtakes everything already waiting.
func (w *Worker) push(info hook.Info) {
	for _, waiting := range w.pending {
		if waiting == info {
			w.config.Logger.Debugf("%q event already pending, dropping duplicate", info.Kind)
			return
		}
	}
	if info.Kind == hook.Install {
		w.pending = append([]hook.Info{info}, w.pending...)
		return
	}
	w.pending = append(w.pending, info)
}

// withJitter returns a wait within ten percent either side of interval,
// so the periodic events do not fire on an exact multiple of the
// interval forever.
func withJitter(interval time.Duration) time.Duration {
	lower := interval - interval/10
	window := interval / 5
	return lower + time.Duration(rand.Int63n(int64(window)))
}
