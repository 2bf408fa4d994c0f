// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package listener serves the operator's control surface on a unix
// socket. The trigger and status subcommands dial the socket and drive
// the agent over net/rpc: TriggerHook publishes a synthetic lifecycle
// event on the local hub for the hook queue to deliver, and Status
// reports the workload status last recorded by a reconcile pass.
package listener

import (
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"

	"github.com/canonical/opendkim-operator/core/hook"
	"github.com/canonical/opendkim-operator/core/secrets"
	"github.com/canonical/opendkim-operator/core/status"
	"github.com/canonical/opendkim-operator/internal/pubsub/lifecycle"
	"github.com/canonical/opendkim-operator/internal/sockets"
)

// TriggerHookEndpoint is the rpc endpoint that queues a lifecycle event.
const TriggerHookEndpoint = "OperatorServer.TriggerHook"

// StatusEndpoint is the rpc endpoint that reports the workload status.
const StatusEndpoint = "OperatorServer.Status"

// logger is here to stop the desire of creating a package level logger.
// Don't do this, instead use the one passed as manifold config.
type logger interface{}

var _ logger = struct{}{}

// Logger represents the methods used by the listener to log information.
type Logger interface {
	Debugf(string, ...interface{})
	Warningf(string, ...interface{})
}

// TriggerHookArgs stores the arguments for a TriggerHook call.
type TriggerHookArgs struct {
	// Kind is the event kind to queue.
	Kind string
	// RelationId identifies the relation for relation events.
	RelationId string
	// RemoteApp is the remote application name for relation events.
	RemoteApp string
	// SecretURI identifies the secret for secret-changed events. A bare
	// secret id is accepted and normalised to URI form.
	SecretURI string
}

// TriggerHookResult holds the result of a TriggerHook call.
type TriggerHookResult struct {
	// Queued is true once the hook queue has accepted the event.
	Queued bool
}

// StatusArgs stores the arguments for a Status call.
type StatusArgs struct{}

// StatusResult holds the workload status last recorded by the operator.
type StatusResult struct {
	Status  string
	Message string
	Since   *time.Time
}

// StatusReader reads the workload status last recorded by a reconcile
// pass. *unitdata.StatusFile satisfies it.
type StatusReader interface {
	Read() (status.StatusInfo, error)
}

// Config defines the operation of a control listener.
type Config struct {
	Socket sockets.Socket
	Hub    *pubsub.SimpleHub
	Status StatusReader
	Logger Logger
}

// Validate returns an error if the config cannot drive a listener.
func (config Config) Validate() error {
	if config.Socket.Address == "" {
		return errors.NotValidf("empty socket address")
	}
	if config.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if config.Status == nil {
		return errors.NotValidf("nil Status")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// ControlListener is responsible for listening on the control socket and
// serving the rpc surface on every connection accepted from it.
type ControlListener struct {
	config   Config
	listener net.Listener
	server   *rpc.Server
	closed   chan struct{}
	closing  chan struct{}
	wg       sync.WaitGroup
}

// NewControlListener returns a listener serving the control surface on
// the configured socket. If a valid listener is returned, it has the
// accept loop running, and should be closed by the creator when they
// are done with it.
func NewControlListener(config Config) (*ControlListener, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	listener, err := sockets.Listen(config.Socket)
	if err != nil {
		return nil, errors.Trace(err)
	}
	l := &ControlListener{
		config:   config,
		listener: listener,
		server:   rpc.NewServer(),
		closed:   make(chan struct{}),
		closing:  make(chan struct{}),
	}
	if err := l.server.Register(&OperatorServer{
		hub:    config.Hub,
		status: config.Status,
		logger: config.Logger,
	}); err != nil {
		_ = listener.Close()
		return nil, errors.Trace(err)
	}
	go func() { _ = l.Run() }()
	return l, nil
}

// Run accepts new connections until it encounters an error, or until
// Close is called, and then blocks until all existing connections have
// been closed.
func (l *ControlListener) Run() (err error) {
	l.config.Logger.Debugf("control listener running")
	var conn net.Conn
	for {
		conn, err = l.listener.Accept()
		if err != nil {
			break
		}
		l.wg.Add(1)
		go func(conn net.Conn) {
			l.server.ServeConn(conn)
			l.wg.Done()
		}(conn)
	}
	l.config.Logger.Debugf("control listener stopping")
	select {
	case <-l.closing:
		// Someone has called Close(), so it is overwhelmingly likely that
		// the error from Accept is a direct result of the Listener being
		// closed, and can therefore be safely ignored.
		err = nil
	default:
	}
	l.wg.Wait()
	close(l.closed)
	return
}

// Close immediately stops accepting connections, and blocks until all
// existing connections have been closed.
func (l *ControlListener) Close() error {
	defer func() {
		<-l.closed
		l.config.Logger.Debugf("control listener stopped")
	}()
	close(l.closing)
	return l.listener.Close()
}

// NewWorker returns a worker that owns a running control listener and
// closes it when the worker is killed.
func NewWorker(config Config) (worker.Worker, error) {
	l, err := NewControlListener(config)
	if err != nil {
		return nil, errors.Trace(err)
	}
	w := &listenerWorker{listener: l, logger: config.Logger}
	w.tomb.Go(func() error {
		defer w.tearDown()
		<-w.tomb.Dying()
		return nil
	})
	return w, nil
}

type listenerWorker struct {
	tomb     tomb.Tomb
	listener *ControlListener
	logger   Logger
}

func (w *listenerWorker) tearDown() {
	if err := w.listener.Close(); err != nil {
		w.logger.Warningf("error closing control listener: %v", err)
	}
}

// Kill is part of the worker.Worker interface.
func (w *listenerWorker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *listenerWorker) Wait() error {
	return w.tomb.Wait()
}

// OperatorServer is the entity that has the methods that are called over
// the rpc connection.
type OperatorServer struct {
	hub    *pubsub.SimpleHub
	status StatusReader
	logger Logger
}

// TriggerHook validates the requested event and publishes it on the hub
// for the hook queue to deliver. It does not return until the queue has
// taken the event, so a successful result means the event is in line
// for the next reconcile pass.
func (s *OperatorServer) TriggerHook(args TriggerHookArgs, result *TriggerHookResult) error {
	s.logger.Debugf("TriggerHook: %+v", args)
	info := hook.Info{
		Kind:       hook.Kind(args.Kind),
		RelationId: args.RelationId,
		RemoteApp:  args.RemoteApp,
	}
	if args.SecretURI != "" {
		uri, err := secrets.ParseURI(args.SecretURI)
		if err != nil {
			return errors.Trace(err)
		}
		info.SecretURI = uri.String()
	}
	if err := info.Validate(); err != nil {
		return errors.Trace(err)
	}
	<-s.hub.Publish(lifecycle.HookReceivedTopic, info)
	result.Queued = true
	return nil
}

// Status reports the workload status last recorded by a reconcile pass.
// A unit that has not completed a pass yet reports unknown.
func (s *OperatorServer) Status(args StatusArgs, result *StatusResult) error {
	info, err := s.status.Read()
	if errors.Is(err, errors.NotFound) {
		result.Status = status.Unknown.String()
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	result.Status = info.Status.String()
	result.Message = info.Message
	result.Since = info.Since
	return nil
}
