// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package inputwatcher turns file system changes under the agent's data
// dir into lifecycle events. The orchestrator materializes charm
// configuration, relation documents and secret content as files; this
// worker watches them and publishes the corresponding hook.Info on the
// local hub.
package inputwatcher

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"

	"github.com/canonical/opendkim-operator/core/hook"
	"github.com/canonical/opendkim-operator/core/secrets"
	"github.com/canonical/opendkim-operator/internal/pubsub/lifecycle"
	"github.com/canonical/opendkim-operator/internal/unitdata"
)

// DefaultCoalesceInterval bounds how long the watcher sits on a file
// event before publishing, so a burst of writes becomes one event per
// distinct input.
const DefaultCoalesceInterval = 100 * time.Millisecond

const localSuffix = "-local.yaml"

// logger is here to stop the desire of creating a package level logger.
// Don't do this, instead use the one passed as manifold config.
type logger interface{}

var _ logger = struct{}{}

// Logger represents the methods used by the worker to log information.
type Logger interface {
	Debugf(string, ...interface{})
	Warningf(string, ...interface{})
}

// NotifyWatcher is the part of the fsnotify watcher the worker uses,
// wrapped so tests can feed synthetic events.
type NotifyWatcher interface {
	Add(name string) error
	Close() error
	EventChan() <-chan fsnotify.Event
	ErrorChan() <-chan error
}

type notifyWatcher struct {
	*fsnotify.Watcher
}

func (w notifyWatcher) EventChan() <-chan fsnotify.Event {
	return w.Events
}

func (w notifyWatcher) ErrorChan() <-chan error {
	return w.Errors
}

// NewNotifyWatcher returns a NotifyWatcher backed by fsnotify.
func NewNotifyWatcher() (NotifyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return notifyWatcher{Watcher: watcher}, nil
}

// Config defines the operation of the input watcher.
type Config struct {
	// Paths locates the watched inputs under the data dir.
	Paths unitdata.Paths

	// Hub is where derived events are published.
	Hub *pubsub.SimpleHub

	Clock  clock.Clock
	Logger Logger

	// NewWatcher creates the underlying file system watcher.
	NewWatcher func() (NotifyWatcher, error)

	// CoalesceInterval is how long to gather further file events
	// before publishing the batch.
	CoalesceInterval time.Duration
}

// Validate returns an error if config cannot drive the Worker.
func (config Config) Validate() error {
	if config.Paths.DataDir == "" {
		return errors.NotValidf("empty DataDir")
	}
	if config.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if config.NewWatcher == nil {
		return errors.NotValidf("nil NewWatcher")
	}
	if config.CoalesceInterval <= 0 {
		return errors.NotValidf("non-positive CoalesceInterval")
	}
	return nil
}

// NewWorker returns an input watcher backed by config, or an error.
func NewWorker(config Config) (worker.Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{config: config}
	err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	})
	return w, errors.Trace(err)
}

// Worker watches the data dir and publishes derived events.
type Worker struct {
	catacomb catacomb.Catacomb
	config   Config
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
	watcher, err := w.config.NewWatcher()
	if err != nil {
		return errors.Annotate(err, "creating file watcher")
	}
	defer func() { _ = watcher.Close() }()

	paths := w.config.Paths
	dirModes := []struct {
		dir  string
		mode os.FileMode
	}{
		{paths.DataDir, 0755},
		{paths.RelationsDir(), 0755},
		// Secret content lives here; keep the directory unlistable.
		{paths.SecretsDir(), 0700},
	}
	for _, d := range dirModes {
		// The orchestrator may not have delivered anything yet; an
		// empty directory still has to be watchable.
		if err := os.MkdirAll(d.dir, d.mode); err != nil {
			return errors.Trace(err)
		}
		if err := watcher.Add(d.dir); err != nil {
			return errors.Annotatef(err, "watching %q", d.dir)
		}
	}

	var pending []hook.Info
	var flush <-chan time.Time
	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case event, ok := <-watcher.EventChan():
			if !ok {
				return errors.New("file watcher closed")
			}
			info, ok := w.mapEvent(event)
			if !ok {
				continue
			}
			if !pendingContains(pending, info) {
				pending = append(pending, info)
			}
			if flush == nil {
				flush = w.config.Clock.After(w.config.CoalesceInterval)
			}
		case err, ok := <-watcher.ErrorChan():
			if !ok {
				return errors.New("file watcher closed")
			}
			return errors.Annotate(err, "file watcher")
		case <-flush:
			for _, info := range pending {
				w.config.Logger.Debugf("publishing %+v", info)
				w.config.Hub.Publish(lifecycle.HookReceivedTopic, info)
			}
			pending = nil
			flush = nil
		}
	}
}

// mapEvent derives the lifecycle event a file change stands for, if
// any.
func (w *Worker) mapEvent(event fsnotify.Event) (hook.Info, bool) {
	// Chmod carries no content change.
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return hook.Info{}, false
	}
	paths := w.config.Paths
	removed := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0

	switch filepath.Dir(event.Name) {
	case filepath.Clean(paths.DataDir):
		if event.Name != paths.ConfigFile() {
			return hook.Info{}, false
		}
		return hook.Info{Kind: hook.ConfigChanged}, true
	case filepath.Clean(paths.RelationsDir()):
		id, ok := fileID(event.Name)
		if !ok {
			return hook.Info{}, false
		}
		if removed {
			return hook.Info{Kind: hook.RelationDeparted, RelationId: id}, true
		}
		return hook.Info{Kind: hook.RelationChanged, RelationId: id}, true
	case filepath.Clean(paths.SecretsDir()):
		id, ok := fileID(event.Name)
		if !ok {
			return hook.Info{}, false
		}
		uri, err := secrets.ParseURI(id)
		if err != nil {
			w.config.Logger.Debugf("ignoring %q: %v", event.Name, err)
			return hook.Info{}, false
		}
		// Content gone is still a content change; the reconcile pass
		// finds out when it resolves the reference.
		return hook.Info{Kind: hook.SecretChanged, SecretURI: uri.String()}, true
	}
	return hook.Info{}, false
}

// fileID extracts the identity a data file carries in its name.
// Files published by the operator itself and the temp files left by
// atomic writes carry none.
func fileID(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasSuffix(base, localSuffix) {
		return "", false
	}
	if !strings.HasSuffix(base, ".yaml") {
		return "", false
	}
	id := strings.TrimSuffix(base, ".yaml")
	if id == "" {
		return "", false
	}
	return id, true
}

func pendingContains(pending []hook.Info, info hook.Info) bool {
	for _, waiting := range pending {
		if waiting == info {
			return true
		}
	}
	return false
}
