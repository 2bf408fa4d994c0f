// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package reconciler converges the host on the declared inputs. Every
// delivered event runs one pass: read the declared options, relations
// and secrets, compute the desired daemon state, install or rewrite
// configuration as needed, publish relation settings and record the
// outcome. Passes never special-case event kinds beyond what triggered
// them, so event ordering can only delay convergence, never change the
// end state.
package reconciler

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/mutex/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"
	"github.com/prometheus/client_golang/prometheus"

	coreconfig "github.com/canonical/opendkim-operator/core/config"
	"github.com/canonical/opendkim-operator/core/hook"
	"github.com/canonical/opendkim-operator/core/relation"
	"github.com/canonical/opendkim-operator/core/secrets"
	"github.com/canonical/opendkim-operator/core/status"
	"github.com/canonical/opendkim-operator/internal/dkim"
	"github.com/canonical/opendkim-operator/internal/logrotate"
	"github.com/canonical/opendkim-operator/internal/unitdata"
)

// ErrInstallFailed tags package manager failures. Nothing is recorded
// until an install succeeds, so the next event retries it.
const ErrInstallFailed = errors.ConstError("install failed")

// hostLockName guards apt and the daemon against other agents managing
// the same machine.
const hostLockName = "opendkim-machine-lock"

// slowPassThreshold is how long a pass may take before its duration is
// reported. Package installs legitimately exceed it.
const slowPassThreshold = 10 * time.Second

// logger is here to stop the desire of creating a package level logger.
// Don't do this, instead use the one passed as manifold config.
type logger interface{}

var _ logger = struct{}{}

// Logger represents the methods used by the worker to log information.
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warningf(string, ...interface{})
	Errorf(string, ...interface{})
}

// ConfigSource reads the declared charm options.
// *unitdata.ConfigSource satisfies it.
type ConfigSource interface {
	Read() (map[string]interface{}, error)
}

// Relations reads the current relation set and publishes this side's
// settings. *unitdata.Relations satisfies it.
type Relations interface {
	All() ([]relation.Record, error)
	Publish(id string, settings relation.Settings) error
}

// SecretStore resolves secret references for the duration of a pass.
// *unitdata.SecretStore satisfies it.
type SecretStore interface {
	Resolve(uri *secrets.URI) (secrets.SecretValue, error)
}

// Packages installs the milter package. packaging.Manager satisfies it.
type Packages interface {
	Install(name, version string) error
	InstalledVersion(name string) (string, error)
}

// Service controls the installed daemon. *systemd.Service satisfies it.
type Service interface {
	ReloadOrRestart() error
}

// StatusSetter records the workload status where the orchestration
// layer reads it. *unitdata.StatusFile satisfies it.
type StatusSetter interface {
	Write(status.StatusInfo) error
}

// StateStore holds the durable record of what has been done to the
// host. *unitdata.StateFile satisfies it.
type StateStore interface {
	Read() (*unitdata.State, error)
	Write(*unitdata.State) error
}

// Config defines the operation of the reconcile worker.
type Config struct {
	ConfigSource ConfigSource
	Relations    Relations
	Secrets      SecretStore
	Packages     Packages
	Service      Service
	StatusSetter StatusSetter
	StateStore   StateStore

	// Paths locates the daemon configuration on the host.
	Paths dkim.Paths

	// Runner executes the key verification command.
	Runner dkim.CommandRunner

	// LogRotatePath is the logrotate config whose retention is raised
	// on first install.
	LogRotatePath string

	// AcquireLock takes the host lock guarding package operations.
	AcquireLock func(mutex.Spec) (mutex.Releaser, error)

	// Hooks delivers the events to reconcile on. The channel is shared
	// with the hook queue, which hands over one event at a time.
	Hooks <-chan hook.Info

	Clock  clock.Clock
	Logger Logger

	// PrometheusRegisterer is optional; pass metrics are only
	// published when one is supplied.
	PrometheusRegisterer prometheus.Registerer
}

// Validate returns an error if the config cannot drive a worker.
func (config Config) Validate() error {
	if config.ConfigSource == nil {
		return errors.NotValidf("nil ConfigSource")
	}
	if config.Relations == nil {
		return errors.NotValidf("nil Relations")
	}
	if config.Secrets == nil {
		return errors.NotValidf("nil Secrets")
	}
	if config.Packages == nil {
		return errors.NotValidf("nil Packages")
	}
	if config.Service == nil {
		return errors.NotValidf("nil Service")
	}
	if config.StatusSetter == nil {
		return errors.NotValidf("nil StatusSetter")
	}
	if config.StateStore == nil {
		return errors.NotValidf("nil StateStore")
	}
	if config.Paths.ConfFile == "" || config.Paths.KeysDir == "" {
		return errors.NotValidf("empty Paths")
	}
	if config.Runner == nil {
		return errors.NotValidf("nil Runner")
	}
	if config.LogRotatePath == "" {
		return errors.NotValidf("empty LogRotatePath")
	}
	if config.AcquireLock == nil {
		return errors.NotValidf("nil AcquireLock")
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
	return nil
}

// NewWorker returns a worker that runs one reconcile pass per event
// delivered on the hooks channel.
func NewWorker(config Config) (worker.Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{
		config:  config,
		metrics: NewMetricsCollector(),
	}
	err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	})
	return w, errors.Trace(err)
}

// Worker reconciles the host against the declared inputs.
type Worker struct {
	catacomb catacomb.Catacomb
	config   Config
	metrics  *Collector
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
	if w.config.PrometheusRegisterer != nil {
		if err := w.config.PrometheusRegisterer.Register(w.metrics); err != nil {
			w.config.Logger.Warningf("failed to register pass metrics: %v", err)
		}
		defer w.config.PrometheusRegisterer.Unregister(w.metrics)
	}
	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case info, ok := <-w.config.Hooks:
			if !ok {
				return errors.New("event delivery channel closed")
			}
			if err := w.reconcile(info); err != nil {
				return errors.Trace(err)
			}
		}
	}
}

// reconcile runs one pass for the received event. Domain failures are
// folded into the reported status and the worker keeps going; only a
// failure to record the outcome is fatal.
func (w *Worker) reconcile(info hook.Info) error {
	start := w.config.Clock.Now()
	w.config.Logger.Debugf("%q event received, starting pass", info.Kind)
	if err := w.setStatus(status.Maintenance, "reconciling"); err != nil {
		return errors.Trace(err)
	}
	passErr := w.pass(info)
	if passErr != nil {
		w.config.Logger.Errorf("%q pass failed: %v", info.Kind, passErr)
	}
	result := w.statusFor(passErr)
	if err := w.config.StatusSetter.Write(result); err != nil {
		return errors.Annotate(err, "recording status")
	}
	elapsed := w.config.Clock.Now().Sub(start)
	w.metrics.observePass(result.Status.String(), elapsed)
	if elapsed > slowPassThreshold {
		w.config.Logger.Infof("%q pass took %v", info.Kind, elapsed.Round(time.Millisecond))
	}
	w.config.Logger.Debugf("%q pass finished: %s", info.Kind, result.Status)
	return nil
}

// pass converges the host on the declared inputs. The durable state is
// only written at the end, so a failed pass leaves it untouched and the
// next event starts over from the same record.
func (w *Worker) pass(info hook.Info) error {
	attrs, err := w.config.ConfigSource.Read()
	if err != nil {
		return errors.WithType(err, dkim.ErrInvalidConfig)
	}
	cfg, err := coreconfig.NewConfig(attrs, dkim.ConfigSchema(), dkim.ConfigDefaults())
	if err != nil {
		return errors.WithType(err, dkim.ErrInvalidConfig)
	}
	charmConfig, err := dkim.ParseCharmConfig(cfg.Attributes())
	if err != nil {
		return errors.Trace(err)
	}
	records, err := w.config.Relations.All()
	if err != nil {
		return errors.Trace(err)
	}
	st, err := w.readState()
	if err != nil {
		return errors.Trace(err)
	}

	desired, err := dkim.ComputeDesired(charmConfig, records, w.config.Secrets, w.config.Paths)
	if err != nil {
		return errors.Trace(err)
	}

	if w.needsInstall(info, st, desired) {
		if err := w.install(st, desired); err != nil {
			return errors.WithType(err, ErrInstallFailed)
		}
	}

	arts, err := dkim.Render(desired)
	if err != nil {
		return errors.WithType(err, dkim.ErrInvalidConfig)
	}
	hash := dkim.Hash(arts)
	if hash == st.ConfigHash {
		w.config.Logger.Debugf("configuration unchanged, leaving the daemon alone")
	} else if err := w.apply(arts, hash, st); err != nil {
		return errors.Trace(err)
	}

	settings := desired.LocalSettings()
	for _, rec := range desired.Relations {
		if err := w.config.Relations.Publish(rec.ID, settings); err != nil {
			return errors.Trace(err)
		}
	}

	st.LastUpdated = w.config.Clock.Now().Unix()
	if err := w.config.StateStore.Write(st); err != nil {
		return errors.Annotate(err, "recording operator state")
	}
	return nil
}

func (w *Worker) readState() (*unitdata.State, error) {
	st, err := w.config.StateStore.Read()
	if errors.Is(err, unitdata.ErrNoStateFile) {
		return &unitdata.State{}, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return st, nil
}

// needsInstall reports whether the install step must run. The durable
// state is the source of truth; an upgrade event or a changed target
// version forces another install even when one is recorded.
func (w *Worker) needsInstall(info hook.Info, st *unitdata.State, desired dkim.DesiredState) bool {
	if !st.Installed || info.Kind == hook.Upgrade {
		return true
	}
	return st.Version != desired.PackageVersion
}

// install puts the package on the host under the host lock. The mail
// log retention is raised once, alongside the first install.
func (w *Worker) install(st *unitdata.State, desired dkim.DesiredState) error {
	if err := w.setStatus(status.Maintenance, "installing opendkim"); err != nil {
		return errors.Trace(err)
	}
	firstInstall := !st.Installed
	releaser, err := w.config.AcquireLock(w.lockSpec())
	if err != nil {
		return errors.Annotate(err, "acquiring host lock")
	}
	defer releaser.Release()
	if desired.PackageVersion != "" {
		w.config.Logger.Infof("installing package %q version %q", desired.PackageName, desired.PackageVersion)
	} else {
		w.config.Logger.Infof("installing package %q", desired.PackageName)
	}
	if err := w.config.Packages.Install(desired.PackageName, desired.PackageVersion); err != nil {
		return errors.Trace(err)
	}
	if version, err := w.config.Packages.InstalledVersion(desired.PackageName); err != nil {
		w.config.Logger.Warningf("cannot read installed version: %v", err)
	} else {
		w.config.Logger.Infof("package %q version %q installed", desired.PackageName, version)
	}
	if firstInstall {
		if err := logrotate.Apply(w.config.LogRotatePath, logrotate.DefaultParams()); err != nil {
			if !errors.Is(err, errors.NotFound) {
				return errors.Trace(err)
			}
			w.config.Logger.Warningf("no logrotate config at %q, mail log retention left alone", w.config.LogRotatePath)
		}
	}
	st.Installed = true
	st.Version = desired.PackageVersion
	return nil
}

// apply rewrites the daemon configuration and bounces the service. Key
// verification failures are only reported; DNS publication routinely
// lags a key rollout.
func (w *Worker) apply(arts dkim.Artifacts, hash string, st *unitdata.State) error {
	w.config.Logger.Infof("configuration changed, rewriting %q", w.config.Paths.ConfFile)
	if err := dkim.Apply(arts, w.config.Paths); err != nil {
		return errors.Trace(err)
	}
	if err := w.config.Service.ReloadOrRestart(); err != nil {
		return errors.Trace(err)
	}
	w.metrics.observeRestart()
	if err := dkim.VerifyKeys(w.config.Runner, w.config.Paths); err != nil {
		w.config.Logger.Warningf("key verification: %v", err)
	}
	st.ConfigHash = hash
	return nil
}

// statusFor maps a pass outcome onto the workload status contract:
// invalid inputs block until they change, missing secrets clear up on
// their own, anything else is retried on the next event.
func (w *Worker) statusFor(err error) status.StatusInfo {
	now := w.config.Clock.Now()
	switch {
	case err == nil:
		return status.StatusInfo{Status: status.Active, Since: &now}
	case errors.Is(err, dkim.ErrSecretUnavailable):
		return status.StatusInfo{Status: status.Waiting, Message: err.Error(), Since: &now}
	case errors.Is(err, dkim.ErrInvalidConfig):
		return status.StatusInfo{Status: status.Blocked, Message: err.Error(), Since: &now}
	default:
		// Install and host I/O failures retry on the next event.
		return status.StatusInfo{Status: status.Error, Message: err.Error(), Since: &now}
	}
}

func (w *Worker) setStatus(s status.Status, message string) error {
	now := w.config.Clock.Now()
	return errors.Trace(w.config.StatusSetter.Write(status.StatusInfo{
		Status:  s,
		Message: message,
		Since:   &now,
	}))
}

func (w *Worker) lockSpec() mutex.Spec {
	return mutex.Spec{
		Name:   hostLockName,
		Clock:  w.config.Clock,
		Delay:  250 * time.Millisecond,
		Cancel: w.catacomb.Dying(),
	}
}
