// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package packaging installs the milter package from the Ubuntu archive
// and reports what is currently on the machine.
package packaging

import (
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/packaging/v2/manager"
	"github.com/juju/proxy"
	"github.com/juju/retry"
	"github.com/juju/utils/v4"
	"github.com/juju/utils/v4/exec"
)

var logger = loggo.GetLogger("opendkim.packaging")

const (
	// aptAttempts and aptDelay bound how long an install waits out a
	// concurrent apt run holding the dpkg lock.
	aptAttempts = 10
	aptDelay    = 10 * time.Second
)

// Manager installs Debian packages and reports their installed state.
type Manager interface {
	// Install installs the named package, pinned to version when
	// version is not empty.
	Install(name, version string) error

	// IsInstalled reports whether the named package is installed.
	IsInstalled(name string) bool

	// InstalledVersion returns the version of the named package, or an
	// error satisfying errors.IsNotFound if it is not installed.
	InstalledVersion(name string) (string, error)
}

// AptManager is the slice of the apt package manager API used here. It
// is satisfied by manager.NewAptPackageManager().
type AptManager interface {
	Update() error
	Install(packs ...string) error
	IsInstalled(pack string) bool
	SetProxy(settings proxy.Settings) error
}

// CommandRunner runs commands on the host.
type CommandRunner interface {
	RunCommands(run exec.RunParams) (*exec.ExecResponse, error)
}

type defaultRunner struct{}

func (defaultRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	return exec.RunCommands(run)
}

// NewCommandRunner returns a CommandRunner executing on the host.
func NewCommandRunner() CommandRunner {
	return defaultRunner{}
}

// Config holds the dependencies of a Manager.
type Config struct {
	// Apt drives apt-get on the host.
	Apt AptManager

	// Runner executes package query commands.
	Runner CommandRunner

	// Clock paces retries while apt is locked.
	Clock clock.Clock

	// Proxy holds apt proxy settings, applied before the first
	// install. Empty settings leave the host configuration alone.
	Proxy proxy.Settings
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.Apt == nil {
		return errors.NotValidf("nil Apt")
	}
	if config.Runner == nil {
		return errors.NotValidf("nil Runner")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// NewManager returns a Manager backed by the supplied config.
func NewManager(config Config) (Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &aptPackages{config: config}, nil
}

// NewHostManager returns a Manager operating on the local machine.
func NewHostManager(clk clock.Clock, proxySettings proxy.Settings) (Manager, error) {
	return NewManager(Config{
		Apt:    manager.NewAptPackageManager(),
		Runner: NewCommandRunner(),
		Clock:  clk,
		Proxy:  proxySettings,
	})
}

type aptPackages struct {
	config Config
}

// Install is part of the Manager interface.
func (p *aptPackages) Install(name, version string) error {
	spec := name
	if version != "" {
		spec = name + "=" + version
	}
	if p.config.Proxy != (proxy.Settings{}) {
		if err := p.config.Apt.SetProxy(p.config.Proxy); err != nil {
			return errors.Annotate(err, "configuring apt proxy")
		}
	}
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			if err := p.config.Apt.Update(); err != nil {
				return errors.Trace(err)
			}
			return errors.Trace(p.config.Apt.Install(spec))
		},
		IsFatalError: func(err error) bool {
			return !isAptLockError(err)
		},
		NotifyFunc: func(lastError error, attempt int) {
			logger.Warningf("apt is busy, will retry: %v", lastError)
		},
		Attempts: aptAttempts,
		Delay:    aptDelay,
		Clock:    p.config.Clock,
	})
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	if err != nil {
		return errors.Annotatef(err, "installing package %q", spec)
	}
	logger.Infof("installed package %q", spec)
	return nil
}

// IsInstalled is part of the Manager interface.
func (p *aptPackages) IsInstalled(name string) bool {
	return p.config.Apt.IsInstalled(name)
}

// InstalledVersion is part of the Manager interface.
func (p *aptPackages) InstalledVersion(name string) (string, error) {
	result, err := p.config.Runner.RunCommands(exec.RunParams{
		Commands: fmt.Sprintf("dpkg-query -W -f '${Version}' %s", utils.ShQuote(name)),
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	if result.Code != 0 {
		return "", errors.NotFoundf("package %q", name)
	}
	version := strings.TrimSpace(string(result.Stdout))
	if version == "" {
		return "", errors.NotFoundf("package %q", name)
	}
	return version, nil
}

// isAptLockError reports whether err looks like apt or dpkg failing to
// take the archive lock because another package run is in flight.
func isAptLockError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not get lock") ||
		strings.Contains(msg, "dpkg frontend lock") ||
		strings.Contains(msg, "is another process using it")
}
