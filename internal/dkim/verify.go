// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dkim

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"github.com/juju/utils/v4/exec"
)

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

// VerifyKeys checks the DNS-published counterpart of every signing key
// with opendkim-testkey. DNS publication typically lags a key rollout,
// so callers treat a failure as advisory rather than fatal.
func VerifyKeys(runner CommandRunner, paths Paths) error {
	result, err := runner.RunCommands(exec.RunParams{
		Commands: fmt.Sprintf("opendkim-testkey -x %s -vv", utils.ShQuote(paths.ConfFile)),
	})
	if err != nil {
		return errors.Trace(err)
	}
	if result.Code != 0 {
		return errors.Errorf("opendkim-testkey: %s", strings.TrimSpace(string(result.Stderr)))
	}
	return nil
}
