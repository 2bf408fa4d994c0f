// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package worker holds the errors a worker returns to steer the whole
// agent process, rather than just its own manifold.
package worker

import (
	"github.com/juju/errors"
)

var (
	// ErrTerminateAgent is returned by a worker that wants the agent
	// to exit cleanly.
	ErrTerminateAgent = errors.New("agent should be terminated")

	// ErrRestartAgent is returned by a worker that wants the agent
	// process to exit in a way that has the service manager start it
	// again.
	ErrRestartAgent = errors.New("agent should be restarted")
)
