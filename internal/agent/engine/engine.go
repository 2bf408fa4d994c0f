// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package engine holds the agent's dependency engine plumbing: the
// standard engine configuration and the value-worker helpers the
// composition manifolds are built from.
package engine

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4/dependency"

	agenterrors "github.com/canonical/opendkim-operator/internal/agent/errors"
)

// DependencyEngineConfig returns a dependency engine config used by
// the agent. The errors package decides which worker errors are fatal
// to the engine; everything else restarts under the backoff values
// here.
func DependencyEngineConfig(metrics dependency.Metrics, logger loggo.Logger) dependency.EngineConfig {
	return dependency.EngineConfig{
		IsFatal:          agenterrors.IsFatal,
		WorstError:       agenterrors.MoreImportantError,
		ErrorDelay:       3 * time.Second,
		BounceDelay:      10 * time.Millisecond,
		BackoffFactor:    1.2,
		BackoffResetTime: 1 * time.Minute,
		MaxDelay:         2 * time.Minute,
		Clock:            clock.WallClock,
		Metrics:          metrics,
		Logger:           logger,
	}
}
