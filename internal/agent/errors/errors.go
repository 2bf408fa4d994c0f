// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package errors holds the fatality rules the agent's dependency
// engine runs under: which worker errors stop the whole engine, and
// which of two such errors the engine should report.
package errors

import (
	"github.com/juju/errors"

	jworker "github.com/canonical/opendkim-operator/internal/worker"
)

// FatalError is an error type designated for fatal errors. Wrapping it
// into any error makes that error fatal to the engine.
const FatalError = errors.ConstError("fatal")

// IsFatal reports whether err should stop the whole engine rather than
// restart the worker that returned it.
func IsFatal(err error) bool {
	err = errors.Cause(err)
	switch err {
	case jworker.ErrTerminateAgent, jworker.ErrRestartAgent:
		return true
	}
	return errors.Is(err, FatalError)
}

// MoreImportant reports whether err0 is more important than err1 -
// that is, whether we should act on err0 in preference to err1.
func MoreImportant(err0, err1 error) bool {
	return importance(err0) > importance(err1)
}

// MoreImportantError returns the most important of the two errors.
func MoreImportantError(err0, err1 error) error {
	if importance(err0) > importance(err1) {
		return err0
	}
	return err1
}

func importance(err error) int {
	err = errors.Cause(err)
	switch {
	case err == nil:
		return 0
	case err == jworker.ErrRestartAgent:
		return 2
	case err == jworker.ErrTerminateAgent:
		return 3
	default:
		return 1
	}
}
