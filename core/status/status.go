// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status

import (
	"time"
)

// Status represents the workload status of the managed daemon as reported
// to the surrounding orchestration layer.
type Status string

// String returns a string representation of the Status.
func (s Status) String() string {
	return string(s)
}

const (
	// Error means the last reconcile pass failed in a way that requires
	// no human input to retry; the next event will run another pass.
	Error Status = "error"

	// Blocked means the operator needs manual intervention; typically the
	// declared configuration cannot produce a valid daemon configuration
	// until an input changes.
	Blocked Status = "blocked"

	// Waiting means the operator is waiting on an external resource it
	// expects to become available without intervention, such as a secret
	// that has not been granted yet.
	Waiting Status = "waiting"

	// Maintenance means the operator is actively working on the daemon,
	// for example installing the package or rewriting configuration.
	Maintenance Status = "maintenance"

	// Active means the daemon is installed and configured to match the
	// declared inputs.
	Active Status = "active"

	// Unknown means no status has been reported yet.
	Unknown Status = "unknown"
)

// StatusInfo holds a Status and associated information.
type StatusInfo struct {
	Status  Status
	Message string
	Data    map[string]interface{}
	Since   *time.Time
}

// ValidWorkloadStatus returns true if status has a valid value (that is
// to say, a value that it's OK to set) for the managed workload.
func ValidWorkloadStatus(status Status) bool {
	switch status {
	case
		Error,
		Blocked,
		Maintenance,
		Waiting,
		Active,
		Unknown:
		return true
	default:
		return false
	}
}
