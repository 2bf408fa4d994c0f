// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitdata

import (
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// State is the operator's durable record of what has been done to the
// machine. Everything else is recomputed from inputs on every pass.
type State struct {
	// Installed records whether the milter package install completed.
	Installed bool `yaml:"installed"`

	// Version is the package version recorded when install completed.
	Version string `yaml:"version,omitempty"`

	// ConfigHash identifies the last configuration applied to the
	// host. An empty hash means nothing has been rendered yet.
	ConfigHash string `yaml:"config-hash,omitempty"`

	// LastUpdated records the wall time of the last write, as Unix
	// seconds. The yaml encoder cannot encode the time.Time struct.
	LastUpdated int64 `yaml:"last-updated,omitempty"`
}

// LastUpdatedAt returns the time of the last state write.
func (st State) LastUpdatedAt() time.Time {
	return time.Unix(st.LastUpdated, 0)
}

// validate returns an error if the state violates expectations.
func (st State) validate() (err error) {
	defer errors.DeferredAnnotatef(&err, "invalid operator state")
	if !st.Installed {
		if st.Version != "" {
			return errors.New("version recorded without install")
		}
		if st.ConfigHash != "" {
			return errors.New("config hash recorded without install")
		}
	}
	return nil
}

// ErrNoStateFile reports that the operator has never written state.
var ErrNoStateFile = errors.New("operator state file does not exist")

// StateFile holds the disk state for an operator.
type StateFile struct {
	path string
}

// NewStateFile returns a new StateFile using path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path}
}

// Read reads a State from the file. If the file does not exist it
// returns ErrNoStateFile.
func (f *StateFile) Read() (*State, error) {
	var st State
	if err := utils.ReadYaml(f.path, &st); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoStateFile
		}
		return nil, errors.Trace(err)
	}
	if err := st.validate(); err != nil {
		return nil, errors.Annotatef(err, "cannot read operator state at %q", f.path)
	}
	return &st, nil
}

// Write stores the supplied state to the file.
func (f *StateFile) Write(st *State) error {
	if err := st.validate(); err != nil {
		return errors.Trace(err)
	}
	return utils.WriteYaml(f.path, st)
}
