// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitdata

import (
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"

	"github.com/canonical/opendkim-operator/core/status"
)

// StatusFile persists the last workload status the operator reported,
// so the status of a unit can be inspected without an agent round trip.
type StatusFile struct {
	path string
}

// NewStatusFile returns a StatusFile at path.
func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path}
}

type statusDoc struct {
	Status  string     `yaml:"status"`
	Message string     `yaml:"message,omitempty"`
	Since   *time.Time `yaml:"since,omitempty"`
}

// Write records the supplied status.
func (f *StatusFile) Write(info status.StatusInfo) error {
	if !status.ValidWorkloadStatus(info.Status) {
		return errors.NotValidf("workload status %q", info.Status)
	}
	doc := statusDoc{
		Status:  info.Status.String(),
		Message: info.Message,
		Since:   info.Since,
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(utils.AtomicWriteFile(f.path, data, 0644))
}

// Read returns the last recorded status, or an error satisfying
// errors.IsNotFound if none has been recorded yet.
func (f *StatusFile) Read() (status.StatusInfo, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return status.StatusInfo{}, errors.NotFoundf("status")
	} else if err != nil {
		return status.StatusInfo{}, errors.Trace(err)
	}
	var doc statusDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return status.StatusInfo{}, errors.Annotatef(err, "parsing status %q", f.path)
	}
	info := status.StatusInfo{
		Status:  status.Status(doc.Status),
		Message: doc.Message,
		Since:   doc.Since,
	}
	if !status.ValidWorkloadStatus(info.Status) {
		return status.StatusInfo{}, errors.NotValidf("recorded status %q", doc.Status)
	}
	return info, nil
}
