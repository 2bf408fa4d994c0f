// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitdata

import (
	"os"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// ConfigSource reads the declared charm options from the data dir.
type ConfigSource struct {
	path string
}

// NewConfigSource returns a ConfigSource reading from paths.
func NewConfigSource(paths Paths) *ConfigSource {
	return &ConfigSource{path: paths.ConfigFile()}
}

// Read returns the charm options currently presented to the operator.
// A missing document is an empty configuration, which the reconciler
// reports as blocked rather than failing the pass.
func (s *ConfigSource) Read() (map[string]interface{}, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	var attrs map[string]interface{}
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return nil, errors.Annotatef(err, "parsing charm config %q", s.path)
	}
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	return attrs, nil
}
