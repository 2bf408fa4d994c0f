// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitdata

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"

	"github.com/canonical/opendkim-operator/core/relation"
)

// Relations reads established relations from the data dir and writes
// back the settings this unit publishes on them.
type Relations struct {
	dir string
}

// NewRelations returns Relations reading from paths.
func NewRelations(paths Paths) *Relations {
	return &Relations{dir: paths.RelationsDir()}
}

// All returns a record for every relation document present. A departed
// relation is simply an absent file. Documents that do not parse are
// skipped with a warning; semantic validation is left to the caller so
// that a bad relation surfaces through the usual error mapping instead
// of silently vanishing.
func (r *Relations) All() ([]relation.Record, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	var records []relation.Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, localSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			return nil, errors.Trace(err)
		}
		var rec relation.Record
		if err := yaml.Unmarshal(data, &rec); err != nil {
			logger.Warningf("ignoring malformed relation document %q: %v", name, err)
			continue
		}
		// The file name is the relation's identity.
		rec.ID = strings.TrimSuffix(name, ".yaml")
		records = append(records, rec)
	}
	return records, nil
}

// Publish records the settings this unit exposes on the identified
// relation. Unchanged settings are left alone so a steady-state pass
// does not dirty the data dir.
func (r *Relations) Publish(id string, settings relation.Settings) error {
	if !validFileID(id) {
		return errors.NotValidf("relation id %q", id)
	}
	path := filepath.Join(r.dir, id+localSuffix)
	current, err := r.readLocal(path)
	if err != nil {
		return errors.Trace(err)
	}
	if reflect.DeepEqual(current, settings) {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return errors.Trace(err)
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return errors.Trace(err)
	}
	if err := utils.AtomicWriteFile(path, data, 0644); err != nil {
		return errors.Annotatef(err, "publishing settings for relation %q", id)
	}
	logger.Debugf("published settings for relation %q", id)
	return nil
}

func (r *Relations) readLocal(path string) (relation.Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	var settings relation.Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		// A mangled local document is rewritten on the next publish.
		return nil, nil
	}
	return settings, nil
}
