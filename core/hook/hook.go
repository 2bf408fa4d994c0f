// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hook provides types that define the lifecycle events known to
// the operator. Every event, whatever its kind, triggers one reconcile
// pass; the kind and payload only tell the pass which inputs to re-read.
package hook

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// Kind enumerates the event kinds delivered to the operator.
type Kind string

const (
	// Install is delivered once when the unit first comes up, before
	// anything else.
	Install Kind = "install"

	// Upgrade asks the operator to reconsider the installed package
	// against the declared target version.
	Upgrade Kind = "upgrade"

	// ConfigChanged signals a change to the declared charm options.
	ConfigChanged Kind = "config-changed"

	// SecretChanged signals that the content behind a secret reference
	// has changed or become available.
	SecretChanged Kind = "secret-changed"

	// RelationChanged signals that a relation was created or its remote
	// settings changed.
	RelationChanged Kind = "relation-changed"

	// RelationDeparted signals that a relation was removed.
	RelationDeparted Kind = "relation-departed"

	// UpdateStatus is the periodic nudge; it carries no payload and
	// simply re-runs convergence against current inputs.
	UpdateStatus Kind = "update-status"

	// Start and Stop bracket the unit lifecycle.
	Start Kind = "start"
	Stop  Kind = "stop"
)

var validKinds = set.NewStrings(
	string(Install),
	string(Upgrade),
	string(ConfigChanged),
	string(SecretChanged),
	string(RelationChanged),
	string(RelationDeparted),
	string(UpdateStatus),
	string(Start),
	string(Stop),
)

// Kinds returns the set of valid event kinds.
func Kinds() set.Strings {
	return set.NewStrings(validKinds.Values()...)
}

// IsRelation reports whether the kind carries relation identity.
func (k Kind) IsRelation() bool {
	return k == RelationChanged || k == RelationDeparted
}

// Info holds details required to process an event. Not all fields are
// relevant to all Kind values.
type Info struct {
	Kind Kind `yaml:"kind"`

	// RelationId identifies the relation associated with the event. It is
	// only set when Kind indicates a relation event.
	RelationId string `yaml:"relation-id,omitempty"`

	// RemoteApp is the name of the application on the other side of the
	// relation. It is only set when RelationId is set.
	RemoteApp string `yaml:"remote-app,omitempty"`

	// SecretURI identifies the secret associated with the event. It is
	// only set when Kind is SecretChanged.
	SecretURI string `yaml:"secret-uri,omitempty"`
}

// Validate returns an error if the info is not valid.
func (hi Info) Validate() error {
	switch hi.Kind {
	case RelationChanged, RelationDeparted:
		if hi.RelationId == "" {
			return errors.Errorf("%q event requires a relation id", hi.Kind)
		}
		return nil
	case SecretChanged:
		if hi.SecretURI == "" {
			return errors.Errorf("%q event requires a secret URI", hi.Kind)
		}
		return nil
	case Install, Upgrade, ConfigChanged, UpdateStatus, Start, Stop:
		return nil
	}
	return errors.Errorf("unknown event kind %q", hi.Kind)
}
