// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package relation defines the operator's view of an integration with a
// peer application. The operator only ever speaks the milter interface;
// a Record captures one remote application's side of that conversation.
package relation

import (
	"sort"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
)

// MilterInterface is the only interface the operator relates over.
const MilterInterface = "milter"

// Settings holds the key-value data one side publishes on a relation.
type Settings map[string]string

// Record describes one relation with a remote application. Records are
// uniquely keyed by the remote application identity; a relation appears
// when the peer joins and disappears when it departs.
type Record struct {
	// ID is the orchestrator's identifier for the relation,
	// e.g. "milter:0".
	ID string `yaml:"id"`

	// Application is the remote application name.
	Application string `yaml:"application"`

	// Interface is the interface name negotiated for the relation.
	// Only MilterInterface is valid.
	Interface string `yaml:"interface"`

	// Settings holds the keys the remote side has published.
	Settings Settings `yaml:"data,omitempty"`
}

// Validate returns an error if the record cannot identify a usable
// milter peer.
func (r Record) Validate() error {
	if r.ID == "" {
		return errors.NotValidf("relation record without id")
	}
	if !names.IsValidApplication(r.Application) {
		return errors.NotValidf("remote application name %q", r.Application)
	}
	if r.Interface != MilterInterface {
		return errors.NotValidf("relation interface %q", r.Interface)
	}
	return nil
}

// Sort orders records lexicographically by remote application identity,
// then by relation ID. Reconciliation sorts before rendering so that the
// outcome depends on the set of relations, never on arrival order.
func Sort(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Application != records[j].Application {
			return records[i].Application < records[j].Application
		}
		return records[i].ID < records[j].ID
	})
}
