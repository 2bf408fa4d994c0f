// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package secrets defines references to secret content held by the
// orchestrator's secret store. The operator only ever holds references;
// content is resolved at the point of use and never retained, logged,
// or published.
package secrets

import (
	"strings"

	"github.com/juju/errors"
	"github.com/rs/xid"
)

// SecretScheme is the URI scheme for secret references.
const SecretScheme = "secret"

// URI holds the reference to a secret.
type URI struct {
	ID string
}

// ParseURI parses the specified string into a URI. Both the bare ID and
// the "secret:<id>" form are accepted.
func ParseURI(str string) (*URI, error) {
	id := str
	if strings.HasPrefix(str, SecretScheme+":") {
		id = str[len(SecretScheme)+1:]
	}
	if _, err := xid.FromString(id); err != nil {
		return nil, errors.NotValidf("secret URI %q", str)
	}
	return &URI{ID: id}, nil
}

// String prints the URI as a string.
func (u *URI) String() string {
	if u == nil {
		return ""
	}
	return SecretScheme + ":" + u.ID
}
