// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dkim

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/canonical/opendkim-operator/core/relation"
	"github.com/canonical/opendkim-operator/core/secrets"
)

// ErrSecretUnavailable tags errors raised when referenced secret
// content cannot be resolved. Secrets may be granted after the
// configuration that names them, so callers treat this as a waiting
// condition rather than a blocked one.
const ErrSecretUnavailable = errors.ConstError("secret unavailable")

// SecretResolver resolves a secret reference to its content.
type SecretResolver interface {
	Resolve(uri *secrets.URI) (secrets.SecretValue, error)
}

// AddressSetting is the relation key a milter peer may publish to have
// its endpoint included in the rendered configuration.
const AddressSetting = "address"

// PortSetting is the relation key the operator publishes so peers can
// find the milter port.
const PortSetting = "port"

// DesiredState is the complete state one reconcile pass converges
// toward. It is derived from current inputs alone and discarded when
// the pass ends; the durable record of what was applied lives
// elsewhere.
type DesiredState struct {
	PackageName    string
	PackageVersion string
	Conf           ConfModel
	KeyTable       []string
	SigningTable   []string
	Keys           map[string]string
	Relations      []relation.Record
	MilterPort     int
}

// LocalSettings returns the relation data published to every milter
// peer.
func (d DesiredState) LocalSettings() relation.Settings {
	return relation.Settings{PortSetting: strconv.Itoa(d.MilterPort)}
}

var validKeyName = regexp.MustCompile(`^[0-9A-Za-z._-]+$`)

// ComputeDesired derives the desired state from the declared config,
// the current relation set and the secret store. Relations are sorted
// by remote application identity first, so the result depends only on
// the set of inputs and never on arrival order.
func ComputeDesired(cfg CharmConfig, relations []relation.Record, resolver SecretResolver, paths Paths) (DesiredState, error) {
	recs := make([]relation.Record, len(relations))
	copy(recs, relations)
	relation.Sort(recs)

	peerHosts := set.NewStrings()
	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			return DesiredState{}, errors.WithType(err, ErrInvalidConfig)
		}
		if addr := rec.Settings[AddressSetting]; addr != "" {
			peerHosts.Add(addr)
		}
	}

	value, err := resolver.Resolve(cfg.PrivateKeys)
	if err != nil {
		return DesiredState{}, errors.WithType(errors.Annotate(err, "resolving private-keys secret"), ErrSecretUnavailable)
	}
	keys, err := value.Values()
	if err != nil {
		return DesiredState{}, errors.WithType(errors.Annotate(err, "decoding private-keys secret"), ErrInvalidConfig)
	}
	for name := range keys {
		if !validKeyName.MatchString(name) {
			return DesiredState{}, errors.WithType(errors.Errorf("wrong private key name %q", name), ErrInvalidConfig)
		}
	}

	desired := DesiredState{
		PackageName:    PackageName,
		PackageVersion: cfg.PackageVersion,
		Conf: ConfModel{
			Canonicalization: cfg.Canonicalization,
			Mode:             cfg.Mode,
			Socket:           fmt.Sprintf("inet:%d", MilterPort),
			SignHeaders:      cfg.SignHeaders,
			InternalHosts:    internalHosts(cfg.InternalHosts, peerHosts),
			KeyTablePath:     paths.KeyTableFile(),
			SigningTablePath: paths.SigningTableFile(),
		},
		KeyTable:     joinRows(cfg.KeyTable),
		SigningTable: joinRows(cfg.SigningTable),
		Keys:         keys,
		Relations:    recs,
		MilterPort:   MilterPort,
	}
	return desired, nil
}

// internalHosts appends each peer endpoint to the declared internal
// host set so that mail from related relays is signed, not verified.
func internalHosts(base string, peers set.Strings) string {
	hosts := []string{base}
	hosts = append(hosts, peers.SortedValues()...)
	return strings.Join(hosts, ",")
}

func joinRows(rows [][]string) []string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, " ")
	}
	return lines
}
