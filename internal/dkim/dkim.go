// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package dkim models the OpenDKIM workload: the daemon configuration
// derived from declared options, relations and secret material, and
// the steps that put it on disk. Everything here is computed fresh per
// reconcile pass; nothing retains state between passes.
package dkim

import (
	"strings"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/juju/environschema.v1"
	"gopkg.in/yaml.v3"

	"github.com/canonical/opendkim-operator/core/config"
	"github.com/canonical/opendkim-operator/core/secrets"
)

const (
	// PackageName is the apt package that ships the daemon.
	PackageName = "opendkim"

	// ServiceName is the systemd unit the operator manages.
	ServiceName = "opendkim"

	// DaemonUser owns the daemon's key material.
	DaemonUser = "opendkim"

	// MilterPort is the TCP port the daemon serves the milter
	// protocol on.
	MilterPort = 8892

	// ConfPath is the daemon's configuration file.
	ConfPath = "/etc/opendkim.conf"

	// KeysDir holds the key tables and private key files.
	KeysDir = "/etc/dkimkeys"
)

// DefaultSignHeaders is the recommended set of header fields to sign,
// per RFC 6376 section 5.4.
const DefaultSignHeaders = "From,Reply-To,Subject,Date,To,Cc" +
	",Resent-From,Resent-Date,Resent-To,Resent-Cc" +
	",In-Reply-To,References" +
	",MIME-Version,Message-ID,Content-Type"

const (
	defaultCanonicalization = "relaxed/relaxed"
	defaultMode             = "sv"
	defaultInternalHosts    = "0.0.0.0/0"
)

// Option names accepted in the declared configuration.
const (
	KeyTableOption         = "keytable"
	SigningTableOption     = "signingtable"
	PrivateKeysOption      = "private-keys"
	CanonicalizationOption = "canonicalization"
	ModeOption             = "mode"
	InternalHostsOption    = "internalhosts"
	SignHeadersOption      = "signheaders"
	PackageVersionOption   = "package-version"
)

// ErrInvalidConfig tags errors raised when the declared options cannot
// produce a valid daemon configuration. Nothing will change until an
// input changes, so callers surface these as a blocked condition.
const ErrInvalidConfig = errors.ConstError("invalid configuration")

// ConfigSchema defines the declared options.
func ConfigSchema() environschema.Fields {
	return environschema.Fields{
		KeyTableOption: {
			Description: "KeyTable rows as a YAML list of row lists",
			Type:        environschema.Tstring,
			Group:       environschema.EnvironGroup,
		},
		SigningTableOption: {
			Description: "SigningTable rows as a YAML list of [pattern, keyname] pairs",
			Type:        environschema.Tstring,
			Group:       environschema.EnvironGroup,
		},
		PrivateKeysOption: {
			Description: "Secret URI holding the private signing keys, one entry per key name",
			Type:        environschema.Tstring,
			Group:       environschema.EnvironGroup,
		},
		CanonicalizationOption: {
			Description: "DKIM canonicalization scheme",
			Type:        environschema.Tstring,
			Group:       environschema.EnvironGroup,
		},
		ModeOption: {
			Description: "Daemon mode; any combination of s (sign) and v (verify)",
			Type:        environschema.Tstring,
			Group:       environschema.EnvironGroup,
		},
		InternalHostsOption: {
			Description: "Hosts whose mail is signed rather than verified",
			Type:        environschema.Tstring,
			Group:       environschema.EnvironGroup,
		},
		SignHeadersOption: {
			Description: "Header fields to sign",
			Type:        environschema.Tstring,
			Group:       environschema.EnvironGroup,
		},
		PackageVersionOption: {
			Description: "Target package version; empty installs the distribution default",
			Type:        environschema.Tstring,
			Group:       environschema.EnvironGroup,
		},
	}
}

// ConfigDefaults supplies the defaults for optional options. The three
// required options default to empty so that parsing can report exactly
// which ones are missing.
func ConfigDefaults() schema.Defaults {
	return schema.Defaults{
		KeyTableOption:         "",
		SigningTableOption:     "",
		PrivateKeysOption:      "",
		CanonicalizationOption: defaultCanonicalization,
		ModeOption:             defaultMode,
		InternalHostsOption:    defaultInternalHosts,
		SignHeadersOption:      DefaultSignHeaders,
		PackageVersionOption:   "",
	}
}

// CharmConfig is the typed view of the declared options.
type CharmConfig struct {
	Canonicalization string
	Mode             string
	SignHeaders      string
	InternalHosts    string
	PackageVersion   string
	KeyTable         [][]string
	SigningTable     [][]string
	PrivateKeys      *secrets.URI
}

// SigningMode reports whether the daemon signs outgoing mail.
func (c CharmConfig) SigningMode() bool {
	return strings.Contains(c.Mode, "s")
}

// ParseCharmConfig builds a CharmConfig from schema-validated
// attributes. Shape problems in the required options are reported
// together, joined with " - ", the message format operators already
// know from the charm.
func ParseCharmConfig(attrs config.ConfigAttributes) (CharmConfig, error) {
	var errs []string

	signingTable, err := parseTableOption(attrs, SigningTableOption)
	if err != nil {
		errs = append(errs, err.Error())
	}
	keyTable, err := parseTableOption(attrs, KeyTableOption)
	if err != nil {
		errs = append(errs, err.Error())
	}

	var uri *secrets.URI
	uriStr := attrs.GetString(PrivateKeysOption, "")
	if uriStr == "" {
		errs = append(errs, "empty private-keys configuration")
	} else if uri, err = secrets.ParseURI(uriStr); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return CharmConfig{}, errors.WithType(errors.New(strings.Join(errs, " - ")), ErrInvalidConfig)
	}
	for _, row := range signingTable {
		if len(row) != 2 {
			return CharmConfig{}, errors.WithType(errors.New("wrong config options: signingtable."), ErrInvalidConfig)
		}
	}
	return CharmConfig{
		Canonicalization: attrs.GetString(CanonicalizationOption, defaultCanonicalization),
		Mode:             attrs.GetString(ModeOption, defaultMode),
		SignHeaders:      attrs.GetString(SignHeadersOption, DefaultSignHeaders),
		InternalHosts:    attrs.GetString(InternalHostsOption, defaultInternalHosts),
		PackageVersion:   attrs.GetString(PackageVersionOption, ""),
		KeyTable:         keyTable,
		SigningTable:     signingTable,
		PrivateKeys:      uri,
	}, nil
}

func parseTableOption(attrs config.ConfigAttributes, name string) ([][]string, error) {
	value := attrs.GetString(name, "")
	if value == "" {
		return nil, errors.Errorf("empty %s configuration", name)
	}
	var rows [][]string
	if err := yaml.Unmarshal([]byte(value), &rows); err != nil {
		return nil, errors.Errorf("wrong %s format", name)
	}
	return rows, nil
}
