// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dkim_test

import (
	"encoding/base64"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opendkim-operator/core/relation"
	"github.com/canonical/opendkim-operator/core/secrets"
	"github.com/canonical/opendkim-operator/internal/dkim"
)

type stubResolver struct {
	stub  *testing.Stub
	value secrets.SecretValue
}

func (r *stubResolver) Resolve(uri *secrets.URI) (secrets.SecretValue, error) {
	r.stub.AddCall("Resolve", uri.String())
	if err := r.stub.NextErr(); err != nil {
		return nil, err
	}
	return r.value, nil
}

type DesiredSuite struct {
	testing.IsolationSuite

	stub     *testing.Stub
	resolver *stubResolver
	paths    dkim.Paths
}

var _ = gc.Suite(&DesiredSuite{})

func (s *DesiredSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.stub = &testing.Stub{}
	s.resolver = &stubResolver{
		stub: s.stub,
		value: secrets.NewSecretValue(map[string]string{
			"mail": base64.StdEncoding.EncodeToString([]byte("PRIVATE KEY PEM")),
		}),
	}
	s.paths = dkim.Paths{ConfFile: "/etc/opendkim.conf", KeysDir: "/etc/dkimkeys"}
}

func (s *DesiredSuite) parseConfig(c *gc.C) dkim.CharmConfig {
	cfg, err := dkim.ParseCharmConfig(validAttrs(c))
	c.Assert(err, jc.ErrorIsNil)
	return cfg
}

func (s *DesiredSuite) TestComputeDesired(c *gc.C) {
	cfg := s.parseConfig(c)
	desired, err := dkim.ComputeDesired(cfg, nil, s.resolver, s.paths)
	c.Assert(err, jc.ErrorIsNil)

	s.stub.CheckCallNames(c, "Resolve")
	s.stub.CheckCall(c, 0, "Resolve", testSecretURI)

	c.Assert(desired.PackageName, gc.Equals, "opendkim")
	c.Assert(desired.PackageVersion, gc.Equals, "")
	c.Assert(desired.MilterPort, gc.Equals, 8892)
	c.Assert(desired.Conf.Socket, gc.Equals, "inet:8892")
	c.Assert(desired.Conf.InternalHosts, gc.Equals, "0.0.0.0/0")
	c.Assert(desired.Conf.KeyTablePath, gc.Equals, "/etc/dkimkeys/keytable")
	c.Assert(desired.Conf.SigningTablePath, gc.Equals, "/etc/dkimkeys/signingtable")
	c.Assert(desired.KeyTable, jc.DeepEquals, []string{
		"mail._domainkey.example.com example.com:mail:/etc/dkimkeys/mail.private",
	})
	c.Assert(desired.SigningTable, jc.DeepEquals, []string{
		"*@example.com mail",
	})
	c.Assert(desired.Keys, jc.DeepEquals, map[string]string{
		"mail": "PRIVATE KEY PEM",
	})
}

func (s *DesiredSuite) TestLocalSettings(c *gc.C) {
	cfg := s.parseConfig(c)
	desired, err := dkim.ComputeDesired(cfg, nil, s.resolver, s.paths)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(desired.LocalSettings(), jc.DeepEquals, relation.Settings{"port": "8892"})
}

func (s *DesiredSuite) TestPeerAddressesSortedAndDeduplicated(c *gc.C) {
	cfg := s.parseConfig(c)
	records := []relation.Record{{
		ID:          "milter:1",
		Application: "postfix",
		Interface:   "milter",
		Settings:    relation.Settings{"address": "10.10.0.2"},
	}, {
		ID:          "milter:0",
		Application: "exim",
		Interface:   "milter",
		Settings:    relation.Settings{"address": "10.10.0.1"},
	}, {
		ID:          "milter:2",
		Application: "relay",
		Interface:   "milter",
		Settings:    relation.Settings{"address": "10.10.0.2"},
	}}
	desired, err := dkim.ComputeDesired(cfg, records, s.resolver, s.paths)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(desired.Conf.InternalHosts, gc.Equals, "0.0.0.0/0,10.10.0.1,10.10.0.2")
}

func (s *DesiredSuite) TestOrderIndependence(c *gc.C) {
	cfg := s.parseConfig(c)
	forward := []relation.Record{{
		ID: "milter:0", Application: "exim", Interface: "milter",
		Settings: relation.Settings{"address": "10.0.0.1"},
	}, {
		ID: "milter:1", Application: "postfix", Interface: "milter",
		Settings: relation.Settings{"address": "10.0.0.2"},
	}}
	reversed := []relation.Record{forward[1], forward[0]}

	a, err := dkim.ComputeDesired(cfg, forward, s.resolver, s.paths)
	c.Assert(err, jc.ErrorIsNil)
	b, err := dkim.ComputeDesired(cfg, reversed, s.resolver, s.paths)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(a, jc.DeepEquals, b)
}

func (s *DesiredSuite) TestInputsNotMutated(c *gc.C) {
	cfg := s.parseConfig(c)
	records := []relation.Record{{
		ID: "milter:1", Application: "postfix", Interface: "milter",
	}, {
		ID: "milter:0", Application: "exim", Interface: "milter",
	}}
	_, err := dkim.ComputeDesired(cfg, records, s.resolver, s.paths)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(records[0].Application, gc.Equals, "postfix")
}

func (s *DesiredSuite) TestInvalidRelation(c *gc.C) {
	cfg := s.parseConfig(c)
	records := []relation.Record{{
		ID: "db:0", Application: "postfix", Interface: "pgsql",
	}}
	_, err := dkim.ComputeDesired(cfg, records, s.resolver, s.paths)
	c.Assert(err, jc.ErrorIs, dkim.ErrInvalidConfig)
	c.Assert(err, gc.ErrorMatches, `relation interface "pgsql" not valid`)
}

func (s *DesiredSuite) TestSecretUnavailable(c *gc.C) {
	cfg := s.parseConfig(c)
	s.stub.SetErrors(errors.NotFoundf("secret"))
	_, err := dkim.ComputeDesired(cfg, nil, s.resolver, s.paths)
	c.Assert(err, jc.ErrorIs, dkim.ErrSecretUnavailable)
	c.Assert(err, gc.ErrorMatches, "resolving private-keys secret: secret not found")
}

func (s *DesiredSuite) TestBadKeyContent(c *gc.C) {
	cfg := s.parseConfig(c)
	s.resolver.value = secrets.NewSecretValue(map[string]string{
		"mail": "%%% not base64 %%%",
	})
	_, err := dkim.ComputeDesired(cfg, nil, s.resolver, s.paths)
	c.Assert(err, jc.ErrorIs, dkim.ErrInvalidConfig)
}

func (s *DesiredSuite) TestBadKeyName(c *gc.C) {
	cfg := s.parseConfig(c)
	s.resolver.value = secrets.NewSecretValue(map[string]string{
		"../evil": base64.StdEncoding.EncodeToString([]byte("PEM")),
	})
	_, err := dkim.ComputeDesired(cfg, nil, s.resolver, s.paths)
	c.Assert(err, jc.ErrorIs, dkim.ErrInvalidConfig)
	c.Assert(err, gc.ErrorMatches, `wrong private key name "\.\./evil"`)
}
