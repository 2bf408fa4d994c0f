// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dkim_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opendkim-operator/core/config"
	"github.com/canonical/opendkim-operator/internal/dkim"
)

const (
	testSecretURI = "secret:9m4e2mr0ui3e8a215n4g"

	testKeyTable = `
- [mail._domainkey.example.com, "example.com:mail:/etc/dkimkeys/mail.private"]
`
	testSigningTable = `
- ["*@example.com", mail]
`
)

func newAttrs(c *gc.C, overrides map[string]interface{}) config.ConfigAttributes {
	cfg, err := config.NewConfig(overrides, dkim.ConfigSchema(), dkim.ConfigDefaults())
	c.Assert(err, jc.ErrorIsNil)
	return cfg.Attributes()
}

func validAttrs(c *gc.C) config.ConfigAttributes {
	return newAttrs(c, map[string]interface{}{
		dkim.KeyTableOption:     testKeyTable,
		dkim.SigningTableOption: testSigningTable,
		dkim.PrivateKeysOption:  testSecretURI,
	})
}

type ConfigSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&ConfigSuite{})

func (s *ConfigSuite) TestParseCharmConfig(c *gc.C) {
	cfg, err := dkim.ParseCharmConfig(validAttrs(c))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(cfg.Canonicalization, gc.Equals, "relaxed/relaxed")
	c.Assert(cfg.Mode, gc.Equals, "sv")
	c.Assert(cfg.InternalHosts, gc.Equals, "0.0.0.0/0")
	c.Assert(cfg.SignHeaders, gc.Equals, dkim.DefaultSignHeaders)
	c.Assert(cfg.PackageVersion, gc.Equals, "")
	c.Assert(cfg.KeyTable, jc.DeepEquals, [][]string{
		{"mail._domainkey.example.com", "example.com:mail:/etc/dkimkeys/mail.private"},
	})
	c.Assert(cfg.SigningTable, jc.DeepEquals, [][]string{
		{"*@example.com", "mail"},
	})
	c.Assert(cfg.PrivateKeys.String(), gc.Equals, testSecretURI)
	c.Assert(cfg.SigningMode(), jc.IsTrue)
}

func (s *ConfigSuite) TestParseCharmConfigEmpty(c *gc.C) {
	_, err := dkim.ParseCharmConfig(newAttrs(c, nil))
	c.Assert(err, gc.ErrorMatches,
		"empty signingtable configuration - empty keytable configuration - empty private-keys configuration")
	c.Assert(err, jc.ErrorIs, dkim.ErrInvalidConfig)
}

func (s *ConfigSuite) TestParseCharmConfigBadYAML(c *gc.C) {
	attrs := newAttrs(c, map[string]interface{}{
		dkim.KeyTableOption:     "]not yaml[",
		dkim.SigningTableOption: testSigningTable,
		dkim.PrivateKeysOption:  testSecretURI,
	})
	_, err := dkim.ParseCharmConfig(attrs)
	c.Assert(err, gc.ErrorMatches, "wrong keytable format")
	c.Assert(err, jc.ErrorIs, dkim.ErrInvalidConfig)
}

func (s *ConfigSuite) TestParseCharmConfigBadSecretURI(c *gc.C) {
	attrs := newAttrs(c, map[string]interface{}{
		dkim.KeyTableOption:     testKeyTable,
		dkim.SigningTableOption: testSigningTable,
		dkim.PrivateKeysOption:  "secret:not/a/secret",
	})
	_, err := dkim.ParseCharmConfig(attrs)
	c.Assert(err, gc.ErrorMatches, `secret URI "secret:not/a/secret" not valid`)
	c.Assert(err, jc.ErrorIs, dkim.ErrInvalidConfig)
}

func (s *ConfigSuite) TestParseCharmConfigSigningTableNotPairs(c *gc.C) {
	attrs := newAttrs(c, map[string]interface{}{
		dkim.KeyTableOption:     testKeyTable,
		dkim.SigningTableOption: "- [a, b, c]",
		dkim.PrivateKeysOption:  testSecretURI,
	})
	_, err := dkim.ParseCharmConfig(attrs)
	c.Assert(err, gc.ErrorMatches, `wrong config options: signingtable\.`)
	c.Assert(err, jc.ErrorIs, dkim.ErrInvalidConfig)
}

func (s *ConfigSuite) TestParseCharmConfigNonSigningMode(c *gc.C) {
	attrs := newAttrs(c, map[string]interface{}{
		dkim.KeyTableOption:     testKeyTable,
		dkim.SigningTableOption: testSigningTable,
		dkim.PrivateKeysOption:  testSecretURI,
		dkim.ModeOption:         "v",
	})
	cfg, err := dkim.ParseCharmConfig(attrs)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(cfg.SigningMode(), jc.IsFalse)
}

func (s *ConfigSuite) TestErrorsRecognisable(c *gc.C) {
	_, err := dkim.ParseCharmConfig(newAttrs(c, nil))
	c.Assert(errors.Is(err, dkim.ErrInvalidConfig), jc.IsTrue)
	c.Assert(errors.Is(err, dkim.ErrSecretUnavailable), jc.IsFalse)
}
