// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitdata_test

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opendkim-operator/core/relation"
	"github.com/canonical/opendkim-operator/core/secrets"
	"github.com/canonical/opendkim-operator/internal/unitdata"
)

const testSecretID = "9m4e2mr0ui3e8a215n4g"

type ConfigSourceSuite struct {
	testing.IsolationSuite

	paths unitdata.Paths
}

var _ = gc.Suite(&ConfigSourceSuite{})

func (s *ConfigSourceSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.paths = unitdata.NewPaths(c.MkDir())
}

func (s *ConfigSourceSuite) TestReadMissing(c *gc.C) {
	attrs, err := unitdata.NewConfigSource(s.paths).Read()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(attrs, gc.HasLen, 0)
	c.Assert(attrs, gc.NotNil)
}

func (s *ConfigSourceSuite) TestRead(c *gc.C) {
	err := os.WriteFile(s.paths.ConfigFile(), []byte("mode: s\ninternalhosts: 10.0.0.0/8\n"), 0644)
	c.Assert(err, jc.ErrorIsNil)
	attrs, err := unitdata.NewConfigSource(s.paths).Read()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(attrs, jc.DeepEquals, map[string]interface{}{
		"mode":          "s",
		"internalhosts": "10.0.0.0/8",
	})
}

func (s *ConfigSourceSuite) TestReadMalformed(c *gc.C) {
	err := os.WriteFile(s.paths.ConfigFile(), []byte("{not yaml"), 0644)
	c.Assert(err, jc.ErrorIsNil)
	_, err = unitdata.NewConfigSource(s.paths).Read()
	c.Assert(err, gc.ErrorMatches, `parsing charm config .*`)
}

type RelationsSuite struct {
	testing.IsolationSuite

	paths unitdata.Paths
	rels  *unitdata.Relations
}

var _ = gc.Suite(&RelationsSuite{})

func (s *RelationsSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.paths = unitdata.NewPaths(c.MkDir())
	s.rels = unitdata.NewRelations(s.paths)
}

func (s *RelationsSuite) writeRelation(c *gc.C, name, content string) {
	err := os.MkdirAll(s.paths.RelationsDir(), 0755)
	c.Assert(err, jc.ErrorIsNil)
	err = os.WriteFile(filepath.Join(s.paths.RelationsDir(), name), []byte(content), 0644)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *RelationsSuite) TestAllNoDir(c *gc.C) {
	records, err := s.rels.All()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(records, gc.HasLen, 0)
}

func (s *RelationsSuite) TestAll(c *gc.C) {
	s.writeRelation(c, "milter:0.yaml", `
application: postfix
interface: milter
data:
  address: 10.10.0.1
`)
	s.writeRelation(c, "milter:1.yaml", `
application: exim
interface: milter
`)
	records, err := s.rels.All()
	c.Assert(err, jc.ErrorIsNil)
	relation.Sort(records)
	c.Assert(records, jc.DeepEquals, []relation.Record{{
		ID:          "milter:1",
		Application: "exim",
		Interface:   "milter",
	}, {
		ID:          "milter:0",
		Application: "postfix",
		Interface:   "milter",
		Settings:    relation.Settings{"address": "10.10.0.1"},
	}})
}

func (s *RelationsSuite) TestAllSkipsLocalAndForeignFiles(c *gc.C) {
	s.writeRelation(c, "milter:0.yaml", "application: postfix\ninterface: milter\n")
	s.writeRelation(c, "milter:0-local.yaml", "port: \"8892\"\n")
	s.writeRelation(c, "README", "not a relation\n")
	err := os.MkdirAll(filepath.Join(s.paths.RelationsDir(), "subdir.yaml"), 0755)
	c.Assert(err, jc.ErrorIsNil)

	records, err := s.rels.All()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(records, gc.HasLen, 1)
	c.Assert(records[0].ID, gc.Equals, "milter:0")
}

func (s *RelationsSuite) TestAllSkipsMalformedDocuments(c *gc.C) {
	s.writeRelation(c, "milter:0.yaml", "application: postfix\ninterface: milter\n")
	s.writeRelation(c, "milter:1.yaml", "{broken")
	records, err := s.rels.All()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(records, gc.HasLen, 1)
	c.Assert(records[0].Application, gc.Equals, "postfix")
}

func (s *RelationsSuite) TestAllFileNameIsIdentity(c *gc.C) {
	s.writeRelation(c, "milter:7.yaml", "id: milter:999\napplication: postfix\ninterface: milter\n")
	records, err := s.rels.All()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(records, gc.HasLen, 1)
	c.Assert(records[0].ID, gc.Equals, "milter:7")
}

func (s *RelationsSuite) TestPublish(c *gc.C) {
	err := s.rels.Publish("milter:0", relation.Settings{"port": "8892"})
	c.Assert(err, jc.ErrorIsNil)

	data, err := os.ReadFile(s.paths.LocalRelationFile("milter:0"))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), gc.Equals, "port: \"8892\"\n")
}

func (s *RelationsSuite) TestPublishUnchangedLeavesFileAlone(c *gc.C) {
	// Seed a semantically equal document with a marker; an unchanged
	// publish must not rewrite it.
	s.writeRelation(c, "milter:0-local.yaml", "# marker\nport: \"8892\"\n")
	err := s.rels.Publish("milter:0", relation.Settings{"port": "8892"})
	c.Assert(err, jc.ErrorIsNil)

	data, err := os.ReadFile(s.paths.LocalRelationFile("milter:0"))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), jc.Contains, "# marker")
}

func (s *RelationsSuite) TestPublishChangedRewrites(c *gc.C) {
	s.writeRelation(c, "milter:0-local.yaml", "# marker\nport: \"8892\"\n")
	err := s.rels.Publish("milter:0", relation.Settings{"port": "9000"})
	c.Assert(err, jc.ErrorIsNil)

	data, err := os.ReadFile(s.paths.LocalRelationFile("milter:0"))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), gc.Equals, "port: \"9000\"\n")
}

func (s *RelationsSuite) TestPublishRejectsUnsafeID(c *gc.C) {
	err := s.rels.Publish("../evil", relation.Settings{"port": "8892"})
	c.Assert(err, gc.ErrorMatches, `relation id "\.\./evil" not valid`)
	err = s.rels.Publish("", relation.Settings{"port": "8892"})
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
}

type SecretStoreSuite struct {
	testing.IsolationSuite

	paths unitdata.Paths
	store *unitdata.SecretStore
}

var _ = gc.Suite(&SecretStoreSuite{})

func (s *SecretStoreSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.paths = unitdata.NewPaths(c.MkDir())
	s.store = unitdata.NewSecretStore(s.paths)
}

func (s *SecretStoreSuite) writeSecret(c *gc.C, id, content string) {
	err := os.MkdirAll(s.paths.SecretsDir(), 0755)
	c.Assert(err, jc.ErrorIsNil)
	err = os.WriteFile(s.paths.SecretFile(id), []byte(content), 0644)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *SecretStoreSuite) uri(c *gc.C) *secrets.URI {
	uri, err := secrets.ParseURI(testSecretID)
	c.Assert(err, jc.ErrorIsNil)
	return uri
}

func (s *SecretStoreSuite) TestResolve(c *gc.C) {
	s.writeSecret(c, testSecretID, "content:\n  mail: key material\n")
	value, err := s.store.Resolve(s.uri(c))
	c.Assert(err, jc.ErrorIsNil)
	values, err := value.Values()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(values, jc.DeepEquals, map[string]string{"mail": "key material"})
}

func (s *SecretStoreSuite) TestResolveBase64Key(c *gc.C) {
	encoded := base64.StdEncoding.EncodeToString([]byte("key material"))
	s.writeSecret(c, testSecretID, "content:\n  mail#base64: "+encoded+"\n")
	value, err := s.store.Resolve(s.uri(c))
	c.Assert(err, jc.ErrorIsNil)
	got, err := value.KeyValue("mail")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(got, gc.Equals, "key material")
}

func (s *SecretStoreSuite) TestResolveMissing(c *gc.C) {
	_, err := s.store.Resolve(s.uri(c))
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
	c.Assert(err, gc.ErrorMatches, `secret "secret:`+testSecretID+`" not found`)
}

func (s *SecretStoreSuite) TestResolveNilURI(c *gc.C) {
	_, err := s.store.Resolve(nil)
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
}

func (s *SecretStoreSuite) TestResolveMalformed(c *gc.C) {
	s.writeSecret(c, testSecretID, "{broken")
	_, err := s.store.Resolve(s.uri(c))
	c.Assert(err, gc.ErrorMatches, `parsing secret "secret:`+testSecretID+`": .*`)
}
