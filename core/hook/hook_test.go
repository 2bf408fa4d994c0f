// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opendkim-operator/core/hook"
)

type InfoSuite struct{}

var _ = gc.Suite(&InfoSuite{})

var validateTests = []struct {
	info hook.Info
	err  string
}{
	{hook.Info{Kind: hook.Install}, ""},
	{hook.Info{Kind: hook.Upgrade}, ""},
	{hook.Info{Kind: hook.ConfigChanged}, ""},
	{hook.Info{Kind: hook.UpdateStatus}, ""},
	{hook.Info{Kind: hook.Start}, ""},
	{hook.Info{Kind: hook.Stop}, ""},
	{hook.Info{Kind: hook.RelationChanged, RelationId: "milter:0", RemoteApp: "postfix"}, ""},
	{hook.Info{Kind: hook.RelationChanged}, `"relation-changed" event requires a relation id`},
	{hook.Info{Kind: hook.RelationDeparted, RelationId: "milter:0"}, ""},
	{hook.Info{Kind: hook.RelationDeparted}, `"relation-departed" event requires a relation id`},
	{hook.Info{Kind: hook.SecretChanged, SecretURI: "secret:abcd"}, ""},
	{hook.Info{Kind: hook.SecretChanged}, `"secret-changed" event requires a secret URI`},
	{hook.Info{Kind: hook.Kind("panic")}, `unknown event kind "panic"`},
	{hook.Info{}, `unknown event kind ""`},
}

func (s *InfoSuite) TestValidate(c *gc.C) {
	for i, t := range validateTests {
		c.Logf("test %d: %v", i, t.info)
		err := t.info.Validate()
		if t.err == "" {
			c.Check(err, jc.ErrorIsNil)
		} else {
			c.Check(err, gc.ErrorMatches, t.err)
		}
	}
}

func (s *InfoSuite) TestKinds(c *gc.C) {
	kinds := hook.Kinds()
	c.Assert(kinds.Contains("install"), jc.IsTrue)
	c.Assert(kinds.Contains("update-status"), jc.IsTrue)
	c.Assert(kinds.Contains("bogus"), jc.IsFalse)
	// Kinds returns a copy; mutating it must not affect validation.
	kinds.Add("bogus")
	c.Assert(hook.Info{Kind: hook.Kind("bogus")}.Validate(), gc.NotNil)
}

func (s *InfoSuite) TestIsRelation(c *gc.C) {
	c.Check(hook.RelationChanged.IsRelation(), jc.IsTrue)
	c.Check(hook.RelationDeparted.IsRelation(), jc.IsTrue)
	c.Check(hook.ConfigChanged.IsRelation(), jc.IsFalse)
}
