// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dkim_test

import (
	"os"
	"os/user"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opendkim-operator/internal/dkim"
)

type ApplySuite struct {
	testing.IsolationSuite

	paths dkim.Paths
}

var _ = gc.Suite(&ApplySuite{})

func (s *ApplySuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	root := c.MkDir()
	s.paths = dkim.Paths{
		ConfFile: filepath.Join(root, "etc", "opendkim.conf"),
		KeysDir:  filepath.Join(root, "etc", "dkimkeys"),
	}
}

func (s *ApplySuite) TestApplyWritesEverything(c *gc.C) {
	arts := dkim.Artifacts{
		Conf:         []byte("conf content\n"),
		KeyTable:     []byte("keytable content"),
		SigningTable: []byte("signingtable content"),
		Keys: map[string][]byte{
			"mail":  []byte("PEM ONE"),
			"other": []byte("PEM TWO"),
		},
	}
	err := dkim.Apply(arts, s.paths)
	c.Assert(err, jc.ErrorIsNil)

	assertFile(c, s.paths.ConfFile, "conf content\n", 0o644)
	assertFile(c, s.paths.KeyTableFile(), "keytable content", 0o644)
	assertFile(c, s.paths.SigningTableFile(), "signingtable content", 0o644)
	assertFile(c, s.paths.KeyFile("mail"), "PEM ONE", 0o600)
	assertFile(c, s.paths.KeyFile("other"), "PEM TWO", 0o600)

	info, err := os.Stat(s.paths.KeysDir)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(info.Mode().Perm(), gc.Equals, os.FileMode(0o700))
}

func (s *ApplySuite) TestApplyOverwrites(c *gc.C) {
	first := dkim.Artifacts{Conf: []byte("one")}
	c.Assert(dkim.Apply(first, s.paths), jc.ErrorIsNil)
	second := dkim.Artifacts{Conf: []byte("two")}
	c.Assert(dkim.Apply(second, s.paths), jc.ErrorIsNil)
	assertFile(c, s.paths.ConfFile, "two", 0o644)
}

func (s *ApplySuite) TestApplyChownsKeysAsRoot(c *gc.C) {
	stub := &testing.Stub{}
	s.PatchValue(dkim.Euid, func() int { return 0 })
	s.PatchValue(dkim.LookupUser, func(name string) (*user.User, error) {
		stub.AddCall("Lookup", name)
		return &user.User{Uid: "114", Gid: "121"}, nil
	})
	s.PatchValue(dkim.ChownFile, func(path string, uid, gid int) error {
		stub.AddCall("Chown", path, uid, gid)
		return nil
	})

	arts := dkim.Artifacts{Keys: map[string][]byte{"mail": []byte("PEM")}}
	c.Assert(dkim.Apply(arts, s.paths), jc.ErrorIsNil)
	stub.CheckCalls(c, []testing.StubCall{
		{FuncName: "Lookup", Args: []interface{}{"opendkim"}},
		{FuncName: "Chown", Args: []interface{}{s.paths.KeyFile("mail"), 114, 121}},
	})
}

func (s *ApplySuite) TestApplyChownFailure(c *gc.C) {
	s.PatchValue(dkim.Euid, func() int { return 0 })
	s.PatchValue(dkim.LookupUser, func(name string) (*user.User, error) {
		return nil, errors.New("no such user")
	})

	arts := dkim.Artifacts{Keys: map[string][]byte{"mail": []byte("PEM")}}
	err := dkim.Apply(arts, s.paths)
	c.Assert(err, gc.ErrorMatches,
		`chowning key "mail": looking up user "opendkim": no such user`)
}

func assertFile(c *gc.C, path, content string, perm os.FileMode) {
	data, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), gc.Equals, content)
	info, err := os.Stat(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(info.Mode().Perm(), gc.Equals, perm)
}
