// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dkim

import (
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// Paths locates the daemon's configuration on the host. Tests point it
// at a scratch directory.
type Paths struct {
	ConfFile string
	KeysDir  string
}

// DefaultPaths returns the stock installation layout.
func DefaultPaths() Paths {
	return Paths{ConfFile: ConfPath, KeysDir: KeysDir}
}

// KeyTableFile returns the path of the rendered KeyTable.
func (p Paths) KeyTableFile() string {
	return filepath.Join(p.KeysDir, "keytable")
}

// SigningTableFile returns the path of the rendered SigningTable.
func (p Paths) SigningTableFile() string {
	return filepath.Join(p.KeysDir, "signingtable")
}

// KeyFile returns the path of a named private key.
func (p Paths) KeyFile(name string) string {
	return filepath.Join(p.KeysDir, name+".private")
}

// Patched in tests.
var (
	lookupUser = user.Lookup
	chownFile  = os.Chown
	euid       = os.Geteuid
)

// Apply writes the artifacts to disk atomically. Private keys are only
// readable by their owner and are handed to the daemon user; the
// configuration and table files follow the packaged layout. A failure
// part way through leaves previously written files in place, which is
// safe because the next pass rewrites everything from the same desired
// state.
func Apply(arts Artifacts, paths Paths) error {
	if err := os.MkdirAll(filepath.Dir(paths.ConfFile), 0755); err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(paths.KeysDir, 0700); err != nil {
		return errors.Trace(err)
	}
	if err := utils.AtomicWriteFile(paths.ConfFile, arts.Conf, 0644); err != nil {
		return errors.Annotate(err, "writing daemon configuration")
	}
	if err := utils.AtomicWriteFile(paths.KeyTableFile(), arts.KeyTable, 0644); err != nil {
		return errors.Annotate(err, "writing keytable")
	}
	if err := utils.AtomicWriteFile(paths.SigningTableFile(), arts.SigningTable, 0644); err != nil {
		return errors.Annotate(err, "writing signingtable")
	}
	names := make([]string, 0, len(arts.Keys))
	for name := range arts.Keys {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := paths.KeyFile(name)
		if err := utils.AtomicWriteFile(path, arts.Keys[name], 0600); err != nil {
			return errors.Annotatef(err, "writing key %q", name)
		}
		if err := chownDaemonFile(path); err != nil {
			return errors.Annotatef(err, "chowning key %q", name)
		}
	}
	return nil
}

// chownDaemonFile hands a file to the daemon user. Ownership changes
// need root; an unprivileged agent leaves files with its own user,
// which is what scratch-directory tests expect.
func chownDaemonFile(path string) error {
	if euid() != 0 {
		return nil
	}
	u, err := lookupUser(DaemonUser)
	if err != nil {
		return errors.Annotatef(err, "looking up user %q", DaemonUser)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return errors.Trace(err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(chownFile(path, uid, gid))
}
