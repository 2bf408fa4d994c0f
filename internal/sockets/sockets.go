// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package sockets provides listeners and dialers for the operator's
// local control sockets.
package sockets

import (
	"net"
	"net/rpc"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("opendkim.sockets")

// Socket represents the set of parameters to use for socket to dial/listen.
type Socket struct {
	// Network is the socket network.
	Network string

	// Address is the socket address.
	Address string
}

// Dial connects to the socket and returns an RPC client on the
// connection.
func Dial(soc Socket) (*rpc.Client, error) {
	conn, err := net.Dial(soc.Network, soc.Address)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return rpc.NewClient(conn), nil
}

// Listen returns a listener on the socket. A stale unix socket file
// left behind by an earlier process is removed first; abstract
// addresses (leading '@') exist only in the kernel and need no cleanup.
func Listen(soc Socket) (net.Listener, error) {
	if soc.Network == "tcp" || strings.HasPrefix(soc.Address, "@") {
		listener, err := net.Listen(soc.Network, soc.Address)
		return listener, errors.Trace(err)
	}
	// In case the unix socket is present, delete it.
	if err := os.Remove(soc.Address); err != nil {
		logger.Tracef("ignoring error on removing %q: %v", soc.Address, err)
	}
	// Create the socket in a fresh 0700 directory and rename it into
	// place, so it never exists with open permissions. The temporary
	// path is kept short; unix socket paths are limited to 108 bytes.
	socketDir := filepath.Dir(soc.Address)
	tempdir, err := os.MkdirTemp(socketDir, "")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer os.RemoveAll(tempdir)
	tempSocketPath := filepath.Join(tempdir, "s")
	listener, err := net.Listen(soc.Network, tempSocketPath)
	if err != nil {
		logger.Errorf("failed to listen on unix:%s: %v", tempSocketPath, err)
		return nil, errors.Trace(err)
	}
	if err := os.Chmod(tempSocketPath, 0700); err != nil {
		_ = listener.Close()
		return nil, errors.Annotatef(err, "could not chmod socket %v", tempSocketPath)
	}
	if err := os.Rename(tempSocketPath, soc.Address); err != nil {
		_ = listener.Close()
		return nil, errors.Annotatef(err, "could not rename socket %v", tempSocketPath)
	}
	return listener, nil
}
