// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package unitdata is the operator's window onto the unit it manages.
// The orchestrator materializes charm configuration, relation documents
// and secret content as files under the agent data dir; this package
// reads them, and writes back the operator's published settings, status
// and durable state.
package unitdata

import (
	"path/filepath"
	"regexp"

	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("opendkim.unitdata")

const localSuffix = "-local.yaml"

// Paths locates everything the operator reads and persists under its
// data dir.
type Paths struct {
	// DataDir is the agent's data directory.
	DataDir string
}

// NewPaths returns Paths rooted at dataDir.
func NewPaths(dataDir string) Paths {
	return Paths{DataDir: dataDir}
}

// ConfigFile holds the declared charm options.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.DataDir, "charm-config.yaml")
}

// RelationsDir holds one document per established relation.
func (p Paths) RelationsDir() string {
	return filepath.Join(p.DataDir, "relations")
}

// RelationFile holds the remote side of one relation.
func (p Paths) RelationFile(id string) string {
	return filepath.Join(p.RelationsDir(), id+".yaml")
}

// LocalRelationFile holds the settings this unit has published on one
// relation.
func (p Paths) LocalRelationFile(id string) string {
	return filepath.Join(p.RelationsDir(), id+localSuffix)
}

// SecretsDir holds secret content documents keyed by secret ID.
func (p Paths) SecretsDir() string {
	return filepath.Join(p.DataDir, "secrets")
}

// SecretFile holds the content of one secret.
func (p Paths) SecretFile(id string) string {
	return filepath.Join(p.SecretsDir(), id+".yaml")
}

// ControlSocketPath is the unix socket the agent serves its control
// surface on.
func (p Paths) ControlSocketPath() string {
	return filepath.Join(p.DataDir, "agent.socket")
}

// StateFilePath holds the operator's durable state.
func (p Paths) StateFilePath() string {
	return filepath.Join(p.DataDir, "state.yaml")
}

// StatusFilePath holds the last reported workload status.
func (p Paths) StatusFilePath() string {
	return filepath.Join(p.DataDir, "status.yaml")
}

// validFileID matches identifiers that are safe to use as file names
// under the data dir.
var validFileID = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z._:-]*$`).MatchString
