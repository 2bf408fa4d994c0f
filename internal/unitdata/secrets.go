// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitdata

import (
	"encoding/base64"
	"os"
	"strings"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/canonical/opendkim-operator/core/secrets"
)

const base64Suffix = "#base64"

// SecretStore resolves secret references against the content documents
// the orchestrator materializes under the data dir.
type SecretStore struct {
	paths Paths
}

// NewSecretStore returns a SecretStore reading from paths.
func NewSecretStore(paths Paths) *SecretStore {
	return &SecretStore{paths: paths}
}

// secretDoc is the on-disk form of one secret's content. A key with a
// #base64 suffix carries an already-encoded value.
type secretDoc struct {
	Content map[string]string `yaml:"content"`
}

// Resolve returns the content of the referenced secret, or an error
// satisfying errors.IsNotFound if no content document exists for it.
// Error messages carry the secret URI, never its content.
func (s *SecretStore) Resolve(uri *secrets.URI) (secrets.SecretValue, error) {
	if uri == nil {
		return nil, errors.NotValidf("nil secret URI")
	}
	data, err := os.ReadFile(s.paths.SecretFile(uri.ID))
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("secret %q", uri)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	var doc secretDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Annotatef(err, "parsing secret %q", uri)
	}
	encoded := make(map[string]string, len(doc.Content))
	for k, v := range doc.Content {
		if strings.HasSuffix(k, base64Suffix) {
			encoded[strings.TrimSuffix(k, base64Suffix)] = v
			continue
		}
		encoded[k] = base64.StdEncoding.EncodeToString([]byte(v))
	}
	return secrets.NewSecretValue(encoded), nil
}
