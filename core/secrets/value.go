// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package secrets

import (
	"encoding/base64"
	"strings"

	"github.com/juju/errors"
)

// SecretValue holds the value of a secret.
// Instances of SecretValue are returned by the secret store
// when a secret reference is resolved.
type SecretValue interface {
	// EncodedValues returns the key values of a secret as
	// the raw base64-encoded strings.
	EncodedValues() map[string]string

	// Values returns the key values of a secret as strings.
	Values() (map[string]string, error)

	// KeyValue returns the specified secret value for the key.
	// If the key has a #base64 suffix, the raw encoded value is returned.
	KeyValue(string) (string, error)

	// IsEmpty checks if the value is empty.
	IsEmpty() bool
}

type secretValue struct {
	// Data holds the key values of a secret.
	// We use a map to hold multiple values, eg cert and key.
	// The serialised form of any string values is a
	// base64 encoded string, representing arbitrary values.
	data map[string]string
}

// NewSecretValue returns a secret using the specified map of values.
// The map values are assumed to be already base64 encoded.
func NewSecretValue(data map[string]string) SecretValue {
	dataCopy := make(map[string]string, len(data))
	for k, v := range data {
		dataCopy[k] = v
	}
	return &secretValue{data: dataCopy}
}

// EncodedValues implements SecretValue.
func (v secretValue) EncodedValues() map[string]string {
	dataCopy := make(map[string]string, len(v.data))
	for k, val := range v.data {
		dataCopy[k] = val
	}
	return dataCopy
}

// Values implements SecretValue.
func (v secretValue) Values() (map[string]string, error) {
	dataCopy := v.EncodedValues()
	for k, val := range dataCopy {
		data, err := base64.StdEncoding.DecodeString(val)
		if err != nil {
			return nil, errors.Trace(err)
		}
		dataCopy[k] = string(data)
	}
	return dataCopy, nil
}

// KeyValue implements SecretValue.
func (v secretValue) KeyValue(key string) (string, error) {
	useBase64 := false
	if strings.HasSuffix(key, base64Suffix) {
		key = strings.TrimSuffix(key, base64Suffix)
		useBase64 = true
	}
	val, ok := v.data[key]
	if !ok {
		return "", errors.NotFoundf("secret key value %q", key)
	}
	if useBase64 {
		return val, nil
	}
	data, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(data), nil
}

const base64Suffix = "#base64"

// IsEmpty implements SecretValue.
func (v secretValue) IsEmpty() bool {
	return len(v.data) == 0
}

// String implements fmt.Stringer. Secret content must never reach logs
// or status messages, so the formatted form is always redacted.
func (v secretValue) String() string {
	return redacted
}

// GoString implements fmt.GoStringer.
func (v secretValue) GoString() string {
	return redacted
}

const redacted = "secret value redacted"
