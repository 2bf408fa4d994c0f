// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config provides a schema-validated view of the operator's
// declared charm options.
package config

import (
	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/juju/environschema.v1"
)

// Config holds declared options that have passed schema validation.
type Config struct {
	attributes map[string]interface{}
}

// NewConfig returns a new config instance with default values applied,
// the supplied attributes coerced against the schema, and unknown keys
// rejected.
func NewConfig(attrs map[string]interface{}, schemaFields environschema.Fields, defaults schema.Defaults) (*Config, error) {
	cfg := &Config{attributes: make(map[string]interface{})}
	if err := cfg.setAttributes(attrs, schemaFields, defaults); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

func (c *Config) setAttributes(attrs map[string]interface{}, schemaFields environschema.Fields, defaults schema.Defaults) error {
	for k, v := range attrs {
		if _, ok := schemaFields[k]; !ok {
			return errors.Errorf("unknown key %q (value %q)", k, v)
		}
	}
	fields, err := schemaFields.ValidationSchema()
	if err != nil {
		return errors.Trace(err)
	}
	checker := schema.FieldMap(fields, defaults)
	coerced, err := checker.Coerce(attrs, nil)
	if err != nil {
		return errors.Trace(err)
	}
	c.attributes = coerced.(map[string]interface{})
	return nil
}

// Attributes returns all the config attributes.
func (c *Config) Attributes() ConfigAttributes {
	if c == nil {
		return nil
	}
	result := make(ConfigAttributes)
	for k, v := range c.attributes {
		result[k] = v
	}
	return result
}

// ConfigAttributes is the validated attribute map of a Config.
type ConfigAttributes map[string]interface{}

// GetString gets the specified string attribute.
func (c ConfigAttributes) GetString(attrName string, defaultValue string) string {
	if val, ok := c[attrName]; ok {
		return val.(string)
	}
	return defaultValue
}
