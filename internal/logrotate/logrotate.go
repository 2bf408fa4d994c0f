// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package logrotate rewrites rotation directives in an existing
// logrotate configuration. The milter logs through rsyslog, so mail
// logs follow whatever /etc/logrotate.d/rsyslog says; install raises
// its retention so historic signings stay auditable.
package logrotate

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

const (
	// SyslogConf is the logrotate file covering the mail logs.
	SyslogConf = "/etc/logrotate.d/rsyslog"

	// DefaultRetentionDays is how many rotations of the mail logs are
	// kept after install.
	DefaultRetentionDays = 120
)

// Params control which directives are rewritten.
type Params struct {
	// Frequency replaces daily, weekly and monthly directives when
	// not empty.
	Frequency string

	// Retention replaces rotate counts when not zero.
	Retention int

	// DateExt adds a dateext directive ahead of each rewritten rotate
	// count. Existing dateext directives are dropped either way when
	// Retention is set.
	DateExt bool
}

// DefaultParams returns the rewrite applied at install time.
func DefaultParams() Params {
	return Params{
		Frequency: "daily",
		Retention: DefaultRetentionDays,
		DateExt:   true,
	}
}

var directive = regexp.MustCompile(`^(\s+)(daily|weekly|monthly|rotate|dateext)`)

// Update rewrites the rotation directives of every stanza in content
// according to params. Lines that are not rotation directives pass
// through untouched.
func Update(content []byte, params Params) []byte {
	lines := strings.Split(string(content), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		m := directive.FindStringSubmatch(line)
		if m == nil {
			out = append(out, line)
			continue
		}
		indent, conf := m[1], m[2]
		switch {
		case params.Frequency != "" && (conf == "daily" || conf == "weekly" || conf == "monthly"):
			out = append(out, indent+params.Frequency)
		case params.Retention != 0 && conf == "dateext":
			// Dropped here, re-added ahead of the rotate count.
		case params.Retention != 0 && conf == "rotate":
			if params.DateExt {
				out = append(out, indent+"dateext")
			}
			out = append(out, fmt.Sprintf("%srotate %d", indent, params.Retention))
		default:
			out = append(out, line)
		}
	}
	return []byte(strings.Join(out, "\n"))
}

// Apply rewrites the logrotate file at path in place. A missing file
// is reported as errors.NotFound; an unchanged file is left alone.
func Apply(path string, params Params) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return errors.NotFoundf("logrotate config %q", path)
	} else if err != nil {
		return errors.Trace(err)
	}
	updated := Update(content, params)
	if bytes.Equal(updated, content) {
		return nil
	}
	if err := utils.AtomicWriteFile(path, updated, 0644); err != nil {
		return errors.Annotatef(err, "writing logrotate config %q", path)
	}
	return nil
}
