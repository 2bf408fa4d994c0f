// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package logrotate_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opendkim-operator/internal/logrotate"
)

const rsyslogConf = `/var/log/syslog
{
	rotate 7
	daily
	missingok
	notifempty
	delaycompress
	compress
	postrotate
		/usr/lib/rsyslog/rsyslog-rotate
	endscript
}

/var/log/mail.info
/var/log/mail.warn
/var/log/mail.err
/var/log/mail.log
{
	rotate 4
	weekly
	missingok
	notifempty
	compress
	delaycompress
	sharedscripts
	postrotate
		/usr/lib/rsyslog/rsyslog-rotate
	endscript
}
`

type LogrotateSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&LogrotateSuite{})

func (s *LogrotateSuite) TestUpdateFrequency(c *gc.C) {
	got := logrotate.Update([]byte(rsyslogConf), logrotate.Params{Frequency: "daily"})
	want := `/var/log/syslog
{
	rotate 7
	daily
	missingok
	notifempty
	delaycompress
	compress
	postrotate
		/usr/lib/rsyslog/rsyslog-rotate
	endscript
}

/var/log/mail.info
/var/log/mail.warn
/var/log/mail.err
/var/log/mail.log
{
	rotate 4
	daily
	missingok
	notifempty
	compress
	delaycompress
	sharedscripts
	postrotate
		/usr/lib/rsyslog/rsyslog-rotate
	endscript
}
`
	c.Assert(string(got), gc.Equals, want)
}

func (s *LogrotateSuite) TestUpdateRetention(c *gc.C) {
	got := logrotate.Update([]byte(rsyslogConf), logrotate.Params{Retention: 30, DateExt: true})
	want := `/var/log/syslog
{
	dateext
	rotate 30
	daily
	missingok
	notifempty
	delaycompress
	compress
	postrotate
		/usr/lib/rsyslog/rsyslog-rotate
	endscript
}

/var/log/mail.info
/var/log/mail.warn
/var/log/mail.err
/var/log/mail.log
{
	dateext
	rotate 30
	weekly
	missingok
	notifempty
	compress
	delaycompress
	sharedscripts
	postrotate
		/usr/lib/rsyslog/rsyslog-rotate
	endscript
}
`
	c.Assert(string(got), gc.Equals, want)
}

func (s *LogrotateSuite) TestUpdateRetentionReplacesDateExt(c *gc.C) {
	in := "/var/log/syslog\n{\n\tdateext\n\trotate 7\n\tdaily\n}\n"
	got := logrotate.Update([]byte(in), logrotate.Params{Retention: 30, DateExt: true})
	c.Assert(string(got), gc.Equals, "/var/log/syslog\n{\n\tdateext\n\trotate 30\n\tdaily\n}\n")
}

func (s *LogrotateSuite) TestUpdateRetentionNoDateExt(c *gc.C) {
	in := "/var/log/syslog\n{\n\tdateext\n\trotate 7\n\tdaily\n}\n"
	got := logrotate.Update([]byte(in), logrotate.Params{Retention: 30})
	c.Assert(string(got), gc.Equals, "/var/log/syslog\n{\n\trotate 30\n\tdaily\n}\n")
}

func (s *LogrotateSuite) TestUpdateIgnoresUnindentedDirectives(c *gc.C) {
	in := "rotate 7\n\trotate 7\n"
	got := logrotate.Update([]byte(in), logrotate.Params{Retention: 10})
	c.Assert(string(got), gc.Equals, "rotate 7\n\trotate 10\n")
}

func (s *LogrotateSuite) TestUpdateNoParamsIsIdentity(c *gc.C) {
	got := logrotate.Update([]byte(rsyslogConf), logrotate.Params{})
	c.Assert(string(got), gc.Equals, rsyslogConf)
}

func (s *LogrotateSuite) TestApply(c *gc.C) {
	path := filepath.Join(c.MkDir(), "rsyslog")
	err := os.WriteFile(path, []byte(rsyslogConf), 0644)
	c.Assert(err, jc.ErrorIsNil)

	err = logrotate.Apply(path, logrotate.DefaultParams())
	c.Assert(err, jc.ErrorIsNil)

	content, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(content), jc.Contains, "\trotate 120")
	c.Assert(string(content), jc.Contains, "\tdateext")
	c.Assert(string(content), gc.Not(jc.Contains), "weekly")
}

func (s *LogrotateSuite) TestApplyMissingFile(c *gc.C) {
	err := logrotate.Apply(filepath.Join(c.MkDir(), "nonexistent"), logrotate.DefaultParams())
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *LogrotateSuite) TestApplyUnchanged(c *gc.C) {
	path := filepath.Join(c.MkDir(), "rsyslog")
	err := os.WriteFile(path, []byte(rsyslogConf), 0644)
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(logrotate.Apply(path, logrotate.DefaultParams()), jc.ErrorIsNil)
	first, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(logrotate.Apply(path, logrotate.DefaultParams()), jc.ErrorIsNil)
	second, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(second), gc.Equals, string(first))
}
