// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/opendkim-operator/core/status"
)

type StatusSuite struct{}

var _ = gc.Suite(&StatusSuite{})

func (s *StatusSuite) TestValidWorkloadStatus(c *gc.C) {
	for _, v := range []status.Status{
		status.Active,
		status.Blocked,
		status.Waiting,
		status.Maintenance,
		status.Error,
		status.Unknown,
	} {
		c.Check(status.ValidWorkloadStatus(v), jc.IsTrue)
	}
	c.Check(status.ValidWorkloadStatus(status.Status("started")), jc.IsFalse)
	c.Check(status.ValidWorkloadStatus(status.Status("")), jc.IsFalse)
}

func (s *StatusSuite) TestString(c *gc.C) {
	c.Assert(status.Active.String(), gc.Equals, "active")
}
