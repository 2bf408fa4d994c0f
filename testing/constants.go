// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"time"
)

const (
	// ShortWait is a reasonable amount of time to block waiting for
	// something that shouldn't actually happen. (as in, the test
	// suite will fail if it does.)
	ShortWait = 50 * time.Millisecond

	// LongWait is used when something should have already happened,
	// or happens quickly, but we want to make sure we just haven't
	// missed it. As in, the test suite should fail if the event
	// doesn't happen within this time.
	LongWait = 10 * time.Second
)
