// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package lifecycle holds the topics used by the operator's workers on
// the agent's local pubsub hub.
package lifecycle

// HookReceivedTopic is published every time an event source derives a
// lifecycle event from the outside world, whether from a watched file
// or from the control socket. The data is a hook.Info, passed by value.
const HookReceivedTopic = "opendkim.hook-received"
