// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// opendkim-operator keeps a local OpenDKIM deployment converged with
// its declared inputs. The agent subcommand runs the reconciling
// worker engine; trigger and status drive a running agent over its
// control socket.
package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v3"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("opendkim.cmd")

// loggingConfigEnvKey holds the initial loggo configuration. Flags on
// the individual subcommands take precedence over it.
const loggingConfigEnvKey = "OPENDKIM_OPERATOR_LOGGING_CONFIG"

var operatorDoc = `
opendkim-operator manages an OpenDKIM milter on the local host. The
agent runs one reconcile pass per lifecycle event, rewriting the
OpenDKIM configuration from the agent's input files and restarting the
service when the rendered configuration changes.
`

// Main registers the subcommands and hands over control to the cmd
// package. It is not redundant with main, because it provides an entry
// point for testing with arbitrary command line arguments.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return cmd.Main(operatorCommand(ctx), ctx, args[1:])
}

func operatorCommand(ctx *cmd.Context) cmd.Command {
	op := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name: "opendkim-operator",
		Doc:  operatorDoc,
		Log: &cmd.Log{
			DefaultConfig: os.Getenv(loggingConfigEnvKey),
		},
	})
	op.Register(newAgentCommand(ctx))
	op.Register(newTriggerCommand())
	op.Register(newStatusCommand())
	return op
}

func main() {
	os.Exit(Main(os.Args))
}
