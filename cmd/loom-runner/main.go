/*
Copyright 2024 The Loom Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/runner/runnerserver"
	"github.com/loom-dev/loom/pkg/server/commands"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

func main() {
	app := commands.NewCLI(
		"loom-runner",
		"Loom execution runner",
	)
	app.AddCommands(newStartCommand())
	if err := app.Run(); err != nil {
		stdlog.Fatal(err)
	}
}

func newStartCommand() *cobra.Command {
	var port int
	var logLevel string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start serving the execution HTTP surface.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SetLogLevel(logLevel)
			return run(port)
		},
	}
	cmd.Flags().IntVar(&port, "port", envPort("RUNNER_PORT", 4001), "The port number used to serve the execution APIs.")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "The log level, debug, info, warn or error.")
	return cmd
}

func run(port int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Logger.Infof("received signal %s, draining", sig.String())
		cancel()
	}()

	// The standalone runner executes module actions only; workflow logic
	// stays in the control plane.
	adapter := runner.NewLocalAdapter(runner.NopTelemetry{}, nil)
	return runnerserver.New(adapter, port).Run(ctx)
}

func envPort(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	port, err := strconv.Atoi(value)
	if err != nil || port <= 0 {
		return fallback
	}
	return port
}
