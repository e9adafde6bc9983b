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

// Package server implements the loom-server start command.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	apiserver "github.com/loom-dev/loom/pkg/server"
	"github.com/loom-dev/loom/pkg/server/config"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

type server struct {
	cfg      config.Config
	logLevel string
}

// NewServerCommand create the start command. Flags default from the
// environment so container deployments can run without arguments.
func NewServerCommand() *cobra.Command {
	s := &server{cfg: config.Default()}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start running the Loom control plane.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run()
		},
	}

	s.registerFlags(cmd.Flags())

	return cmd
}

func (s *server) registerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.cfg.BindAddr, "bind-addr", envOrDefault("LOOM_BIND_ADDR", "0.0.0.0:"+envOrDefault("PORT", "5000")), "The address the http APIs are served on.")
	fs.StringVar(&s.cfg.Datastore.Type, "datastore-type", envOrDefault("DATASTORE_TYPE", "memory"), "The persistence backend, memory or mongodb.")
	fs.StringVar(&s.cfg.Datastore.URL, "datastore-url", os.Getenv("DATASTORE_URL"), "The connection URL of the datastore.")
	fs.StringVar(&s.cfg.Datastore.Database, "datastore-database", envOrDefault("DATASTORE_DATABASE", "loom"), "The database name used by the datastore.")
	fs.StringVar(&s.cfg.Runner.AdapterType, "runner-adapter", envOrDefault("RUNNER_ADAPTER", "local"), "The runner adapter, local or remote.")
	fs.StringVar(&s.cfg.Runner.RunnerURL, "runner-url", envOrDefault("RUNNER_URL", "http://127.0.0.1:4001"), "The base URL of the remote runner.")
	fs.DurationVar(&s.cfg.Runner.Timeout, "runner-timeout", envDurationMS("RUNNER_TIMEOUT_MS", 30*time.Second), "The per execution timeout of the remote runner.")
	fs.DurationVar(&s.cfg.Dispatcher.PollInterval, "dispatch-interval", 2*time.Second, "How often the dispatcher polls for pending intents.")
	fs.IntVar(&s.cfg.Dispatcher.BatchSize, "dispatch-batch-size", 20, "How many pending intents one poll drains at most.")
	fs.StringVar(&s.logLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "The log level, debug, info, warn or error.")
}

func (s *server) run() error {
	log.SetLogLevel(s.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	srv := apiserver.New(s.cfg)
	go func() {
		if err := srv.Run(ctx, errChan); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errChan:
		return fmt.Errorf("run apiserver failure %w", err)
	case sig := <-sigChan:
		log.Logger.Infof("received signal %s, draining", sig.String())
		cancel()
		// give the http server and the workers time to drain
		time.Sleep(time.Second)
		return nil
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDurationMS(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	ms, err := strconv.Atoi(value)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
