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

// Package config holds the server configuration, assembled from flags and
// environment defaults by the loom-server command.
package config

import (
	"time"

	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
)

// Config config for server
type Config struct {
	// BindAddr the address the API server listens on, e.g. "0.0.0.0:5000"
	BindAddr string

	// Datastore the persistence backend
	Datastore datastore.Config

	// Runner the execution backend
	Runner RunnerConfig

	// Dispatcher the intent dispatcher worker
	Dispatcher DispatcherConfig
}

// RunnerConfig which adapter executes module code and how to reach it.
type RunnerConfig struct {
	// AdapterType "local" or "remote"
	AdapterType string
	// RunnerURL base URL of the remote runner, remote adapter only
	RunnerURL string
	// Timeout per execution request
	Timeout time.Duration
}

// DispatcherConfig tuning of the pending-intent polling worker.
type DispatcherConfig struct {
	// PollInterval how often pending intents are listed
	PollInterval time.Duration
	// BatchSize how many intents one poll drains at most
	BatchSize int
}

// Default the default config used when a flag is absent.
func Default() Config {
	return Config{
		BindAddr: "0.0.0.0:5000",
		Datastore: datastore.Config{
			Type:     "memory",
			Database: "loom",
		},
		Runner: RunnerConfig{
			AdapterType: "local",
			RunnerURL:   "http://127.0.0.1:4001",
			Timeout:     30 * time.Second,
		},
		Dispatcher: DispatcherConfig{
			PollInterval: 2 * time.Second,
			BatchSize:    20,
		},
	}
}
