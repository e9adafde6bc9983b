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

// Package runner is the sandboxed execution plane boundary: request-scoped
// tenant and module contexts, capability grants, the boundary guard that
// admits every execution request, and the adapters that dispatch admitted
// requests to local or remote execution.
package runner

import (
	"context"
	"fmt"
	"time"
)

// Adapter is the execution surface the control plane talks to. All three
// operations return a well-typed ExecutionResult on every path; adapters
// never raise past this interface.
type Adapter interface {
	ExecuteWorkflowStep(ctx context.Context, req ExecutionRequest) ExecutionResult
	ExecuteTask(ctx context.Context, req ExecutionRequest) ExecutionResult
	ExecuteAgentAction(ctx context.Context, req ExecutionRequest) ExecutionResult
}

// Adapter config tokens. Resolution happens once per process.
const (
	AdapterLocal  = "local"
	AdapterRemote = "remote"
)

// Config selects and parameterizes the adapter.
type Config struct {
	Adapter string
	URL     string
	Timeout time.Duration
}

// New build the adapter selected by the config token.
func New(cfg Config, telemetry TelemetryEmitter, workspaces WorkspaceRecorder) (Adapter, error) {
	switch cfg.Adapter {
	case AdapterLocal, "":
		return NewLocalAdapter(telemetry, workspaces), nil
	case AdapterRemote:
		if cfg.URL == "" {
			return nil, fmt.Errorf("remote runner adapter requires a url")
		}
		return NewRemoteAdapter(cfg.URL, cfg.Timeout, telemetry), nil
	default:
		return nil, fmt.Errorf("unknown runner adapter %q", cfg.Adapter)
	}
}
