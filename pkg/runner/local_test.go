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

package runner

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureTelemetry struct {
	mu     sync.Mutex
	events []TelemetryEvent
}

func (c *captureTelemetry) EmitExecutionEvent(event TelemetryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureTelemetry) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func newAgentRequest(t *testing.T, profile string, input map[string]interface{}) ExecutionRequest {
	tctx := NewTenantContext("tenant-a", "alice")
	return ExecutionRequest{
		TenantContext: tctx,
		ModuleContext: testModuleContext(t, tctx, profile),
		Action:        ActionAgentAction,
		Input:         input,
	}
}

func TestLocalAdapterRunCommandInsideBoundary(t *testing.T) {
	telemetry := &captureTelemetry{}
	adapter := NewLocalAdapter(telemetry, nil)
	req := newAgentRequest(t, ProfileCodeModuleDefault, map[string]interface{}{
		"actionType": "run_command",
		"command":    "npm test",
		"targetPath": "src/checkout/cart.test.ts",
	})
	result := adapter.ExecuteAgentAction(context.Background(), req)
	require.True(t, result.Success, result.Error)
	assert.NotEmpty(t, result.ExecutionID)
	assert.Equal(t, "npm test", result.Output["command"])
	assert.Equal(t, []string{EventExecutionStarted, EventExecutionCompleted}, telemetry.types())
}

func TestLocalAdapterBoundaryEscapeFailsClosed(t *testing.T) {
	telemetry := &captureTelemetry{}
	adapter := NewLocalAdapter(telemetry, nil)
	req := newAgentRequest(t, ProfileCodeModuleDefault, map[string]interface{}{
		"actionType": "run_command",
		"command":    "cat /etc/passwd",
		"targetPath": "src/checkout/../../billing/secrets.env",
	})
	result := adapter.ExecuteAgentAction(context.Background(), req)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeModuleBoundaryEscape, result.ErrorCode)
	assert.Equal(t, []string{EventExecutionStarted, EventExecutionFailed}, telemetry.types())
}

func TestLocalAdapterCapabilityDenied(t *testing.T) {
	adapter := NewLocalAdapter(nil, nil)
	req := newAgentRequest(t, ProfileReadOnly, map[string]interface{}{
		"actionType": "run_command",
		"command":    "rm -rf dist",
	})
	result := adapter.ExecuteAgentAction(context.Background(), req)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeCapabilityNotGranted, result.ErrorCode)
}

func TestLocalAdapterRejectionSkipsStartedEvent(t *testing.T) {
	telemetry := &captureTelemetry{}
	adapter := NewLocalAdapter(telemetry, nil)
	result := adapter.ExecuteAgentAction(context.Background(), ExecutionRequest{
		TenantContext: TenantContext{Tenant: "", Source: SourceHeader},
	})
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeMissingTenantContext, result.ErrorCode)
	assert.Equal(t, []string{EventExecutionFailed}, telemetry.types())
}

func TestLocalAdapterUnknownAgentAction(t *testing.T) {
	adapter := NewLocalAdapter(nil, nil)
	req := newAgentRequest(t, ProfileCodeModuleDefault, map[string]interface{}{"actionType": "drop_tables"})
	result := adapter.ExecuteAgentAction(context.Background(), req)
	require.False(t, result.Success)
	assert.Equal(t, ErrCodeUnknownAction, result.ErrorCode)
}

func TestLocalAdapterWorkspaceLifecycle(t *testing.T) {
	adapter := NewLocalAdapter(nil, nil)
	tctx := NewTenantContext("tenant-a", "alice")
	req := ExecutionRequest{
		TenantContext: tctx,
		ModuleContext: testModuleContext(t, tctx, ProfileCodeModuleDefault),
		Action:        ActionWorkspaceStart,
	}
	result := adapter.ExecuteTask(context.Background(), ExecutionRequest{
		TenantContext: tctx,
		ModuleContext: req.ModuleContext,
	})
	require.True(t, result.Success)
	assert.Equal(t, "accepted", result.Output["status"])

	start := adapter.execute(context.Background(), req)
	require.True(t, start.Success)
	assert.Equal(t, "running", start.Output["status"])
	assert.Contains(t, start.Output["previewUrl"], "tenant-a--checkout")

	req.Action = ActionWorkspaceStop
	stop := adapter.execute(context.Background(), req)
	require.True(t, stop.Success)
	assert.Equal(t, "stopped", stop.Output["status"])
}

func TestLocalAdapterCustomHandlerRegistration(t *testing.T) {
	adapter := NewLocalAdapter(nil, nil)
	adapter.Register(ActionWorkflowStep, func(ctx context.Context, req ExecutionRequest, executionID string) (map[string]interface{}, []string, error) {
		return map[string]interface{}{"step": "done"}, []string{"step handled"}, nil
	})
	tctx := NewTenantContext("tenant-a", "alice")
	result := adapter.ExecuteWorkflowStep(context.Background(), ExecutionRequest{
		TenantContext: tctx,
		ModuleContext: testModuleContext(t, tctx, ProfileWorkflowModuleDefault),
	})
	require.True(t, result.Success)
	assert.Equal(t, "done", result.Output["step"])
	assert.Equal(t, []string{"step handled"}, result.Logs)
}
