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

import "fmt"

// RequestedAction the action kinds the boundary admits.
type RequestedAction string

const (
	// ActionWorkflowStep execute one workflow step
	ActionWorkflowStep RequestedAction = "workflow_step"
	// ActionAgentTask execute an agent task
	ActionAgentTask RequestedAction = "agent_task"
	// ActionAgentAction execute a single agent action
	ActionAgentAction RequestedAction = "agent_action"
	// ActionWorkspaceStart provision a workspace
	ActionWorkspaceStart RequestedAction = "workspace_start"
	// ActionWorkspaceStop tear down a workspace
	ActionWorkspaceStop RequestedAction = "workspace_stop"
	// ActionSkillInvoke invoke a registered skill
	ActionSkillInvoke RequestedAction = "skill_invoke"
)

// ExecutionRequest is the unit admitted or rejected at the control-plane ↔
// runner boundary. The requested capability set must be a subset of the
// module grant, and the nested tenant context must equal the outer one.
type ExecutionRequest struct {
	TenantContext TenantContext          `json:"tenantContext"`
	ModuleContext ModuleExecutionContext `json:"moduleExecutionContext"`
	Action        RequestedAction        `json:"requestedAction"`
	Capabilities  []Capability           `json:"capabilities,omitempty"`
	Input         map[string]interface{} `json:"inputPayload,omitempty"`
}

// Typed error codes surfaced on failure results. These are wire-visible and
// stable; the HTTP surface and telemetry both key off them.
const (
	ErrCodeMissingTenantContext  = "MISSING_TENANT_CONTEXT"
	ErrCodeMissingModuleContext  = "MISSING_MODULE_CONTEXT"
	ErrCodeTenantContextMutation = "TENANT_CONTEXT_MUTATION"
	ErrCodeCapabilityNotGranted  = "CAPABILITY_NOT_GRANTED"
	ErrCodeModuleBoundaryEscape  = "MODULE_BOUNDARY_ESCAPE"
	ErrCodeUnknownAction         = "UNKNOWN_ACTION"
	ErrCodeRemoteUnavailable     = "REMOTE_RUNNER_UNAVAILABLE"
	ErrCodeExecutionFailed       = "EXECUTION_FAILED"
)

// ExecutionResult is the only shape an adapter returns. Boundary and handler
// failures are converted into a failure result; they are never raised past
// the adapter surface.
type ExecutionResult struct {
	ExecutionID string                 `json:"executionId"`
	Success     bool                   `json:"success"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Logs        []string               `json:"logs,omitempty"`
	ErrorCode   string                 `json:"errorCode,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// FailureResult build a failure result with a human log line.
func FailureResult(executionID, code, format string, args ...interface{}) ExecutionResult {
	message := fmt.Sprintf(format, args...)
	return ExecutionResult{
		ExecutionID: executionID,
		Success:     false,
		ErrorCode:   code,
		Error:       message,
		Logs:        []string{fmt.Sprintf("[%s] %s", code, message)},
	}
}
