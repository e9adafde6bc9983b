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
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ActionHandler executes one admitted request. Returned output and logs are
// folded into the ExecutionResult; a returned error produces a failure result,
// it is never raised past the adapter.
type ActionHandler func(ctx context.Context, req ExecutionRequest, executionID string) (map[string]interface{}, []string, error)

// WorkspaceRecorder persists workspace lifecycle results produced by the
// workspace actions. The control plane provides a datastore-backed recorder;
// a nil recorder keeps the actions purely synthetic.
type WorkspaceRecorder interface {
	RecordWorkspaceStart(ctx context.Context, tctx TenantContext, module, containerID, previewURL string) error
	RecordWorkspaceStop(ctx context.Context, tctx TenantContext, module string) error
}

// LocalAdapter executes requests in process. Every call follows the same
// path: generate execution id, boundary-validate, telemetry, dispatch to the
// handler registered for the action, telemetry, return.
type LocalAdapter struct {
	mu         sync.RWMutex
	handlers   map[RequestedAction]ActionHandler
	telemetry  TelemetryEmitter
	workspaces WorkspaceRecorder
}

// NewLocalAdapter new local adapter with the built-in action handlers.
func NewLocalAdapter(telemetry TelemetryEmitter, workspaces WorkspaceRecorder) *LocalAdapter {
	if telemetry == nil {
		telemetry = NopTelemetry{}
	}
	a := &LocalAdapter{
		handlers:   map[RequestedAction]ActionHandler{},
		telemetry:  telemetry,
		workspaces: workspaces,
	}
	a.Register(ActionWorkspaceStart, a.handleWorkspaceStart)
	a.Register(ActionWorkspaceStop, a.handleWorkspaceStop)
	a.Register(ActionAgentAction, a.handleAgentAction)
	a.Register(ActionAgentTask, a.handleAgentTask)
	return a
}

// Register bind a handler to an action type, replacing any previous binding.
func (a *LocalAdapter) Register(action RequestedAction, handler ActionHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[action] = handler
}

func (a *LocalAdapter) handler(action RequestedAction) (ActionHandler, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h, ok := a.handlers[action]
	return h, ok
}

// ExecuteWorkflowStep implements Adapter.
func (a *LocalAdapter) ExecuteWorkflowStep(ctx context.Context, req ExecutionRequest) ExecutionResult {
	req.Action = ActionWorkflowStep
	return a.execute(ctx, req)
}

// ExecuteTask implements Adapter.
func (a *LocalAdapter) ExecuteTask(ctx context.Context, req ExecutionRequest) ExecutionResult {
	req.Action = ActionAgentTask
	return a.execute(ctx, req)
}

// ExecuteAgentAction implements Adapter.
func (a *LocalAdapter) ExecuteAgentAction(ctx context.Context, req ExecutionRequest) ExecutionResult {
	req.Action = ActionAgentAction
	return a.execute(ctx, req)
}

func (a *LocalAdapter) execute(ctx context.Context, req ExecutionRequest) ExecutionResult {
	executionID := uuid.NewString()
	if berr := ValidateRequest(req); berr != nil {
		result := FailureResult(executionID, berr.Code, "%s", berr.Message)
		a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionFailed, req, executionID, &result))
		return result
	}
	a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionStarted, req, executionID, nil))

	handler, ok := a.handler(req.Action)
	if !ok {
		result := FailureResult(executionID, ErrCodeUnknownAction, "no handler registered for action %s", req.Action)
		a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionFailed, req, executionID, &result))
		return result
	}
	output, logs, err := handler(ctx, req, executionID)
	if err != nil {
		result := a.failureFromHandlerErr(executionID, err)
		result.Logs = append(logs, result.Logs...)
		a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionFailed, req, executionID, &result))
		return result
	}
	result := ExecutionResult{
		ExecutionID: executionID,
		Success:     true,
		Output:      output,
		Logs:        logs,
	}
	a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionCompleted, req, executionID, &result))
	return result
}

func (a *LocalAdapter) failureFromHandlerErr(executionID string, err error) ExecutionResult {
	switch typed := err.(type) {
	case *BoundaryError:
		return FailureResult(executionID, typed.Code, "%s", typed.Message)
	case *CapabilityDeniedError:
		return FailureResult(executionID, ErrCodeCapabilityNotGranted, "%s", typed.Error())
	default:
		return FailureResult(executionID, ErrCodeExecutionFailed, "%s", err.Error())
	}
}

func (a *LocalAdapter) handleWorkspaceStart(ctx context.Context, req ExecutionRequest, executionID string) (map[string]interface{}, []string, error) {
	containerID := fmt.Sprintf("ws-%s", uuid.NewString()[:12])
	previewURL := fmt.Sprintf("https://%s--%s.preview.loom.dev", req.TenantContext.Tenant, req.ModuleContext.Module)
	if a.workspaces != nil {
		if err := a.workspaces.RecordWorkspaceStart(ctx, req.TenantContext, req.ModuleContext.Module, containerID, previewURL); err != nil {
			return nil, nil, err
		}
	}
	return map[string]interface{}{
			"containerId": containerID,
			"previewUrl":  previewURL,
			"status":      "running",
		}, []string{
			fmt.Sprintf("workspace started for module %s, container %s", req.ModuleContext.Module, containerID),
		}, nil
}

func (a *LocalAdapter) handleWorkspaceStop(ctx context.Context, req ExecutionRequest, executionID string) (map[string]interface{}, []string, error) {
	if a.workspaces != nil {
		if err := a.workspaces.RecordWorkspaceStop(ctx, req.TenantContext, req.ModuleContext.Module); err != nil {
			return nil, nil, err
		}
	}
	return map[string]interface{}{"status": "stopped"},
		[]string{fmt.Sprintf("workspace stopped for module %s", req.ModuleContext.Module)}, nil
}

// handleAgentTask accepts the task; agent scheduling happens out of band.
func (a *LocalAdapter) handleAgentTask(ctx context.Context, req ExecutionRequest, executionID string) (map[string]interface{}, []string, error) {
	return map[string]interface{}{"status": "accepted", "taskExecutionId": executionID},
		[]string{fmt.Sprintf("agent task accepted for module %s", req.ModuleContext.Module)}, nil
}

func (a *LocalAdapter) handleAgentAction(ctx context.Context, req ExecutionRequest, executionID string) (map[string]interface{}, []string, error) {
	actionType, _ := req.Input["actionType"].(string)
	switch actionType {
	case "run_command":
		if err := AssertCapability(req.ModuleContext, CapCmdRun); err != nil {
			return nil, nil, err
		}
		if targetPath, ok := req.Input["targetPath"].(string); ok && targetPath != "" {
			if err := ValidateModuleBoundaryPath(req.ModuleContext.Module, req.ModuleContext.ModuleRootPath, targetPath); err != nil {
				return nil, nil, err
			}
		}
		command, _ := req.Input["command"].(string)
		return map[string]interface{}{"exitCode": 0, "command": command},
			[]string{fmt.Sprintf("command dispatched in module %s: %s", req.ModuleContext.Module, command)}, nil
	case "get_diff":
		if err := AssertCapability(req.ModuleContext, CapGitDiff); err != nil {
			return nil, nil, err
		}
		return map[string]interface{}{"diff": ""},
			[]string{fmt.Sprintf("diff read for module %s", req.ModuleContext.Module)}, nil
	case "get_logs":
		if err := AssertCapability(req.ModuleContext, CapFSRead); err != nil {
			return nil, nil, err
		}
		return map[string]interface{}{"logs": []string{}},
			[]string{fmt.Sprintf("logs read for module %s", req.ModuleContext.Module)}, nil
	default:
		return nil, nil, &BoundaryError{Code: ErrCodeUnknownAction, Message: fmt.Sprintf("unknown agent action %q", actionType)}
	}
}
