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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RemoteAdapter forwards execution requests to a runner service over HTTP.
// Timeouts, transport errors and malformed bodies all synthesize a failure
// result; the adapter never raises.
type RemoteAdapter struct {
	url       string
	timeout   time.Duration
	client    *http.Client
	telemetry TelemetryEmitter
}

// NewRemoteAdapter new remote adapter posting to url with a per-request timeout.
func NewRemoteAdapter(url string, timeout time.Duration, telemetry TelemetryEmitter) *RemoteAdapter {
	if telemetry == nil {
		telemetry = NopTelemetry{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteAdapter{
		url:       url,
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
		telemetry: telemetry,
	}
}

// ExecuteWorkflowStep implements Adapter.
func (a *RemoteAdapter) ExecuteWorkflowStep(ctx context.Context, req ExecutionRequest) ExecutionResult {
	req.Action = ActionWorkflowStep
	return a.post(ctx, req)
}

// ExecuteTask implements Adapter.
func (a *RemoteAdapter) ExecuteTask(ctx context.Context, req ExecutionRequest) ExecutionResult {
	req.Action = ActionAgentTask
	return a.post(ctx, req)
}

// ExecuteAgentAction implements Adapter.
func (a *RemoteAdapter) ExecuteAgentAction(ctx context.Context, req ExecutionRequest) ExecutionResult {
	req.Action = ActionAgentAction
	return a.post(ctx, req)
}

func (a *RemoteAdapter) post(ctx context.Context, req ExecutionRequest) ExecutionResult {
	executionID := uuid.NewString()
	if berr := ValidateRequest(req); berr != nil {
		result := FailureResult(executionID, berr.Code, "%s", berr.Message)
		a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionFailed, req, executionID, &result))
		return result
	}
	a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionStarted, req, executionID, nil))

	body, err := json.Marshal(req)
	if err != nil {
		result := FailureResult(executionID, ErrCodeExecutionFailed, "marshal execution request: %s", err.Error())
		a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionFailed, req, executionID, &result))
		return result
	}
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, a.url+"/execute", bytes.NewReader(body))
	if err != nil {
		result := FailureResult(executionID, ErrCodeRemoteUnavailable, "build runner request: %s", err.Error())
		a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionFailed, req, executionID, &result))
		return result
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(httpReq)
	if err != nil {
		result := FailureResult(executionID, ErrCodeRemoteUnavailable, "runner %s unreachable: %s", a.url, err.Error())
		a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionFailed, req, executionID, &result))
		return result
	}
	defer func() { _ = resp.Body.Close() }()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		result := FailureResult(executionID, ErrCodeRemoteUnavailable, "read runner response: %s", err.Error())
		a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionFailed, req, executionID, &result))
		return result
	}
	var result ExecutionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		result = FailureResult(executionID, ErrCodeRemoteUnavailable, "runner returned a non-JSON body (status %d)", resp.StatusCode)
		a.telemetry.EmitExecutionEvent(executionEvent(EventExecutionFailed, req, executionID, &result))
		return result
	}
	if result.ExecutionID == "" {
		result.ExecutionID = executionID
	}
	eventType := EventExecutionCompleted
	if !result.Success {
		eventType = EventExecutionFailed
		if result.ErrorCode == "" {
			result.ErrorCode = ErrCodeExecutionFailed
		}
	}
	a.telemetry.EmitExecutionEvent(executionEvent(eventType, req, result.ExecutionID, &result))
	return result
}
