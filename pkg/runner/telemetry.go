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

import "time"

// Telemetry event types emitted around every adapter call.
const (
	EventExecutionStarted   = "execution_started"
	EventExecutionCompleted = "execution_completed"
	EventExecutionFailed    = "execution_failed"
)

// TelemetryEvent captures one boundary execution transition.
type TelemetryEvent struct {
	Type         string          `json:"type"`
	ExecutionID  string          `json:"executionId"`
	Tenant       string          `json:"tenant"`
	Module       string          `json:"module"`
	Action       RequestedAction `json:"action"`
	Capabilities []Capability    `json:"capabilities,omitempty"`
	ErrorCode    string          `json:"errorCode,omitempty"`
	Error        string          `json:"error,omitempty"`
	At           time.Time       `json:"at"`
}

// TelemetryEmitter receives adapter telemetry. Implementations must not block
// the caller beyond a single queued write; slow sinks drop instead of stall.
type TelemetryEmitter interface {
	EmitExecutionEvent(event TelemetryEvent)
}

// NopTelemetry discards all events.
type NopTelemetry struct{}

// EmitExecutionEvent implements TelemetryEmitter.
func (NopTelemetry) EmitExecutionEvent(TelemetryEvent) {}

func executionEvent(eventType string, req ExecutionRequest, executionID string, result *ExecutionResult) TelemetryEvent {
	event := TelemetryEvent{
		Type:         eventType,
		ExecutionID:  executionID,
		Tenant:       req.TenantContext.Tenant,
		Module:       req.ModuleContext.Module,
		Action:       req.Action,
		Capabilities: req.Capabilities,
		At:           time.Now(),
	}
	if result != nil && !result.Success {
		event.ErrorCode = result.ErrorCode
		event.Error = result.Error
	}
	return event
}
