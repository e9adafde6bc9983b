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

package model

func init() {
	RegisterModel(&TelemetryEvent{}, &AgentRun{})
}

// Domain event types recorded by the telemetry service.
const (
	EventPackageInstalled       = "graph.package_installed"
	EventPackageInstallNoop     = "graph.package_install_noop"
	EventPackageInstallRejected = "graph.package_install_rejected"
	EventPromotionPreviewed     = "graph.promotion_previewed"
	EventPromotionApproved      = "graph.promotion_approved"
	EventPromotionExecuted      = "graph.promotion_executed"
	EventPromotionRejected      = "graph.promotion_rejected"
	EventWorkflowStarted        = "workflow.execution_started"
	EventWorkflowPaused         = "workflow.execution_paused"
	EventWorkflowResumed        = "workflow.execution_resumed"
	EventWorkflowCompleted      = "workflow.execution_completed"
	EventWorkflowFailed         = "workflow.execution_failed"
	EventIntentDispatched       = "workflow.intent_dispatched"
	EventIntentFailed           = "workflow.intent_failed"
	EventChangeExecuted         = "graph.change_executed"
	EventExecutionStarted       = "runner.execution_started"
	EventExecutionCompleted     = "runner.execution_completed"
	EventExecutionFailed        = "runner.execution_failed"
)

// TelemetryEvent append-only best-effort audit row.
type TelemetryEvent struct {
	BaseModel
	ID              string      `json:"id"`
	Tenant          string      `json:"tenant"`
	EventType       string      `json:"eventType"`
	Status          string      `json:"status,omitempty"`
	EntityID        string      `json:"entityId,omitempty"`
	Module          string      `json:"module,omitempty"`
	AffectedRecords int64       `json:"affectedRecords,omitempty"`
	Detail          *JSONStruct `json:"detail,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// TableName table name for datastore
func (t *TelemetryEvent) TableName() string {
	return tableNamePrefix + "execution_telemetry_event"
}

// ShortTableName is the compressed version of table name
func (t *TelemetryEvent) ShortTableName() string {
	return "tle"
}

// PrimaryKey primary key for datastore
func (t *TelemetryEvent) PrimaryKey() string {
	return t.ID
}

// Index set to the fields used to query
func (t *TelemetryEvent) Index() map[string]string {
	index := make(map[string]string)
	if t.Tenant != "" {
		index["tenant"] = t.Tenant
	}
	if t.EventType != "" {
		index["eventType"] = t.EventType
	}
	if t.EntityID != "" {
		index["entityId"] = t.EntityID
	}
	return index
}

// AgentRun one agent task accepted by the runner.
type AgentRun struct {
	BaseModel
	ID          string      `json:"id"`
	Tenant      string      `json:"tenant"`
	Module      string      `json:"module"`
	Action      string      `json:"action"`
	ExecutionID string      `json:"executionId"`
	Status      string      `json:"status"`
	Output      *JSONStruct `json:"output,omitempty"`
}

// TableName table name for datastore
func (a *AgentRun) TableName() string {
	return tableNamePrefix + "agent_run"
}

// ShortTableName is the compressed version of table name
func (a *AgentRun) ShortTableName() string {
	return "agr"
}

// PrimaryKey primary key for datastore
func (a *AgentRun) PrimaryKey() string {
	return a.ID
}

// Index set to the fields used to query
func (a *AgentRun) Index() map[string]string {
	index := make(map[string]string)
	if a.Tenant != "" {
		index["tenant"] = a.Tenant
	}
	if a.Module != "" {
		index["module"] = a.Module
	}
	if a.ExecutionID != "" {
		index["executionId"] = a.ExecutionID
	}
	return index
}
