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

import (
	"fmt"
	"time"
)

func init() {
	RegisterModel(&WorkflowExecution{}, &WorkflowStepExecution{}, &WorkflowExecutionIntent{}, &RecordLock{})
}

// Workflow execution statuses. completed and failed are terminal.
const (
	ExecutionStatusRunning   = "running"
	ExecutionStatusPaused    = "paused"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
)

// Step execution statuses.
const (
	StepExecStatusPending          = "pending"
	StepExecStatusCompleted        = "completed"
	StepExecStatusFailed           = "failed"
	StepExecStatusAwaitingApproval = "awaiting_approval"
)

// Intent statuses.
const (
	IntentStatusPending    = "pending"
	IntentStatusDispatched = "dispatched"
	IntentStatusFailed     = "failed"
)

// WorkflowExecution one run of a workflow definition. Every execution is
// backed by an intent; direct runs without one are rejected upstream.
type WorkflowExecution struct {
	BaseModel
	ID                   string      `json:"id"`
	Tenant               string      `json:"tenant"`
	WorkflowDefinitionID string      `json:"workflowDefinitionId"`
	IntentID             string      `json:"intentId"`
	Input                *JSONStruct `json:"input,omitempty"`
	Status               string      `json:"status"`
	PausedAtStepID       string      `json:"pausedAtStepId,omitempty"`
	AccumulatedInput     *JSONStruct `json:"accumulatedInput,omitempty"`
	StartedAt            time.Time   `json:"startedAt"`
	CompletedAt          *time.Time  `json:"completedAt,omitempty"`
	Error                string      `json:"error,omitempty"`
}

// Terminal reports whether the execution reached a final status.
func (e *WorkflowExecution) Terminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}

// TableName table name for datastore
func (e *WorkflowExecution) TableName() string {
	return tableNamePrefix + "workflow_execution"
}

// ShortTableName is the compressed version of table name
func (e *WorkflowExecution) ShortTableName() string {
	return "wfe"
}

// PrimaryKey primary key for datastore
func (e *WorkflowExecution) PrimaryKey() string {
	return e.ID
}

// Index set to the fields used to query
func (e *WorkflowExecution) Index() map[string]string {
	index := make(map[string]string)
	if e.Tenant != "" {
		index["tenant"] = e.Tenant
	}
	if e.WorkflowDefinitionID != "" {
		index["workflowDefinitionId"] = e.WorkflowDefinitionID
	}
	if e.Status != "" {
		index["status"] = e.Status
	}
	return index
}

// WorkflowStepExecution one step result within an execution.
type WorkflowStepExecution struct {
	BaseModel
	ID                  string      `json:"id"`
	Tenant              string      `json:"tenant"`
	WorkflowExecutionID string      `json:"workflowExecutionId"`
	WorkflowStepID      string      `json:"workflowStepId"`
	Status              string      `json:"status"`
	Output              *JSONStruct `json:"output,omitempty"`
	ExecutedAt          *time.Time  `json:"executedAt,omitempty"`
}

// TableName table name for datastore
func (s *WorkflowStepExecution) TableName() string {
	return tableNamePrefix + "workflow_step_execution"
}

// ShortTableName is the compressed version of table name
func (s *WorkflowStepExecution) ShortTableName() string {
	return "wse"
}

// PrimaryKey primary key for datastore
func (s *WorkflowStepExecution) PrimaryKey() string {
	return s.ID
}

// Index set to the fields used to query
func (s *WorkflowStepExecution) Index() map[string]string {
	index := make(map[string]string)
	if s.Tenant != "" {
		index["tenant"] = s.Tenant
	}
	if s.WorkflowExecutionID != "" {
		index["workflowExecutionId"] = s.WorkflowExecutionID
	}
	if s.Status != "" {
		index["status"] = s.Status
	}
	return index
}

// WorkflowExecutionIntent the durable precondition of every execution.
// Inserts with a duplicate idempotencyKey return the pre-existing row.
type WorkflowExecutionIntent struct {
	BaseModel
	ID                   string      `json:"id"`
	Tenant               string      `json:"tenant"`
	WorkflowDefinitionID string      `json:"workflowDefinitionId"`
	TriggerType          string      `json:"triggerType"`
	TriggerPayload       *JSONStruct `json:"triggerPayload,omitempty"`
	IdempotencyKey       string      `json:"idempotencyKey,omitempty"`
	Status               string      `json:"status"`
	ExecutionID          string      `json:"executionId,omitempty"`
	Error                string      `json:"error,omitempty"`
	DispatchedAt         *time.Time  `json:"dispatchedAt,omitempty"`
}

// TableName table name for datastore
func (i *WorkflowExecutionIntent) TableName() string {
	return tableNamePrefix + "workflow_execution_intent"
}

// ShortTableName is the compressed version of table name
func (i *WorkflowExecutionIntent) ShortTableName() string {
	return "wei"
}

// PrimaryKey primary key for datastore
func (i *WorkflowExecutionIntent) PrimaryKey() string {
	return i.ID
}

// Index set to the fields used to query
func (i *WorkflowExecutionIntent) Index() map[string]string {
	index := make(map[string]string)
	if i.Tenant != "" {
		index["tenant"] = i.Tenant
	}
	if i.WorkflowDefinitionID != "" {
		index["workflowDefinitionId"] = i.WorkflowDefinitionID
	}
	if i.IdempotencyKey != "" {
		index["idempotencyKey"] = i.IdempotencyKey
	}
	if i.Status != "" {
		index["status"] = i.Status
	}
	return index
}

// RecordLock advisory lock row keyed by (tenant, recordType, record). A
// record_mutation step must find either no lock or its own execution's lock.
type RecordLock struct {
	BaseModel
	Tenant       string `json:"tenant"`
	RecordTypeID string `json:"recordTypeId"`
	RecordID     string `json:"recordId"`
	ExecutionID  string `json:"executionId"`
}

// TableName table name for datastore
func (l *RecordLock) TableName() string {
	return tableNamePrefix + "record_lock"
}

// ShortTableName is the compressed version of table name
func (l *RecordLock) ShortTableName() string {
	return "rlk"
}

// PrimaryKey primary key for datastore
func (l *RecordLock) PrimaryKey() string {
	return fmt.Sprintf("%s-%s-%s", l.Tenant, l.RecordTypeID, l.RecordID)
}

// Index set to the fields used to query
func (l *RecordLock) Index() map[string]string {
	index := make(map[string]string)
	if l.Tenant != "" {
		index["tenant"] = l.Tenant
	}
	if l.RecordTypeID != "" {
		index["recordTypeId"] = l.RecordTypeID
	}
	if l.RecordID != "" {
		index["recordId"] = l.RecordID
	}
	if l.ExecutionID != "" {
		index["executionId"] = l.ExecutionID
	}
	return index
}
