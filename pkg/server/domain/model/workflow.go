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
	RegisterModel(&WorkflowDefinition{}, &WorkflowStep{}, &WorkflowTrigger{})
}

// Workflow definition statuses.
const (
	WorkflowStatusDraft   = "draft"
	WorkflowStatusActive  = "active"
	WorkflowStatusRetired = "retired"
)

// Workflow trigger types.
const (
	TriggerTypeManual      = "manual"
	TriggerTypeRecordEvent = "record_event"
	TriggerTypeScheduled   = "scheduled"
	TriggerTypeWebhook     = "webhook"
)

// Workflow step types.
const (
	StepTypeAssignment     = "assignment"
	StepTypeApproval       = "approval"
	StepTypeNotification   = "notification"
	StepTypeDecision       = "decision"
	StepTypeRecordMutation = "record_mutation"
	StepTypeRecordLock     = "record_lock"
)

// WorkflowDefinition workflow definition database model. Steps are separate
// rows ordered by orderIndex.
type WorkflowDefinition struct {
	BaseModel
	ID            string      `json:"id"`
	Tenant        string      `json:"tenant"`
	Name          string      `json:"name"`
	TriggerType   string      `json:"triggerType"`
	TriggerConfig *JSONStruct `json:"triggerConfig,omitempty"`
	Version       int64       `json:"version"`
	Status        string      `json:"status"`
	ChangeID      string      `json:"changeId,omitempty"`
}

// TableName table name for datastore
func (w *WorkflowDefinition) TableName() string {
	return tableNamePrefix + "workflow_definition"
}

// ShortTableName is the compressed version of table name
func (w *WorkflowDefinition) ShortTableName() string {
	return "wfd"
}

// PrimaryKey primary key for datastore
func (w *WorkflowDefinition) PrimaryKey() string {
	return w.ID
}

// Index set to the fields used to query
func (w *WorkflowDefinition) Index() map[string]string {
	index := make(map[string]string)
	if w.Tenant != "" {
		index["tenant"] = w.Tenant
	}
	if w.Name != "" {
		index["name"] = w.Name
	}
	if w.Status != "" {
		index["status"] = w.Status
	}
	return index
}

// WorkflowStep one step of a workflow definition. orderIndex is dense per
// definition; flow control happens on array index after loading.
type WorkflowStep struct {
	BaseModel
	ID                   string      `json:"id"`
	Tenant               string      `json:"tenant"`
	WorkflowDefinitionID string      `json:"workflowDefinitionId"`
	Name                 string      `json:"name,omitempty"`
	OrderIndex           int         `json:"orderIndex"`
	StepType             string      `json:"stepType"`
	Config               *JSONStruct `json:"config,omitempty"`
}

// TableName table name for datastore
func (s *WorkflowStep) TableName() string {
	return tableNamePrefix + "workflow_step"
}

// ShortTableName is the compressed version of table name
func (s *WorkflowStep) ShortTableName() string {
	return "wfs"
}

// PrimaryKey primary key for datastore
func (s *WorkflowStep) PrimaryKey() string {
	return s.ID
}

// Index set to the fields used to query
func (s *WorkflowStep) Index() map[string]string {
	index := make(map[string]string)
	if s.Tenant != "" {
		index["tenant"] = s.Tenant
	}
	if s.WorkflowDefinitionID != "" {
		index["workflowDefinitionId"] = s.WorkflowDefinitionID
	}
	return index
}

// WorkflowTrigger binds an external event source to a workflow definition.
type WorkflowTrigger struct {
	BaseModel
	ID                   string      `json:"id"`
	Tenant               string      `json:"tenant"`
	WorkflowDefinitionID string      `json:"workflowDefinitionId"`
	Type                 string      `json:"type"`
	Spec                 *JSONStruct `json:"spec,omitempty"`
}

// TableName table name for datastore
func (t *WorkflowTrigger) TableName() string {
	return tableNamePrefix + "workflow_trigger"
}

// ShortTableName is the compressed version of table name
func (t *WorkflowTrigger) ShortTableName() string {
	return "wft"
}

// PrimaryKey primary key for datastore
func (t *WorkflowTrigger) PrimaryKey() string {
	return t.ID
}

// Index set to the fields used to query
func (t *WorkflowTrigger) Index() map[string]string {
	index := make(map[string]string)
	if t.Tenant != "" {
		index["tenant"] = t.Tenant
	}
	if t.WorkflowDefinitionID != "" {
		index["workflowDefinitionId"] = t.WorkflowDefinitionID
	}
	if t.Type != "" {
		index["type"] = t.Type
	}
	return index
}
