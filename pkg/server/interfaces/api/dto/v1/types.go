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

// Package v1 carries the request and response bodies of the v1 HTTP API.
package v1

import (
	"sort"

	"github.com/loom-dev/loom/pkg/graph"
	"github.com/loom-dev/loom/pkg/server/domain/model"
)

var (
	// CtxKeyTenant request context key of the resolved tenant context
	CtxKeyTenant = "tenant"
)

// SimpleResponse a general response
type SimpleResponse struct {
	Status string `json:"status"`
}

// CreateProjectRequest create project request body
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description,omitempty" validate:"max=256"`
}

// ListProjectsResponse list projects response body
type ListProjectsResponse struct {
	Projects []*model.Project `json:"projects"`
	Total    int64            `json:"total"`
}

// CreateModuleRequest create module request body
type CreateModuleRequest struct {
	ProjectID         string `json:"projectId" validate:"required"`
	Name              string `json:"name" validate:"required,min=2,max=64"`
	Kind              string `json:"kind" validate:"required,oneof=code workflow"`
	RootPath          string `json:"rootPath" validate:"required"`
	CapabilityProfile string `json:"capabilityProfile,omitempty"`
}

// ListModulesResponse list modules response body
type ListModulesResponse struct {
	Modules []*model.Module `json:"modules"`
}

// UpdateEnvironmentRequest update environment request body. Absent fields
// keep their stored value.
type UpdateEnvironmentRequest struct {
	RequiresPromotionApproval *bool   `json:"requiresPromotionApproval,omitempty"`
	PromotionWebhookURL       *string `json:"promotionWebhookUrl,omitempty"`
}

// ListEnvironmentsResponse list environments response body
type ListEnvironmentsResponse struct {
	Environments []*model.Environment `json:"environments"`
}

// CreateChangeRequest create change request body
type CreateChangeRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	ModuleID  string `json:"moduleId,omitempty"`
	Name      string `json:"name" validate:"required"`
}

// CreateWorkflowRequest create workflow request body
type CreateWorkflowRequest struct {
	Name          string                      `json:"name" validate:"required,min=2,max=64"`
	TriggerType   string                      `json:"triggerType" validate:"required,oneof=manual record_event scheduled webhook"`
	TriggerConfig map[string]interface{}      `json:"triggerConfig,omitempty"`
	ChangeID      string                      `json:"changeId,omitempty"`
	Steps         []CreateWorkflowStepRequest `json:"steps" validate:"required,min=1,dive"`
}

// CreateWorkflowStepRequest one step of a create workflow request
type CreateWorkflowStepRequest struct {
	Name       string                 `json:"name,omitempty"`
	OrderIndex int                    `json:"orderIndex"`
	StepType   string                 `json:"stepType" validate:"required,oneof=assignment approval notification decision record_mutation record_lock"`
	Config     map[string]interface{} `json:"config,omitempty"`
}

// WorkflowValidationError one activation finding
type WorkflowValidationError struct {
	StepID  string `json:"stepId"`
	Message string `json:"message"`
}

// ActivateWorkflowResponse activation outcome; a non-empty error list means
// the definition stayed in draft.
type ActivateWorkflowResponse struct {
	Activated        bool                      `json:"activated"`
	ValidationErrors []WorkflowValidationError `json:"validationErrors,omitempty"`
}

// ExecuteWorkflowRequest execute workflow request body
type ExecuteWorkflowRequest struct {
	IntentID string                 `json:"intentId" validate:"required"`
	ModuleID string                 `json:"moduleId,omitempty"`
	Input    map[string]interface{} `json:"input,omitempty"`
}

// ResumeWorkflowRequest resolve a paused approval step
type ResumeWorkflowRequest struct {
	StepExecutionID string `json:"stepExecutionId" validate:"required"`
	Approved        bool   `json:"approved"`
	ResolvedBy      string `json:"resolvedBy" validate:"required"`
}

// WorkflowExecutionDetail execution plus its step executions
type WorkflowExecutionDetail struct {
	Execution      *model.WorkflowExecution       `json:"execution"`
	StepExecutions []*model.WorkflowStepExecution `json:"stepExecutions,omitempty"`
}

// CreateIntentRequest create execution intent request body
type CreateIntentRequest struct {
	WorkflowDefinitionID string                 `json:"workflowDefinitionId" validate:"required"`
	TriggerType          string                 `json:"triggerType" validate:"required"`
	TriggerPayload       map[string]interface{} `json:"triggerPayload,omitempty"`
	IdempotencyKey       string                 `json:"idempotencyKey,omitempty"`
}

// CreateIntentResponse the created (or pre-existing) intent
type CreateIntentResponse struct {
	Intent  *model.WorkflowExecutionIntent `json:"intent"`
	Created bool                           `json:"created"`
}

// InstallOptions install pipeline switches
type InstallOptions struct {
	// PreviewOnly run the pipeline up to the diff and apply nothing
	PreviewOnly bool `json:"previewOnly,omitempty"`
	// AllowDowngrade skip the version gate
	AllowDowngrade bool `json:"allowDowngrade,omitempty"`
	// AllowForeignTypeMutation skip the package ownership scan
	AllowForeignTypeMutation bool `json:"allowForeignTypeMutation,omitempty"`
	// EnvironmentID attribute the install to this environment; empty picks
	// the project's oldest environment
	EnvironmentID string `json:"environmentId,omitempty"`
}

// InstallPackageRequest install one package into a project
type InstallPackageRequest struct {
	Package graph.GraphPackage `json:"package" validate:"required"`
	Options InstallOptions     `json:"options,omitempty"`
}

// InstallPackagesRequest install a batch of packages in dependency order
type InstallPackagesRequest struct {
	Packages []graph.GraphPackage `json:"packages" validate:"required,min=1"`
	Options  InstallOptions       `json:"options,omitempty"`
}

// InstallResult the outcome of one package install
type InstallResult struct {
	PackageKey       string                  `json:"packageKey"`
	Version          string                  `json:"version"`
	Checksum         string                  `json:"checksum"`
	Success          bool                    `json:"success"`
	Noop             bool                    `json:"noop,omitempty"`
	Rejected         bool                    `json:"rejected,omitempty"`
	Reason           string                  `json:"reason,omitempty"`
	InstallID        string                  `json:"installId,omitempty"`
	AppliedCount     int                     `json:"appliedCount,omitempty"`
	Diff             *graph.Diff             `json:"diff,omitempty"`
	ValidationErrors []graph.ValidationError `json:"validationErrors,omitempty"`
}

// InstallBatchResponse per-package results in apply order
type InstallBatchResponse struct {
	Results []*InstallResult `json:"results"`
}

// ListInstallsResponse install audit history
type ListInstallsResponse struct {
	Installs []*model.GraphPackageInstall `json:"installs"`
}

// ListRecordTypesResponse the stored record types of a project
type ListRecordTypesResponse struct {
	RecordTypes []*model.RecordType `json:"recordTypes"`
}

// CreatePromotionRequest open a promotion between two environments
type CreatePromotionRequest struct {
	ProjectID         string `json:"projectId" validate:"required"`
	FromEnvironmentID string `json:"fromEnvironmentId" validate:"required"`
	ToEnvironmentID   string `json:"toEnvironmentId" validate:"required"`
}

// EnvironmentDelta which packages differ between two environments
type EnvironmentDelta struct {
	MissingInTarget  []string `json:"missingInTarget,omitempty"`
	ChecksumMismatch []string `json:"checksumMismatch,omitempty"`
	ExtraInTarget    []string `json:"extraInTarget,omitempty"`
}

// Sort order the delta lists for stable previews.
func (d *EnvironmentDelta) Sort() {
	sort.Strings(d.MissingInTarget)
	sort.Strings(d.ChecksumMismatch)
	sort.Strings(d.ExtraInTarget)
}

// Empty reports whether the environments already match.
func (d *EnvironmentDelta) Empty() bool {
	return len(d.MissingInTarget) == 0 && len(d.ChecksumMismatch) == 0 && len(d.ExtraInTarget) == 0
}

// ListTelemetryEventsResponse stored domain events, newest first
type ListTelemetryEventsResponse struct {
	Events []*model.TelemetryEvent `json:"events"`
	Total  int64                   `json:"total"`
}

// SystemInfoResponse build and runtime facts of the server
type SystemInfoResponse struct {
	Version       string `json:"version"`
	GitCommit     string `json:"gitCommit"`
	DatastoreType string `json:"datastoreType"`
	RunnerAdapter string `json:"runnerAdapter"`
}
