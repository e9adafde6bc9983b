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

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/repository"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

// WorkflowService interprets workflow definitions against persistent state:
// sequential step execution with decision branching, approval pause/resume
// and advisory record locks.
type WorkflowService interface {
	CreateWorkflow(ctx context.Context, tctx runner.TenantContext, req apisv1.CreateWorkflowRequest) (*model.WorkflowDefinition, error)
	ActivateWorkflow(ctx context.Context, tctx runner.TenantContext, defID string) ([]apisv1.WorkflowValidationError, error)
	ExecuteWorkflow(ctx context.Context, mctx runner.ModuleExecutionContext, defID string, input map[string]interface{}, intentID string) (*model.WorkflowExecution, error)
	ResumeWorkflowExecution(ctx context.Context, mctx runner.ModuleExecutionContext, execID, stepExecID string, req apisv1.ResumeWorkflowRequest) (*model.WorkflowExecution, error)
	ResumeWorkflow(ctx context.Context, tctx runner.TenantContext, execID string, req apisv1.ResumeWorkflowRequest) (*model.WorkflowExecution, error)
	DetailWorkflowExecution(ctx context.Context, tctx runner.TenantContext, execID string) (*apisv1.WorkflowExecutionDetail, error)
	RegisterHandlers(local *runner.LocalAdapter)
}

type workflowServiceImpl struct {
	Store     datastore.DataStore `inject:"datastore"`
	Runner    runner.Adapter      `inject:"runnerAdapter"`
	Telemetry TelemetryService    `inject:""`
}

// NewWorkflowService new workflow service
func NewWorkflowService() WorkflowService {
	return &workflowServiceImpl{}
}

// RegisterHandlers bind this service as the workflow_step action handler so
// every step result carries the boundary execution audit trail.
func (w *workflowServiceImpl) RegisterHandlers(local *runner.LocalAdapter) {
	local.Register(runner.ActionWorkflowStep, w.handleWorkflowStep)
}

// CreateWorkflow create a draft definition together with its step rows.
func (w *workflowServiceImpl) CreateWorkflow(ctx context.Context, tctx runner.TenantContext, req apisv1.CreateWorkflowRequest) (*model.WorkflowDefinition, error) {
	if _, err := repository.GetWorkflowDefinitionByName(ctx, w.Store, tctx.Tenant, req.Name); err == nil {
		return nil, bcode.ErrWorkflowExist
	}
	triggerConfig, err := model.NewJSONStructByStruct(req.TriggerConfig)
	if err != nil {
		return nil, bcode.ErrInvalidRequestBody
	}
	def := &model.WorkflowDefinition{
		ID:            uuid.NewString(),
		Tenant:        tctx.Tenant,
		Name:          req.Name,
		TriggerType:   req.TriggerType,
		TriggerConfig: triggerConfig,
		Version:       1,
		Status:        model.WorkflowStatusDraft,
		ChangeID:      req.ChangeID,
	}
	if err := w.Store.Add(ctx, def); err != nil {
		return nil, err
	}
	for _, stepReq := range req.Steps {
		config, err := model.NewJSONStructByStruct(stepReq.Config)
		if err != nil {
			return nil, bcode.ErrInvalidRequestBody
		}
		step := &model.WorkflowStep{
			ID:                   uuid.NewString(),
			Tenant:               tctx.Tenant,
			WorkflowDefinitionID: def.ID,
			Name:                 stepReq.Name,
			OrderIndex:           stepReq.OrderIndex,
			StepType:             stepReq.StepType,
			Config:               config,
		}
		if err := w.Store.Add(ctx, step); err != nil {
			return nil, err
		}
	}
	return def, nil
}

// ActivateWorkflow validate the definition's decision steps and move it from
// draft to active. Validation failures are returned without a status change.
func (w *workflowServiceImpl) ActivateWorkflow(ctx context.Context, tctx runner.TenantContext, defID string) ([]apisv1.WorkflowValidationError, error) {
	def, err := repository.GetWorkflowDefinition(ctx, w.Store, tctx.Tenant, defID)
	if err != nil {
		return nil, err
	}
	steps, err := repository.ListWorkflowSteps(ctx, w.Store, tctx.Tenant, def.ID)
	if err != nil {
		return nil, err
	}
	findings := validateDecisionSteps(steps)
	if len(findings) > 0 {
		return findings, nil
	}
	def.Status = model.WorkflowStatusActive
	if err := w.Store.Put(ctx, def); err != nil {
		return nil, err
	}
	return nil, nil
}

func validateDecisionSteps(steps []*model.WorkflowStep) []apisv1.WorkflowValidationError {
	known := map[int]bool{}
	for _, step := range steps {
		known[step.OrderIndex] = true
	}
	var findings []apisv1.WorkflowValidationError
	for _, step := range steps {
		if step.StepType != model.StepTypeDecision {
			continue
		}
		config := map[string]interface{}{}
		if step.Config != nil {
			config = *step.Config
		}
		field, _ := config["conditionField"].(string)
		if field == "" {
			findings = append(findings, apisv1.WorkflowValidationError{
				StepID: step.ID, Message: "decision step requires a non-empty conditionField",
			})
		}
		for _, branch := range []string{"onTrueStepIndex", "onFalseStepIndex"} {
			target, ok := config[branch].(float64)
			if !ok {
				findings = append(findings, apisv1.WorkflowValidationError{
					StepID: step.ID, Message: fmt.Sprintf("decision step %s must be a number", branch),
				})
				continue
			}
			if !known[int(target)] {
				findings = append(findings, apisv1.WorkflowValidationError{
					StepID: step.ID, Message: fmt.Sprintf("decision step %s references unknown orderIndex %d", branch, int(target)),
				})
			}
		}
	}
	return findings
}

// ExecuteWorkflow start one execution of an active definition. The intent id
// is the durable precondition; direct execution without one is forbidden.
func (w *workflowServiceImpl) ExecuteWorkflow(ctx context.Context, mctx runner.ModuleExecutionContext, defID string, input map[string]interface{}, intentID string) (*model.WorkflowExecution, error) {
	tenant := mctx.TenantContext.Tenant
	if intentID == "" {
		return nil, bcode.ErrExecutionIntentRequired
	}
	def, err := repository.GetWorkflowDefinition(ctx, w.Store, tenant, defID)
	if err != nil {
		return nil, err
	}
	if def.Status != model.WorkflowStatusActive {
		return nil, bcode.ErrWorkflowNotActive
	}
	steps, err := repository.ListWorkflowSteps(ctx, w.Store, tenant, def.ID)
	if err != nil {
		return nil, err
	}
	inputStruct, err := model.NewJSONStructByStruct(input)
	if err != nil {
		return nil, bcode.ErrInvalidRequestBody
	}
	exec := &model.WorkflowExecution{
		ID:                   uuid.NewString(),
		Tenant:               tenant,
		WorkflowDefinitionID: def.ID,
		IntentID:             intentID,
		Input:                inputStruct,
		Status:               model.ExecutionStatusRunning,
		StartedAt:            time.Now(),
	}
	if err := w.Store.Add(ctx, exec); err != nil {
		return nil, err
	}
	w.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: tenant, EventType: model.EventWorkflowStarted, EntityID: exec.ID, Module: mctx.Module,
	})
	if err := w.runStepsFromIndex(ctx, mctx, steps, exec, 0, cloneInput(input)); err != nil {
		return nil, err
	}
	return exec, nil
}

// ResumeWorkflowExecution resolve a paused approval and either continue from
// the step after the paused one or fail the execution.
func (w *workflowServiceImpl) ResumeWorkflowExecution(ctx context.Context, mctx runner.ModuleExecutionContext, execID, stepExecID string, req apisv1.ResumeWorkflowRequest) (*model.WorkflowExecution, error) {
	tenant := mctx.TenantContext.Tenant
	exec, err := repository.GetWorkflowExecution(ctx, w.Store, tenant, execID)
	if err != nil {
		return nil, err
	}
	if exec.Status != model.ExecutionStatusPaused {
		return nil, bcode.ErrExecutionNotPaused
	}
	stepExec, err := repository.GetStepExecution(ctx, w.Store, tenant, stepExecID)
	if err != nil {
		return nil, err
	}
	if stepExec.WorkflowExecutionID != exec.ID || stepExec.WorkflowStepID != exec.PausedAtStepID ||
		stepExec.Status != model.StepExecStatusAwaitingApproval {
		return nil, bcode.ErrStepNotAwaitingApproval
	}

	resolution := "approved"
	if !req.Approved {
		resolution = "rejected"
	}
	output := map[string]interface{}{"status": resolution, "resolvedBy": req.ResolvedBy}
	outputStruct, err := model.NewJSONStructByStruct(output)
	if err != nil {
		return nil, err
	}
	stepExec.Output = outputStruct
	now := time.Now()
	stepExec.ExecutedAt = &now
	if req.Approved {
		stepExec.Status = model.StepExecStatusCompleted
	} else {
		stepExec.Status = model.StepExecStatusFailed
	}
	if err := w.Store.Put(ctx, stepExec); err != nil {
		return nil, err
	}

	if !req.Approved {
		if err := w.finishExecution(ctx, exec, model.ExecutionStatusFailed, "approval rejected by "+req.ResolvedBy); err != nil {
			return nil, err
		}
		return exec, nil
	}

	steps, err := repository.ListWorkflowSteps(ctx, w.Store, tenant, exec.WorkflowDefinitionID)
	if err != nil {
		return nil, err
	}
	pausedIdx := -1
	for i, step := range steps {
		if step.ID == exec.PausedAtStepID {
			pausedIdx = i
			break
		}
	}
	if pausedIdx < 0 {
		return nil, bcode.ErrStepExecutionNotExist
	}
	var accumulated map[string]interface{}
	if exec.AccumulatedInput != nil {
		accumulated = cloneInput(*exec.AccumulatedInput)
	} else {
		accumulated = map[string]interface{}{}
	}
	exec.Status = model.ExecutionStatusRunning
	exec.PausedAtStepID = ""
	if err := w.Store.Put(ctx, exec); err != nil {
		return nil, err
	}
	w.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: tenant, EventType: model.EventWorkflowResumed, EntityID: exec.ID, Module: mctx.Module,
	})
	if err := w.runStepsFromIndex(ctx, mctx, steps, exec, pausedIdx+1, accumulated); err != nil {
		return nil, err
	}
	return exec, nil
}

// ResumeWorkflow tenant-level resume: resolves the module context of the
// paused execution's definition and continues from the paused approval.
func (w *workflowServiceImpl) ResumeWorkflow(ctx context.Context, tctx runner.TenantContext, execID string, req apisv1.ResumeWorkflowRequest) (*model.WorkflowExecution, error) {
	exec, err := repository.GetWorkflowExecution(ctx, w.Store, tctx.Tenant, execID)
	if err != nil {
		return nil, err
	}
	def, err := repository.GetWorkflowDefinition(ctx, w.Store, tctx.Tenant, exec.WorkflowDefinitionID)
	if err != nil {
		return nil, err
	}
	module, err := resolveWorkflowModule(ctx, w.Store, tctx.Tenant, def)
	if err != nil {
		return nil, err
	}
	mctx, err := runner.NewModuleExecutionContext(tctx, module.Name, module.RootPath, module.CapabilityProfile)
	if err != nil {
		return nil, err
	}
	return w.ResumeWorkflowExecution(ctx, mctx, execID, req.StepExecutionID, req)
}

// resolveWorkflowModule prefer the module referenced by the workflow's
// change; fall back to any module of the tenant.
func resolveWorkflowModule(ctx context.Context, store datastore.DataStore, tenant string, def *model.WorkflowDefinition) (*model.Module, error) {
	if def.ChangeID != "" {
		change, err := repository.GetChangeRecord(ctx, store, tenant, def.ChangeID)
		if err == nil && change.ModuleID != "" {
			if module, err := repository.GetModule(ctx, store, tenant, change.ModuleID); err == nil {
				return module, nil
			}
		}
	}
	return repository.AnyModule(ctx, store, tenant)
}

// DetailWorkflowExecution execution plus its step executions.
func (w *workflowServiceImpl) DetailWorkflowExecution(ctx context.Context, tctx runner.TenantContext, execID string) (*apisv1.WorkflowExecutionDetail, error) {
	exec, err := repository.GetWorkflowExecution(ctx, w.Store, tctx.Tenant, execID)
	if err != nil {
		return nil, err
	}
	stepExecs, err := repository.ListStepExecutions(ctx, w.Store, tctx.Tenant, exec.ID)
	if err != nil {
		return nil, err
	}
	return &apisv1.WorkflowExecutionDetail{Execution: exec, StepExecutions: stepExecs}, nil
}

// runStepsFromIndex drive the execution forward from one array index.
// Decision outputs jump by orderIndex through a lookup table built once.
func (w *workflowServiceImpl) runStepsFromIndex(ctx context.Context, mctx runner.ModuleExecutionContext, steps []*model.WorkflowStep, exec *model.WorkflowExecution, startIdx int, currentInput map[string]interface{}) error {
	tenant := mctx.TenantContext.Tenant
	orderToArray := make(map[int]int, len(steps))
	for i, step := range steps {
		orderToArray[step.OrderIndex] = i
	}

	for i := startIdx; i < len(steps); i++ {
		step := steps[i]
		result := w.Runner.ExecuteWorkflowStep(ctx, runner.ExecutionRequest{
			TenantContext: mctx.TenantContext,
			ModuleContext: mctx,
			Input: map[string]interface{}{
				"workflowExecutionId": exec.ID,
				"stepId":              step.ID,
				"stepType":            step.StepType,
				"config":              stepConfig(step),
				"input":               currentInput,
			},
		})

		output := result.Output
		if output == nil {
			output = map[string]interface{}{}
		}
		// Per-step telemetry: fold the runner's logs into the step output so
		// logical steps carry the boundary audit trail.
		output["logs"] = result.Logs

		stepExec := &model.WorkflowStepExecution{
			ID:                  uuid.NewString(),
			Tenant:              tenant,
			WorkflowExecutionID: exec.ID,
			WorkflowStepID:      step.ID,
		}
		now := time.Now()
		stepExec.ExecutedAt = &now
		outputStruct, err := model.NewJSONStructByStruct(output)
		if err != nil {
			return err
		}
		stepExec.Output = outputStruct

		if !result.Success {
			stepExec.Status = model.StepExecStatusFailed
			if err := w.Store.Add(ctx, stepExec); err != nil {
				return err
			}
			return w.finishExecution(ctx, exec, model.ExecutionStatusFailed,
				fmt.Sprintf("step %s failed: %s", step.ID, result.Error))
		}

		status, _ := output["status"].(string)
		if step.StepType == model.StepTypeApproval && status == "awaiting_approval" {
			stepExec.Status = model.StepExecStatusAwaitingApproval
			if err := w.Store.Add(ctx, stepExec); err != nil {
				return err
			}
			accumulated, err := model.NewJSONStructByStruct(currentInput)
			if err != nil {
				return err
			}
			exec.Status = model.ExecutionStatusPaused
			exec.PausedAtStepID = step.ID
			exec.AccumulatedInput = accumulated
			if err := w.Store.Put(ctx, exec); err != nil {
				return err
			}
			w.Telemetry.Emit(ctx, &model.TelemetryEvent{
				Tenant: tenant, EventType: model.EventWorkflowPaused, EntityID: exec.ID, Module: mctx.Module,
			})
			return nil
		}

		stepExec.Status = model.StepExecStatusCompleted
		if err := w.Store.Add(ctx, stepExec); err != nil {
			return err
		}

		for key, value := range output {
			if key == "logs" {
				continue
			}
			currentInput[key] = value
		}

		if step.StepType == model.StepTypeDecision {
			target, ok := output["targetStepIndex"].(float64)
			if !ok {
				if intTarget, isInt := output["targetStepIndex"].(int); isInt {
					target, ok = float64(intTarget), true
				}
			}
			if !ok {
				return w.finishExecution(ctx, exec, model.ExecutionStatusFailed,
					fmt.Sprintf("step %s produced no branch target", step.ID))
			}
			arrayIdx, known := orderToArray[int(target)]
			if !known {
				return w.finishExecution(ctx, exec, model.ExecutionStatusFailed,
					fmt.Sprintf("step %s branch target orderIndex %d does not exist", step.ID, int(target)))
			}
			i = arrayIdx - 1
		}
	}
	return w.finishExecution(ctx, exec, model.ExecutionStatusCompleted, "")
}

// finishExecution move the execution to a terminal status and release every
// advisory lock it still holds.
func (w *workflowServiceImpl) finishExecution(ctx context.Context, exec *model.WorkflowExecution, status, errMessage string) error {
	now := time.Now()
	exec.Status = status
	exec.CompletedAt = &now
	exec.Error = errMessage
	exec.PausedAtStepID = ""
	if err := w.Store.Put(ctx, exec); err != nil {
		return err
	}
	if err := repository.ReleaseExecutionLocks(ctx, w.Store, exec.Tenant, exec.ID); err != nil {
		log.Logger.Errorf("release locks of execution %s failure %s", exec.ID, err.Error())
	}
	eventType := model.EventWorkflowCompleted
	if status == model.ExecutionStatusFailed {
		eventType = model.EventWorkflowFailed
	}
	w.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: exec.Tenant, EventType: eventType, EntityID: exec.ID, Error: errMessage,
	})
	workflowExecutionCounter.WithLabelValues(status).Inc()
	return nil
}

func stepConfig(step *model.WorkflowStep) map[string]interface{} {
	if step.Config == nil {
		return map[string]interface{}{}
	}
	return *step.Config
}

func cloneInput(input map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
