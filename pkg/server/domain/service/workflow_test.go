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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/repository"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore/memory"
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
)

func newWorkflowTestService() (*workflowServiceImpl, datastore.DataStore) {
	ds := memory.New()
	w := &workflowServiceImpl{Store: ds, Telemetry: NewTelemetryService()}
	local := runner.NewLocalAdapter(runner.NopTelemetry{}, nil)
	w.RegisterHandlers(local)
	w.Runner = local
	return w, ds
}

func testModuleContext(t *testing.T, tenant string) runner.ModuleExecutionContext {
	tctx := runner.NewTenantContext(tenant, "tester")
	mctx, err := runner.NewModuleExecutionContext(tctx, "support-module", "modules/support", runner.ProfileWorkflowModuleDefault)
	require.NoError(t, err)
	return mctx
}

func TestCreateWorkflowRejectsDuplicateName(t *testing.T) {
	w, _ := newWorkflowTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")

	req := apisv1.CreateWorkflowRequest{
		Name:        "ticket-routing",
		TriggerType: model.TriggerTypeManual,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{Name: "assign", OrderIndex: 0, StepType: model.StepTypeAssignment,
				Config: map[string]interface{}{"assigneeType": "user", "assignee": "sam"}},
		},
	}
	def, err := w.CreateWorkflow(ctx, tctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowStatusDraft, def.Status)
	assert.Equal(t, int64(1), def.Version)

	_, err = w.CreateWorkflow(ctx, tctx, req)
	assert.Equal(t, bcode.ErrWorkflowExist, err)
}

func TestActivateWorkflowValidatesDecisionSteps(t *testing.T) {
	w, _ := newWorkflowTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")

	def, err := w.CreateWorkflow(ctx, tctx, apisv1.CreateWorkflowRequest{
		Name:        "escalation",
		TriggerType: model.TriggerTypeManual,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeDecision, Config: map[string]interface{}{
				"conditionField":   "priority",
				"operator":         "equals",
				"conditionValue":   "high",
				"onTrueStepIndex":  float64(1),
				"onFalseStepIndex": float64(9),
			}},
			{OrderIndex: 1, StepType: model.StepTypeNotification, Config: map[string]interface{}{"channel": "email"}},
		},
	})
	require.NoError(t, err)

	findings, err := w.ActivateWorkflow(ctx, tctx, def.ID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "unknown orderIndex 9")

	reloaded, err := repository.GetWorkflowDefinition(ctx, w.Store, tctx.Tenant, def.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowStatusDraft, reloaded.Status)
}

func TestExecuteWorkflowRequiresIntent(t *testing.T) {
	w, _ := newWorkflowTestService()
	mctx := testModuleContext(t, "t-acme")

	_, err := w.ExecuteWorkflow(context.Background(), mctx, "any", nil, "")
	assert.Equal(t, bcode.ErrExecutionIntentRequired, err)
}

func TestExecuteWorkflowRejectsInactiveDefinition(t *testing.T) {
	w, _ := newWorkflowTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	mctx := testModuleContext(t, "t-acme")

	def, err := w.CreateWorkflow(ctx, tctx, apisv1.CreateWorkflowRequest{
		Name:        "still-draft",
		TriggerType: model.TriggerTypeManual,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeNotification},
		},
	})
	require.NoError(t, err)

	_, err = w.ExecuteWorkflow(ctx, mctx, def.ID, nil, "intent-1")
	assert.Equal(t, bcode.ErrWorkflowNotActive, err)
}

func activateWorkflow(t *testing.T, w *workflowServiceImpl, tctx runner.TenantContext, req apisv1.CreateWorkflowRequest) *model.WorkflowDefinition {
	ctx := context.Background()
	def, err := w.CreateWorkflow(ctx, tctx, req)
	require.NoError(t, err)
	findings, err := w.ActivateWorkflow(ctx, tctx, def.ID)
	require.NoError(t, err)
	require.Empty(t, findings)
	return def
}

func TestExecuteWorkflowCompletesAndRecordsSteps(t *testing.T) {
	w, _ := newWorkflowTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	mctx := testModuleContext(t, "t-acme")

	def := activateWorkflow(t, w, tctx, apisv1.CreateWorkflowRequest{
		Name:        "ticket-intake",
		TriggerType: model.TriggerTypeManual,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeAssignment,
				Config: map[string]interface{}{"assigneeType": "group", "groupName": "support"}},
			{OrderIndex: 1, StepType: model.StepTypeNotification,
				Config: map[string]interface{}{"channel": "email", "recipient": "oncall"}},
		},
	})

	exec, err := w.ExecuteWorkflow(ctx, mctx, def.ID, map[string]interface{}{"ticketId": "T-1"}, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCompleted, exec.Status)
	assert.Equal(t, "intent-1", exec.IntentID)
	require.NotNil(t, exec.CompletedAt)

	detail, err := w.DetailWorkflowExecution(ctx, tctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, detail.StepExecutions, 2)
	for _, stepExec := range detail.StepExecutions {
		assert.Equal(t, model.StepExecStatusCompleted, stepExec.Status)
		require.NotNil(t, stepExec.Output)
	}
	first := *detail.StepExecutions[0].Output
	assert.Equal(t, "group:support", first["assignee"])
}

func TestExecuteWorkflowDecisionBranching(t *testing.T) {
	w, _ := newWorkflowTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	mctx := testModuleContext(t, "t-acme")

	// priority=high jumps over the step at orderIndex 1.
	def := activateWorkflow(t, w, tctx, apisv1.CreateWorkflowRequest{
		Name:        "priority-routing",
		TriggerType: model.TriggerTypeManual,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeDecision, Config: map[string]interface{}{
				"conditionField":   "priority",
				"operator":         "equals",
				"conditionValue":   "high",
				"onTrueStepIndex":  float64(2),
				"onFalseStepIndex": float64(1),
			}},
			{OrderIndex: 1, StepType: model.StepTypeNotification,
				Config: map[string]interface{}{"channel": "email", "recipient": "triage"}},
			{OrderIndex: 2, StepType: model.StepTypeAssignment,
				Config: map[string]interface{}{"assigneeType": "group", "groupName": "escalation"}},
		},
	})

	exec, err := w.ExecuteWorkflow(ctx, mctx, def.ID, map[string]interface{}{"priority": "high"}, "intent-hi")
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCompleted, exec.Status)

	detail, err := w.DetailWorkflowExecution(ctx, tctx, exec.ID)
	require.NoError(t, err)
	// decision plus the escalation assignment; the triage notification is skipped
	require.Len(t, detail.StepExecutions, 2)

	exec, err = w.ExecuteWorkflow(ctx, mctx, def.ID, map[string]interface{}{"priority": "low"}, "intent-lo")
	require.NoError(t, err)
	detail, err = w.DetailWorkflowExecution(ctx, tctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, detail.StepExecutions, 3)
}

func TestWorkflowApprovalPauseAndResume(t *testing.T) {
	w, _ := newWorkflowTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	mctx := testModuleContext(t, "t-acme")

	def := activateWorkflow(t, w, tctx, apisv1.CreateWorkflowRequest{
		Name:        "refund-approval",
		TriggerType: model.TriggerTypeManual,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeApproval,
				Config: map[string]interface{}{"approverGroup": "finance"}},
			{OrderIndex: 1, StepType: model.StepTypeNotification,
				Config: map[string]interface{}{"channel": "email", "recipient": "requester"}},
		},
	})

	exec, err := w.ExecuteWorkflow(ctx, mctx, def.ID, map[string]interface{}{"amount": 120.0}, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusPaused, exec.Status)
	assert.NotEmpty(t, exec.PausedAtStepID)

	detail, err := w.DetailWorkflowExecution(ctx, tctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, detail.StepExecutions, 1)
	assert.Equal(t, model.StepExecStatusAwaitingApproval, detail.StepExecutions[0].Status)

	resumed, err := w.ResumeWorkflowExecution(ctx, mctx, exec.ID, detail.StepExecutions[0].ID, apisv1.ResumeWorkflowRequest{
		StepExecutionID: detail.StepExecutions[0].ID,
		Approved:        true,
		ResolvedBy:      "lead",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCompleted, resumed.Status)
	assert.Empty(t, resumed.PausedAtStepID)

	detail, err = w.DetailWorkflowExecution(ctx, tctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, detail.StepExecutions, 2)
	approval := *detail.StepExecutions[0].Output
	assert.Equal(t, "approved", approval["status"])
	assert.Equal(t, "lead", approval["resolvedBy"])
}

func TestWorkflowApprovalRejectionFailsExecution(t *testing.T) {
	w, _ := newWorkflowTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	mctx := testModuleContext(t, "t-acme")

	def := activateWorkflow(t, w, tctx, apisv1.CreateWorkflowRequest{
		Name:        "risky-change",
		TriggerType: model.TriggerTypeManual,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeApproval, Config: map[string]interface{}{}},
			{OrderIndex: 1, StepType: model.StepTypeNotification, Config: map[string]interface{}{}},
		},
	})

	exec, err := w.ExecuteWorkflow(ctx, mctx, def.ID, nil, "intent-1")
	require.NoError(t, err)
	require.Equal(t, model.ExecutionStatusPaused, exec.Status)

	detail, err := w.DetailWorkflowExecution(ctx, tctx, exec.ID)
	require.NoError(t, err)

	resumed, err := w.ResumeWorkflowExecution(ctx, mctx, exec.ID, detail.StepExecutions[0].ID, apisv1.ResumeWorkflowRequest{
		StepExecutionID: detail.StepExecutions[0].ID,
		Approved:        false,
		ResolvedBy:      "lead",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusFailed, resumed.Status)
	assert.Contains(t, resumed.Error, "approval rejected by lead")

	// a resolved execution cannot be resumed again
	_, err = w.ResumeWorkflowExecution(ctx, mctx, exec.ID, detail.StepExecutions[0].ID, apisv1.ResumeWorkflowRequest{
		StepExecutionID: detail.StepExecutions[0].ID,
		Approved:        true,
		ResolvedBy:      "lead",
	})
	assert.Equal(t, bcode.ErrExecutionNotPaused, err)
}

func TestRecordLockBlocksForeignMutation(t *testing.T) {
	w, _ := newWorkflowTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	mctx := testModuleContext(t, "t-acme")

	// another execution already holds the advisory lock
	require.NoError(t, w.Store.Add(ctx, &model.RecordLock{
		Tenant:       "t-acme",
		RecordTypeID: "rt-ticket",
		RecordID:     "T-9",
		ExecutionID:  "someone-else",
	}))

	def := activateWorkflow(t, w, tctx, apisv1.CreateWorkflowRequest{
		Name:        "close-ticket",
		TriggerType: model.TriggerTypeManual,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeRecordMutation, Config: map[string]interface{}{
				"recordTypeId":  "rt-ticket",
				"recordIdField": "ticketId",
				"mutations":     map[string]interface{}{"status": "closed"},
			}},
		},
	})

	exec, err := w.ExecuteWorkflow(ctx, mctx, def.ID, map[string]interface{}{"ticketId": "T-9"}, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusFailed, exec.Status)
	assert.Contains(t, exec.Error, "locked by execution someone-else")
}

func TestRecordLockAcquireAndReleaseOnCompletion(t *testing.T) {
	w, _ := newWorkflowTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	mctx := testModuleContext(t, "t-acme")

	def := activateWorkflow(t, w, tctx, apisv1.CreateWorkflowRequest{
		Name:        "lock-then-mutate",
		TriggerType: model.TriggerTypeManual,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeRecordLock, Config: map[string]interface{}{
				"recordTypeId":  "rt-ticket",
				"recordIdField": "ticketId",
			}},
			{OrderIndex: 1, StepType: model.StepTypeRecordMutation, Config: map[string]interface{}{
				"recordTypeId":  "rt-ticket",
				"recordIdField": "ticketId",
				"mutations":     map[string]interface{}{"status": "resolved"},
			}},
		},
	})

	exec, err := w.ExecuteWorkflow(ctx, mctx, def.ID, map[string]interface{}{"ticketId": "T-1"}, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCompleted, exec.Status)

	// locks are released when the execution reaches a terminal status
	_, err = repository.GetRecordLock(ctx, w.Store, "t-acme", "rt-ticket", "T-1")
	assert.Equal(t, datastore.ErrRecordNotExist, err)
}

func TestWorkflowExecutionTenantIsolation(t *testing.T) {
	w, _ := newWorkflowTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	mctx := testModuleContext(t, "t-acme")

	def := activateWorkflow(t, w, tctx, apisv1.CreateWorkflowRequest{
		Name:        "acme-only",
		TriggerType: model.TriggerTypeManual,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeNotification, Config: map[string]interface{}{}},
		},
	})

	exec, err := w.ExecuteWorkflow(ctx, mctx, def.ID, nil, "intent-1")
	require.NoError(t, err)

	other := runner.NewTenantContext("t-rival", "spy")
	_, err = w.DetailWorkflowExecution(ctx, other, exec.ID)
	assert.Equal(t, bcode.ErrWorkflowExecutionNotExist, err)
}
