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
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
)

func newIntentTestService() (*intentServiceImpl, *workflowServiceImpl, *projectServiceImpl) {
	w, ds := newWorkflowTestService()
	i := &intentServiceImpl{Store: ds, Workflow: w, Telemetry: w.Telemetry}
	p := &projectServiceImpl{Store: ds}
	return i, w, p
}

func seedWorkflowModule(t *testing.T, p *projectServiceImpl, tctx runner.TenantContext) *model.Module {
	ctx := context.Background()
	project, err := p.CreateProject(ctx, tctx, apisv1.CreateProjectRequest{Name: "support"})
	require.NoError(t, err)
	module, err := p.CreateModule(ctx, tctx, apisv1.CreateModuleRequest{
		ProjectID: project.ID,
		Name:      "support-module",
		Kind:      model.ModuleKindWorkflow,
		RootPath:  "modules/support",
	})
	require.NoError(t, err)
	return module
}

func TestCreateIntentIdempotencyKey(t *testing.T) {
	i, _, _ := newIntentTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")

	req := apisv1.CreateIntentRequest{
		WorkflowDefinitionID: "def-1",
		TriggerType:          model.TriggerTypeWebhook,
		TriggerPayload:       map[string]interface{}{"ticketId": "T-1"},
		IdempotencyKey:       "hook-delivery-42",
	}
	first, created, err := i.CreateIntent(ctx, tctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.IntentStatusPending, first.Status)

	second, created, err := i.CreateIntent(ctx, tctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestDispatchIntentRunsWorkflow(t *testing.T) {
	i, w, p := newIntentTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	seedWorkflowModule(t, p, tctx)

	def := activateWorkflow(t, w, tctx, apisv1.CreateWorkflowRequest{
		Name:        "webhook-intake",
		TriggerType: model.TriggerTypeWebhook,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeNotification,
				Config: map[string]interface{}{"channel": "email"}},
		},
	})

	created, _, err := i.CreateIntent(ctx, tctx, apisv1.CreateIntentRequest{
		WorkflowDefinitionID: def.ID,
		TriggerType:          model.TriggerTypeWebhook,
		TriggerPayload:       map[string]interface{}{"ticketId": "T-1"},
	})
	require.NoError(t, err)

	require.NoError(t, i.DispatchIntent(ctx, created.ID))

	intent, err := repository.GetIntent(ctx, i.Store, tctx.Tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IntentStatusDispatched, intent.Status)
	assert.NotEmpty(t, intent.ExecutionID)
	require.NotNil(t, intent.DispatchedAt)

	detail, err := w.DetailWorkflowExecution(ctx, tctx, intent.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCompleted, detail.Execution.Status)
	assert.Equal(t, intent.ID, detail.Execution.IntentID)
}

func TestDispatchIntentFailsOnInactiveDefinition(t *testing.T) {
	i, w, p := newIntentTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	seedWorkflowModule(t, p, tctx)

	def, err := w.CreateWorkflow(ctx, tctx, apisv1.CreateWorkflowRequest{
		Name:        "never-activated",
		TriggerType: model.TriggerTypeWebhook,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeNotification},
		},
	})
	require.NoError(t, err)

	created, _, err := i.CreateIntent(ctx, tctx, apisv1.CreateIntentRequest{
		WorkflowDefinitionID: def.ID,
		TriggerType:          model.TriggerTypeWebhook,
	})
	require.NoError(t, err)

	require.NoError(t, i.DispatchIntent(ctx, created.ID))

	intent, err := repository.GetIntent(ctx, i.Store, tctx.Tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IntentStatusFailed, intent.Status)
	assert.Contains(t, intent.Error, "not active")
}

func TestDispatchIntentFailsWithoutModule(t *testing.T) {
	i, w, _ := newIntentTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")

	def := activateWorkflow(t, w, tctx, apisv1.CreateWorkflowRequest{
		Name:        "no-module",
		TriggerType: model.TriggerTypeWebhook,
		Steps: []apisv1.CreateWorkflowStepRequest{
			{OrderIndex: 0, StepType: model.StepTypeNotification},
		},
	})

	created, _, err := i.CreateIntent(ctx, tctx, apisv1.CreateIntentRequest{
		WorkflowDefinitionID: def.ID,
		TriggerType:          model.TriggerTypeWebhook,
	})
	require.NoError(t, err)

	require.NoError(t, i.DispatchIntent(ctx, created.ID))

	intent, err := repository.GetIntent(ctx, i.Store, tctx.Tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IntentStatusFailed, intent.Status)
	assert.Contains(t, intent.Error, "no module available")
}

func TestDispatchIntentIgnoresNonPending(t *testing.T) {
	i, _, _ := newIntentTestService()
	ctx := context.Background()

	intent := &model.WorkflowExecutionIntent{
		ID:                   "int-done",
		Tenant:               "t-acme",
		WorkflowDefinitionID: "def-1",
		TriggerType:          model.TriggerTypeManual,
		Status:               model.IntentStatusDispatched,
		ExecutionID:          "exec-1",
	}
	require.NoError(t, i.Store.Add(ctx, intent))

	require.NoError(t, i.DispatchIntent(ctx, "int-done"))

	reloaded, err := repository.GetIntent(ctx, i.Store, "t-acme", "int-done")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", reloaded.ExecutionID)
	assert.Equal(t, model.IntentStatusDispatched, reloaded.Status)
}

func TestListPendingIntentsOldestFirst(t *testing.T) {
	i, _, _ := newIntentTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")

	for _, key := range []string{"k-1", "k-2", "k-3"} {
		_, _, err := i.CreateIntent(ctx, tctx, apisv1.CreateIntentRequest{
			WorkflowDefinitionID: "def-1",
			TriggerType:          model.TriggerTypeManual,
			IdempotencyKey:       key,
		})
		require.NoError(t, err)
	}

	pending, err := i.ListPendingIntents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "k-1", pending[0].IdempotencyKey)
	assert.Equal(t, "k-2", pending[1].IdempotencyKey)
}
