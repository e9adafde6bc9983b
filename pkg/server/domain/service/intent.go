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
	"time"

	"github.com/google/uuid"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/repository"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

// IntentService owns workflow execution intents: triggers create them,
// the dispatcher worker drains them oldest-first.
type IntentService interface {
	CreateIntent(ctx context.Context, tctx runner.TenantContext, req apisv1.CreateIntentRequest) (*model.WorkflowExecutionIntent, bool, error)
	GetIntent(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.WorkflowExecutionIntent, error)
	ListPendingIntents(ctx context.Context, limit int) ([]*model.WorkflowExecutionIntent, error)
	DispatchIntent(ctx context.Context, intentID string) error
}

type intentServiceImpl struct {
	Store     datastore.DataStore `inject:"datastore"`
	Workflow  WorkflowService     `inject:""`
	Telemetry TelemetryService    `inject:""`
}

// NewIntentService new intent service
func NewIntentService() IntentService {
	return &intentServiceImpl{}
}

// CreateIntent insert a pending intent. A duplicate idempotencyKey returns
// the pre-existing row; the second return reports whether a row was created.
func (s *intentServiceImpl) CreateIntent(ctx context.Context, tctx runner.TenantContext, req apisv1.CreateIntentRequest) (*model.WorkflowExecutionIntent, bool, error) {
	payload, err := model.NewJSONStructByStruct(req.TriggerPayload)
	if err != nil {
		return nil, false, err
	}
	intent := &model.WorkflowExecutionIntent{
		ID:                   uuid.NewString(),
		Tenant:               tctx.Tenant,
		WorkflowDefinitionID: req.WorkflowDefinitionID,
		TriggerType:          req.TriggerType,
		TriggerPayload:       payload,
		IdempotencyKey:       req.IdempotencyKey,
		Status:               model.IntentStatusPending,
	}
	return repository.CreateIntent(ctx, s.Store, intent)
}

// GetIntent load one intent
func (s *intentServiceImpl) GetIntent(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.WorkflowExecutionIntent, error) {
	return repository.GetIntent(ctx, s.Store, tctx.Tenant, intentID)
}

// ListPendingIntents pending intents oldest-first, for the worker.
func (s *intentServiceImpl) ListPendingIntents(ctx context.Context, limit int) ([]*model.WorkflowExecutionIntent, error) {
	return repository.ListPendingIntents(ctx, s.Store, limit)
}

// DispatchIntent process one pending intent: resolve the definition and a
// module context, run the workflow, record the outcome on the intent row.
func (s *intentServiceImpl) DispatchIntent(ctx context.Context, intentID string) error {
	intent := &model.WorkflowExecutionIntent{ID: intentID}
	if err := s.Store.Get(ctx, intent); err != nil {
		return err
	}
	if intent.Status != model.IntentStatusPending {
		return nil
	}

	def, err := repository.GetWorkflowDefinition(ctx, s.Store, intent.Tenant, intent.WorkflowDefinitionID)
	if err != nil {
		return s.failIntent(ctx, intent, "workflow definition not found")
	}
	if def.Status != model.WorkflowStatusActive {
		return s.failIntent(ctx, intent, "workflow definition is not active")
	}

	module, err := resolveWorkflowModule(ctx, s.Store, intent.Tenant, def)
	if err != nil {
		return s.failIntent(ctx, intent, "no module available for dispatch")
	}
	tctx := runner.TenantContext{Tenant: intent.Tenant, User: "dispatcher", Source: runner.SourceInternal}
	mctx, err := runner.NewModuleExecutionContext(tctx, module.Name, module.RootPath, module.CapabilityProfile)
	if err != nil {
		return s.failIntent(ctx, intent, err.Error())
	}

	var payload map[string]interface{}
	if intent.TriggerPayload != nil {
		payload = *intent.TriggerPayload
	}
	exec, err := s.Workflow.ExecuteWorkflow(ctx, mctx, def.ID, payload, intent.ID)
	if err != nil {
		return s.failIntent(ctx, intent, err.Error())
	}

	now := time.Now()
	intent.Status = model.IntentStatusDispatched
	intent.ExecutionID = exec.ID
	intent.DispatchedAt = &now
	if err := s.Store.Put(ctx, intent); err != nil {
		return err
	}
	s.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: intent.Tenant, EventType: model.EventIntentDispatched, EntityID: intent.ID,
	})
	intentDispatchCounter.WithLabelValues("dispatched").Inc()
	return nil
}

func (s *intentServiceImpl) failIntent(ctx context.Context, intent *model.WorkflowExecutionIntent, cause string) error {
	intent.Status = model.IntentStatusFailed
	intent.Error = cause
	if err := s.Store.Put(ctx, intent); err != nil {
		return err
	}
	log.Logger.Warnf("intent %s failed: %s", intent.ID, cause)
	s.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: intent.Tenant, EventType: model.EventIntentFailed, EntityID: intent.ID, Error: cause,
	})
	intentDispatchCounter.WithLabelValues("failed").Inc()
	return nil
}
