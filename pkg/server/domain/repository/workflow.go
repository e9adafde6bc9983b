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

package repository

import (
	"context"
	"sort"

	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
)

// GetWorkflowDefinition load one definition by id, tenant-checked.
func GetWorkflowDefinition(ctx context.Context, ds datastore.DataStore, tenant, defID string) (*model.WorkflowDefinition, error) {
	def := &model.WorkflowDefinition{ID: defID}
	if err := ds.Get(ctx, def); err != nil {
		if err == datastore.ErrRecordNotExist {
			return nil, bcode.ErrWorkflowNotExist
		}
		return nil, err
	}
	if def.Tenant != tenant {
		return nil, bcode.ErrWorkflowNotExist
	}
	return def, nil
}

// ListWorkflowDefinitions list every definition of a tenant, oldest first.
func ListWorkflowDefinitions(ctx context.Context, ds datastore.DataStore, tenant string) ([]*model.WorkflowDefinition, error) {
	var def = model.WorkflowDefinition{Tenant: tenant}
	entities, err := ds.List(ctx, &def, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "createTime", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		return nil, err
	}
	var defs []*model.WorkflowDefinition
	for _, entity := range entities {
		defs = append(defs, entity.(*model.WorkflowDefinition))
	}
	return defs, nil
}

// GetWorkflowDefinitionByName load one definition by name within the tenant.
func GetWorkflowDefinitionByName(ctx context.Context, ds datastore.DataStore, tenant, name string) (*model.WorkflowDefinition, error) {
	var def = model.WorkflowDefinition{Tenant: tenant, Name: name}
	entities, err := ds.List(ctx, &def, &datastore.ListOptions{Page: 1, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, bcode.ErrWorkflowNotExist
	}
	return entities[0].(*model.WorkflowDefinition), nil
}

// ListWorkflowSteps load the steps of a definition ordered by orderIndex.
func ListWorkflowSteps(ctx context.Context, ds datastore.DataStore, tenant, defID string) ([]*model.WorkflowStep, error) {
	var step = model.WorkflowStep{Tenant: tenant, WorkflowDefinitionID: defID}
	entities, err := ds.List(ctx, &step, nil)
	if err != nil {
		return nil, err
	}
	var steps []*model.WorkflowStep
	for _, entity := range entities {
		steps = append(steps, entity.(*model.WorkflowStep))
	}
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].OrderIndex < steps[j].OrderIndex
	})
	return steps, nil
}

// GetWorkflowExecution load one execution by id, tenant-checked.
func GetWorkflowExecution(ctx context.Context, ds datastore.DataStore, tenant, execID string) (*model.WorkflowExecution, error) {
	exec := &model.WorkflowExecution{ID: execID}
	if err := ds.Get(ctx, exec); err != nil {
		if err == datastore.ErrRecordNotExist {
			return nil, bcode.ErrWorkflowExecutionNotExist
		}
		return nil, err
	}
	if exec.Tenant != tenant {
		return nil, bcode.ErrWorkflowExecutionNotExist
	}
	return exec, nil
}

// GetStepExecution load one step execution by id, tenant-checked.
func GetStepExecution(ctx context.Context, ds datastore.DataStore, tenant, stepExecID string) (*model.WorkflowStepExecution, error) {
	stepExec := &model.WorkflowStepExecution{ID: stepExecID}
	if err := ds.Get(ctx, stepExec); err != nil {
		if err == datastore.ErrRecordNotExist {
			return nil, bcode.ErrStepExecutionNotExist
		}
		return nil, err
	}
	if stepExec.Tenant != tenant {
		return nil, bcode.ErrStepExecutionNotExist
	}
	return stepExec, nil
}

// ListStepExecutions list the step executions of one execution, oldest first.
func ListStepExecutions(ctx context.Context, ds datastore.DataStore, tenant, execID string) ([]*model.WorkflowStepExecution, error) {
	var stepExec = model.WorkflowStepExecution{Tenant: tenant, WorkflowExecutionID: execID}
	entities, err := ds.List(ctx, &stepExec, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "createTime", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		return nil, err
	}
	var stepExecs []*model.WorkflowStepExecution
	for _, entity := range entities {
		stepExecs = append(stepExecs, entity.(*model.WorkflowStepExecution))
	}
	return stepExecs, nil
}

// CreateIntent insert an intent; a duplicate idempotencyKey returns the
// pre-existing row instead of a new one.
func CreateIntent(ctx context.Context, ds datastore.DataStore, intent *model.WorkflowExecutionIntent) (*model.WorkflowExecutionIntent, bool, error) {
	if intent.IdempotencyKey != "" {
		existing := model.WorkflowExecutionIntent{Tenant: intent.Tenant, IdempotencyKey: intent.IdempotencyKey}
		entities, err := ds.List(ctx, &existing, &datastore.ListOptions{Page: 1, PageSize: 1})
		if err != nil {
			return nil, false, err
		}
		if len(entities) > 0 {
			return entities[0].(*model.WorkflowExecutionIntent), false, nil
		}
	}
	if err := ds.Add(ctx, intent); err != nil {
		return nil, false, err
	}
	return intent, true, nil
}

// GetIntent load one intent by id, tenant-checked.
func GetIntent(ctx context.Context, ds datastore.DataStore, tenant, intentID string) (*model.WorkflowExecutionIntent, error) {
	intent := &model.WorkflowExecutionIntent{ID: intentID}
	if err := ds.Get(ctx, intent); err != nil {
		if err == datastore.ErrRecordNotExist {
			return nil, bcode.ErrIntentNotExist
		}
		return nil, err
	}
	if intent.Tenant != tenant {
		return nil, bcode.ErrIntentNotExist
	}
	return intent, nil
}

// ListPendingIntents list pending intents oldest-first across all tenants;
// the dispatcher worker drains this FIFO.
func ListPendingIntents(ctx context.Context, ds datastore.DataStore, limit int) ([]*model.WorkflowExecutionIntent, error) {
	var intent = model.WorkflowExecutionIntent{Status: model.IntentStatusPending}
	opts := &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "createTime", Order: datastore.SortOrderAscending}},
	}
	if limit > 0 {
		opts.Page = 1
		opts.PageSize = limit
	}
	entities, err := ds.List(ctx, &intent, opts)
	if err != nil {
		return nil, err
	}
	var intents []*model.WorkflowExecutionIntent
	for _, entity := range entities {
		intents = append(intents, entity.(*model.WorkflowExecutionIntent))
	}
	return intents, nil
}

// GetRecordLock load the lock row of a record if one exists.
func GetRecordLock(ctx context.Context, ds datastore.DataStore, tenant, recordTypeID, recordID string) (*model.RecordLock, error) {
	lock := &model.RecordLock{Tenant: tenant, RecordTypeID: recordTypeID, RecordID: recordID}
	if err := ds.Get(ctx, lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// ReleaseExecutionLocks delete every lock held by the given execution.
func ReleaseExecutionLocks(ctx context.Context, ds datastore.DataStore, tenant, execID string) error {
	var lock = model.RecordLock{Tenant: tenant, ExecutionID: execID}
	entities, err := ds.List(ctx, &lock, nil)
	if err != nil {
		return err
	}
	for _, entity := range entities {
		if err := ds.Delete(ctx, entity.(*model.RecordLock)); err != nil && err != datastore.ErrRecordNotExist {
			return err
		}
	}
	return nil
}
