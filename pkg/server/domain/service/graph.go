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

	"github.com/pkg/errors"

	"github.com/loom-dev/loom/pkg/graph"
	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/repository"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

// GraphService builds tenant graph snapshots from storage and executes
// change patch ops against record type schemas.
type GraphService interface {
	BuildSnapshot(ctx context.Context, tctx runner.TenantContext) (graph.Snapshot, error)
	GetProjectGraphSnapshot(ctx context.Context, tctx runner.TenantContext, projectID string) (graph.Snapshot, error)
	ListRecordTypes(ctx context.Context, tctx runner.TenantContext, projectID string) ([]*model.RecordType, error)
	ExecuteChange(ctx context.Context, tctx runner.TenantContext, changeID string) error
}

type graphServiceImpl struct {
	Store     datastore.DataStore `inject:"datastore"`
	Telemetry TelemetryService    `inject:""`
}

// NewGraphService new graph service
func NewGraphService() GraphService {
	return &graphServiceImpl{}
}

// BuildSnapshot compose the tenant's full graph from storage: record type
// nodes, inheritance and reference edges, and the workflow, SLA and
// assignment bindings.
func (g *graphServiceImpl) BuildSnapshot(ctx context.Context, tctx runner.TenantContext) (graph.Snapshot, error) {
	snapshot := graph.Snapshot{TenantID: tctx.Tenant, BuiltAt: time.Now()}

	recordTypes, err := repository.ListRecordTypes(ctx, g.Store, tctx.Tenant, "")
	if err != nil {
		return snapshot, err
	}
	for _, rt := range recordTypes {
		node := graph.RecordTypeNode{
			ID:        rt.ID,
			Key:       rt.Key,
			Name:      rt.Name,
			ProjectID: rt.ProjectID,
			BaseType:  rt.BaseType,
		}
		for _, field := range rt.Fields {
			node.Fields = append(node.Fields, graph.FieldSpec{
				Name:     field.Name,
				Type:     field.Type,
				Required: field.Required,
			})
		}
		snapshot.Nodes = append(snapshot.Nodes, node)
		if rt.BaseType != "" {
			snapshot.Edges = append(snapshot.Edges, graph.Edge{
				Kind: graph.EdgeInheritance, From: rt.Key, To: rt.BaseType,
			})
		}
		for _, field := range rt.Fields {
			// "reference:<targetKey>" field types become reference edges.
			if target, ok := referenceTarget(field.Type); ok {
				snapshot.Edges = append(snapshot.Edges, graph.Edge{
					Kind: graph.EdgeReference, From: rt.Key, To: target,
				})
			}
		}
		if rt.SLAConfig != nil {
			if minutes, ok := (*rt.SLAConfig)["durationMinutes"].(float64); ok {
				snapshot.Bindings.SLAs = append(snapshot.Bindings.SLAs, graph.SLABinding{
					RecordTypeKey: rt.Key, DurationMinutes: int(minutes),
				})
			}
		}
		if rt.AssignmentConfig != nil {
			if strategy, ok := (*rt.AssignmentConfig)["strategyType"].(string); ok {
				snapshot.Bindings.Assignments = append(snapshot.Bindings.Assignments, graph.AssignmentBinding{
					RecordTypeKey: rt.Key, StrategyType: strategy,
				})
			}
		}
	}

	definitions, err := repository.ListWorkflowDefinitions(ctx, g.Store, tctx.Tenant)
	if err != nil {
		return snapshot, err
	}
	for _, def := range definitions {
		binding := graph.WorkflowBinding{Name: def.Name}
		if def.TriggerConfig != nil {
			if key, ok := (*def.TriggerConfig)["recordTypeKey"].(string); ok {
				binding.RecordTypeKey = key
			}
		}
		snapshot.Bindings.Workflows = append(snapshot.Bindings.Workflows, binding)
	}
	return snapshot, nil
}

func referenceTarget(fieldType string) (string, bool) {
	const prefix = "reference:"
	if len(fieldType) > len(prefix) && fieldType[:len(prefix)] == prefix {
		return fieldType[len(prefix):], true
	}
	return "", false
}

// GetProjectGraphSnapshot the tenant snapshot narrowed to one project.
func (g *graphServiceImpl) GetProjectGraphSnapshot(ctx context.Context, tctx runner.TenantContext, projectID string) (graph.Snapshot, error) {
	if _, err := repository.GetProject(ctx, g.Store, tctx.Tenant, projectID); err != nil {
		return graph.Snapshot{}, err
	}
	snapshot, err := g.BuildSnapshot(ctx, tctx)
	if err != nil {
		return graph.Snapshot{}, err
	}
	return snapshot.FilterProject(projectID), nil
}

// ListRecordTypes list the stored record types of a project.
func (g *graphServiceImpl) ListRecordTypes(ctx context.Context, tctx runner.TenantContext, projectID string) ([]*model.RecordType, error) {
	return repository.ListRecordTypes(ctx, g.Store, tctx.Tenant, projectID)
}

// ExecuteChange apply the patch ops of a change in orderIndex order. Before
// the first mutation of each record type a pre-image snapshot row is written;
// any failure rolls the already-patched types back in reverse order.
func (g *graphServiceImpl) ExecuteChange(ctx context.Context, tctx runner.TenantContext, changeID string) error {
	change, err := repository.GetChangeRecord(ctx, g.Store, tctx.Tenant, changeID)
	if err != nil {
		return err
	}
	ops, err := repository.ListChangePatchOps(ctx, g.Store, tctx.Tenant, changeID)
	if err != nil {
		return err
	}

	var patchedKeys []string
	snapshotted := map[string]bool{}
	rollback := func(cause error) error {
		for i := len(patchedKeys) - 1; i >= 0; i-- {
			if restoreErr := g.restoreSnapshot(ctx, tctx.Tenant, change.ProjectID, changeID, patchedKeys[i]); restoreErr != nil {
				log.Logger.Errorf("rollback of record type %s for change %s failed: %s", patchedKeys[i], changeID, restoreErr.Error())
			}
		}
		return cause
	}

	for _, op := range ops {
		recordType, err := repository.GetRecordTypeByKey(ctx, g.Store, tctx.Tenant, change.ProjectID, op.RecordTypeKey)
		if err != nil {
			return rollback(err)
		}
		if !snapshotted[op.RecordTypeKey] {
			if err := g.snapshotRecordType(ctx, changeID, recordType); err != nil {
				return rollback(err)
			}
			snapshotted[op.RecordTypeKey] = true
			patchedKeys = append(patchedKeys, op.RecordTypeKey)
		}
		if err := applyPatchOp(recordType, op); err != nil {
			return rollback(err)
		}
		if err := g.Store.Put(ctx, recordType); err != nil {
			return rollback(err)
		}
	}

	change.Status = "executed"
	if err := g.Store.Put(ctx, change); err != nil {
		return err
	}
	g.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: tctx.Tenant, EventType: model.EventChangeExecuted, EntityID: changeID, Status: "executed",
	})
	return nil
}

func applyPatchOp(recordType *model.RecordType, op *model.ChangePatchOp) error {
	payload := map[string]interface{}{}
	if op.Payload != nil {
		payload = *op.Payload
	}
	switch op.OpType {
	case model.PatchOpSetField:
		name, _ := payload["name"].(string)
		if name == "" {
			return errors.Errorf("patch op %d of change %s has no field name", op.OrderIndex, op.ChangeID)
		}
		fieldType, _ := payload["type"].(string)
		required, _ := payload["required"].(bool)
		for i, field := range recordType.Fields {
			if field.Name == name {
				if fieldType != "" {
					recordType.Fields[i].Type = fieldType
				}
				recordType.Fields[i].Required = required
				return nil
			}
		}
		recordType.Fields = append(recordType.Fields, model.FieldDef{
			Name: name, Type: fieldType, Required: required,
		})
		return nil
	default:
		return errors.Errorf("unknown patch op type %q", op.OpType)
	}
}

// snapshotRecordType store the pre-mutation schema once per (change, type).
func (g *graphServiceImpl) snapshotRecordType(ctx context.Context, changeID string, recordType *model.RecordType) error {
	schema, err := model.NewJSONStructByStruct(recordType)
	if err != nil {
		return err
	}
	snapshot := &model.RecordTypeSnapshot{
		Tenant:        recordType.Tenant,
		ChangeID:      changeID,
		RecordTypeKey: recordType.Key,
		Schema:        schema,
	}
	if err := g.Store.Add(ctx, snapshot); err != nil && err != datastore.ErrRecordExist {
		return err
	}
	return nil
}

func (g *graphServiceImpl) restoreSnapshot(ctx context.Context, tenant, projectID, changeID, recordTypeKey string) error {
	snapshot := &model.RecordTypeSnapshot{ChangeID: changeID, RecordTypeKey: recordTypeKey}
	if err := g.Store.Get(ctx, snapshot); err != nil {
		return err
	}
	if snapshot.Schema == nil {
		return bcode.ErrRecordTypeNotExist
	}
	var restored model.RecordType
	if err := snapshot.Schema.Decode(&restored); err != nil {
		return err
	}
	current, err := repository.GetRecordTypeByKey(ctx, g.Store, tenant, projectID, recordTypeKey)
	if err != nil {
		return err
	}
	current.Name = restored.Name
	current.BaseType = restored.BaseType
	current.Fields = restored.Fields
	current.SLAConfig = restored.SLAConfig
	current.AssignmentConfig = restored.AssignmentConfig
	return g.Store.Put(ctx, current)
}
