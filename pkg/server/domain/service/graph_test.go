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

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-dev/loom/pkg/graph"
	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/repository"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore/memory"
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
)

func newGraphTestService() (*graphServiceImpl, *projectServiceImpl) {
	ds := memory.New()
	g := &graphServiceImpl{Store: ds, Telemetry: NewTelemetryService()}
	p := &projectServiceImpl{Store: ds}
	return g, p
}

func mustJSONStruct(t *testing.T, v interface{}) *model.JSONStruct {
	out, err := model.NewJSONStructByStruct(v)
	require.NoError(t, err)
	return out
}

func TestBuildSnapshotComposesNodesEdgesAndBindings(t *testing.T) {
	g, p := newGraphTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")

	project, err := p.CreateProject(ctx, tctx, apisv1.CreateProjectRequest{Name: "helpdesk"})
	require.NoError(t, err)

	require.NoError(t, g.Store.Add(ctx, &model.RecordType{
		ID: uuid.NewString(), Tenant: "t-acme", ProjectID: project.ID,
		Key: "case", Name: "Case",
		Fields: []model.FieldDef{{Name: "subject", Type: "string", Required: true}},
	}))
	require.NoError(t, g.Store.Add(ctx, &model.RecordType{
		ID: uuid.NewString(), Tenant: "t-acme", ProjectID: project.ID,
		Key: "incident", Name: "Incident", BaseType: "case",
		Fields: []model.FieldDef{
			{Name: "severity", Type: "string"},
			{Name: "parentCase", Type: "reference:case"},
		},
		SLAConfig: mustJSONStruct(t, map[string]interface{}{"durationMinutes": 60}),
		AssignmentConfig: mustJSONStruct(t, map[string]interface{}{
			"strategyType": "round_robin",
		}),
	}))
	require.NoError(t, g.Store.Add(ctx, &model.WorkflowDefinition{
		ID: uuid.NewString(), Tenant: "t-acme", Name: "incident-triage",
		TriggerType: model.TriggerTypeRecordEvent,
		TriggerConfig: mustJSONStruct(t, map[string]interface{}{
			"recordTypeKey": "incident",
		}),
		Version: 1, Status: model.WorkflowStatusActive,
	}))

	snapshot, err := g.BuildSnapshot(ctx, tctx)
	require.NoError(t, err)
	assert.Equal(t, "t-acme", snapshot.TenantID)
	require.Len(t, snapshot.Nodes, 2)

	require.Len(t, snapshot.Edges, 2)
	assert.Contains(t, snapshot.Edges, graph.Edge{Kind: graph.EdgeInheritance, From: "incident", To: "case"})
	assert.Contains(t, snapshot.Edges, graph.Edge{Kind: graph.EdgeReference, From: "incident", To: "case"})

	require.Len(t, snapshot.Bindings.SLAs, 1)
	assert.Equal(t, graph.SLABinding{RecordTypeKey: "incident", DurationMinutes: 60}, snapshot.Bindings.SLAs[0])
	require.Len(t, snapshot.Bindings.Assignments, 1)
	assert.Equal(t, "round_robin", snapshot.Bindings.Assignments[0].StrategyType)
	require.Len(t, snapshot.Bindings.Workflows, 1)
	assert.Equal(t, "incident", snapshot.Bindings.Workflows[0].RecordTypeKey)
}

func TestGetProjectGraphSnapshotFiltersByProject(t *testing.T) {
	g, p := newGraphTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")

	helpdesk, err := p.CreateProject(ctx, tctx, apisv1.CreateProjectRequest{Name: "helpdesk"})
	require.NoError(t, err)
	crm, err := p.CreateProject(ctx, tctx, apisv1.CreateProjectRequest{Name: "crm"})
	require.NoError(t, err)

	require.NoError(t, g.Store.Add(ctx, &model.RecordType{
		ID: uuid.NewString(), Tenant: "t-acme", ProjectID: helpdesk.ID, Key: "case",
	}))
	require.NoError(t, g.Store.Add(ctx, &model.RecordType{
		ID: uuid.NewString(), Tenant: "t-acme", ProjectID: crm.ID, Key: "lead",
	}))

	snapshot, err := g.GetProjectGraphSnapshot(ctx, tctx, helpdesk.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Nodes, 1)
	assert.Equal(t, "case", snapshot.Nodes[0].Key)
}

func TestExecuteChangeAppliesPatchOpsInOrder(t *testing.T) {
	g, p := newGraphTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")

	project, err := p.CreateProject(ctx, tctx, apisv1.CreateProjectRequest{Name: "helpdesk"})
	require.NoError(t, err)
	change, err := p.CreateChange(ctx, tctx, apisv1.CreateChangeRequest{
		ProjectID: project.ID, Name: "extend-case",
	})
	require.NoError(t, err)

	require.NoError(t, g.Store.Add(ctx, &model.RecordType{
		ID: uuid.NewString(), Tenant: "t-acme", ProjectID: project.ID,
		Key:    "case",
		Fields: []model.FieldDef{{Name: "subject", Type: "string", Required: true}},
	}))

	require.NoError(t, g.Store.Add(ctx, &model.ChangePatchOp{
		ID: uuid.NewString(), Tenant: "t-acme", ChangeID: change.ID,
		OrderIndex: 0, OpType: model.PatchOpSetField, RecordTypeKey: "case",
		Payload: mustJSONStruct(t, map[string]interface{}{
			"name": "priority", "type": "string", "required": true,
		}),
	}))
	require.NoError(t, g.Store.Add(ctx, &model.ChangePatchOp{
		ID: uuid.NewString(), Tenant: "t-acme", ChangeID: change.ID,
		OrderIndex: 1, OpType: model.PatchOpSetField, RecordTypeKey: "case",
		Payload: mustJSONStruct(t, map[string]interface{}{
			"name": "subject", "type": "text",
		}),
	}))

	require.NoError(t, g.ExecuteChange(ctx, tctx, change.ID))

	recordType, err := repository.GetRecordTypeByKey(ctx, g.Store, "t-acme", project.ID, "case")
	require.NoError(t, err)
	require.Len(t, recordType.Fields, 2)
	assert.Equal(t, model.FieldDef{Name: "subject", Type: "text", Required: false}, recordType.Fields[0])
	assert.Equal(t, model.FieldDef{Name: "priority", Type: "string", Required: true}, recordType.Fields[1])

	reloaded, err := repository.GetChangeRecord(ctx, g.Store, "t-acme", change.ID)
	require.NoError(t, err)
	assert.Equal(t, "executed", reloaded.Status)

	// the pre-image snapshot row exists
	snapshot := &model.RecordTypeSnapshot{ChangeID: change.ID, RecordTypeKey: "case"}
	require.NoError(t, g.Store.Get(ctx, snapshot))
	require.NotNil(t, snapshot.Schema)
}

func TestExecuteChangeRollsBackOnFailure(t *testing.T) {
	g, p := newGraphTestService()
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")

	project, err := p.CreateProject(ctx, tctx, apisv1.CreateProjectRequest{Name: "helpdesk"})
	require.NoError(t, err)
	change, err := p.CreateChange(ctx, tctx, apisv1.CreateChangeRequest{
		ProjectID: project.ID, Name: "bad-change",
	})
	require.NoError(t, err)

	require.NoError(t, g.Store.Add(ctx, &model.RecordType{
		ID: uuid.NewString(), Tenant: "t-acme", ProjectID: project.ID,
		Key:    "case",
		Fields: []model.FieldDef{{Name: "subject", Type: "string", Required: true}},
	}))

	require.NoError(t, g.Store.Add(ctx, &model.ChangePatchOp{
		ID: uuid.NewString(), Tenant: "t-acme", ChangeID: change.ID,
		OrderIndex: 0, OpType: model.PatchOpSetField, RecordTypeKey: "case",
		Payload: mustJSONStruct(t, map[string]interface{}{
			"name": "priority", "type": "string",
		}),
	}))
	require.NoError(t, g.Store.Add(ctx, &model.ChangePatchOp{
		ID: uuid.NewString(), Tenant: "t-acme", ChangeID: change.ID,
		OrderIndex: 1, OpType: "drop_field", RecordTypeKey: "case",
		Payload: mustJSONStruct(t, map[string]interface{}{"name": "subject"}),
	}))

	err = g.ExecuteChange(ctx, tctx, change.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown patch op type")

	// the first op's mutation is rolled back to the pre-image
	recordType, err := repository.GetRecordTypeByKey(ctx, g.Store, "t-acme", project.ID, "case")
	require.NoError(t, err)
	require.Len(t, recordType.Fields, 1)
	assert.Equal(t, "subject", recordType.Fields[0].Name)

	reloaded, err := repository.GetChangeRecord(ctx, g.Store, "t-acme", change.ID)
	require.NoError(t, err)
	assert.Equal(t, "open", reloaded.Status)
}
