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
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore/memory"
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
)

func TestCreateProjectSeedsEnvironments(t *testing.T) {
	p := &projectServiceImpl{Store: memory.New()}
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "owner")

	project, err := p.CreateProject(ctx, tctx, apisv1.CreateProjectRequest{Name: "helpdesk"})
	require.NoError(t, err)
	assert.Equal(t, "owner", project.Owner)

	envs, err := p.ListEnvironments(ctx, tctx, project.ID)
	require.NoError(t, err)
	require.Len(t, envs, len(model.DefaultEnvironmentNames))
	byName := map[string]*model.Environment{}
	for _, env := range envs {
		byName[env.Name] = env
	}
	assert.False(t, byName["dev"].RequiresPromotionApproval)
	assert.False(t, byName["test"].RequiresPromotionApproval)
	assert.True(t, byName["prod"].RequiresPromotionApproval)

	_, err = p.CreateProject(ctx, tctx, apisv1.CreateProjectRequest{Name: "helpdesk"})
	assert.Equal(t, bcode.ErrProjectExist, err)
}

func TestCreateProjectTenantScoping(t *testing.T) {
	p := &projectServiceImpl{Store: memory.New()}
	ctx := context.Background()

	acme := runner.NewTenantContext("t-acme", "owner")
	rival := runner.NewTenantContext("t-rival", "owner")

	project, err := p.CreateProject(ctx, acme, apisv1.CreateProjectRequest{Name: "helpdesk"})
	require.NoError(t, err)

	// the same name is free in another tenant
	_, err = p.CreateProject(ctx, rival, apisv1.CreateProjectRequest{Name: "helpdesk"})
	require.NoError(t, err)

	_, err = p.GetProject(ctx, rival, project.ID)
	assert.Equal(t, bcode.ErrProjectNotExist, err)
}

func TestCreateModuleDefaultsCapabilityProfile(t *testing.T) {
	p := &projectServiceImpl{Store: memory.New()}
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "owner")

	project, err := p.CreateProject(ctx, tctx, apisv1.CreateProjectRequest{Name: "helpdesk"})
	require.NoError(t, err)

	code, err := p.CreateModule(ctx, tctx, apisv1.CreateModuleRequest{
		ProjectID: project.ID, Name: "portal", Kind: model.ModuleKindCode, RootPath: "modules/portal",
	})
	require.NoError(t, err)
	assert.Equal(t, runner.ProfileCodeModuleDefault, code.CapabilityProfile)

	workflow, err := p.CreateModule(ctx, tctx, apisv1.CreateModuleRequest{
		ProjectID: project.ID, Name: "routing", Kind: model.ModuleKindWorkflow, RootPath: "modules/routing",
	})
	require.NoError(t, err)
	assert.Equal(t, runner.ProfileWorkflowModuleDefault, workflow.CapabilityProfile)

	_, err = p.CreateModule(ctx, tctx, apisv1.CreateModuleRequest{
		ProjectID: project.ID, Name: "bad", Kind: model.ModuleKindCode, RootPath: "modules/bad",
		CapabilityProfile: "NO_SUCH_PROFILE",
	})
	assert.Equal(t, bcode.ErrInvalidRequestBody, err)
}

func TestWorkspaceRecorderLifecycle(t *testing.T) {
	ds := memory.New()
	w := &workspaceServiceImpl{Store: ds}
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "dev")

	require.NoError(t, w.RecordWorkspaceStart(ctx, tctx, "portal", "cntr-1", "https://preview.local/portal"))

	workspace, err := w.GetWorkspace(ctx, tctx, "portal")
	require.NoError(t, err)
	assert.Equal(t, model.WorkspaceStatusRunning, workspace.Status)
	assert.Equal(t, "cntr-1", workspace.ContainerID)

	// a restart upserts the same row
	require.NoError(t, w.RecordWorkspaceStart(ctx, tctx, "portal", "cntr-2", "https://preview.local/portal"))
	workspace, err = w.GetWorkspace(ctx, tctx, "portal")
	require.NoError(t, err)
	assert.Equal(t, "cntr-2", workspace.ContainerID)

	require.NoError(t, w.RecordWorkspaceStop(ctx, tctx, "portal"))
	workspace, err = w.GetWorkspace(ctx, tctx, "portal")
	require.NoError(t, err)
	assert.Equal(t, model.WorkspaceStatusStopped, workspace.Status)

	assert.Equal(t, bcode.ErrWorkspaceNotExist, w.RecordWorkspaceStop(ctx, tctx, "unknown"))
}
