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

	"github.com/google/uuid"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/repository"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

// ProjectService project, module and environment management.
type ProjectService interface {
	CreateProject(ctx context.Context, tctx runner.TenantContext, req apisv1.CreateProjectRequest) (*model.Project, error)
	GetProject(ctx context.Context, tctx runner.TenantContext, projectID string) (*model.Project, error)
	ListProjects(ctx context.Context, tctx runner.TenantContext) ([]*model.Project, error)
	CreateModule(ctx context.Context, tctx runner.TenantContext, req apisv1.CreateModuleRequest) (*model.Module, error)
	ListModules(ctx context.Context, tctx runner.TenantContext, projectID string) ([]*model.Module, error)
	ListEnvironments(ctx context.Context, tctx runner.TenantContext, projectID string) ([]*model.Environment, error)
	UpdateEnvironment(ctx context.Context, tctx runner.TenantContext, envID string, req apisv1.UpdateEnvironmentRequest) (*model.Environment, error)
	CreateChange(ctx context.Context, tctx runner.TenantContext, req apisv1.CreateChangeRequest) (*model.ChangeRecord, error)
}

type projectServiceImpl struct {
	Store datastore.DataStore `inject:"datastore"`
}

// NewProjectService new project service
func NewProjectService() ProjectService {
	return &projectServiceImpl{}
}

// CreateProject create a project and seed its default environments.
func (p *projectServiceImpl) CreateProject(ctx context.Context, tctx runner.TenantContext, req apisv1.CreateProjectRequest) (*model.Project, error) {
	exist := model.Project{Tenant: tctx.Tenant, Name: req.Name}
	entities, err := p.Store.List(ctx, &exist, &datastore.ListOptions{Page: 1, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(entities) > 0 {
		return nil, bcode.ErrProjectExist
	}
	project := &model.Project{
		ID:          uuid.NewString(),
		Tenant:      tctx.Tenant,
		Name:        req.Name,
		Description: req.Description,
		Owner:       tctx.User,
	}
	if err := p.Store.Add(ctx, project); err != nil {
		return nil, err
	}
	for _, name := range model.DefaultEnvironmentNames {
		env := &model.Environment{
			ID:        uuid.NewString(),
			Tenant:    tctx.Tenant,
			ProjectID: project.ID,
			Name:      name,
		}
		if name == "prod" {
			env.RequiresPromotionApproval = true
		}
		if err := p.Store.Add(ctx, env); err != nil {
			return nil, err
		}
	}
	log.Logger.Infof("created project %s for tenant %s", project.Name, tctx.Tenant)
	return project, nil
}

// GetProject get one project
func (p *projectServiceImpl) GetProject(ctx context.Context, tctx runner.TenantContext, projectID string) (*model.Project, error) {
	return repository.GetProject(ctx, p.Store, tctx.Tenant, projectID)
}

// ListProjects list the tenant's projects
func (p *projectServiceImpl) ListProjects(ctx context.Context, tctx runner.TenantContext) ([]*model.Project, error) {
	return repository.ListProjects(ctx, p.Store, tctx.Tenant)
}

// CreateModule create a module under a project. The module kind decides the
// default capability profile unless the request overrides it.
func (p *projectServiceImpl) CreateModule(ctx context.Context, tctx runner.TenantContext, req apisv1.CreateModuleRequest) (*model.Module, error) {
	if _, err := repository.GetProject(ctx, p.Store, tctx.Tenant, req.ProjectID); err != nil {
		return nil, err
	}
	profile := req.CapabilityProfile
	if profile == "" {
		switch req.Kind {
		case model.ModuleKindWorkflow:
			profile = runner.ProfileWorkflowModuleDefault
		default:
			profile = runner.ProfileCodeModuleDefault
		}
	}
	if _, err := runner.ResolveProfile(profile); err != nil {
		return nil, bcode.ErrInvalidRequestBody
	}
	module := &model.Module{
		ID:                uuid.NewString(),
		Tenant:            tctx.Tenant,
		ProjectID:         req.ProjectID,
		Name:              req.Name,
		Kind:              req.Kind,
		RootPath:          req.RootPath,
		CapabilityProfile: profile,
	}
	if err := p.Store.Add(ctx, module); err != nil {
		return nil, err
	}
	return module, nil
}

// ListModules list modules
func (p *projectServiceImpl) ListModules(ctx context.Context, tctx runner.TenantContext, projectID string) ([]*model.Module, error) {
	return repository.ListModules(ctx, p.Store, tctx.Tenant, projectID)
}

// ListEnvironments list a project's environments
func (p *projectServiceImpl) ListEnvironments(ctx context.Context, tctx runner.TenantContext, projectID string) ([]*model.Environment, error) {
	if _, err := repository.GetProject(ctx, p.Store, tctx.Tenant, projectID); err != nil {
		return nil, err
	}
	return repository.ListEnvironments(ctx, p.Store, tctx.Tenant, projectID)
}

// UpdateEnvironment update promotion approval settings of an environment.
func (p *projectServiceImpl) UpdateEnvironment(ctx context.Context, tctx runner.TenantContext, envID string, req apisv1.UpdateEnvironmentRequest) (*model.Environment, error) {
	env, err := repository.GetEnvironment(ctx, p.Store, tctx.Tenant, envID)
	if err != nil {
		return nil, err
	}
	if req.RequiresPromotionApproval != nil {
		env.RequiresPromotionApproval = *req.RequiresPromotionApproval
	}
	if req.PromotionWebhookURL != nil {
		env.PromotionWebhookURL = *req.PromotionWebhookURL
	}
	if err := p.Store.Put(ctx, env); err != nil {
		return nil, err
	}
	return env, nil
}

// CreateChange create a change record under a project.
func (p *projectServiceImpl) CreateChange(ctx context.Context, tctx runner.TenantContext, req apisv1.CreateChangeRequest) (*model.ChangeRecord, error) {
	if _, err := repository.GetProject(ctx, p.Store, tctx.Tenant, req.ProjectID); err != nil {
		return nil, err
	}
	if req.ModuleID != "" {
		if _, err := repository.GetModule(ctx, p.Store, tctx.Tenant, req.ModuleID); err != nil {
			return nil, err
		}
	}
	change := &model.ChangeRecord{
		ID:        uuid.NewString(),
		Tenant:    tctx.Tenant,
		ProjectID: req.ProjectID,
		ModuleID:  req.ModuleID,
		Name:      req.Name,
		Status:    "open",
	}
	if err := p.Store.Add(ctx, change); err != nil {
		return nil, err
	}
	return change, nil
}

// WorkspaceService persists workspace lifecycle results for the runner's
// workspace actions.
type WorkspaceService interface {
	runner.WorkspaceRecorder
	GetWorkspace(ctx context.Context, tctx runner.TenantContext, module string) (*model.Workspace, error)
}

type workspaceServiceImpl struct {
	Store datastore.DataStore `inject:"datastore"`
}

// NewWorkspaceService new workspace service
func NewWorkspaceService() WorkspaceService {
	return &workspaceServiceImpl{}
}

// RecordWorkspaceStart implements runner.WorkspaceRecorder.
func (w *workspaceServiceImpl) RecordWorkspaceStart(ctx context.Context, tctx runner.TenantContext, module, containerID, previewURL string) error {
	workspace, err := repository.GetWorkspaceByModule(ctx, w.Store, tctx.Tenant, module)
	if err != nil {
		if err != datastore.ErrRecordNotExist {
			return err
		}
		workspace = &model.Workspace{
			ID:     uuid.NewString(),
			Tenant: tctx.Tenant,
			Module: module,
		}
		workspace.ContainerID = containerID
		workspace.PreviewURL = previewURL
		workspace.Status = model.WorkspaceStatusRunning
		return w.Store.Add(ctx, workspace)
	}
	workspace.ContainerID = containerID
	workspace.PreviewURL = previewURL
	workspace.Status = model.WorkspaceStatusRunning
	return w.Store.Put(ctx, workspace)
}

// RecordWorkspaceStop implements runner.WorkspaceRecorder.
func (w *workspaceServiceImpl) RecordWorkspaceStop(ctx context.Context, tctx runner.TenantContext, module string) error {
	workspace, err := repository.GetWorkspaceByModule(ctx, w.Store, tctx.Tenant, module)
	if err != nil {
		if err == datastore.ErrRecordNotExist {
			return bcode.ErrWorkspaceNotExist
		}
		return err
	}
	workspace.Status = model.WorkspaceStatusStopped
	return w.Store.Put(ctx, workspace)
}

// GetWorkspace load the workspace row of a module.
func (w *workspaceServiceImpl) GetWorkspace(ctx context.Context, tctx runner.TenantContext, module string) (*model.Workspace, error) {
	workspace, err := repository.GetWorkspaceByModule(ctx, w.Store, tctx.Tenant, module)
	if err != nil {
		if err == datastore.ErrRecordNotExist {
			return nil, bcode.ErrWorkspaceNotExist
		}
		return nil, err
	}
	return workspace, nil
}
