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

// Package repository is the tenant-scoped read/write surface over the
// datastore. Every query entity is stamped with the tenant before it reaches
// a driver, and child writes verify the parent's tenant first.
package repository

import (
	"context"

	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
)

// GetProject load one project by id, tenant-checked.
func GetProject(ctx context.Context, ds datastore.DataStore, tenant, projectID string) (*model.Project, error) {
	project := &model.Project{ID: projectID}
	if err := ds.Get(ctx, project); err != nil {
		if err == datastore.ErrRecordNotExist {
			return nil, bcode.ErrProjectNotExist
		}
		return nil, err
	}
	if project.Tenant != tenant {
		return nil, bcode.ErrProjectNotExist
	}
	return project, nil
}

// ListProjects list the tenant's projects.
func ListProjects(ctx context.Context, ds datastore.DataStore, tenant string) ([]*model.Project, error) {
	var project = model.Project{Tenant: tenant}
	entities, err := ds.List(ctx, &project, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "createTime", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		return nil, err
	}
	var projects []*model.Project
	for _, entity := range entities {
		projects = append(projects, entity.(*model.Project))
	}
	return projects, nil
}

// ListModules list modules, optionally narrowed to one project.
func ListModules(ctx context.Context, ds datastore.DataStore, tenant, projectID string) ([]*model.Module, error) {
	var module = model.Module{Tenant: tenant, ProjectID: projectID}
	entities, err := ds.List(ctx, &module, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "createTime", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		return nil, err
	}
	var modules []*model.Module
	for _, entity := range entities {
		modules = append(modules, entity.(*model.Module))
	}
	return modules, nil
}

// GetModule load one module by id, tenant-checked.
func GetModule(ctx context.Context, ds datastore.DataStore, tenant, moduleID string) (*model.Module, error) {
	module := &model.Module{ID: moduleID}
	if err := ds.Get(ctx, module); err != nil {
		if err == datastore.ErrRecordNotExist {
			return nil, bcode.ErrModuleNotExist
		}
		return nil, err
	}
	if module.Tenant != tenant {
		return nil, bcode.ErrModuleNotExist
	}
	return module, nil
}

// AnyModule returns some module of the tenant, used as the dispatch fallback
// when a workflow is not bound to a change's module.
func AnyModule(ctx context.Context, ds datastore.DataStore, tenant string) (*model.Module, error) {
	modules, err := ListModules(ctx, ds, tenant, "")
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, bcode.ErrModuleNotExist
	}
	return modules[0], nil
}

// ListEnvironments list the environments of a project.
func ListEnvironments(ctx context.Context, ds datastore.DataStore, tenant, projectID string) ([]*model.Environment, error) {
	var env = model.Environment{Tenant: tenant, ProjectID: projectID}
	entities, err := ds.List(ctx, &env, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "createTime", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		return nil, err
	}
	var envs []*model.Environment
	for _, entity := range entities {
		envs = append(envs, entity.(*model.Environment))
	}
	return envs, nil
}

// GetEnvironment load one environment by id, tenant-checked.
func GetEnvironment(ctx context.Context, ds datastore.DataStore, tenant, envID string) (*model.Environment, error) {
	env := &model.Environment{ID: envID}
	if err := ds.Get(ctx, env); err != nil {
		if err == datastore.ErrRecordNotExist {
			return nil, bcode.ErrEnvironmentNotExist
		}
		return nil, err
	}
	if env.Tenant != tenant {
		return nil, bcode.ErrEnvironmentNotExist
	}
	return env, nil
}

// GetChangeRecord load one change by id, tenant-checked.
func GetChangeRecord(ctx context.Context, ds datastore.DataStore, tenant, changeID string) (*model.ChangeRecord, error) {
	change := &model.ChangeRecord{ID: changeID}
	if err := ds.Get(ctx, change); err != nil {
		if err == datastore.ErrRecordNotExist {
			return nil, bcode.ErrChangeNotExist
		}
		return nil, err
	}
	if change.Tenant != tenant {
		return nil, bcode.ErrChangeNotExist
	}
	return change, nil
}

// GetWorkspaceByModule load the workspace row of a module if one exists.
func GetWorkspaceByModule(ctx context.Context, ds datastore.DataStore, tenant, module string) (*model.Workspace, error) {
	var workspace = model.Workspace{Tenant: tenant, Module: module}
	entities, err := ds.List(ctx, &workspace, &datastore.ListOptions{Page: 1, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, datastore.ErrRecordNotExist
	}
	return entities[0].(*model.Workspace), nil
}
