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

// ListRecordTypes list record types, optionally narrowed to one project.
func ListRecordTypes(ctx context.Context, ds datastore.DataStore, tenant, projectID string) ([]*model.RecordType, error) {
	var recordType = model.RecordType{Tenant: tenant, ProjectID: projectID}
	entities, err := ds.List(ctx, &recordType, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "createTime", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		return nil, err
	}
	var recordTypes []*model.RecordType
	for _, entity := range entities {
		recordTypes = append(recordTypes, entity.(*model.RecordType))
	}
	return recordTypes, nil
}

// GetRecordTypeByKey load a record type by its (project, key) identity.
func GetRecordTypeByKey(ctx context.Context, ds datastore.DataStore, tenant, projectID, key string) (*model.RecordType, error) {
	var recordType = model.RecordType{Tenant: tenant, ProjectID: projectID, Key: key}
	entities, err := ds.List(ctx, &recordType, &datastore.ListOptions{Page: 1, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, bcode.ErrRecordTypeNotExist
	}
	return entities[0].(*model.RecordType), nil
}

// ListInstalls list the install audit rows of one (project, package), newest
// first. An empty packageKey lists the whole project history.
func ListInstalls(ctx context.Context, ds datastore.DataStore, tenant, projectID, packageKey string) ([]*model.GraphPackageInstall, error) {
	var install = model.GraphPackageInstall{Tenant: tenant, ProjectID: projectID, PackageKey: packageKey}
	entities, err := ds.List(ctx, &install, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "createTime", Order: datastore.SortOrderDescending}},
	})
	if err != nil {
		return nil, err
	}
	var installs []*model.GraphPackageInstall
	for _, entity := range entities {
		installs = append(installs, entity.(*model.GraphPackageInstall))
	}
	return installs, nil
}

// LatestInstall load the most recent install row of a (project, package),
// or nil when the package was never installed.
func LatestInstall(ctx context.Context, ds datastore.DataStore, tenant, projectID, packageKey string) (*model.GraphPackageInstall, error) {
	installs, err := ListInstalls(ctx, ds, tenant, projectID, packageKey)
	if err != nil {
		return nil, err
	}
	if len(installs) == 0 {
		return nil, nil
	}
	return installs[0], nil
}

// LatestInstallsByPackage the newest install row per package of a project.
func LatestInstallsByPackage(ctx context.Context, ds datastore.DataStore, tenant, projectID string) (map[string]*model.GraphPackageInstall, error) {
	installs, err := ListInstalls(ctx, ds, tenant, projectID, "")
	if err != nil {
		return nil, err
	}
	latest := map[string]*model.GraphPackageInstall{}
	for _, install := range installs {
		if _, seen := latest[install.PackageKey]; !seen {
			latest[install.PackageKey] = install
		}
	}
	return latest, nil
}

// ListEnvironmentInstalls list the package rows an environment carries.
func ListEnvironmentInstalls(ctx context.Context, ds datastore.DataStore, tenant, envID string) ([]*model.EnvironmentPackageInstall, error) {
	var install = model.EnvironmentPackageInstall{Tenant: tenant, EnvironmentID: envID}
	entities, err := ds.List(ctx, &install, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "createTime", Order: datastore.SortOrderAscending}},
	})
	if err != nil {
		return nil, err
	}
	var installs []*model.EnvironmentPackageInstall
	for _, entity := range entities {
		installs = append(installs, entity.(*model.EnvironmentPackageInstall))
	}
	return installs, nil
}

// ListChangePatchOps list the patch ops of a change ordered by orderIndex.
func ListChangePatchOps(ctx context.Context, ds datastore.DataStore, tenant, changeID string) ([]*model.ChangePatchOp, error) {
	var op = model.ChangePatchOp{Tenant: tenant, ChangeID: changeID}
	entities, err := ds.List(ctx, &op, nil)
	if err != nil {
		return nil, err
	}
	var ops []*model.ChangePatchOp
	for _, entity := range entities {
		ops = append(ops, entity.(*model.ChangePatchOp))
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].OrderIndex < ops[j].OrderIndex
	})
	return ops, nil
}

// GetPromotionIntent load one promotion intent by id, tenant-checked.
func GetPromotionIntent(ctx context.Context, ds datastore.DataStore, tenant, intentID string) (*model.PromotionIntent, error) {
	intent := &model.PromotionIntent{ID: intentID}
	if err := ds.Get(ctx, intent); err != nil {
		if err == datastore.ErrRecordNotExist {
			return nil, bcode.ErrPromotionIntentNotExist
		}
		return nil, err
	}
	if intent.Tenant != tenant {
		return nil, bcode.ErrPromotionIntentNotExist
	}
	return intent, nil
}
