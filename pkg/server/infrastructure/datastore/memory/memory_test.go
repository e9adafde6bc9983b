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

package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
)

func TestAddGetPutDelete(t *testing.T) {
	ds := New()
	ctx := context.Background()

	err := ds.Add(ctx, &model.Project{Tenant: "t-acme", Name: "no-id"})
	assert.Equal(t, datastore.ErrPrimaryEmpty, err)

	project := &model.Project{ID: "prj-1", Tenant: "t-acme", Name: "helpdesk"}
	require.NoError(t, ds.Add(ctx, project))
	assert.False(t, project.CreateTime.IsZero())
	assert.Equal(t, datastore.ErrRecordExist, ds.Add(ctx, project))

	loaded := &model.Project{ID: "prj-1"}
	require.NoError(t, ds.Get(ctx, loaded))
	assert.Equal(t, "helpdesk", loaded.Name)

	loaded.Description = "support workspace"
	require.NoError(t, ds.Put(ctx, loaded))
	assert.Equal(t, datastore.ErrRecordNotExist, ds.Put(ctx, &model.Project{ID: "prj-404"}))

	exist, err := ds.IsExist(ctx, &model.Project{ID: "prj-1"})
	require.NoError(t, err)
	assert.True(t, exist)

	require.NoError(t, ds.Delete(ctx, loaded))
	assert.Equal(t, datastore.ErrRecordNotExist, ds.Delete(ctx, loaded))
	assert.Equal(t, datastore.ErrRecordNotExist, ds.Get(ctx, &model.Project{ID: "prj-1"}))
}

func TestListMatchesIndexExactly(t *testing.T) {
	ds := New()
	ctx := context.Background()

	for i, tenant := range []string{"t-acme", "t-acme", "t-rival"} {
		require.NoError(t, ds.Add(ctx, &model.Project{
			ID: fmt.Sprintf("prj-%d", i), Tenant: tenant, Name: fmt.Sprintf("project-%d", i),
		}))
	}

	entities, err := ds.List(ctx, &model.Project{Tenant: "t-acme"}, nil)
	require.NoError(t, err)
	assert.Len(t, entities, 2)

	entities, err = ds.List(ctx, &model.Project{Tenant: "t-rival"}, nil)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "project-2", entities[0].(*model.Project).Name)

	count, err := ds.Count(ctx, &model.Project{Tenant: "t-acme"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestListSortAndPaging(t *testing.T) {
	ds := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, ds.Add(ctx, &model.Project{
			ID: fmt.Sprintf("prj-%d", i), Tenant: "t-acme", Name: fmt.Sprintf("project-%d", i),
		}))
	}

	// default sort is primary key ascending
	entities, err := ds.List(ctx, &model.Project{Tenant: "t-acme"}, &datastore.ListOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "prj-0", entities[0].(*model.Project).ID)
	assert.Equal(t, "prj-1", entities[1].(*model.Project).ID)

	entities, err = ds.List(ctx, &model.Project{Tenant: "t-acme"}, &datastore.ListOptions{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "prj-4", entities[0].(*model.Project).ID)

	entities, err = ds.List(ctx, &model.Project{Tenant: "t-acme"}, &datastore.ListOptions{Page: 4, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, entities)

	entities, err = ds.List(ctx, &model.Project{Tenant: "t-acme"}, &datastore.ListOptions{
		SortBy: []datastore.SortOption{{Key: "name", Order: datastore.SortOrderDescending}},
	})
	require.NoError(t, err)
	require.Len(t, entities, 5)
	assert.Equal(t, "project-4", entities[0].(*model.Project).Name)
}

func TestListInFilter(t *testing.T) {
	ds := New()
	ctx := context.Background()

	for i, status := range []string{"running", "paused", "completed"} {
		require.NoError(t, ds.Add(ctx, &model.WorkflowExecution{
			ID: fmt.Sprintf("exec-%d", i), Tenant: "t-acme",
			WorkflowDefinitionID: "def-1", Status: status,
		}))
	}

	entities, err := ds.List(ctx, &model.WorkflowExecution{Tenant: "t-acme"}, &datastore.ListOptions{
		FilterOptions: datastore.FilterOptions{
			In: []datastore.InQueryOption{{Key: "status", Values: []string{"running", "paused"}}},
		},
	})
	require.NoError(t, err)
	assert.Len(t, entities, 2)

	count, err := ds.Count(ctx, &model.WorkflowExecution{Tenant: "t-acme"}, &datastore.FilterOptions{
		In: []datastore.InQueryOption{{Key: "status", Values: []string{"completed"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
