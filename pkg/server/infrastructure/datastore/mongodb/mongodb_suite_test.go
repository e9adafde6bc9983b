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

package mongodb

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
)

// TestMongodb needs a reachable mongod, e.g. the one from the compose file.
func TestMongodb(t *testing.T) {
	url := os.Getenv("MONGO_URL")
	if url == "" {
		t.Skip("MONGO_URL not set")
	}
	ctx := context.Background()
	ds, err := New(ctx, datastore.Config{
		URL:      url,
		Database: "loom-test",
	})
	require.NoError(t, err)

	project := &model.Project{ID: "prj-mongo-roundtrip", Name: "mongo-roundtrip", Tenant: "t-test"}
	require.NoError(t, ds.Add(ctx, project))
	defer func() {
		assert.NoError(t, ds.Delete(ctx, project))
	}()

	loaded := &model.Project{ID: "prj-mongo-roundtrip"}
	require.NoError(t, ds.Get(ctx, loaded))
	assert.Equal(t, project.Name, loaded.Name)
}
