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
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
)

type mongodb struct {
	client   *mongo.Client
	database string
}

// New new mongodb datastore instance
func New(ctx context.Context, cfg datastore.Config) (datastore.DataStore, error) {
	url := cfg.URL
	if !strings.HasPrefix(url, "mongodb://") && !strings.HasPrefix(url, "mongodb+srv://") {
		url = fmt.Sprintf("mongodb://%s", url)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, datastore.NewDBError(err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, datastore.NewDBError(err)
	}
	if cfg.Database == "" {
		cfg.Database = "loom"
	}
	return &mongodb{
		client:   client,
		database: cfg.Database,
	}, nil
}

func (m *mongodb) collection(entity datastore.Entity) *mongo.Collection {
	return m.client.Database(m.database).Collection(entity.TableName())
}

func makeFilter(entity datastore.Entity) bson.M {
	filter := bson.M{}
	for k, v := range entity.Index() {
		filter[k] = v
	}
	return filter
}

func makeEntityDoc(entity datastore.Entity) (bson.M, error) {
	data, err := bson.Marshal(entity)
	if err != nil {
		return nil, datastore.NewDBError(err)
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, datastore.NewDBError(err)
	}
	doc["_id"] = entity.PrimaryKey()
	for k, v := range entity.Index() {
		doc[k] = v
	}
	return doc, nil
}

// Add add data model
func (m *mongodb) Add(ctx context.Context, entity datastore.Entity) error {
	if entity.PrimaryKey() == "" {
		return datastore.ErrPrimaryEmpty
	}
	if entity.TableName() == "" {
		return datastore.ErrTableNameEmpty
	}
	entity.SetCreateTime(time.Now())
	entity.SetUpdateTime(time.Now())
	doc, err := makeEntityDoc(entity)
	if err != nil {
		return err
	}
	if _, err := m.collection(entity).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return datastore.ErrRecordExist
		}
		return datastore.NewDBError(err)
	}
	return nil
}

// BatchAdd batch add entities, this operation is not transactional.
func (m *mongodb) BatchAdd(ctx context.Context, entities []datastore.Entity) error {
	for i := range entities {
		if err := m.Add(ctx, entities[i]); err != nil {
			return datastore.NewDBError(err)
		}
	}
	return nil
}

// Put update data model
func (m *mongodb) Put(ctx context.Context, entity datastore.Entity) error {
	if entity.PrimaryKey() == "" {
		return datastore.ErrPrimaryEmpty
	}
	if entity.TableName() == "" {
		return datastore.ErrTableNameEmpty
	}
	entity.SetUpdateTime(time.Now())
	doc, err := makeEntityDoc(entity)
	if err != nil {
		return err
	}
	result, err := m.collection(entity).ReplaceOne(ctx, bson.M{"_id": entity.PrimaryKey()}, doc)
	if err != nil {
		return datastore.NewDBError(err)
	}
	if result.MatchedCount == 0 {
		return datastore.ErrRecordNotExist
	}
	return nil
}

// Get get data model
func (m *mongodb) Get(ctx context.Context, entity datastore.Entity) error {
	if entity.PrimaryKey() == "" {
		return datastore.ErrPrimaryEmpty
	}
	if entity.TableName() == "" {
		return datastore.ErrTableNameEmpty
	}
	result := m.collection(entity).FindOne(ctx, bson.M{"_id": entity.PrimaryKey()})
	if err := result.Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return datastore.ErrRecordNotExist
		}
		return datastore.NewDBError(err)
	}
	if err := result.Decode(entity); err != nil {
		return datastore.NewDBError(err)
	}
	return nil
}

// IsExist check the entity exist
func (m *mongodb) IsExist(ctx context.Context, entity datastore.Entity) (bool, error) {
	if entity.PrimaryKey() == "" {
		return false, datastore.ErrPrimaryEmpty
	}
	count, err := m.collection(entity).CountDocuments(ctx, bson.M{"_id": entity.PrimaryKey()})
	if err != nil {
		return false, datastore.NewDBError(err)
	}
	return count > 0, nil
}

// Delete delete entity
func (m *mongodb) Delete(ctx context.Context, entity datastore.Entity) error {
	if entity.PrimaryKey() == "" {
		return datastore.ErrPrimaryEmpty
	}
	result, err := m.collection(entity).DeleteOne(ctx, bson.M{"_id": entity.PrimaryKey()})
	if err != nil {
		return datastore.NewDBError(err)
	}
	if result.DeletedCount == 0 {
		return datastore.ErrRecordNotExist
	}
	return nil
}

func makeListFilter(query datastore.Entity, options *datastore.ListOptions) bson.M {
	filter := makeFilter(query)
	if options == nil {
		return filter
	}
	for _, in := range options.In {
		values := make(bson.A, 0, len(in.Values))
		for _, v := range in.Values {
			values = append(values, v)
		}
		filter[in.Key] = bson.M{"$in": values}
	}
	return filter
}

// List list entities matching the query entity index
func (m *mongodb) List(ctx context.Context, query datastore.Entity, opts *datastore.ListOptions) ([]datastore.Entity, error) {
	if query.TableName() == "" {
		return nil, datastore.ErrTableNameEmpty
	}
	findOpts := options.Find()
	if opts != nil {
		if len(opts.SortBy) > 0 {
			var sortBy primitive.D
			for _, by := range opts.SortBy {
				sortBy = append(sortBy, bson.E{Key: by.Key, Value: int(by.Order)})
			}
			findOpts.SetSort(sortBy)
		} else {
			findOpts.SetSort(bson.D{{Key: "_id", Value: 1}})
		}
		if opts.Page > 0 && opts.PageSize > 0 {
			findOpts.SetSkip(int64((opts.Page - 1) * opts.PageSize))
			findOpts.SetLimit(int64(opts.PageSize))
		}
	}
	cursor, err := m.collection(query).Find(ctx, makeListFilter(query, opts), findOpts)
	if err != nil {
		return nil, datastore.NewDBError(err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	var list []datastore.Entity
	for cursor.Next(ctx) {
		item, err := datastore.NewEntity(query)
		if err != nil {
			return nil, datastore.NewDBError(err)
		}
		if err := cursor.Decode(item); err != nil {
			return nil, datastore.NewDBError(err)
		}
		list = append(list, item)
	}
	if err := cursor.Err(); err != nil {
		return nil, datastore.NewDBError(err)
	}
	return list, nil
}

// Count count entities matching the query entity index
func (m *mongodb) Count(ctx context.Context, entity datastore.Entity, opts *datastore.FilterOptions) (int64, error) {
	if entity.TableName() == "" {
		return 0, datastore.ErrTableNameEmpty
	}
	filter := makeFilter(entity)
	if opts != nil {
		for _, in := range opts.In {
			values := make(bson.A, 0, len(in.Values))
			for _, v := range in.Values {
				values = append(values, v)
			}
			filter[in.Key] = bson.M{"$in": values}
		}
	}
	count, err := m.collection(entity).CountDocuments(ctx, filter)
	if err != nil {
		return 0, datastore.NewDBError(err)
	}
	return count, nil
}
