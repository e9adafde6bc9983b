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
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
)

type record struct {
	data  []byte
	index map[string]string
}

// memory is a process-local datastore driver. It backs unit tests and the
// single-node development mode; the index semantics mirror the other drivers.
type memory struct {
	sync.RWMutex
	tables map[string]map[string]*record
}

// New new memory datastore instance
func New() datastore.DataStore {
	return &memory{tables: map[string]map[string]*record{}}
}

func (m *memory) table(name string) map[string]*record {
	if _, ok := m.tables[name]; !ok {
		m.tables[name] = map[string]*record{}
	}
	return m.tables[name]
}

func newRecord(entity datastore.Entity) (*record, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, datastore.NewDBError(err)
	}
	index := entity.Index()
	if index == nil {
		index = map[string]string{}
	}
	index["table"] = entity.TableName()
	index["primaryKey"] = entity.PrimaryKey()
	return &record{data: data, index: index}, nil
}

// Add add data model
func (m *memory) Add(ctx context.Context, entity datastore.Entity) error {
	if entity.PrimaryKey() == "" {
		return datastore.ErrPrimaryEmpty
	}
	if entity.TableName() == "" {
		return datastore.ErrTableNameEmpty
	}
	m.Lock()
	defer m.Unlock()
	table := m.table(entity.TableName())
	if _, exist := table[entity.PrimaryKey()]; exist {
		return datastore.ErrRecordExist
	}
	entity.SetCreateTime(time.Now())
	entity.SetUpdateTime(time.Now())
	r, err := newRecord(entity)
	if err != nil {
		return err
	}
	table[entity.PrimaryKey()] = r
	return nil
}

// BatchAdd batch add entities, this operation is not transactional.
func (m *memory) BatchAdd(ctx context.Context, entities []datastore.Entity) error {
	for i := range entities {
		if err := m.Add(ctx, entities[i]); err != nil {
			return datastore.NewDBError(err)
		}
	}
	return nil
}

// Put update data model
func (m *memory) Put(ctx context.Context, entity datastore.Entity) error {
	if entity.PrimaryKey() == "" {
		return datastore.ErrPrimaryEmpty
	}
	if entity.TableName() == "" {
		return datastore.ErrTableNameEmpty
	}
	m.Lock()
	defer m.Unlock()
	table := m.table(entity.TableName())
	if _, exist := table[entity.PrimaryKey()]; !exist {
		return datastore.ErrRecordNotExist
	}
	entity.SetUpdateTime(time.Now())
	r, err := newRecord(entity)
	if err != nil {
		return err
	}
	table[entity.PrimaryKey()] = r
	return nil
}

// Get get data model
func (m *memory) Get(ctx context.Context, entity datastore.Entity) error {
	if entity.PrimaryKey() == "" {
		return datastore.ErrPrimaryEmpty
	}
	if entity.TableName() == "" {
		return datastore.ErrTableNameEmpty
	}
	m.RLock()
	defer m.RUnlock()
	table := m.table(entity.TableName())
	r, exist := table[entity.PrimaryKey()]
	if !exist {
		return datastore.ErrRecordNotExist
	}
	return json.Unmarshal(r.data, entity)
}

// IsExist check the entity exist
func (m *memory) IsExist(ctx context.Context, entity datastore.Entity) (bool, error) {
	if entity.PrimaryKey() == "" {
		return false, datastore.ErrPrimaryEmpty
	}
	m.RLock()
	defer m.RUnlock()
	_, exist := m.table(entity.TableName())[entity.PrimaryKey()]
	return exist, nil
}

// Delete delete entity
func (m *memory) Delete(ctx context.Context, entity datastore.Entity) error {
	if entity.PrimaryKey() == "" {
		return datastore.ErrPrimaryEmpty
	}
	m.Lock()
	defer m.Unlock()
	table := m.table(entity.TableName())
	if _, exist := table[entity.PrimaryKey()]; !exist {
		return datastore.ErrRecordNotExist
	}
	delete(table, entity.PrimaryKey())
	return nil
}

func matchIndex(r *record, index map[string]string) bool {
	for k, v := range index {
		if r.index[k] != v {
			return false
		}
	}
	return true
}

func matchFilter(r *record, filter *datastore.FilterOptions) bool {
	if filter == nil {
		return true
	}
	for _, in := range filter.In {
		value := gjson.GetBytes(r.data, in.Key).String()
		var found bool
		for _, candidate := range in.Values {
			if candidate == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// List list entities matching the query entity index
func (m *memory) List(ctx context.Context, query datastore.Entity, options *datastore.ListOptions) ([]datastore.Entity, error) {
	if query.TableName() == "" {
		return nil, datastore.ErrTableNameEmpty
	}
	m.RLock()
	selected := make([]*record, 0)
	for _, r := range m.table(query.TableName()) {
		if !matchIndex(r, query.Index()) {
			continue
		}
		if options != nil && !matchFilter(r, &options.FilterOptions) {
			continue
		}
		selected = append(selected, r)
	}
	m.RUnlock()

	// default ordering is stable on the primary key so paging is deterministic
	sortBy := []datastore.SortOption{{Key: "primaryKey", Order: datastore.SortOrderAscending}}
	if options != nil && len(options.SortBy) > 0 {
		sortBy = options.SortBy
	}
	sort.SliceStable(selected, func(i, j int) bool {
		for _, by := range sortBy {
			var a, b string
			if by.Key == "primaryKey" {
				a, b = selected[i].index["primaryKey"], selected[j].index["primaryKey"]
			} else {
				a = gjson.GetBytes(selected[i].data, by.Key).String()
				b = gjson.GetBytes(selected[j].data, by.Key).String()
			}
			if a == b {
				continue
			}
			if by.Order == datastore.SortOrderDescending {
				return a > b
			}
			return a < b
		}
		return false
	})

	if options != nil && options.Page > 0 && options.PageSize > 0 {
		skip := (options.Page - 1) * options.PageSize
		if skip >= len(selected) {
			selected = nil
		} else {
			end := skip + options.PageSize
			if end > len(selected) {
				end = len(selected)
			}
			selected = selected[skip:end]
		}
	}

	var list []datastore.Entity
	for _, r := range selected {
		item, err := datastore.NewEntity(query)
		if err != nil {
			return nil, datastore.NewDBError(err)
		}
		if err := json.Unmarshal(r.data, item); err != nil {
			return nil, datastore.NewDBError(err)
		}
		list = append(list, item)
	}
	return list, nil
}

// Count count entities matching the query entity index
func (m *memory) Count(ctx context.Context, entity datastore.Entity, options *datastore.FilterOptions) (int64, error) {
	if entity.TableName() == "" {
		return 0, datastore.ErrTableNameEmpty
	}
	m.RLock()
	defer m.RUnlock()
	var count int64
	for _, r := range m.table(entity.TableName()) {
		if !matchIndex(r, entity.Index()) {
			continue
		}
		if !matchFilter(r, options) {
			continue
		}
		count++
	}
	return count, nil
}
