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

package datastore

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

var (
	// ErrPrimaryEmpty Error that primary key is empty.
	ErrPrimaryEmpty = NewDBError(fmt.Errorf("entity primary is empty"))

	// ErrTableNameEmpty Error that table name is empty.
	ErrTableNameEmpty = NewDBError(fmt.Errorf("entity table name is empty"))

	// ErrNilEntity Error that entity is nil
	ErrNilEntity = NewDBError(fmt.Errorf("entity is nil"))

	// ErrRecordExist Error that entity primary key is exist
	ErrRecordExist = NewDBError(fmt.Errorf("data record is exist"))

	// ErrRecordNotExist Error that entity primary key is not exist
	ErrRecordNotExist = NewDBError(fmt.Errorf("data record is not exist"))

	// ErrIndexInvalid Error that entity index is invalid
	ErrIndexInvalid = NewDBError(fmt.Errorf("entity index is invalid"))

	// ErrEntityInvalid Error that entity type is invalid
	ErrEntityInvalid = NewDBError(fmt.Errorf("entity is invalid"))
)

// DBError datastore error
type DBError struct {
	err error
}

func (d *DBError) Error() string {
	return d.err.Error()
}

// NewDBError new datastore error
func NewDBError(err error) error {
	return &DBError{err: err}
}

// Config datastore config
type Config struct {
	Type     string
	URL      string
	Database string
}

// Entity database data model
type Entity interface {
	SetCreateTime(time time.Time)
	SetUpdateTime(time time.Time)
	PrimaryKey() string
	TableName() string
	ShortTableName() string
	Index() map[string]string
}

// NewEntity Create a new object based on the input type
func NewEntity(in Entity) (Entity, error) {
	if in == nil {
		return nil, ErrNilEntity
	}
	t := reflect.TypeOf(in)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	new := reflect.New(t)
	return new.Interface().(Entity), nil
}

// SortOrder the sort order of the list
type SortOrder int

const (
	// SortOrderAscending sort by the key ascending
	SortOrderAscending = SortOrder(1)
	// SortOrderDescending sort by the key descending
	SortOrderDescending = SortOrder(-1)
)

// SortOption describes a sort key and its order
type SortOption struct {
	Key   string
	Order SortOrder
}

// InQueryOption filter entities whose key is one of the values
type InQueryOption struct {
	Key    string
	Values []string
}

// FilterOptions filter conditions beyond the entity index
type FilterOptions struct {
	In []InQueryOption
}

// ListOptions list api options
type ListOptions struct {
	FilterOptions
	Page     int
	PageSize int
	SortBy   []SortOption
}

// DataStore datastore interface
type DataStore interface {
	// Add entity to database, PrimaryKey() and TableName() can't return zero value.
	Add(ctx context.Context, entity Entity) error

	// BatchAdd entities to database, PrimaryKey() and TableName() can't return zero value.
	BatchAdd(ctx context.Context, entities []Entity) error

	// Put update entity to database, PrimaryKey() and TableName() can't return zero value.
	Put(ctx context.Context, entity Entity) error

	// Delete entity from database, PrimaryKey() and TableName() can't return zero value.
	Delete(ctx context.Context, entity Entity) error

	// Get entity from database, PrimaryKey() and TableName() can't return zero value.
	Get(ctx context.Context, entity Entity) error

	// List entities from database matching the query entity index, TableName() can't return zero value.
	List(ctx context.Context, query Entity, options *ListOptions) ([]Entity, error)

	// Count entities from database matching the query entity index.
	Count(ctx context.Context, entity Entity, options *FilterOptions) (int64, error)

	// IsExist check the entity exist, PrimaryKey() and TableName() can't return zero value.
	IsExist(ctx context.Context, entity Entity) (bool, error)
}
