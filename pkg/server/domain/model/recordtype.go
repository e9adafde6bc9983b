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

package model

import "fmt"

func init() {
	RegisterModel(&RecordType{}, &RecordTypeSnapshot{}, &ChangePatchOp{})
}

// Patch op types applied by change execution.
const (
	PatchOpSetField = "set_field"
)

// FieldDef one field of a record type schema.
type FieldDef struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// RecordType one installed record type of a project graph. Identity within a
// project is the key; the row id is the storage handle.
type RecordType struct {
	BaseModel
	ID               string      `json:"id"`
	Tenant           string      `json:"tenant"`
	ProjectID        string      `json:"projectId"`
	Key              string      `json:"key"`
	Name             string      `json:"name,omitempty"`
	BaseType         string      `json:"baseType,omitempty"`
	Fields           []FieldDef  `json:"fields,omitempty"`
	SLAConfig        *JSONStruct `json:"slaConfig,omitempty"`
	AssignmentConfig *JSONStruct `json:"assignmentConfig,omitempty"`
}

// TableName table name for datastore
func (r *RecordType) TableName() string {
	return tableNamePrefix + "record_type"
}

// ShortTableName is the compressed version of table name
func (r *RecordType) ShortTableName() string {
	return "rty"
}

// PrimaryKey primary key for datastore
func (r *RecordType) PrimaryKey() string {
	return r.ID
}

// Index set to the fields used to query
func (r *RecordType) Index() map[string]string {
	index := make(map[string]string)
	if r.Tenant != "" {
		index["tenant"] = r.Tenant
	}
	if r.ProjectID != "" {
		index["projectId"] = r.ProjectID
	}
	if r.Key != "" {
		index["key"] = r.Key
	}
	return index
}

// RecordTypeSnapshot pre-mutation schema snapshot, one per record type per
// change, used for reverse-order rollback.
type RecordTypeSnapshot struct {
	BaseModel
	Tenant        string      `json:"tenant"`
	ChangeID      string      `json:"changeId"`
	RecordTypeKey string      `json:"recordTypeKey"`
	Schema        *JSONStruct `json:"schema,omitempty"`
}

// TableName table name for datastore
func (s *RecordTypeSnapshot) TableName() string {
	return tableNamePrefix + "record_type_snapshot"
}

// ShortTableName is the compressed version of table name
func (s *RecordTypeSnapshot) ShortTableName() string {
	return "rts"
}

// PrimaryKey primary key for datastore
func (s *RecordTypeSnapshot) PrimaryKey() string {
	return fmt.Sprintf("%s-%s", s.ChangeID, s.RecordTypeKey)
}

// Index set to the fields used to query
func (s *RecordTypeSnapshot) Index() map[string]string {
	index := make(map[string]string)
	if s.Tenant != "" {
		index["tenant"] = s.Tenant
	}
	if s.ChangeID != "" {
		index["changeId"] = s.ChangeID
	}
	if s.RecordTypeKey != "" {
		index["recordTypeKey"] = s.RecordTypeKey
	}
	return index
}

// ChangePatchOp one ordered schema patch within a change.
type ChangePatchOp struct {
	BaseModel
	ID            string      `json:"id"`
	Tenant        string      `json:"tenant"`
	ChangeID      string      `json:"changeId"`
	OrderIndex    int         `json:"orderIndex"`
	OpType        string      `json:"opType"`
	RecordTypeKey string      `json:"recordTypeKey"`
	Payload       *JSONStruct `json:"payload,omitempty"`
}

// TableName table name for datastore
func (p *ChangePatchOp) TableName() string {
	return tableNamePrefix + "change_patch_op"
}

// ShortTableName is the compressed version of table name
func (p *ChangePatchOp) ShortTableName() string {
	return "cpo"
}

// PrimaryKey primary key for datastore
func (p *ChangePatchOp) PrimaryKey() string {
	return p.ID
}

// Index set to the fields used to query
func (p *ChangePatchOp) Index() map[string]string {
	index := make(map[string]string)
	if p.Tenant != "" {
		index["tenant"] = p.Tenant
	}
	if p.ChangeID != "" {
		index["changeId"] = p.ChangeID
	}
	return index
}
