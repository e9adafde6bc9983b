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

func init() {
	RegisterModel(&Project{}, &Module{}, &Environment{}, &Workspace{}, &ChangeRecord{})
}

// Module kinds decide the default capability profile.
const (
	ModuleKindCode     = "code"
	ModuleKindWorkflow = "workflow"
)

// Workspace statuses.
const (
	WorkspaceStatusRunning = "running"
	WorkspaceStatusStopped = "stopped"
)

// Default environment names seeded on project creation.
var DefaultEnvironmentNames = []string{"dev", "test", "prod"}

// Project groups modules, environments and the installed graph of one tenant.
type Project struct {
	BaseModel
	ID          string `json:"id"`
	Tenant      string `json:"tenant"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

// TableName table name for datastore
func (p *Project) TableName() string {
	return tableNamePrefix + "project"
}

// ShortTableName is the compressed version of table name
func (p *Project) ShortTableName() string {
	return "prj"
}

// PrimaryKey primary key for datastore
func (p *Project) PrimaryKey() string {
	return p.ID
}

// Index set to the fields used to query
func (p *Project) Index() map[string]string {
	index := make(map[string]string)
	if p.Tenant != "" {
		index["tenant"] = p.Tenant
	}
	if p.Name != "" {
		index["name"] = p.Name
	}
	return index
}

// Module is one bounded slice of a project's codebase or workflow surface.
type Module struct {
	BaseModel
	ID                string `json:"id"`
	Tenant            string `json:"tenant"`
	ProjectID         string `json:"projectId"`
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	RootPath          string `json:"rootPath"`
	CapabilityProfile string `json:"capabilityProfile"`
}

// TableName table name for datastore
func (m *Module) TableName() string {
	return tableNamePrefix + "module"
}

// ShortTableName is the compressed version of table name
func (m *Module) ShortTableName() string {
	return "mod"
}

// PrimaryKey primary key for datastore
func (m *Module) PrimaryKey() string {
	return m.ID
}

// Index set to the fields used to query
func (m *Module) Index() map[string]string {
	index := make(map[string]string)
	if m.Tenant != "" {
		index["tenant"] = m.Tenant
	}
	if m.ProjectID != "" {
		index["projectId"] = m.ProjectID
	}
	if m.Name != "" {
		index["name"] = m.Name
	}
	return index
}

// Environment is a named promotion slot of a project.
type Environment struct {
	BaseModel
	ID                        string `json:"id"`
	Tenant                    string `json:"tenant"`
	ProjectID                 string `json:"projectId"`
	Name                      string `json:"name"`
	RequiresPromotionApproval bool   `json:"requiresPromotionApproval,omitempty"`
	PromotionWebhookURL       string `json:"promotionWebhookUrl,omitempty"`
}

// TableName table name for datastore
func (e *Environment) TableName() string {
	return tableNamePrefix + "environment"
}

// ShortTableName is the compressed version of table name
func (e *Environment) ShortTableName() string {
	return "env"
}

// PrimaryKey primary key for datastore
func (e *Environment) PrimaryKey() string {
	return e.ID
}

// Index set to the fields used to query
func (e *Environment) Index() map[string]string {
	index := make(map[string]string)
	if e.Tenant != "" {
		index["tenant"] = e.Tenant
	}
	if e.ProjectID != "" {
		index["projectId"] = e.ProjectID
	}
	if e.Name != "" {
		index["name"] = e.Name
	}
	return index
}

// Workspace is the live development surface of one module.
type Workspace struct {
	BaseModel
	ID          string `json:"id"`
	Tenant      string `json:"tenant"`
	Module      string `json:"module"`
	ContainerID string `json:"containerId,omitempty"`
	PreviewURL  string `json:"previewUrl,omitempty"`
	Status      string `json:"status"`
}

// TableName table name for datastore
func (w *Workspace) TableName() string {
	return tableNamePrefix + "workspace"
}

// ShortTableName is the compressed version of table name
func (w *Workspace) ShortTableName() string {
	return "wsp"
}

// PrimaryKey primary key for datastore
func (w *Workspace) PrimaryKey() string {
	return w.ID
}

// Index set to the fields used to query
func (w *Workspace) Index() map[string]string {
	index := make(map[string]string)
	if w.Tenant != "" {
		index["tenant"] = w.Tenant
	}
	if w.Module != "" {
		index["module"] = w.Module
	}
	return index
}

// ChangeRecord tracks one unit of schema change work; patch ops hang off it.
type ChangeRecord struct {
	BaseModel
	ID        string `json:"id"`
	Tenant    string `json:"tenant"`
	ProjectID string `json:"projectId"`
	ModuleID  string `json:"moduleId,omitempty"`
	Name      string `json:"name"`
	Status    string `json:"status"`
}

// TableName table name for datastore
func (c *ChangeRecord) TableName() string {
	return tableNamePrefix + "change_record"
}

// ShortTableName is the compressed version of table name
func (c *ChangeRecord) ShortTableName() string {
	return "chg"
}

// PrimaryKey primary key for datastore
func (c *ChangeRecord) PrimaryKey() string {
	return c.ID
}

// Index set to the fields used to query
func (c *ChangeRecord) Index() map[string]string {
	index := make(map[string]string)
	if c.Tenant != "" {
		index["tenant"] = c.Tenant
	}
	if c.ProjectID != "" {
		index["projectId"] = c.ProjectID
	}
	if c.Name != "" {
		index["name"] = c.Name
	}
	return index
}
