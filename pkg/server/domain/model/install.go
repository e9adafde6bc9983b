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

import (
	"fmt"
	"time"
)

func init() {
	RegisterModel(&GraphPackageInstall{}, &EnvironmentPackageInstall{})
}

// GraphPackageInstall append-only audit row of one package install. The row
// carries the full package JSON so ownership scans and promotions can replay
// it without the original upload.
type GraphPackageInstall struct {
	BaseModel
	ID              string      `json:"id"`
	Tenant          string      `json:"tenant"`
	ProjectID       string      `json:"projectId"`
	PackageKey      string      `json:"packageKey"`
	Version         string      `json:"version"`
	Checksum        string      `json:"checksum"`
	Diff            *JSONStruct `json:"diff,omitempty"`
	PackageContents *JSONStruct `json:"packageContents,omitempty"`
	InstalledBy     string      `json:"installedBy,omitempty"`
	InstalledAt     time.Time   `json:"installedAt"`
}

// TableName table name for datastore
func (g *GraphPackageInstall) TableName() string {
	return tableNamePrefix + "graph_package_install"
}

// ShortTableName is the compressed version of table name
func (g *GraphPackageInstall) ShortTableName() string {
	return "gpi"
}

// PrimaryKey primary key for datastore
func (g *GraphPackageInstall) PrimaryKey() string {
	return g.ID
}

// Index set to the fields used to query
func (g *GraphPackageInstall) Index() map[string]string {
	index := make(map[string]string)
	if g.Tenant != "" {
		index["tenant"] = g.Tenant
	}
	if g.ProjectID != "" {
		index["projectId"] = g.ProjectID
	}
	if g.PackageKey != "" {
		index["packageKey"] = g.PackageKey
	}
	if g.Checksum != "" {
		index["checksum"] = g.Checksum
	}
	return index
}

// EnvironmentPackageInstall tracks which package version an environment
// currently carries; promotion execution reads and writes these rows.
type EnvironmentPackageInstall struct {
	BaseModel
	Tenant        string `json:"tenant"`
	ProjectID     string `json:"projectId"`
	EnvironmentID string `json:"environmentId"`
	PackageKey    string `json:"packageKey"`
	Version       string `json:"version"`
	Checksum      string `json:"checksum"`
}

// TableName table name for datastore
func (e *EnvironmentPackageInstall) TableName() string {
	return tableNamePrefix + "environment_package_install"
}

// ShortTableName is the compressed version of table name
func (e *EnvironmentPackageInstall) ShortTableName() string {
	return "epi"
}

// PrimaryKey primary key for datastore
func (e *EnvironmentPackageInstall) PrimaryKey() string {
	return fmt.Sprintf("%s-%s", e.EnvironmentID, e.PackageKey)
}

// Index set to the fields used to query
func (e *EnvironmentPackageInstall) Index() map[string]string {
	index := make(map[string]string)
	if e.Tenant != "" {
		index["tenant"] = e.Tenant
	}
	if e.ProjectID != "" {
		index["projectId"] = e.ProjectID
	}
	if e.EnvironmentID != "" {
		index["environmentId"] = e.EnvironmentID
	}
	if e.PackageKey != "" {
		index["packageKey"] = e.PackageKey
	}
	return index
}
