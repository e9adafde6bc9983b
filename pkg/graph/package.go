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

// Package graph holds the schema-as-package model and the pure functions the
// install engine is built on: canonical checksums, snapshots, diffs,
// projection, validation and topological ordering. Nothing in this package
// touches storage; the domain services wire it to the datastore.
package graph

import (
	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// GraphPackage is one declarative unit of schema: record types plus the
// bindings that hang off them. Packages are not persisted as-is; install audit
// rows carry the full package JSON.
type GraphPackage struct {
	PackageKey      string               `json:"packageKey"`
	Version         string               `json:"version"`
	DependsOn       []PackageDependency  `json:"dependsOn,omitempty"`
	RecordTypes     []RecordTypeSpec     `json:"recordTypes,omitempty"`
	SLAPolicies     []SLAPolicySpec      `json:"slaPolicies,omitempty"`
	AssignmentRules []AssignmentRuleSpec `json:"assignmentRules,omitempty"`
	Workflows       []WorkflowSpec       `json:"workflows,omitempty"`
}

// PackageDependency names another package that must be applied first.
type PackageDependency struct {
	PackageKey string `json:"packageKey"`
}

// RecordTypeSpec declares one record type, optionally inheriting from a base.
type RecordTypeSpec struct {
	Key      string      `json:"key"`
	Name     string      `json:"name,omitempty"`
	BaseType string      `json:"baseType,omitempty"`
	Fields   []FieldSpec `json:"fields,omitempty"`
}

// FieldSpec declares one field of a record type schema.
type FieldSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// SLAPolicySpec binds a response-time budget to a record type.
type SLAPolicySpec struct {
	RecordTypeKey   string `json:"recordTypeKey"`
	DurationMinutes int    `json:"durationMinutes"`
}

// AssignmentRuleSpec binds an assignment strategy to a record type.
type AssignmentRuleSpec struct {
	RecordTypeKey string                 `json:"recordTypeKey"`
	StrategyType  string                 `json:"strategyType"`
	Config        map[string]interface{} `json:"config,omitempty"`
}

// WorkflowSpec declares a workflow shipped with the package. Steps apply in
// declared ordering.
type WorkflowSpec struct {
	Name        string             `json:"name"`
	TriggerType string             `json:"triggerType,omitempty"`
	TriggerSpec string             `json:"triggerSpec,omitempty"`
	Steps       []WorkflowStepSpec `json:"steps,omitempty"`
}

// WorkflowStepSpec declares one step of a packaged workflow.
type WorkflowStepSpec struct {
	Name       string                 `json:"name"`
	StepType   string                 `json:"stepType"`
	Config     map[string]interface{} `json:"config,omitempty"`
	OrderIndex int                    `json:"orderIndex"`
}

// Validate checks the package shape before the install pipeline runs: the key
// and a parseable semver version are mandatory, and record type keys must be
// unique within the package.
func (p *GraphPackage) Validate() error {
	if p.PackageKey == "" {
		return errors.New("package key is required")
	}
	if _, err := semver.StrictNewVersion(p.Version); err != nil {
		return errors.Wrapf(err, "package %s version %q", p.PackageKey, p.Version)
	}
	seen := map[string]bool{}
	for _, rt := range p.RecordTypes {
		if rt.Key == "" {
			return errors.Errorf("package %s declares a record type without a key", p.PackageKey)
		}
		if seen[rt.Key] {
			return errors.Errorf("package %s declares record type %s twice", p.PackageKey, rt.Key)
		}
		seen[rt.Key] = true
	}
	return nil
}

// SemVersion parses the package version. Callers must run Validate first.
func (p *GraphPackage) SemVersion() (*semver.Version, error) {
	return semver.StrictNewVersion(p.Version)
}
