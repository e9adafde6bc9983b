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

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticketPackage() GraphPackage {
	return GraphPackage{
		PackageKey: "support-core",
		Version:    "1.2.0",
		DependsOn:  []PackageDependency{{PackageKey: "platform-base"}},
		RecordTypes: []RecordTypeSpec{
			{
				Key:  "ticket",
				Name: "Ticket",
				Fields: []FieldSpec{
					{Name: "subject", Type: "string", Required: true},
					{Name: "priority", Type: "string"},
				},
			},
			{
				Key:      "incident",
				BaseType: "ticket",
				Fields: []FieldSpec{
					{Name: "severity", Type: "number", Required: true},
				},
			},
		},
		SLAPolicies: []SLAPolicySpec{
			{RecordTypeKey: "incident", DurationMinutes: 60},
		},
		AssignmentRules: []AssignmentRuleSpec{
			{RecordTypeKey: "ticket", StrategyType: "round_robin"},
		},
		Workflows: []WorkflowSpec{
			{
				Name:        "incident-escalation",
				TriggerType: "record_created",
				Steps: []WorkflowStepSpec{
					{Name: "assign", StepType: "assignment", OrderIndex: 0},
					{Name: "notify", StepType: "notification", OrderIndex: 1},
				},
			},
		},
	}
}

func TestChecksumIgnoresDeclarationOrder(t *testing.T) {
	pkg := ticketPackage()
	shuffled := ticketPackage()
	shuffled.RecordTypes[0], shuffled.RecordTypes[1] = shuffled.RecordTypes[1], shuffled.RecordTypes[0]
	shuffled.RecordTypes[1].Fields[0], shuffled.RecordTypes[1].Fields[1] = shuffled.RecordTypes[1].Fields[1], shuffled.RecordTypes[1].Fields[0]
	shuffled.Workflows[0].Steps[0], shuffled.Workflows[0].Steps[1] = shuffled.Workflows[0].Steps[1], shuffled.Workflows[0].Steps[0]

	first, err := Checksum(pkg)
	require.NoError(t, err)
	second, err := Checksum(shuffled)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestChecksumChangesWithContent(t *testing.T) {
	pkg := ticketPackage()
	base, err := Checksum(pkg)
	require.NoError(t, err)

	pkg.RecordTypes[0].Fields = append(pkg.RecordTypes[0].Fields, FieldSpec{Name: "channel", Type: "string"})
	changed, err := Checksum(pkg)
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)
}

func TestChecksumDoesNotMutateInput(t *testing.T) {
	pkg := ticketPackage()
	_, err := Checksum(pkg)
	require.NoError(t, err)
	assert.Equal(t, "ticket", pkg.RecordTypes[0].Key)
	assert.Equal(t, "subject", pkg.RecordTypes[0].Fields[0].Name)
}

func TestPackageValidate(t *testing.T) {
	pkg := ticketPackage()
	assert.NoError(t, pkg.Validate())

	bad := ticketPackage()
	bad.Version = "not-semver"
	assert.Error(t, bad.Validate())

	dup := ticketPackage()
	dup.RecordTypes = append(dup.RecordTypes, RecordTypeSpec{Key: "ticket"})
	assert.Error(t, dup.Validate())
}
