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

func baseSnapshot() Snapshot {
	return Snapshot{
		TenantID: "tenant-a",
		Nodes: []RecordTypeNode{
			{Key: "ticket", Name: "Ticket", ProjectID: "proj-1", Fields: []FieldSpec{
				{Name: "subject", Type: "string", Required: true},
			}},
			{Key: "asset", Name: "Asset", ProjectID: "proj-2", Fields: []FieldSpec{
				{Name: "serial", Type: "string"},
			}},
		},
		Edges: []Edge{},
		Bindings: Bindings{
			SLAs:      []SLABinding{{RecordTypeKey: "ticket", DurationMinutes: 120}},
			Workflows: []WorkflowBinding{{Name: "ticket-triage", RecordTypeKey: "ticket"}},
		},
	}
}

func TestProjectPackageIsIdempotent(t *testing.T) {
	pkg := ticketPackage()
	current := baseSnapshot()

	once := ProjectPackage(current, pkg, "proj-1", "tenant-a")
	twice := ProjectPackage(once, pkg, "proj-1", "tenant-a")
	assert.Equal(t, once, twice)

	incident, ok := twice.Node("incident")
	require.True(t, ok)
	assert.Equal(t, "ticket", incident.BaseType)
	assert.Equal(t, "proj-1", incident.ProjectID)
	assert.Contains(t, twice.Edges, Edge{Kind: EdgeInheritance, From: "incident", To: "ticket"})
}

func TestProjectPackageMergesFieldsWithoutDropping(t *testing.T) {
	current := baseSnapshot()
	pkg := GraphPackage{
		PackageKey: "support-core",
		Version:    "1.3.0",
		RecordTypes: []RecordTypeSpec{
			{Key: "ticket", Fields: []FieldSpec{
				{Name: "priority", Type: "string"},
			}},
		},
	}
	projected := ProjectPackage(current, pkg, "proj-1", "tenant-a")
	ticket, ok := projected.Node("ticket")
	require.True(t, ok)
	names := map[string]bool{}
	for _, f := range ticket.Fields {
		names[f.Name] = true
	}
	assert.True(t, names["subject"])
	assert.True(t, names["priority"])
}

func TestValidateSnapshotOrphanBaseType(t *testing.T) {
	s := baseSnapshot()
	s.Nodes = append(s.Nodes, RecordTypeNode{Key: "incident", ProjectID: "proj-1", BaseType: "ghost"})
	findings := ValidateSnapshot(s)
	require.Len(t, findings, 1)
	assert.Equal(t, CodeOrphanBaseType, findings[0].Code)
	assert.Contains(t, findings[0].Message, "ghost")
}

func TestValidateSnapshotCrossProjectBaseType(t *testing.T) {
	s := baseSnapshot()
	s.Nodes = append(s.Nodes, RecordTypeNode{Key: "incident", ProjectID: "proj-1", BaseType: "asset"})
	findings := ValidateSnapshot(s)
	require.Len(t, findings, 1)
	assert.Equal(t, CodeCrossProjectBaseType, findings[0].Code)
}

func TestValidateSnapshotRequiredFieldWeakened(t *testing.T) {
	s := baseSnapshot()
	s.Nodes = append(s.Nodes, RecordTypeNode{
		Key: "incident", ProjectID: "proj-1", BaseType: "ticket",
		Fields: []FieldSpec{{Name: "subject", Type: "string", Required: false}},
	})
	findings := ValidateSnapshot(s)
	require.Len(t, findings, 1)
	assert.Equal(t, CodeRequiredFieldWeakened, findings[0].Code)
	assert.Contains(t, findings[0].Message, "Cannot weaken required baseType field")
}

func TestDiffSnapshots(t *testing.T) {
	before := baseSnapshot()
	after := ProjectPackage(before, ticketPackage(), "proj-1", "tenant-a")
	after.Nodes = append(after.Nodes[:1], after.Nodes[2:]...) // drop asset

	diff := DiffSnapshots(before, after)
	assert.Equal(t, []string{"incident"}, diff.AddedRecordTypes)
	assert.Equal(t, []string{"asset"}, diff.RemovedRecordTypes)
	require.Len(t, diff.ModifiedRecordTypes, 1)
	assert.Equal(t, "ticket", diff.ModifiedRecordTypes[0].RecordTypeKey)
	assert.Equal(t, []string{"priority"}, diff.ModifiedRecordTypes[0].FieldAdds)
	assert.Equal(t, []string{"incident"}, diff.BindingChanges.SLAsAdded)
	assert.Equal(t, []string{"ticket:round_robin"}, diff.BindingChanges.AssignmentsAdded)
	assert.Equal(t, []string{"incident-escalation"}, diff.BindingChanges.WorkflowsAdded)
	assert.False(t, diff.Empty())
}

func TestDiffSnapshotsEmpty(t *testing.T) {
	s := baseSnapshot()
	diff := DiffSnapshots(s, s)
	assert.True(t, diff.Empty())
}

func TestFilterProject(t *testing.T) {
	s := baseSnapshot()
	s.Edges = append(s.Edges, Edge{Kind: EdgeReference, From: "ticket", To: "asset"})
	filtered := s.FilterProject("proj-1")
	require.Len(t, filtered.Nodes, 1)
	assert.Equal(t, "ticket", filtered.Nodes[0].Key)
	// Edges touching at least one in-project node survive.
	assert.Len(t, filtered.Edges, 1)
	assert.Len(t, filtered.Bindings.SLAs, 1)
	assert.Len(t, filtered.Bindings.Workflows, 1)

	other := s.FilterProject("proj-2")
	assert.Len(t, other.Nodes, 1)
	assert.Empty(t, other.Bindings.SLAs)
}

func TestSortRecordTypesBaseFirst(t *testing.T) {
	specs := []RecordTypeSpec{
		{Key: "incident", BaseType: "ticket"},
		{Key: "ticket"},
		{Key: "problem", BaseType: "incident"},
	}
	ordered, err := SortRecordTypes(specs)
	require.NoError(t, err)
	index := map[string]int{}
	for i, rt := range ordered {
		index[rt.Key] = i
	}
	assert.Less(t, index["ticket"], index["incident"])
	assert.Less(t, index["incident"], index["problem"])
}

func TestSortRecordTypesExternalBaseIgnored(t *testing.T) {
	specs := []RecordTypeSpec{
		{Key: "incident", BaseType: "ticket"}, // ticket installed previously
	}
	ordered, err := SortRecordTypes(specs)
	require.NoError(t, err)
	require.Len(t, ordered, 1)
}

func TestSortRecordTypesCycle(t *testing.T) {
	specs := []RecordTypeSpec{
		{Key: "a", BaseType: "b"},
		{Key: "b", BaseType: "a"},
	}
	_, err := SortRecordTypes(specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestSortPackagesByDependsOn(t *testing.T) {
	pkgs := []GraphPackage{
		{PackageKey: "support-core", DependsOn: []PackageDependency{{PackageKey: "platform-base"}}},
		{PackageKey: "platform-base"},
		{PackageKey: "support-extras", DependsOn: []PackageDependency{{PackageKey: "support-core"}, {PackageKey: "not-in-batch"}}},
	}
	ordered, err := SortPackages(pkgs)
	require.NoError(t, err)
	index := map[string]int{}
	for i, p := range ordered {
		index[p.PackageKey] = i
	}
	assert.Less(t, index["platform-base"], index["support-core"])
	assert.Less(t, index["support-core"], index["support-extras"])
}
