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
	"time"
)

// EdgeKind the relation an edge encodes.
type EdgeKind string

const (
	// EdgeInheritance derived type -> base type
	EdgeInheritance EdgeKind = "inheritance"
	// EdgeReference a reference field -> the referenced type
	EdgeReference EdgeKind = "reference"
)

// Snapshot is a point-in-time view of one tenant's graph: record type nodes,
// the edges between them and the bindings hanging off them.
type Snapshot struct {
	TenantID string           `json:"tenantId"`
	BuiltAt  time.Time        `json:"builtAt"`
	Nodes    []RecordTypeNode `json:"nodes"`
	Edges    []Edge           `json:"edges"`
	Bindings Bindings         `json:"bindings"`
}

// RecordTypeNode is one record type as it exists in the graph.
type RecordTypeNode struct {
	ID        string      `json:"id,omitempty"`
	Key       string      `json:"key"`
	Name      string      `json:"name,omitempty"`
	ProjectID string      `json:"projectId,omitempty"`
	BaseType  string      `json:"baseType,omitempty"`
	Fields    []FieldSpec `json:"fields,omitempty"`
}

// Edge connects two record types by key.
type Edge struct {
	Kind EdgeKind `json:"kind"`
	From string   `json:"from"`
	To   string   `json:"to"`
}

// Bindings are the non-schema attachments of the graph.
type Bindings struct {
	Workflows      []WorkflowBinding     `json:"workflows,omitempty"`
	SLAs           []SLABinding          `json:"slas,omitempty"`
	Assignments    []AssignmentBinding   `json:"assignments,omitempty"`
	ChangePolicies []ChangePolicyBinding `json:"changePolicies,omitempty"`
}

// WorkflowBinding names a workflow attached to a record type.
type WorkflowBinding struct {
	RecordTypeKey string `json:"recordTypeKey,omitempty"`
	Name          string `json:"name"`
}

// SLABinding is an SLA budget attached to a record type.
type SLABinding struct {
	RecordTypeKey   string `json:"recordTypeKey"`
	DurationMinutes int    `json:"durationMinutes"`
}

// AssignmentBinding is an assignment strategy attached to a record type.
type AssignmentBinding struct {
	RecordTypeKey string `json:"recordTypeKey"`
	StrategyType  string `json:"strategyType"`
}

// ChangePolicyBinding is a change-control policy attached to a record type.
type ChangePolicyBinding struct {
	RecordTypeKey string `json:"recordTypeKey"`
	Policy        string `json:"policy"`
}

// Node returns the node with the given key, if present.
func (s *Snapshot) Node(key string) (RecordTypeNode, bool) {
	for _, n := range s.Nodes {
		if n.Key == key {
			return n, true
		}
	}
	return RecordTypeNode{}, false
}

// NodeKeys returns the set of node keys.
func (s *Snapshot) NodeKeys() map[string]bool {
	keys := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		keys[n.Key] = true
	}
	return keys
}

// FilterProject narrows the snapshot to one project: in-project nodes, edges
// touching at least one in-project node, and bindings for in-project types
// only.
func (s *Snapshot) FilterProject(projectID string) Snapshot {
	out := Snapshot{TenantID: s.TenantID, BuiltAt: s.BuiltAt}
	inProject := map[string]bool{}
	for _, n := range s.Nodes {
		if n.ProjectID == projectID {
			out.Nodes = append(out.Nodes, n)
			inProject[n.Key] = true
		}
	}
	for _, e := range s.Edges {
		if inProject[e.From] || inProject[e.To] {
			out.Edges = append(out.Edges, e)
		}
	}
	for _, b := range s.Bindings.Workflows {
		if b.RecordTypeKey == "" || inProject[b.RecordTypeKey] {
			out.Bindings.Workflows = append(out.Bindings.Workflows, b)
		}
	}
	for _, b := range s.Bindings.SLAs {
		if inProject[b.RecordTypeKey] {
			out.Bindings.SLAs = append(out.Bindings.SLAs, b)
		}
	}
	for _, b := range s.Bindings.Assignments {
		if inProject[b.RecordTypeKey] {
			out.Bindings.Assignments = append(out.Bindings.Assignments, b)
		}
	}
	for _, b := range s.Bindings.ChangePolicies {
		if inProject[b.RecordTypeKey] {
			out.Bindings.ChangePolicies = append(out.Bindings.ChangePolicies, b)
		}
	}
	return out
}
