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

// ProjectPackage applies a package onto a snapshot without touching storage,
// producing the graph as it would look after install. The projection is
// idempotent: applying the same package to its own projection changes
// nothing.
func ProjectPackage(current Snapshot, pkg GraphPackage, projectID, tenantID string) Snapshot {
	projected := Snapshot{
		TenantID: tenantID,
		BuiltAt:  current.BuiltAt,
		Nodes:    append([]RecordTypeNode(nil), current.Nodes...),
		Edges:    append([]Edge(nil), current.Edges...),
		Bindings: Bindings{
			Workflows:      append([]WorkflowBinding(nil), current.Bindings.Workflows...),
			SLAs:           append([]SLABinding(nil), current.Bindings.SLAs...),
			Assignments:    append([]AssignmentBinding(nil), current.Bindings.Assignments...),
			ChangePolicies: append([]ChangePolicyBinding(nil), current.Bindings.ChangePolicies...),
		},
	}

	for _, rt := range pkg.RecordTypes {
		projected.applyRecordType(rt, projectID)
	}
	for _, sla := range pkg.SLAPolicies {
		projected.applySLA(sla)
	}
	for _, rule := range pkg.AssignmentRules {
		projected.applyAssignment(rule)
	}
	for _, wf := range pkg.Workflows {
		projected.applyWorkflow(wf)
	}
	return projected
}

func (s *Snapshot) applyRecordType(rt RecordTypeSpec, projectID string) {
	idx := -1
	for i, n := range s.Nodes {
		if n.Key == rt.Key {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.Nodes = append(s.Nodes, RecordTypeNode{
			Key:       rt.Key,
			Name:      rt.Name,
			ProjectID: projectID,
			BaseType:  rt.BaseType,
			Fields:    append([]FieldSpec(nil), rt.Fields...),
		})
		if rt.BaseType != "" {
			s.addEdge(Edge{Kind: EdgeInheritance, From: rt.Key, To: rt.BaseType})
		}
		return
	}

	// Existing type: merge field additions, never drop fields.
	node := s.Nodes[idx]
	existing := map[string]bool{}
	for _, f := range node.Fields {
		existing[f.Name] = true
	}
	for _, f := range rt.Fields {
		if !existing[f.Name] {
			node.Fields = append(node.Fields, f)
		}
	}
	if node.BaseType == "" && rt.BaseType != "" {
		node.BaseType = rt.BaseType
		s.addEdge(Edge{Kind: EdgeInheritance, From: rt.Key, To: rt.BaseType})
	}
	s.Nodes[idx] = node
}

func (s *Snapshot) addEdge(edge Edge) {
	for _, e := range s.Edges {
		if e == edge {
			return
		}
	}
	s.Edges = append(s.Edges, edge)
}

func (s *Snapshot) applySLA(sla SLAPolicySpec) {
	for i, b := range s.Bindings.SLAs {
		if b.RecordTypeKey == sla.RecordTypeKey {
			s.Bindings.SLAs[i].DurationMinutes = sla.DurationMinutes
			return
		}
	}
	s.Bindings.SLAs = append(s.Bindings.SLAs, SLABinding{
		RecordTypeKey:   sla.RecordTypeKey,
		DurationMinutes: sla.DurationMinutes,
	})
}

func (s *Snapshot) applyAssignment(rule AssignmentRuleSpec) {
	for i, b := range s.Bindings.Assignments {
		if b.RecordTypeKey == rule.RecordTypeKey {
			s.Bindings.Assignments[i].StrategyType = rule.StrategyType
			return
		}
	}
	s.Bindings.Assignments = append(s.Bindings.Assignments, AssignmentBinding{
		RecordTypeKey: rule.RecordTypeKey,
		StrategyType:  rule.StrategyType,
	})
}

func (s *Snapshot) applyWorkflow(wf WorkflowSpec) {
	for _, b := range s.Bindings.Workflows {
		if b.Name == wf.Name {
			return
		}
	}
	s.Bindings.Workflows = append(s.Bindings.Workflows, WorkflowBinding{Name: wf.Name})
}
