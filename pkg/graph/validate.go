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

import "fmt"

// Validation error codes. Wire-visible and stable.
const (
	CodeOrphanBaseType           = "GRAPH_ORPHAN_BASE_TYPE"
	CodeCrossProjectBaseType     = "GRAPH_CROSS_PROJECT_BASE_TYPE"
	CodeRequiredFieldWeakened    = "GRAPH_REQUIRED_FIELD_WEAKENED"
	CodeOwnershipConflict        = "PACKAGE_OWNERSHIP_CONFLICT"
	CodeBindingOwnershipConflict = "PACKAGE_BINDING_OWNERSHIP_CONFLICT"
)

// ValidationError is one typed finding against a projected graph.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidateSnapshot checks the structural invariants of a (projected)
// snapshot: every declared baseType must resolve to a node, inheritance may
// not cross project boundaries, and a derived type may not weaken a field the
// base marks required. All findings are returned, not just the first.
func ValidateSnapshot(s Snapshot) []ValidationError {
	var findings []ValidationError
	nodes := map[string]RecordTypeNode{}
	for _, n := range s.Nodes {
		nodes[n.Key] = n
	}

	for _, n := range s.Nodes {
		if n.BaseType == "" {
			continue
		}
		base, exists := nodes[n.BaseType]
		if !exists {
			findings = append(findings, ValidationError{
				Code:    CodeOrphanBaseType,
				Message: fmt.Sprintf("record type %s declares baseType %s which does not exist in the graph", n.Key, n.BaseType),
			})
			continue
		}
		if base.ProjectID != "" && n.ProjectID != "" && base.ProjectID != n.ProjectID {
			findings = append(findings, ValidationError{
				Code:    CodeCrossProjectBaseType,
				Message: fmt.Sprintf("record type %s (project %s) inherits from %s owned by project %s", n.Key, n.ProjectID, base.Key, base.ProjectID),
			})
		}
		findings = append(findings, validateBaseFields(n, base)...)
	}
	return findings
}

func validateBaseFields(derived, base RecordTypeNode) []ValidationError {
	var findings []ValidationError
	required := map[string]bool{}
	for _, f := range base.Fields {
		if f.Required {
			required[f.Name] = true
		}
	}
	for _, f := range derived.Fields {
		if required[f.Name] && !f.Required {
			findings = append(findings, ValidationError{
				Code:    CodeRequiredFieldWeakened,
				Message: fmt.Sprintf("Cannot weaken required baseType field: %s.%s is required by base %s", derived.Key, f.Name, base.Key),
			})
		}
	}
	return findings
}
