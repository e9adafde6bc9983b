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
	"fmt"
	"sort"
)

// Diff is the structural delta between two snapshots.
type Diff struct {
	AddedRecordTypes    []string                 `json:"addedRecordTypes,omitempty"`
	RemovedRecordTypes  []string                 `json:"removedRecordTypes,omitempty"`
	ModifiedRecordTypes []RecordTypeModification `json:"modifiedRecordTypes,omitempty"`
	BindingChanges      BindingChanges           `json:"bindingChanges"`
}

// RecordTypeModification lists the field-level changes of one record type.
type RecordTypeModification struct {
	RecordTypeKey      string   `json:"recordTypeKey"`
	FieldAdds          []string `json:"fieldAdds,omitempty"`
	FieldRemovals      []string `json:"fieldRemovals,omitempty"`
	FieldModifications []string `json:"fieldModifications,omitempty"`
}

// BindingChanges lists binding-level deltas. Assignments are encoded as
// "recordTypeKey:strategyType".
type BindingChanges struct {
	SLAsAdded        []string `json:"slasAdded,omitempty"`
	SLAsRemoved      []string `json:"slasRemoved,omitempty"`
	AssignmentsAdded []string `json:"assignmentsAdded,omitempty"`
	WorkflowsAdded   []string `json:"workflowsAdded,omitempty"`
	WorkflowsRemoved []string `json:"workflowsRemoved,omitempty"`
}

// Empty reports whether the diff carries no changes at all.
func (d Diff) Empty() bool {
	return len(d.AddedRecordTypes) == 0 &&
		len(d.RemovedRecordTypes) == 0 &&
		len(d.ModifiedRecordTypes) == 0 &&
		len(d.BindingChanges.SLAsAdded) == 0 &&
		len(d.BindingChanges.SLAsRemoved) == 0 &&
		len(d.BindingChanges.AssignmentsAdded) == 0 &&
		len(d.BindingChanges.WorkflowsAdded) == 0 &&
		len(d.BindingChanges.WorkflowsRemoved) == 0
}

// DiffSnapshots computes the delta from a to b. All result lists are sorted
// so diffs are stable for audit rows and previews.
func DiffSnapshots(a, b Snapshot) Diff {
	var diff Diff

	aNodes := nodesByKey(a)
	bNodes := nodesByKey(b)
	for key, node := range bNodes {
		prior, exists := aNodes[key]
		if !exists {
			diff.AddedRecordTypes = append(diff.AddedRecordTypes, key)
			continue
		}
		if mod, changed := diffFields(key, prior, node); changed {
			diff.ModifiedRecordTypes = append(diff.ModifiedRecordTypes, mod)
		}
	}
	for key := range aNodes {
		if _, exists := bNodes[key]; !exists {
			diff.RemovedRecordTypes = append(diff.RemovedRecordTypes, key)
		}
	}
	sort.Strings(diff.AddedRecordTypes)
	sort.Strings(diff.RemovedRecordTypes)
	sort.Slice(diff.ModifiedRecordTypes, func(i, j int) bool {
		return diff.ModifiedRecordTypes[i].RecordTypeKey < diff.ModifiedRecordTypes[j].RecordTypeKey
	})

	diff.BindingChanges = diffBindings(a.Bindings, b.Bindings)
	return diff
}

func nodesByKey(s Snapshot) map[string]RecordTypeNode {
	out := make(map[string]RecordTypeNode, len(s.Nodes))
	for _, n := range s.Nodes {
		out[n.Key] = n
	}
	return out
}

func diffFields(key string, prior, current RecordTypeNode) (RecordTypeModification, bool) {
	mod := RecordTypeModification{RecordTypeKey: key}
	priorFields := map[string]FieldSpec{}
	for _, f := range prior.Fields {
		priorFields[f.Name] = f
	}
	currentFields := map[string]FieldSpec{}
	for _, f := range current.Fields {
		currentFields[f.Name] = f
	}
	for name, field := range currentFields {
		before, exists := priorFields[name]
		if !exists {
			mod.FieldAdds = append(mod.FieldAdds, name)
			continue
		}
		if before.Type != field.Type || before.Required != field.Required {
			mod.FieldModifications = append(mod.FieldModifications, name)
		}
	}
	for name := range priorFields {
		if _, exists := currentFields[name]; !exists {
			mod.FieldRemovals = append(mod.FieldRemovals, name)
		}
	}
	sort.Strings(mod.FieldAdds)
	sort.Strings(mod.FieldRemovals)
	sort.Strings(mod.FieldModifications)
	changed := len(mod.FieldAdds) > 0 || len(mod.FieldRemovals) > 0 || len(mod.FieldModifications) > 0
	return mod, changed
}

func diffBindings(a, b Bindings) BindingChanges {
	var changes BindingChanges

	aSLAs := map[string]bool{}
	for _, s := range a.SLAs {
		aSLAs[s.RecordTypeKey] = true
	}
	bSLAs := map[string]bool{}
	for _, s := range b.SLAs {
		bSLAs[s.RecordTypeKey] = true
	}
	for key := range bSLAs {
		if !aSLAs[key] {
			changes.SLAsAdded = append(changes.SLAsAdded, key)
		}
	}
	for key := range aSLAs {
		if !bSLAs[key] {
			changes.SLAsRemoved = append(changes.SLAsRemoved, key)
		}
	}

	aAssignments := map[string]bool{}
	for _, assignment := range a.Assignments {
		aAssignments[assignmentKey(assignment)] = true
	}
	for _, assignment := range b.Assignments {
		if !aAssignments[assignmentKey(assignment)] {
			changes.AssignmentsAdded = append(changes.AssignmentsAdded, assignmentKey(assignment))
		}
	}

	aWorkflows := map[string]bool{}
	for _, wf := range a.Workflows {
		aWorkflows[wf.Name] = true
	}
	bWorkflows := map[string]bool{}
	for _, wf := range b.Workflows {
		bWorkflows[wf.Name] = true
	}
	for name := range bWorkflows {
		if !aWorkflows[name] {
			changes.WorkflowsAdded = append(changes.WorkflowsAdded, name)
		}
	}
	for name := range aWorkflows {
		if !bWorkflows[name] {
			changes.WorkflowsRemoved = append(changes.WorkflowsRemoved, name)
		}
	}

	sort.Strings(changes.SLAsAdded)
	sort.Strings(changes.SLAsRemoved)
	sort.Strings(changes.AssignmentsAdded)
	sort.Strings(changes.WorkflowsAdded)
	sort.Strings(changes.WorkflowsRemoved)
	return changes
}

func assignmentKey(b AssignmentBinding) string {
	return fmt.Sprintf("%s:%s", b.RecordTypeKey, b.StrategyType)
}
