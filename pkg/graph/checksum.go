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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// Checksum computes a deterministic SHA-256 hex digest of the package.
// The package is canonicalized first so that declaration order of record
// types, fields, dependencies and bindings cannot change the digest; two
// packages with the same content always hash the same.
func Checksum(pkg GraphPackage) (string, error) {
	canonical := canonicalize(pkg)
	payload, err := json.Marshal(canonical)
	if err != nil {
		return "", errors.Wrap(err, "canonicalize package")
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize returns a deep copy with every list sorted by its natural key.
// encoding/json already emits map keys in sorted order, so sorting the slices
// is the only work left.
func canonicalize(pkg GraphPackage) GraphPackage {
	out := GraphPackage{
		PackageKey: pkg.PackageKey,
		Version:    pkg.Version,
	}

	out.DependsOn = append([]PackageDependency(nil), pkg.DependsOn...)
	sort.Slice(out.DependsOn, func(i, j int) bool {
		return out.DependsOn[i].PackageKey < out.DependsOn[j].PackageKey
	})

	out.RecordTypes = make([]RecordTypeSpec, 0, len(pkg.RecordTypes))
	for _, rt := range pkg.RecordTypes {
		copied := rt
		copied.Fields = append([]FieldSpec(nil), rt.Fields...)
		sort.Slice(copied.Fields, func(i, j int) bool {
			return copied.Fields[i].Name < copied.Fields[j].Name
		})
		out.RecordTypes = append(out.RecordTypes, copied)
	}
	sort.Slice(out.RecordTypes, func(i, j int) bool {
		return out.RecordTypes[i].Key < out.RecordTypes[j].Key
	})

	out.SLAPolicies = append([]SLAPolicySpec(nil), pkg.SLAPolicies...)
	sort.Slice(out.SLAPolicies, func(i, j int) bool {
		return out.SLAPolicies[i].RecordTypeKey < out.SLAPolicies[j].RecordTypeKey
	})

	out.AssignmentRules = append([]AssignmentRuleSpec(nil), pkg.AssignmentRules...)
	sort.Slice(out.AssignmentRules, func(i, j int) bool {
		left, right := out.AssignmentRules[i], out.AssignmentRules[j]
		if left.RecordTypeKey != right.RecordTypeKey {
			return left.RecordTypeKey < right.RecordTypeKey
		}
		return left.StrategyType < right.StrategyType
	})

	out.Workflows = make([]WorkflowSpec, 0, len(pkg.Workflows))
	for _, wf := range pkg.Workflows {
		copied := wf
		copied.Steps = append([]WorkflowStepSpec(nil), wf.Steps...)
		sort.Slice(copied.Steps, func(i, j int) bool {
			return copied.Steps[i].OrderIndex < copied.Steps[j].OrderIndex
		})
		out.Workflows = append(out.Workflows, copied)
	}
	sort.Slice(out.Workflows, func(i, j int) bool {
		return out.Workflows[i].Name < out.Workflows[j].Name
	})

	return out
}
