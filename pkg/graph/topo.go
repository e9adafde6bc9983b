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
	"sort"

	"github.com/pkg/errors"
)

// SortRecordTypes orders record types so every type's baseType precedes it.
// Base types outside the package (already installed in the graph) are
// ignored as dependencies. Ties break on key so the order is deterministic.
func SortRecordTypes(specs []RecordTypeSpec) ([]RecordTypeSpec, error) {
	byKey := make(map[string]RecordTypeSpec, len(specs))
	for _, rt := range specs {
		byKey[rt.Key] = rt
	}
	deps := func(rt RecordTypeSpec) []string {
		if rt.BaseType == "" {
			return nil
		}
		if _, inPackage := byKey[rt.BaseType]; !inPackage {
			return nil
		}
		return []string{rt.BaseType}
	}
	keys := make([]string, 0, len(specs))
	for _, rt := range specs {
		keys = append(keys, rt.Key)
	}
	ordered, err := topoSort(keys, func(key string) []string { return deps(byKey[key]) })
	if err != nil {
		return nil, errors.Wrap(err, "order record types")
	}
	out := make([]RecordTypeSpec, 0, len(ordered))
	for _, key := range ordered {
		out = append(out, byKey[key])
	}
	return out, nil
}

// SortPackages orders packages so every dependency precedes its dependents.
// Dependencies on packages outside the batch are ignored.
func SortPackages(pkgs []GraphPackage) ([]GraphPackage, error) {
	byKey := make(map[string]GraphPackage, len(pkgs))
	for _, p := range pkgs {
		byKey[p.PackageKey] = p
	}
	keys := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		keys = append(keys, p.PackageKey)
	}
	ordered, err := topoSort(keys, func(key string) []string {
		var deps []string
		for _, d := range byKey[key].DependsOn {
			if _, inBatch := byKey[d.PackageKey]; inBatch {
				deps = append(deps, d.PackageKey)
			}
		}
		return deps
	})
	if err != nil {
		return nil, errors.Wrap(err, "order packages")
	}
	out := make([]GraphPackage, 0, len(ordered))
	for _, key := range ordered {
		out = append(out, byKey[key])
	}
	return out, nil
}

// topoSort is Kahn's algorithm with a sorted ready set for determinism.
func topoSort(keys []string, deps func(string) []string) ([]string, error) {
	indegree := make(map[string]int, len(keys))
	dependents := map[string][]string{}
	for _, key := range keys {
		indegree[key] = 0
	}
	for _, key := range keys {
		for _, dep := range deps(key) {
			indegree[key]++
			dependents[dep] = append(dependents[dep], key)
		}
	}
	var ready []string
	for _, key := range keys {
		if indegree[key] == 0 {
			ready = append(ready, key)
		}
	}
	sort.Strings(ready)

	var ordered []string
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)
		var unlocked []string
		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
	}
	if len(ordered) != len(keys) {
		var stuck []string
		for key, degree := range indegree {
			if degree > 0 {
				stuck = append(stuck, key)
			}
		}
		sort.Strings(stuck)
		return nil, errors.Errorf("dependency cycle involving %v", stuck)
	}
	return ordered, nil
}
