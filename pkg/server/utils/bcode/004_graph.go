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

package bcode

var (
	// ErrRecordTypeNotExist record type is not exist
	ErrRecordTypeNotExist = NewBcode(404, 40001, "record type is not exist")

	// ErrPackageInvalid the graph package failed validation
	ErrPackageInvalid = NewBcode(400, 40002, "graph package is invalid")

	// ErrPackageInstallNotExist no install row for the package
	ErrPackageInstallNotExist = NewBcode(404, 40003, "graph package install is not exist")

	// ErrPackageDependencyCycle dependsOn graph is cyclic
	ErrPackageDependencyCycle = NewBcode(400, 40004, "graph package dependencies contain a cycle")
)
