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
	// ErrProjectNotExist project is not exist
	ErrProjectNotExist = NewBcode(404, 20001, "project is not exist")

	// ErrProjectExist project is exist
	ErrProjectExist = NewBcode(400, 20002, "project name already exists")

	// ErrModuleNotExist module is not exist
	ErrModuleNotExist = NewBcode(404, 20003, "module is not exist")

	// ErrEnvironmentNotExist environment is not exist
	ErrEnvironmentNotExist = NewBcode(404, 20004, "environment is not exist")

	// ErrWorkspaceNotExist workspace is not exist
	ErrWorkspaceNotExist = NewBcode(404, 20005, "workspace is not exist")

	// ErrChangeNotExist change record is not exist
	ErrChangeNotExist = NewBcode(404, 20006, "change record is not exist")
)
