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

// Package version holds the build identity stamped in by the release
// pipeline via -ldflags.
package version

import "github.com/Masterminds/semver/v3"

// GitRevision is the commit of repo
var GitRevision = "UNKNOWN"

// LoomVersion is the version of the server and CLI.
var LoomVersion = "UNKNOWN"

// IsOfficialLoomVersion checks whether the provided version string follows a
// release version pattern.
func IsOfficialLoomVersion(versionStr string) bool {
	_, err := semver.NewVersion(versionStr)
	return err == nil
}
