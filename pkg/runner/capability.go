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

package runner

import (
	"fmt"
)

// Capability is a named permission token gating an execution action.
type Capability string

const (
	// CapFSRead read files inside the module root
	CapFSRead Capability = "fs:read"
	// CapFSWrite write files inside the module root
	CapFSWrite Capability = "fs:write"
	// CapCmdRun run commands inside the module workspace
	CapCmdRun Capability = "cmd:run"
	// CapGitDiff read the module git diff
	CapGitDiff Capability = "git:diff"
	// CapNetHTTP outbound http from workflow steps
	CapNetHTTP Capability = "net:http"
)

// Capability profile names. Profiles are compile-time constants; resolution
// always hands out a fresh copy so callers can not mutate the bundle.
const (
	ProfileCodeModuleDefault     = "CODE_MODULE_DEFAULT"
	ProfileWorkflowModuleDefault = "WORKFLOW_MODULE_DEFAULT"
	ProfileReadOnly              = "READ_ONLY"
	ProfileSystemPrivileged      = "SYSTEM_PRIVILEGED"
)

var profiles = map[string][]Capability{
	ProfileCodeModuleDefault:     {CapFSRead, CapFSWrite, CapCmdRun, CapGitDiff},
	ProfileWorkflowModuleDefault: {CapFSRead, CapNetHTTP},
	ProfileReadOnly:              {CapFSRead, CapGitDiff},
	ProfileSystemPrivileged:      {CapFSRead, CapFSWrite, CapCmdRun, CapGitDiff, CapNetHTTP},
}

// ResolveProfile resolve a profile name to its capability list.
func ResolveProfile(name string) ([]Capability, error) {
	bundle, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown capability profile %q", name)
	}
	caps := make([]Capability, len(bundle))
	copy(caps, bundle)
	return caps, nil
}

// CapabilityDeniedError reports a capability check failure together with the
// set that was actually granted, so callers can log an actionable message.
type CapabilityDeniedError struct {
	Capability Capability
	Granted    []Capability
}

func (e *CapabilityDeniedError) Error() string {
	return fmt.Sprintf("capability %s is not granted, granted set: %v", e.Capability, e.Granted)
}

// AssertCapability fail with a typed error when the module context lacks the capability.
func AssertCapability(mctx ModuleExecutionContext, cap Capability) error {
	if mctx.HasCapability(cap) {
		return nil
	}
	return &CapabilityDeniedError{Capability: cap, Granted: mctx.Capabilities}
}
