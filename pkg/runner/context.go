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
	"strings"
	"sync"
)

// ContextSource records where a tenant context was minted. It is carried into
// telemetry so every execution can be traced back to its ingress.
type ContextSource string

const (
	// SourceHeader context built from request headers at API ingress
	SourceHeader ContextSource = "header"
	// SourceSystem context minted by a platform-internal job
	SourceSystem ContextSource = "system"
	// SourceInternal context built by one control-plane component calling another
	SourceInternal ContextSource = "internal"
)

// PermittedSources the sources the boundary guard admits.
var PermittedSources = []ContextSource{SourceHeader, SourceSystem, SourceInternal}

// TenantContext is the immutable identity a request acts under. It is created
// once at ingress and passed by value; nothing downstream may rewrite it.
type TenantContext struct {
	Tenant string        `json:"tenant"`
	User   string        `json:"user,omitempty"`
	Agent  string        `json:"agent,omitempty"`
	Source ContextSource `json:"source"`
}

// IsZero reports whether the context carries no identity at all.
func (t TenantContext) IsZero() bool {
	return strings.TrimSpace(t.Tenant) == "" && t.Source == ""
}

// Equal compares the identity fields the boundary guard cares about.
func (t TenantContext) Equal(other TenantContext) bool {
	return t.Tenant == other.Tenant && t.Source == other.Source
}

// NewTenantContext build a header-sourced tenant context.
func NewTenantContext(tenant, user string) TenantContext {
	return TenantContext{Tenant: tenant, User: user, Source: SourceHeader}
}

// SystemReason marks a tenant-less context as platform-internal and explains why.
type SystemReason string

var (
	systemContexts   = map[SystemReason]TenantContext{}
	systemContextsMu sync.Mutex
)

// SystemContext returns the interned privileged context for the given reason.
// System contexts carry no tenant; they exist for platform sweeps such as
// template registry reads and orphan collection. The result is cached per
// reason for the life of the process.
func SystemContext(reason SystemReason) TenantContext {
	systemContextsMu.Lock()
	defer systemContextsMu.Unlock()
	if ctx, ok := systemContexts[reason]; ok {
		return ctx
	}
	ctx := TenantContext{
		User:   "system:" + string(reason),
		Source: SourceSystem,
	}
	systemContexts[reason] = ctx
	return ctx
}

// ModuleExecutionContext scopes an execution to one module of one tenant with
// a resolved capability set. The nested TenantContext must byte-equal the
// request's outer context; the boundary guard enforces that.
type ModuleExecutionContext struct {
	TenantContext     TenantContext `json:"tenantContext"`
	Module            string        `json:"module"`
	ModuleRootPath    string        `json:"moduleRootPath"`
	CapabilityProfile string        `json:"capabilityProfile"`
	Capabilities      []Capability  `json:"capabilities"`
}

// NewModuleExecutionContext resolves the profile into a concrete capability
// list in one shot; this is the only construction point.
func NewModuleExecutionContext(tctx TenantContext, module, rootPath, profile string) (ModuleExecutionContext, error) {
	caps, err := ResolveProfile(profile)
	if err != nil {
		return ModuleExecutionContext{}, err
	}
	return ModuleExecutionContext{
		TenantContext:     tctx,
		Module:            module,
		ModuleRootPath:    rootPath,
		CapabilityProfile: profile,
		Capabilities:      caps,
	}, nil
}

// HasCapability reports whether the module context was granted the capability.
func (m ModuleExecutionContext) HasCapability(cap Capability) bool {
	for _, granted := range m.Capabilities {
		if granted == cap {
			return true
		}
	}
	return false
}
