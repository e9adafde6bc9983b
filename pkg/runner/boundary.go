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
	"path"
	"strings"
)

// BoundaryError is a validation failure at the control-plane ↔ runner
// boundary. Adapters convert it into a failure ExecutionResult; it never
// crosses the adapter surface as an error.
type BoundaryError struct {
	Code    string
	Message string
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func boundaryErrorf(code, format string, args ...interface{}) *BoundaryError {
	return &BoundaryError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidateRequest admits or rejects an execution request. Checks run in a
// fixed order: tenant context, module context, context equality, capability
// subset. The first failure wins.
func ValidateRequest(req ExecutionRequest) *BoundaryError {
	if strings.TrimSpace(req.TenantContext.Tenant) == "" {
		return boundaryErrorf(ErrCodeMissingTenantContext, "tenant context is missing or blank")
	}
	if !sourcePermitted(req.TenantContext.Source) {
		return boundaryErrorf(ErrCodeMissingTenantContext, "tenant context source %q is not permitted", req.TenantContext.Source)
	}
	mctx := req.ModuleContext
	if mctx.Module == "" || mctx.ModuleRootPath == "" || mctx.CapabilityProfile == "" {
		return boundaryErrorf(ErrCodeMissingModuleContext, "module execution context is incomplete")
	}
	if mctx.TenantContext.Tenant != req.TenantContext.Tenant {
		return boundaryErrorf(ErrCodeTenantContextMutation, "tenantId mismatch: outer %q, module %q", req.TenantContext.Tenant, mctx.TenantContext.Tenant)
	}
	if mctx.TenantContext.Source != req.TenantContext.Source {
		return boundaryErrorf(ErrCodeTenantContextMutation, "source mismatch: outer %q, module %q", req.TenantContext.Source, mctx.TenantContext.Source)
	}
	for _, requested := range req.Capabilities {
		if !mctx.HasCapability(requested) {
			return boundaryErrorf(ErrCodeCapabilityNotGranted, "capability %s is not granted to module %s, granted: %v", requested, mctx.Module, mctx.Capabilities)
		}
	}
	return nil
}

func sourcePermitted(source ContextSource) bool {
	for _, permitted := range PermittedSources {
		if source == permitted {
			return true
		}
	}
	return false
}

// ValidateModuleBoundaryPath rejects any candidate path that lexically
// escapes the module root. The comparison is on normalized POSIX paths; the
// root is treated as a directory boundary, so "src/components" does not
// contain "src/components-evil".
func ValidateModuleBoundaryPath(module, root, candidate string) error {
	if candidate == "" {
		return nil
	}
	if path.IsAbs(candidate) || strings.HasPrefix(candidate, "/") {
		return boundaryErrorf(ErrCodeModuleBoundaryEscape, "module %s: absolute path %q is outside the module root", module, candidate)
	}
	for _, segment := range strings.Split(candidate, "/") {
		if segment == ".." {
			return boundaryErrorf(ErrCodeModuleBoundaryEscape, "module %s: path %q contains a parent traversal", module, candidate)
		}
	}
	cleanRoot := path.Clean(strings.ReplaceAll(root, "\\", "/"))
	cleanCandidate := path.Clean(strings.ReplaceAll(candidate, "\\", "/"))
	if cleanCandidate == cleanRoot || strings.HasPrefix(cleanCandidate, cleanRoot+"/") {
		return nil
	}
	return boundaryErrorf(ErrCodeModuleBoundaryEscape, "module %s: path %q resolves outside the module root %q", module, candidate, root)
}
