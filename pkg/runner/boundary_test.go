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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModuleContext(t *testing.T, tctx TenantContext, profile string) ModuleExecutionContext {
	t.Helper()
	mctx, err := NewModuleExecutionContext(tctx, "checkout", "src/checkout", profile)
	require.NoError(t, err)
	return mctx
}

func TestValidateRequestAdmitsWellFormed(t *testing.T) {
	tctx := NewTenantContext("tenant-a", "alice")
	req := ExecutionRequest{
		TenantContext: tctx,
		ModuleContext: testModuleContext(t, tctx, ProfileCodeModuleDefault),
		Action:        ActionAgentAction,
		Capabilities:  []Capability{CapFSRead, CapCmdRun},
	}
	assert.Nil(t, ValidateRequest(req))
}

func TestValidateRequestMissingTenant(t *testing.T) {
	req := ExecutionRequest{
		TenantContext: TenantContext{Tenant: "   ", Source: SourceHeader},
	}
	err := ValidateRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeMissingTenantContext, err.Code)
}

func TestValidateRequestUnknownSource(t *testing.T) {
	req := ExecutionRequest{
		TenantContext: TenantContext{Tenant: "tenant-a", Source: "smuggled"},
	}
	err := ValidateRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeMissingTenantContext, err.Code)
}

func TestValidateRequestTenantMutation(t *testing.T) {
	outer := NewTenantContext("tenant-a", "alice")
	nested := NewTenantContext("tenant-b", "alice")
	req := ExecutionRequest{
		TenantContext: outer,
		ModuleContext: testModuleContext(t, nested, ProfileCodeModuleDefault),
		Action:        ActionWorkflowStep,
	}
	err := ValidateRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeTenantContextMutation, err.Code)
	assert.Contains(t, err.Message, "tenantId mismatch")
}

func TestValidateRequestCapabilityNotGranted(t *testing.T) {
	tctx := NewTenantContext("tenant-a", "alice")
	mctx := testModuleContext(t, tctx, ProfileReadOnly)
	req := ExecutionRequest{
		TenantContext: tctx,
		ModuleContext: mctx,
		Action:        ActionAgentAction,
		Capabilities:  []Capability{CapFSWrite},
	}
	err := ValidateRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeCapabilityNotGranted, err.Code)
	assert.Contains(t, err.Message, "fs:write")
	assert.Contains(t, err.Message, "fs:read")
}

func TestValidateModuleBoundaryPath(t *testing.T) {
	cases := []struct {
		name      string
		root      string
		candidate string
		escape    bool
	}{
		{"inside root", "src/components", "src/components/button.tsx", false},
		{"root itself", "src/components", "src/components", false},
		{"empty candidate is a no-op", "src/components", "", false},
		{"parent traversal", "src/components", "src/components/../../etc/passwd", true},
		{"absolute path", "src/components", "/etc/passwd", true},
		{"sibling lookalike", "src/components", "src/components-evil/button.tsx", true},
		{"outside root", "src/components", "src/other/button.tsx", true},
		{"dot segments staying inside", "src/components", "src/components/./button.tsx", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateModuleBoundaryPath("checkout", tc.root, tc.candidate)
			if tc.escape {
				require.Error(t, err)
				var berr *BoundaryError
				require.ErrorAs(t, err, &berr)
				assert.Equal(t, ErrCodeModuleBoundaryEscape, berr.Code)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveProfileReturnsFreshCopy(t *testing.T) {
	first, err := ResolveProfile(ProfileReadOnly)
	require.NoError(t, err)
	first[0] = CapFSWrite
	second, err := ResolveProfile(ProfileReadOnly)
	require.NoError(t, err)
	assert.Equal(t, CapFSRead, second[0])
}

func TestResolveProfileUnknown(t *testing.T) {
	_, err := ResolveProfile("NO_SUCH_PROFILE")
	assert.Error(t, err)
}

func TestSystemContextInterned(t *testing.T) {
	a := SystemContext("template registry sweep")
	b := SystemContext("template registry sweep")
	c := SystemContext("orphan collector")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.User, c.User)
	assert.Equal(t, SourceSystem, a.Source)
	assert.Empty(t, a.Tenant)
}
