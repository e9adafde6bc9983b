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

package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore/memory"
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
)

type promotionFixture struct {
	promotion *promotionServiceImpl
	install   *installServiceImpl
	project   *model.Project
	envs      map[string]*model.Environment
	projects  *projectServiceImpl
}

func newPromotionFixture(t *testing.T) *promotionFixture {
	ds := memory.New()
	telemetry := NewTelemetryService()
	g := &graphServiceImpl{Store: ds, Telemetry: telemetry}
	install := &installServiceImpl{Store: ds, Graph: g, Telemetry: telemetry}
	promotion := &promotionServiceImpl{
		Store: ds, Install: install, Telemetry: telemetry,
		WebhookClient: &http.Client{Timeout: time.Second},
	}
	projects := &projectServiceImpl{Store: ds}

	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	project, err := projects.CreateProject(ctx, tctx, apisv1.CreateProjectRequest{Name: "helpdesk"})
	require.NoError(t, err)
	envList, err := projects.ListEnvironments(ctx, tctx, project.ID)
	require.NoError(t, err)
	envs := map[string]*model.Environment{}
	for _, env := range envList {
		envs[env.Name] = env
	}
	require.Contains(t, envs, "dev")
	require.Contains(t, envs, "test")
	require.Contains(t, envs, "prod")

	return &promotionFixture{promotion: promotion, install: install, project: project, envs: envs, projects: projects}
}

// installIntoEnv installs the package into the project attributed to the
// named environment.
func (f *promotionFixture) installIntoEnv(t *testing.T, envName string, version string) string {
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")
	result, err := f.install.InstallGraphPackage(ctx, tctx, f.project.ID, ticketPackage(version), apisv1.InstallOptions{
		AllowDowngrade: true,
		EnvironmentID:  f.envs[envName].ID,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	return result.Checksum
}

// requireApproval marks the named environment as approval-gated and wires the
// webhook URL, the precondition for promotion notifications.
func (f *promotionFixture) requireApproval(t *testing.T, envName, webhookURL string) {
	yes := true
	_, err := f.projects.UpdateEnvironment(context.Background(), runner.NewTenantContext("t-acme", "tester"), f.envs[envName].ID, apisv1.UpdateEnvironmentRequest{
		RequiresPromotionApproval: &yes,
		PromotionWebhookURL:       &webhookURL,
	})
	require.NoError(t, err)
}

func TestCreatePromotionRejectsSameEnvironment(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "tester")

	_, err := f.promotion.CreatePromotion(ctx, tctx, apisv1.CreatePromotionRequest{
		ProjectID:         f.project.ID,
		FromEnvironmentID: f.envs["dev"].ID,
		ToEnvironmentID:   f.envs["dev"].ID,
	})
	assert.Equal(t, bcode.ErrPromotionSameEnvironment, err)

	_, err = f.promotion.CreatePromotion(ctx, tctx, apisv1.CreatePromotionRequest{
		ProjectID:         f.project.ID,
		FromEnvironmentID: f.envs["dev"].ID,
		ToEnvironmentID:   "env-missing",
	})
	assert.Equal(t, bcode.ErrEnvironmentNotExist, err)
}

func TestPromotionStateMachine(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "lead")
	f.installIntoEnv(t, "dev", "1.0.0")

	intent, err := f.promotion.CreatePromotion(ctx, tctx, apisv1.CreatePromotionRequest{
		ProjectID:         f.project.ID,
		FromEnvironmentID: f.envs["dev"].ID,
		ToEnvironmentID:   f.envs["test"].ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PromotionStatusDraft, intent.Status)
	assert.Equal(t, "lead", intent.CreatedBy)

	// approval and execution both need a preview first
	_, err = f.promotion.ApprovePromotion(ctx, tctx, intent.ID)
	assert.Equal(t, bcode.ErrPromotionNotPreviewed, err)
	_, err = f.promotion.ExecutePromotion(ctx, tctx, intent.ID)
	assert.Equal(t, bcode.ErrPromotionInvalidTransition, err)

	intent, err = f.promotion.PreviewPromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionStatusPreviewed, intent.Status)
	require.NotNil(t, intent.Diff)
	missing, _ := (*intent.Diff)["missingInTarget"].([]interface{})
	require.Len(t, missing, 1)
	assert.Equal(t, "pkg-ticketing", missing[0])

	// preview is repeatable
	_, err = f.promotion.PreviewPromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)

	// executing a previewed but unapproved intent is still invalid
	_, err = f.promotion.ExecutePromotion(ctx, tctx, intent.ID)
	assert.Equal(t, bcode.ErrPromotionInvalidTransition, err)

	intent, err = f.promotion.ApprovePromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionStatusApproved, intent.Status)
	assert.Equal(t, "lead", intent.ApprovedBy)
	require.NotNil(t, intent.ApprovedAt)

	intent, err = f.promotion.ExecutePromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionStatusExecuted, intent.Status)
	require.NotNil(t, intent.Result)
	promoted, _ := (*intent.Result)["promoted"].([]interface{})
	require.Len(t, promoted, 1)
	assert.Equal(t, "pkg-ticketing", promoted[0])

	// executed is terminal
	_, err = f.promotion.RejectPromotion(ctx, tctx, intent.ID)
	assert.Equal(t, bcode.ErrPromotionInvalidTransition, err)
	_, err = f.promotion.ApprovePromotion(ctx, tctx, intent.ID)
	assert.Equal(t, bcode.ErrPromotionInvalidTransition, err)

	// the target environment now pins the promoted package
	row := &model.EnvironmentPackageInstall{
		EnvironmentID: f.envs["test"].ID,
		PackageKey:    "pkg-ticketing",
	}
	require.NoError(t, f.promotion.Store.Get(ctx, row))
	assert.Equal(t, "1.0.0", row.Version)
}

func TestExecutePromotionSkipsMatchingChecksums(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "lead")

	checksum := f.installIntoEnv(t, "dev", "1.0.0")
	// target already carries the identical contents
	require.NoError(t, f.promotion.Store.Add(ctx, &model.EnvironmentPackageInstall{
		Tenant:        "t-acme",
		ProjectID:     f.project.ID,
		EnvironmentID: f.envs["test"].ID,
		PackageKey:    "pkg-ticketing",
		Version:       "1.0.0",
		Checksum:      checksum,
	}))

	intent, err := f.promotion.CreatePromotion(ctx, tctx, apisv1.CreatePromotionRequest{
		ProjectID:         f.project.ID,
		FromEnvironmentID: f.envs["dev"].ID,
		ToEnvironmentID:   f.envs["test"].ID,
	})
	require.NoError(t, err)
	intent, err = f.promotion.PreviewPromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	assert.Empty(t, (*intent.Diff)["missingInTarget"])

	_, err = f.promotion.ApprovePromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	intent, err = f.promotion.ExecutePromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)

	skipped, _ := (*intent.Result)["skipped"].([]interface{})
	require.Len(t, skipped, 1)
	assert.Equal(t, "pkg-ticketing", skipped[0])
	assert.Empty(t, (*intent.Result)["promoted"])
}

func TestPreviewPromotionNotifiesWebhook(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "lead")
	f.installIntoEnv(t, "dev", "1.0.0")

	payloads := make(chan map[string]interface{}, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		payloads <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()
	f.requireApproval(t, "test", hook.URL)

	intent, err := f.promotion.CreatePromotion(ctx, tctx, apisv1.CreatePromotionRequest{
		ProjectID:         f.project.ID,
		FromEnvironmentID: f.envs["dev"].ID,
		ToEnvironmentID:   f.envs["test"].ID,
	})
	require.NoError(t, err)
	intent, err = f.promotion.PreviewPromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusSent, intent.NotificationStatus)

	received := <-payloads
	assert.Equal(t, "promotion.approval_required", received["event"])
	assert.Equal(t, intent.ID, received["intentId"])
	assert.Equal(t, f.project.ID, received["projectId"])
	assert.Equal(t, f.envs["dev"].ID, received["fromEnvironment"])
	assert.Equal(t, f.envs["test"].ID, received["toEnvironment"])
	assert.Equal(t, "lead", received["createdBy"])
	assert.NotEmpty(t, received["timestamp"])
	diff, _ := received["diff"].(map[string]interface{})
	require.NotNil(t, diff)
	assert.NotEmpty(t, diff["missingInTarget"])
}

func TestPreviewPromotionSkipsWebhookWithoutApprovalRequirement(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "lead")
	f.installIntoEnv(t, "dev", "1.0.0")

	calls := make(chan struct{}, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- struct{}{}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	// URL configured but the environment does not gate on approval
	url := hook.URL
	_, err := f.projects.UpdateEnvironment(ctx, tctx, f.envs["test"].ID, apisv1.UpdateEnvironmentRequest{
		PromotionWebhookURL: &url,
	})
	require.NoError(t, err)

	intent, err := f.promotion.CreatePromotion(ctx, tctx, apisv1.CreatePromotionRequest{
		ProjectID:         f.project.ID,
		FromEnvironmentID: f.envs["dev"].ID,
		ToEnvironmentID:   f.envs["test"].ID,
	})
	require.NoError(t, err)
	intent, err = f.promotion.PreviewPromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionStatusPreviewed, intent.Status)
	assert.Empty(t, intent.NotificationStatus)
	assert.Len(t, calls, 0)
}

func TestExecutePromotionNotifiesWebhook(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "lead")
	f.installIntoEnv(t, "dev", "1.0.0")

	payloads := make(chan map[string]interface{}, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		payloads <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()
	f.requireApproval(t, "test", hook.URL)

	intent, err := f.promotion.CreatePromotion(ctx, tctx, apisv1.CreatePromotionRequest{
		ProjectID:         f.project.ID,
		FromEnvironmentID: f.envs["dev"].ID,
		ToEnvironmentID:   f.envs["test"].ID,
	})
	require.NoError(t, err)
	_, err = f.promotion.PreviewPromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	<-payloads // approval_required
	_, err = f.promotion.ApprovePromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	intent, err = f.promotion.ExecutePromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionStatusExecuted, intent.Status)
	assert.Equal(t, model.NotificationStatusSent, intent.NotificationStatus)

	received := <-payloads
	assert.Equal(t, "promotion.executed", received["event"])
	assert.Equal(t, intent.ID, received["intentId"])
	assert.Equal(t, float64(1), received["promoted"])
	assert.Equal(t, float64(0), received["skipped"])
	assert.NotEmpty(t, received["timestamp"])
}

func TestPreviewPromotionSurvivesUnreachableWebhook(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "lead")
	f.installIntoEnv(t, "dev", "1.0.0")

	f.requireApproval(t, "test", "http://127.0.0.1:1/promotion-hook")

	intent, err := f.promotion.CreatePromotion(ctx, tctx, apisv1.CreatePromotionRequest{
		ProjectID:         f.project.ID,
		FromEnvironmentID: f.envs["dev"].ID,
		ToEnvironmentID:   f.envs["test"].ID,
	})
	require.NoError(t, err)

	intent, err = f.promotion.PreviewPromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionStatusPreviewed, intent.Status)
	assert.Equal(t, model.NotificationStatusFailed, intent.NotificationStatus)
}

func TestRejectPromotionFromAnyNonTerminalState(t *testing.T) {
	f := newPromotionFixture(t)
	ctx := context.Background()
	tctx := runner.NewTenantContext("t-acme", "lead")

	intent, err := f.promotion.CreatePromotion(ctx, tctx, apisv1.CreatePromotionRequest{
		ProjectID:         f.project.ID,
		FromEnvironmentID: f.envs["dev"].ID,
		ToEnvironmentID:   f.envs["prod"].ID,
	})
	require.NoError(t, err)

	intent, err = f.promotion.RejectPromotion(ctx, tctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionStatusRejected, intent.Status)

	// rejected is terminal
	_, err = f.promotion.PreviewPromotion(ctx, tctx, intent.ID)
	assert.Equal(t, bcode.ErrPromotionInvalidTransition, err)
}
