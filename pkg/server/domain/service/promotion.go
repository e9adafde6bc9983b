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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/loom-dev/loom/pkg/graph"
	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/repository"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

const (
	promotionWebhookTimeout = 5 * time.Second

	webhookEventApprovalRequired = "promotion.approval_required"
	webhookEventExecuted         = "promotion.executed"
)

// PromotionService moves installed package sets between environments through
// a draft -> previewed -> approved -> executed state machine.
type PromotionService interface {
	CreatePromotion(ctx context.Context, tctx runner.TenantContext, req apisv1.CreatePromotionRequest) (*model.PromotionIntent, error)
	GetPromotion(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error)
	PreviewPromotion(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error)
	ApprovePromotion(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error)
	RejectPromotion(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error)
	ExecutePromotion(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error)
}

type promotionServiceImpl struct {
	Store         datastore.DataStore `inject:"datastore"`
	Install       InstallService      `inject:""`
	Telemetry     TelemetryService    `inject:""`
	WebhookClient *http.Client
}

// NewPromotionService new promotion service
func NewPromotionService() PromotionService {
	return &promotionServiceImpl{
		WebhookClient: &http.Client{Timeout: promotionWebhookTimeout},
	}
}

// CreatePromotion open a draft promotion between two environments of a
// project.
func (p *promotionServiceImpl) CreatePromotion(ctx context.Context, tctx runner.TenantContext, req apisv1.CreatePromotionRequest) (*model.PromotionIntent, error) {
	if req.FromEnvironmentID == req.ToEnvironmentID {
		return nil, bcode.ErrPromotionSameEnvironment
	}
	if _, err := repository.GetEnvironment(ctx, p.Store, tctx.Tenant, req.FromEnvironmentID); err != nil {
		return nil, err
	}
	if _, err := repository.GetEnvironment(ctx, p.Store, tctx.Tenant, req.ToEnvironmentID); err != nil {
		return nil, err
	}
	intent := &model.PromotionIntent{
		ID:                uuid.NewString(),
		Tenant:            tctx.Tenant,
		ProjectID:         req.ProjectID,
		FromEnvironmentID: req.FromEnvironmentID,
		ToEnvironmentID:   req.ToEnvironmentID,
		Status:            model.PromotionStatusDraft,
		CreatedBy:         tctx.User,
	}
	if err := p.Store.Add(ctx, intent); err != nil {
		return nil, err
	}
	return intent, nil
}

// GetPromotion load one promotion intent.
func (p *promotionServiceImpl) GetPromotion(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error) {
	return repository.GetPromotionIntent(ctx, p.Store, tctx.Tenant, intentID)
}

// PreviewPromotion compute the environment delta and store it on the intent.
// Preview is repeatable: a previewed intent may be previewed again. When the
// target environment requires promotion approval and carries a webhook URL,
// the reviewer is notified best-effort; a failed delivery is recorded but
// never blocks the transition.
func (p *promotionServiceImpl) PreviewPromotion(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error) {
	intent, err := repository.GetPromotionIntent(ctx, p.Store, tctx.Tenant, intentID)
	if err != nil {
		return nil, err
	}
	if !model.PromotionTransitionAllowed(intent.Status, model.PromotionStatusPreviewed) {
		return nil, bcode.ErrPromotionInvalidTransition
	}

	delta, err := p.environmentDelta(ctx, tctx.Tenant, intent.FromEnvironmentID, intent.ToEnvironmentID)
	if err != nil {
		return nil, err
	}
	diff, err := model.NewJSONStructByStruct(delta)
	if err != nil {
		return nil, err
	}
	intent.Diff = diff
	intent.Status = model.PromotionStatusPreviewed

	target, err := repository.GetEnvironment(ctx, p.Store, tctx.Tenant, intent.ToEnvironmentID)
	if err != nil {
		return nil, err
	}
	if target.RequiresPromotionApproval && target.PromotionWebhookURL != "" {
		intent.NotificationStatus = p.notify(ctx, target.PromotionWebhookURL, webhookEventApprovalRequired, intent, map[string]interface{}{
			"diff": delta,
		})
	}
	if err := p.Store.Put(ctx, intent); err != nil {
		return nil, err
	}
	p.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: tctx.Tenant, EventType: model.EventPromotionPreviewed, EntityID: intent.ID,
	})
	promotionCounter.WithLabelValues(model.PromotionStatusPreviewed).Inc()
	return intent, nil
}

// ApprovePromotion approve a previewed intent. Approval is recorded even when
// the target environment does not require it.
func (p *promotionServiceImpl) ApprovePromotion(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error) {
	intent, err := repository.GetPromotionIntent(ctx, p.Store, tctx.Tenant, intentID)
	if err != nil {
		return nil, err
	}
	if !model.PromotionTransitionAllowed(intent.Status, model.PromotionStatusApproved) {
		if intent.Status == model.PromotionStatusDraft {
			return nil, bcode.ErrPromotionNotPreviewed
		}
		return nil, bcode.ErrPromotionInvalidTransition
	}
	now := time.Now()
	intent.Status = model.PromotionStatusApproved
	intent.ApprovedBy = tctx.User
	intent.ApprovedAt = &now
	if err := p.Store.Put(ctx, intent); err != nil {
		return nil, err
	}
	p.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: tctx.Tenant, EventType: model.EventPromotionApproved, EntityID: intent.ID, Status: tctx.User,
	})
	promotionCounter.WithLabelValues(model.PromotionStatusApproved).Inc()
	return intent, nil
}

// RejectPromotion reject from any non-terminal status.
func (p *promotionServiceImpl) RejectPromotion(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error) {
	intent, err := repository.GetPromotionIntent(ctx, p.Store, tctx.Tenant, intentID)
	if err != nil {
		return nil, err
	}
	if !model.PromotionTransitionAllowed(intent.Status, model.PromotionStatusRejected) {
		return nil, bcode.ErrPromotionInvalidTransition
	}
	intent.Status = model.PromotionStatusRejected
	if err := p.Store.Put(ctx, intent); err != nil {
		return nil, err
	}
	p.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: tctx.Tenant, EventType: model.EventPromotionRejected, EntityID: intent.ID,
	})
	promotionCounter.WithLabelValues(model.PromotionStatusRejected).Inc()
	return intent, nil
}

// ExecutePromotion replay the source environment's package set into the
// target. Packages whose checksum already matches the target are skipped.
func (p *promotionServiceImpl) ExecutePromotion(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error) {
	intent, err := repository.GetPromotionIntent(ctx, p.Store, tctx.Tenant, intentID)
	if err != nil {
		return nil, err
	}
	if !model.PromotionTransitionAllowed(intent.Status, model.PromotionStatusExecuted) {
		return nil, bcode.ErrPromotionInvalidTransition
	}
	target, err := repository.GetEnvironment(ctx, p.Store, tctx.Tenant, intent.ToEnvironmentID)
	if err != nil {
		return nil, err
	}
	if target.RequiresPromotionApproval && intent.ApprovedBy == "" {
		return nil, bcode.ErrPromotionInvalidTransition
	}

	sourceInstalls, err := repository.ListEnvironmentInstalls(ctx, p.Store, tctx.Tenant, intent.FromEnvironmentID)
	if err != nil {
		return nil, err
	}
	targetInstalls, err := repository.ListEnvironmentInstalls(ctx, p.Store, tctx.Tenant, intent.ToEnvironmentID)
	if err != nil {
		return nil, err
	}
	targetChecksums := map[string]string{}
	for _, install := range targetInstalls {
		targetChecksums[install.PackageKey] = install.Checksum
	}

	var promoted, skipped []string
	for _, source := range sourceInstalls {
		if targetChecksums[source.PackageKey] == source.Checksum {
			skipped = append(skipped, source.PackageKey)
			continue
		}
		if err := p.promotePackage(ctx, tctx, intent, source); err != nil {
			return nil, err
		}
		promoted = append(promoted, source.PackageKey)
	}

	result, err := model.NewJSONStructByStruct(map[string]interface{}{
		"promoted": promoted,
		"skipped":  skipped,
	})
	if err != nil {
		return nil, err
	}
	intent.Result = result
	intent.Status = model.PromotionStatusExecuted
	if target.RequiresPromotionApproval && target.PromotionWebhookURL != "" {
		intent.NotificationStatus = p.notify(ctx, target.PromotionWebhookURL, webhookEventExecuted, intent, map[string]interface{}{
			"promoted": len(promoted),
			"skipped":  len(skipped),
		})
	}
	if err := p.Store.Put(ctx, intent); err != nil {
		return nil, err
	}
	p.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: tctx.Tenant, EventType: model.EventPromotionExecuted, EntityID: intent.ID,
		AffectedRecords: int64(len(promoted)),
	})
	promotionCounter.WithLabelValues(model.PromotionStatusExecuted).Inc()
	log.Logger.Infof("promotion %s executed: %d promoted, %d skipped", intent.ID, len(promoted), len(skipped))
	return intent, nil
}

// promotePackage replay one package's latest install into the project and
// upsert the target environment row.
func (p *promotionServiceImpl) promotePackage(ctx context.Context, tctx runner.TenantContext, intent *model.PromotionIntent, source *model.EnvironmentPackageInstall) error {
	latest, err := repository.LatestInstall(ctx, p.Store, tctx.Tenant, intent.ProjectID, source.PackageKey)
	if err != nil {
		return err
	}
	if latest != nil && latest.PackageContents != nil {
		var pkg graph.GraphPackage
		if err := latest.PackageContents.Decode(&pkg); err != nil {
			return err
		}
		result, err := p.Install.InstallGraphPackage(ctx, tctx, intent.ProjectID, pkg, apisv1.InstallOptions{
			AllowDowngrade: true,
			EnvironmentID:  intent.ToEnvironmentID,
		})
		if err != nil {
			return err
		}
		if !result.Success {
			return bcode.ErrPackageInvalid
		}
	}

	row := &model.EnvironmentPackageInstall{
		Tenant:        tctx.Tenant,
		ProjectID:     intent.ProjectID,
		EnvironmentID: intent.ToEnvironmentID,
		PackageKey:    source.PackageKey,
		Version:       source.Version,
		Checksum:      source.Checksum,
	}
	if err := p.Store.Add(ctx, row); err != nil {
		if err != datastore.ErrRecordExist {
			return err
		}
		existing := &model.EnvironmentPackageInstall{
			EnvironmentID: intent.ToEnvironmentID,
			PackageKey:    source.PackageKey,
		}
		if err := p.Store.Get(ctx, existing); err != nil {
			return err
		}
		existing.Version = source.Version
		existing.Checksum = source.Checksum
		return p.Store.Put(ctx, existing)
	}
	return nil
}

// environmentDelta which packages the target is missing or carrying at a
// different content hash. hashstructure short-circuits identical sets.
func (p *promotionServiceImpl) environmentDelta(ctx context.Context, tenant, fromEnvID, toEnvID string) (*apisv1.EnvironmentDelta, error) {
	sourceInstalls, err := repository.ListEnvironmentInstalls(ctx, p.Store, tenant, fromEnvID)
	if err != nil {
		return nil, err
	}
	targetInstalls, err := repository.ListEnvironmentInstalls(ctx, p.Store, tenant, toEnvID)
	if err != nil {
		return nil, err
	}

	sourceSet := map[string]string{}
	for _, install := range sourceInstalls {
		sourceSet[install.PackageKey] = install.Checksum
	}
	targetSet := map[string]string{}
	for _, install := range targetInstalls {
		targetSet[install.PackageKey] = install.Checksum
	}

	delta := &apisv1.EnvironmentDelta{}
	sourceHash, err := hashstructure.Hash(sourceSet, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, err
	}
	targetHash, err := hashstructure.Hash(targetSet, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, err
	}
	if sourceHash == targetHash {
		return delta, nil
	}

	for key, checksum := range sourceSet {
		targetChecksum, present := targetSet[key]
		if !present {
			delta.MissingInTarget = append(delta.MissingInTarget, key)
		} else if targetChecksum != checksum {
			delta.ChecksumMismatch = append(delta.ChecksumMismatch, key)
		}
	}
	for key := range targetSet {
		if _, present := sourceSet[key]; !present {
			delta.ExtraInTarget = append(delta.ExtraInTarget, key)
		}
	}
	delta.Sort()
	return delta, nil
}

// notify POST the event to the environment webhook. Failures only mark the
// notification status.
func (p *promotionServiceImpl) notify(ctx context.Context, url, event string, intent *model.PromotionIntent, extra map[string]interface{}) string {
	payload := map[string]interface{}{
		"event":           event,
		"intentId":        intent.ID,
		"projectId":       intent.ProjectID,
		"fromEnvironment": intent.FromEnvironmentID,
		"toEnvironment":   intent.ToEnvironmentID,
		"createdBy":       intent.CreatedBy,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	for key, value := range extra {
		payload[key] = value
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return model.NotificationStatusFailed
	}
	reqCtx, cancel := context.WithTimeout(ctx, promotionWebhookTimeout)
	defer cancel()
	request, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.NotificationStatusFailed
	}
	request.Header.Set("Content-Type", "application/json")
	response, err := p.WebhookClient.Do(request)
	if err != nil {
		log.Logger.Warnf("promotion webhook %s unreachable: %s", url, err.Error())
		return model.NotificationStatusFailed
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode >= 300 {
		log.Logger.Warnf("promotion webhook %s answered %d", url, response.StatusCode)
		return model.NotificationStatusFailed
	}
	return model.NotificationStatusSent
}
