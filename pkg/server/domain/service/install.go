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
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
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

// InstallService applies graph packages to a project. Installs are
// idempotent on checksum, version-gated, ownership-checked and validated
// against the projected graph before any row is written.
type InstallService interface {
	InstallGraphPackage(ctx context.Context, tctx runner.TenantContext, projectID string, pkg graph.GraphPackage, opts apisv1.InstallOptions) (*apisv1.InstallResult, error)
	InstallGraphPackages(ctx context.Context, tctx runner.TenantContext, projectID string, pkgs []graph.GraphPackage, opts apisv1.InstallOptions) ([]*apisv1.InstallResult, error)
	ListInstalls(ctx context.Context, tctx runner.TenantContext, projectID, packageKey string) ([]*model.GraphPackageInstall, error)
}

type installServiceImpl struct {
	Store     datastore.DataStore `inject:"datastore"`
	Graph     GraphService        `inject:""`
	Telemetry TelemetryService    `inject:""`
}

// NewInstallService new install service
func NewInstallService() InstallService {
	return &installServiceImpl{}
}

// ListInstalls the install audit history of a (project, package).
func (s *installServiceImpl) ListInstalls(ctx context.Context, tctx runner.TenantContext, projectID, packageKey string) ([]*model.GraphPackageInstall, error) {
	if _, err := repository.GetProject(ctx, s.Store, tctx.Tenant, projectID); err != nil {
		return nil, err
	}
	return repository.ListInstalls(ctx, s.Store, tctx.Tenant, projectID, packageKey)
}

// InstallGraphPackages install a batch in dependency order. The batch aborts
// on the first failed package so dependents never apply on a broken base.
func (s *installServiceImpl) InstallGraphPackages(ctx context.Context, tctx runner.TenantContext, projectID string, pkgs []graph.GraphPackage, opts apisv1.InstallOptions) ([]*apisv1.InstallResult, error) {
	ordered, err := graph.SortPackages(pkgs)
	if err != nil {
		return nil, bcode.ErrPackageDependencyCycle
	}
	var results []*apisv1.InstallResult
	for _, pkg := range ordered {
		result, err := s.InstallGraphPackage(ctx, tctx, projectID, pkg, opts)
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if !result.Success {
			break
		}
	}
	return results, nil
}

// InstallGraphPackage run the install pipeline for one package.
func (s *installServiceImpl) InstallGraphPackage(ctx context.Context, tctx runner.TenantContext, projectID string, pkg graph.GraphPackage, opts apisv1.InstallOptions) (*apisv1.InstallResult, error) {
	if _, err := repository.GetProject(ctx, s.Store, tctx.Tenant, projectID); err != nil {
		return nil, err
	}
	if err := pkg.Validate(); err != nil {
		return nil, bcode.ErrPackageInvalid
	}

	checksum, err := graph.Checksum(pkg)
	if err != nil {
		return nil, err
	}
	result := &apisv1.InstallResult{PackageKey: pkg.PackageKey, Version: pkg.Version, Checksum: checksum}

	// Idempotency: an unchanged package is a successful no-op.
	latest, err := repository.LatestInstall(ctx, s.Store, tctx.Tenant, projectID, pkg.PackageKey)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.Checksum == checksum {
		result.Success = true
		result.Noop = true
		result.Reason = "package contents unchanged"
		s.Telemetry.Emit(ctx, &model.TelemetryEvent{
			Tenant: tctx.Tenant, EventType: model.EventPackageInstallNoop,
			EntityID: pkg.PackageKey, Status: checksum,
		})
		packageInstallCounter.WithLabelValues("noop").Inc()
		return result, nil
	}

	// Version gate: same or lower version with different contents is a
	// downgrade unless explicitly allowed.
	if latest != nil && !opts.AllowDowngrade {
		newVersion, err := pkg.SemVersion()
		if err != nil {
			return nil, bcode.ErrPackageInvalid
		}
		if rejected := versionGate(latest.Version, newVersion.String()); rejected != "" {
			return s.reject(ctx, tctx, result, rejected)
		}
	}

	// Ownership: a record type or binding already shipped by another package
	// of the tenant cannot be mutated by this one.
	if !opts.AllowForeignTypeMutation {
		conflicts, err := s.scanOwnership(ctx, tctx.Tenant, projectID, pkg)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			result.ValidationErrors = conflicts
			return s.reject(ctx, tctx, result, conflicts[0].Error())
		}
	}

	// Project the package onto the current graph and validate the outcome.
	current, err := s.Graph.BuildSnapshot(ctx, tctx)
	if err != nil {
		return nil, err
	}
	projected := graph.ProjectPackage(current, pkg, projectID, tctx.Tenant)
	if findings := graph.ValidateSnapshot(projected); len(findings) > 0 {
		result.ValidationErrors = findings
		return s.reject(ctx, tctx, result, findings[0].Error())
	}

	diff := graph.DiffSnapshots(current.FilterProject(projectID), projected.FilterProject(projectID))
	result.Diff = &diff

	if opts.PreviewOnly {
		result.Success = true
		result.Reason = "preview only, nothing applied"
		return result, nil
	}

	if opts.EnvironmentID != "" {
		if _, err := repository.GetEnvironment(ctx, s.Store, tctx.Tenant, opts.EnvironmentID); err != nil {
			return nil, err
		}
	}

	applied, err := s.apply(ctx, tctx, projectID, pkg)
	if err != nil {
		return nil, err
	}

	installID, err := s.audit(ctx, tctx, projectID, pkg, checksum, &diff)
	if err != nil {
		return nil, err
	}
	if err := s.pinEnvironment(ctx, tctx, projectID, opts.EnvironmentID, pkg, checksum); err != nil {
		return nil, err
	}
	result.Success = true
	result.InstallID = installID
	result.AppliedCount = applied
	s.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: tctx.Tenant, EventType: model.EventPackageInstalled,
		EntityID: pkg.PackageKey, Status: checksum, AffectedRecords: int64(applied),
	})
	packageInstallCounter.WithLabelValues("installed").Inc()
	log.Logger.Infof("installed package %s@%s into project %s", pkg.PackageKey, pkg.Version, projectID)
	return result, nil
}

func (s *installServiceImpl) reject(ctx context.Context, tctx runner.TenantContext, result *apisv1.InstallResult, reason string) (*apisv1.InstallResult, error) {
	result.Success = false
	result.Rejected = true
	result.Reason = reason
	s.Telemetry.Emit(ctx, &model.TelemetryEvent{
		Tenant: tctx.Tenant, EventType: model.EventPackageInstallRejected,
		EntityID: result.PackageKey, Error: reason,
	})
	packageInstallCounter.WithLabelValues("rejected").Inc()
	return result, nil
}

// versionGate returns a rejection reason when newVersion does not move the
// package strictly forward.
func versionGate(installedVersion, newVersion string) string {
	installed, err := semver.StrictNewVersion(installedVersion)
	if err != nil {
		return ""
	}
	next, err := semver.StrictNewVersion(newVersion)
	if err != nil {
		return fmt.Sprintf("version %q is not valid semver", newVersion)
	}
	if next.LessThan(installed) {
		return fmt.Sprintf("version %s is lower than installed %s", newVersion, installedVersion)
	}
	if next.Equal(installed) {
		return fmt.Sprintf("version %s is already installed with different contents", newVersion)
	}
	return ""
}

// scanOwnership decode the latest install row of every other package and flag
// record types or bindings this package would take over.
func (s *installServiceImpl) scanOwnership(ctx context.Context, tenant, projectID string, pkg graph.GraphPackage) ([]graph.ValidationError, error) {
	latest, err := repository.LatestInstallsByPackage(ctx, s.Store, tenant, projectID)
	if err != nil {
		return nil, err
	}

	typeOwner := map[string]string{}
	bindingOwner := map[string]string{}
	for owner, install := range latest {
		if owner == pkg.PackageKey || install.PackageContents == nil {
			continue
		}
		var prior graph.GraphPackage
		if err := install.PackageContents.Decode(&prior); err != nil {
			log.Logger.Warnf("install row %s of package %s carries undecodable contents: %s", install.ID, owner, err.Error())
			continue
		}
		for _, rt := range prior.RecordTypes {
			typeOwner[rt.Key] = owner
		}
		for _, sla := range prior.SLAPolicies {
			bindingOwner["sla:"+sla.RecordTypeKey] = owner
		}
		for _, rule := range prior.AssignmentRules {
			bindingOwner["assignment:"+rule.RecordTypeKey] = owner
		}
		for _, wf := range prior.Workflows {
			bindingOwner["workflow:"+wf.Name] = owner
		}
	}

	var conflicts []graph.ValidationError
	for _, rt := range pkg.RecordTypes {
		if owner, taken := typeOwner[rt.Key]; taken {
			conflicts = append(conflicts, graph.ValidationError{
				Code:    graph.CodeOwnershipConflict,
				Message: fmt.Sprintf("record type %s is owned by package %s", rt.Key, owner),
			})
		}
	}
	for _, sla := range pkg.SLAPolicies {
		if owner, taken := bindingOwner["sla:"+sla.RecordTypeKey]; taken {
			conflicts = append(conflicts, graph.ValidationError{
				Code:    graph.CodeBindingOwnershipConflict,
				Message: fmt.Sprintf("SLA binding on %s is owned by package %s", sla.RecordTypeKey, owner),
			})
		}
	}
	for _, rule := range pkg.AssignmentRules {
		if owner, taken := bindingOwner["assignment:"+rule.RecordTypeKey]; taken {
			conflicts = append(conflicts, graph.ValidationError{
				Code:    graph.CodeBindingOwnershipConflict,
				Message: fmt.Sprintf("assignment binding on %s is owned by package %s", rule.RecordTypeKey, owner),
			})
		}
	}
	for _, wf := range pkg.Workflows {
		if owner, taken := bindingOwner["workflow:"+wf.Name]; taken {
			conflicts = append(conflicts, graph.ValidationError{
				Code:    graph.CodeBindingOwnershipConflict,
				Message: fmt.Sprintf("workflow %s is owned by package %s", wf.Name, owner),
			})
		}
	}
	return conflicts, nil
}

// apply write the package into storage: record types in dependency order,
// then bindings, then packaged workflows. Returns how many entities were
// applied; a packaged workflow skipped on a name collision does not count.
func (s *installServiceImpl) apply(ctx context.Context, tctx runner.TenantContext, projectID string, pkg graph.GraphPackage) (int, error) {
	ordered, err := graph.SortRecordTypes(pkg.RecordTypes)
	if err != nil {
		return 0, bcode.ErrPackageDependencyCycle
	}
	var applied int
	for _, spec := range ordered {
		if err := s.applyRecordType(ctx, tctx.Tenant, projectID, spec); err != nil {
			return applied, err
		}
		applied++
	}
	for _, sla := range pkg.SLAPolicies {
		if err := s.applySLA(ctx, tctx.Tenant, projectID, sla); err != nil {
			return applied, err
		}
		applied++
	}
	for _, rule := range pkg.AssignmentRules {
		if err := s.applyAssignment(ctx, tctx.Tenant, projectID, rule); err != nil {
			return applied, err
		}
		applied++
	}
	for _, wf := range pkg.Workflows {
		created, err := s.applyWorkflow(ctx, tctx.Tenant, wf)
		if err != nil {
			return applied, err
		}
		if created {
			applied++
		}
	}
	return applied, nil
}

// pinEnvironment upsert the row recording which package version an
// environment currently carries; promotion previews and executions read these
// rows. An install without an explicit environment attributes to the
// project's oldest one.
func (s *installServiceImpl) pinEnvironment(ctx context.Context, tctx runner.TenantContext, projectID, environmentID string, pkg graph.GraphPackage, checksum string) error {
	if environmentID == "" {
		envs, err := repository.ListEnvironments(ctx, s.Store, tctx.Tenant, projectID)
		if err != nil {
			return err
		}
		if len(envs) == 0 {
			return nil
		}
		environmentID = envs[0].ID
	}
	row := &model.EnvironmentPackageInstall{
		Tenant:        tctx.Tenant,
		ProjectID:     projectID,
		EnvironmentID: environmentID,
		PackageKey:    pkg.PackageKey,
		Version:       pkg.Version,
		Checksum:      checksum,
	}
	if err := s.Store.Add(ctx, row); err != nil {
		if err != datastore.ErrRecordExist {
			return err
		}
		existing := &model.EnvironmentPackageInstall{
			EnvironmentID: environmentID,
			PackageKey:    pkg.PackageKey,
		}
		if err := s.Store.Get(ctx, existing); err != nil {
			return err
		}
		existing.Version = pkg.Version
		existing.Checksum = checksum
		return s.Store.Put(ctx, existing)
	}
	return nil
}

func (s *installServiceImpl) applyRecordType(ctx context.Context, tenant, projectID string, spec graph.RecordTypeSpec) error {
	existing, err := repository.GetRecordTypeByKey(ctx, s.Store, tenant, projectID, spec.Key)
	if err != nil && err != bcode.ErrRecordTypeNotExist {
		return err
	}
	if existing == nil || err == bcode.ErrRecordTypeNotExist {
		recordType := &model.RecordType{
			ID:        uuid.NewString(),
			Tenant:    tenant,
			ProjectID: projectID,
			Key:       spec.Key,
			Name:      spec.Name,
			BaseType:  spec.BaseType,
		}
		for _, field := range spec.Fields {
			recordType.Fields = append(recordType.Fields, model.FieldDef{
				Name: field.Name, Type: field.Type, Required: field.Required,
			})
		}
		return s.Store.Add(ctx, recordType)
	}

	// Merge: new fields append, existing fields keep their shape.
	known := map[string]bool{}
	for _, field := range existing.Fields {
		known[field.Name] = true
	}
	for _, field := range spec.Fields {
		if !known[field.Name] {
			existing.Fields = append(existing.Fields, model.FieldDef{
				Name: field.Name, Type: field.Type, Required: field.Required,
			})
		}
	}
	if existing.BaseType == "" && spec.BaseType != "" {
		existing.BaseType = spec.BaseType
	}
	if spec.Name != "" {
		existing.Name = spec.Name
	}
	return s.Store.Put(ctx, existing)
}

func (s *installServiceImpl) applySLA(ctx context.Context, tenant, projectID string, sla graph.SLAPolicySpec) error {
	recordType, err := repository.GetRecordTypeByKey(ctx, s.Store, tenant, projectID, sla.RecordTypeKey)
	if err != nil {
		return err
	}
	config, err := model.NewJSONStructByStruct(map[string]interface{}{
		"durationMinutes": sla.DurationMinutes,
	})
	if err != nil {
		return err
	}
	recordType.SLAConfig = config
	return s.Store.Put(ctx, recordType)
}

func (s *installServiceImpl) applyAssignment(ctx context.Context, tenant, projectID string, rule graph.AssignmentRuleSpec) error {
	recordType, err := repository.GetRecordTypeByKey(ctx, s.Store, tenant, projectID, rule.RecordTypeKey)
	if err != nil {
		return err
	}
	configHash, err := hashstructure.Hash(rule.Config, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	config, err := model.NewJSONStructByStruct(map[string]interface{}{
		"strategyType": rule.StrategyType,
		"config":       rule.Config,
		"configHash":   fmt.Sprintf("%d", configHash),
	})
	if err != nil {
		return err
	}
	recordType.AssignmentConfig = config
	return s.Store.Put(ctx, recordType)
}

// applyWorkflow create the packaged workflow unless a definition of the same
// name already exists; packaged workflows activate immediately.
func (s *installServiceImpl) applyWorkflow(ctx context.Context, tenant string, wf graph.WorkflowSpec) (bool, error) {
	if _, err := repository.GetWorkflowDefinitionByName(ctx, s.Store, tenant, wf.Name); err == nil {
		return false, nil
	}
	def := &model.WorkflowDefinition{
		ID:          uuid.NewString(),
		Tenant:      tenant,
		Name:        wf.Name,
		TriggerType: wf.TriggerType,
		Version:     1,
		Status:      model.WorkflowStatusActive,
	}
	if def.TriggerType == "" {
		def.TriggerType = model.TriggerTypeManual
	}
	if err := s.Store.Add(ctx, def); err != nil {
		return false, err
	}
	for _, step := range wf.Steps {
		config, err := model.NewJSONStructByStruct(step.Config)
		if err != nil {
			return false, err
		}
		row := &model.WorkflowStep{
			ID:                   uuid.NewString(),
			Tenant:               tenant,
			WorkflowDefinitionID: def.ID,
			Name:                 step.Name,
			OrderIndex:           step.OrderIndex,
			StepType:             step.StepType,
			Config:               config,
		}
		if err := s.Store.Add(ctx, row); err != nil {
			return false, err
		}
	}
	if wf.TriggerType != "" && wf.TriggerType != model.TriggerTypeManual {
		spec, err := model.NewJSONStructByStruct(map[string]interface{}{"spec": wf.TriggerSpec})
		if err != nil {
			return false, err
		}
		trigger := &model.WorkflowTrigger{
			ID:                   uuid.NewString(),
			Tenant:               tenant,
			WorkflowDefinitionID: def.ID,
			Type:                 wf.TriggerType,
			Spec:                 spec,
		}
		if err := s.Store.Add(ctx, trigger); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *installServiceImpl) audit(ctx context.Context, tctx runner.TenantContext, projectID string, pkg graph.GraphPackage, checksum string, diff *graph.Diff) (string, error) {
	diffStruct, err := model.NewJSONStructByStruct(diff)
	if err != nil {
		return "", err
	}
	contents, err := model.NewJSONStructByStruct(pkg)
	if err != nil {
		return "", err
	}
	install := &model.GraphPackageInstall{
		ID:              uuid.NewString(),
		Tenant:          tctx.Tenant,
		ProjectID:       projectID,
		PackageKey:      pkg.PackageKey,
		Version:         pkg.Version,
		Checksum:        checksum,
		Diff:            diffStruct,
		PackageContents: contents,
		InstalledBy:     tctx.User,
		InstalledAt:     time.Now(),
	}
	if err := s.Store.Add(ctx, install); err != nil {
		return "", err
	}
	return install.ID, nil
}
