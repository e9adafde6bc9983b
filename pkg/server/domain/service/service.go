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

	"github.com/loom-dev/loom/pkg/server/config"
)

// needInitData register the service that need to init data
var needInitData []DataInit

// InitServiceBean init all service instance
func InitServiceBean(c config.Config) []interface{} {
	telemetryService := NewTelemetryService()
	projectService := NewProjectService()
	workspaceService := NewWorkspaceService()
	workflowService := NewWorkflowService()
	intentService := NewIntentService()
	graphService := NewGraphService()
	installService := NewInstallService()
	promotionService := NewPromotionService()
	runnerBridge := NewRunnerTelemetryBridge()
	needInitData = []DataInit{}
	return []interface{}{
		telemetryService, projectService, workspaceService, workflowService, intentService,
		graphService, installService, promotionService, runnerBridge,
	}
}

// DataInit the service set that needs init data
type DataInit interface {
	Init(ctx context.Context) error
}

// InitData init data
func InitData(ctx context.Context) error {
	for _, init := range needInitData {
		if err := init.Init(ctx); err != nil {
			return fmt.Errorf("database init failure %w", err)
		}
	}
	return nil
}
