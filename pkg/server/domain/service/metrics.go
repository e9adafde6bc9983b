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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	packageInstallCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_graph_package_installs_total",
		Help: "Graph package install outcomes by result.",
	}, []string{"result"})

	workflowExecutionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_workflow_executions_total",
		Help: "Workflow execution terminal states.",
	}, []string{"status"})

	intentDispatchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_intent_dispatches_total",
		Help: "Execution intent dispatch outcomes.",
	}, []string{"result"})

	promotionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_promotions_total",
		Help: "Promotion intent transitions by target status.",
	}, []string{"status"})
)
