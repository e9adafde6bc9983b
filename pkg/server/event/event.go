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

package event

import (
	"context"

	"k8s.io/client-go/util/workqueue"

	"github.com/loom-dev/loom/pkg/server/config"
	"github.com/loom-dev/loom/pkg/server/domain/service"
	"github.com/loom-dev/loom/pkg/server/event/dispatch"
	"github.com/loom-dev/loom/pkg/server/event/schedule"
)

var workers []Worker

// Worker handle events through rotation training, listener and crontab.
type Worker interface {
	Start(ctx context.Context, errChan chan error)
}

// InitEvent init all event worker
func InitEvent(cfg config.Config) []interface{} {
	dispatcher := &dispatch.IntentDispatcher{
		Queue:        workqueue.New(),
		PollInterval: cfg.Dispatcher.PollInterval,
		BatchSize:    cfg.Dispatcher.BatchSize,
	}
	trigger := &schedule.TriggerCron{}
	telemetry := &telemetryWorker{}
	// replace, not append: the container may be rebuilt within one process
	workers = []Worker{dispatcher, trigger, telemetry}
	return []interface{}{dispatcher, trigger, telemetry}
}

// StartEventWorker start all event worker
func StartEventWorker(ctx context.Context, errChan chan error) {
	for i := range workers {
		go workers[i].Start(ctx, errChan)
	}
}

// telemetryWorker runs the telemetry queue drain as an event worker.
type telemetryWorker struct {
	Telemetry service.TelemetryService `inject:""`
}

func (t *telemetryWorker) Start(ctx context.Context, errChan chan error) {
	t.Telemetry.Start(ctx, errChan)
}
