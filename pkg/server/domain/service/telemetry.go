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

	"github.com/google/uuid"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

const telemetryQueueSize = 1024

// TelemetryService appends best-effort domain events. Emit never blocks the
// caller: events go through a buffered channel and a background writer; a
// full buffer drops the event with a log line.
type TelemetryService interface {
	Emit(ctx context.Context, event *model.TelemetryEvent)
	ListEvents(ctx context.Context, tenant, entityID string, page, pageSize int) ([]*model.TelemetryEvent, int64, error)
	Start(ctx context.Context, errChan chan error)
}

type telemetryServiceImpl struct {
	Store datastore.DataStore `inject:"datastore"`
	queue chan *model.TelemetryEvent
}

// NewTelemetryService new telemetry service
func NewTelemetryService() TelemetryService {
	return &telemetryServiceImpl{
		queue: make(chan *model.TelemetryEvent, telemetryQueueSize),
	}
}

// Emit enqueue one event; drops when the buffer is full.
func (t *telemetryServiceImpl) Emit(ctx context.Context, event *model.TelemetryEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	select {
	case t.queue <- event:
	default:
		log.Logger.Warnf("telemetry buffer full, dropping event %s for tenant %s", event.EventType, event.Tenant)
	}
}

// ListEvents list stored events, newest first, optionally keyed to an entity.
func (t *telemetryServiceImpl) ListEvents(ctx context.Context, tenant, entityID string, page, pageSize int) ([]*model.TelemetryEvent, int64, error) {
	var event = model.TelemetryEvent{Tenant: tenant, EntityID: entityID}
	entities, err := t.Store.List(ctx, &event, &datastore.ListOptions{
		Page:     page,
		PageSize: pageSize,
		SortBy:   []datastore.SortOption{{Key: "createTime", Order: datastore.SortOrderDescending}},
	})
	if err != nil {
		return nil, 0, err
	}
	count, err := t.Store.Count(ctx, &event, nil)
	if err != nil {
		return nil, 0, err
	}
	var events []*model.TelemetryEvent
	for _, entity := range entities {
		events = append(events, entity.(*model.TelemetryEvent))
	}
	return events, count, nil
}

// Start drain the queue into the datastore until the context is cancelled.
func (t *telemetryServiceImpl) Start(ctx context.Context, errChan chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-t.queue:
			if err := t.Store.Add(ctx, event); err != nil {
				log.Logger.Errorf("persist telemetry event %s failure %s", event.EventType, err.Error())
			}
		}
	}
}

// RunnerTelemetryBridge adapts the telemetry service to the runner's emitter
// interface so adapter events land in the same audit stream.
type RunnerTelemetryBridge struct {
	Telemetry TelemetryService `inject:""`
}

// NewRunnerTelemetryBridge new bridge bean
func NewRunnerTelemetryBridge() *RunnerTelemetryBridge {
	return &RunnerTelemetryBridge{}
}

// EmitExecutionEvent implements runner.TelemetryEmitter.
func (b *RunnerTelemetryBridge) EmitExecutionEvent(event runner.TelemetryEvent) {
	row := &model.TelemetryEvent{
		Tenant:    event.Tenant,
		EventType: "runner." + event.Type,
		EntityID:  event.ExecutionID,
		Module:    event.Module,
		Status:    string(event.Action),
		Error:     event.Error,
	}
	if event.ErrorCode != "" {
		row.Status = event.ErrorCode
	}
	b.Telemetry.Emit(context.Background(), row)
}
