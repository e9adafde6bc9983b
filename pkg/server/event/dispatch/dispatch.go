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

// Package dispatch drains pending workflow execution intents.
package dispatch

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/workqueue"

	"github.com/loom-dev/loom/pkg/server/domain/service"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

// IntentDispatcher polls pending intents oldest-first and dispatches each one
// exactly once through a workqueue, so a slow execution never blocks the
// poll loop.
type IntentDispatcher struct {
	IntentService service.IntentService `inject:""`

	Queue        workqueue.Interface
	PollInterval time.Duration
	BatchSize    int
}

// Start run the poll producer and the dispatch consumer until the context is
// cancelled.
func (d *IntentDispatcher) Start(ctx context.Context, errChan chan error) {
	if d.PollInterval <= 0 {
		d.PollInterval = 2 * time.Second
	}
	if d.BatchSize <= 0 {
		d.BatchSize = 20
	}
	go func() {
		<-ctx.Done()
		d.Queue.ShutDown()
	}()
	go wait.UntilWithContext(ctx, d.poll, d.PollInterval)
	for d.dispatchNext(ctx) {
	}
}

func (d *IntentDispatcher) poll(ctx context.Context) {
	intents, err := d.IntentService.ListPendingIntents(ctx, d.BatchSize)
	if err != nil {
		log.Logger.Errorf("list pending intents failure %s", err.Error())
		return
	}
	for _, intent := range intents {
		d.Queue.Add(intent.ID)
	}
}

func (d *IntentDispatcher) dispatchNext(ctx context.Context) bool {
	item, shutdown := d.Queue.Get()
	if shutdown {
		return false
	}
	defer d.Queue.Done(item)
	intentID := item.(string)
	if err := d.IntentService.DispatchIntent(ctx, intentID); err != nil {
		log.Logger.Errorf("dispatch intent %s failure %s", intentID, err.Error())
	}
	return true
}
