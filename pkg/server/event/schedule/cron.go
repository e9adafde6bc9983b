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

// Package schedule seeds execution intents from scheduled workflow triggers.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/service"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

const resyncInterval = time.Minute

// TriggerCron mirrors the stored scheduled triggers into a cron runner. Each
// firing creates a pending intent; the idempotency key makes a re-fired
// minute a no-op.
type TriggerCron struct {
	Store         datastore.DataStore   `inject:"datastore"`
	IntentService service.IntentService `inject:""`

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

// Start run the cron and keep it in sync with the trigger table.
func (t *TriggerCron) Start(ctx context.Context, errChan chan error) {
	t.cron = cron.New()
	t.entries = map[string]cron.EntryID{}
	t.cron.Start()
	defer t.cron.Stop()
	wait.UntilWithContext(ctx, t.resync, resyncInterval)
}

func (t *TriggerCron) resync(ctx context.Context) {
	var trigger = model.WorkflowTrigger{Type: model.TriggerTypeScheduled}
	entities, err := t.Store.List(ctx, &trigger, nil)
	if err != nil {
		log.Logger.Errorf("list scheduled triggers failure %s", err.Error())
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	live := map[string]bool{}
	for _, entity := range entities {
		row := entity.(*model.WorkflowTrigger)
		live[row.ID] = true
		if _, known := t.entries[row.ID]; known {
			continue
		}
		spec := triggerSpec(row)
		if spec == "" {
			continue
		}
		entryID, err := t.cron.AddFunc(spec, t.fire(row))
		if err != nil {
			log.Logger.Warnf("scheduled trigger %s carries invalid cron spec %q: %s", row.ID, spec, err.Error())
			continue
		}
		t.entries[row.ID] = entryID
	}
	for id, entryID := range t.entries {
		if !live[id] {
			t.cron.Remove(entryID)
			delete(t.entries, id)
		}
	}
}

func (t *TriggerCron) fire(trigger *model.WorkflowTrigger) func() {
	tctx := runner.TenantContext{Tenant: trigger.Tenant, User: "scheduler", Source: runner.SourceSystem}
	return func() {
		key := fmt.Sprintf("sched-%s-%d", trigger.ID, time.Now().Truncate(time.Minute).Unix())
		_, created, err := t.IntentService.CreateIntent(context.Background(), tctx, apisv1.CreateIntentRequest{
			WorkflowDefinitionID: trigger.WorkflowDefinitionID,
			TriggerType:          model.TriggerTypeScheduled,
			IdempotencyKey:       key,
		})
		if err != nil {
			log.Logger.Errorf("scheduled trigger %s intent failure %s", trigger.ID, err.Error())
			return
		}
		if created {
			log.Logger.Infof("scheduled trigger %s created intent with key %s", trigger.ID, key)
		}
	}
}

func triggerSpec(trigger *model.WorkflowTrigger) string {
	if trigger.Spec == nil {
		return ""
	}
	spec, _ := (*trigger.Spec)["spec"].(string)
	return spec
}
