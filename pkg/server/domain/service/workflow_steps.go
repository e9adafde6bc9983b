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

	"github.com/pkg/errors"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/repository"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
)

// handleWorkflowStep is the workflow_step action handler registered on the
// local runner adapter. It unpacks the step envelope and dispatches by step
// type; lock-aware handlers get the datastore, the rest are pure.
func (w *workflowServiceImpl) handleWorkflowStep(ctx context.Context, req runner.ExecutionRequest, executionID string) (map[string]interface{}, []string, error) {
	stepType, _ := req.Input["stepType"].(string)
	config, _ := req.Input["config"].(map[string]interface{})
	input, _ := req.Input["input"].(map[string]interface{})
	workflowExecutionID, _ := req.Input["workflowExecutionId"].(string)
	if config == nil {
		config = map[string]interface{}{}
	}
	if input == nil {
		input = map[string]interface{}{}
	}
	tenant := req.TenantContext.Tenant

	var output map[string]interface{}
	var err error
	switch stepType {
	case model.StepTypeAssignment:
		output, err = handleAssignmentStep(config, input)
	case model.StepTypeApproval:
		output, err = handleApprovalStep(config)
	case model.StepTypeNotification:
		output, err = handleNotificationStep(config, input)
	case model.StepTypeDecision:
		output, err = handleDecisionStep(config, input)
	case model.StepTypeRecordMutation:
		output, err = w.handleRecordMutationStep(ctx, tenant, workflowExecutionID, config, input)
	case model.StepTypeRecordLock:
		output, err = w.handleRecordLockStep(ctx, tenant, workflowExecutionID, config, input)
	default:
		return nil, nil, &runner.BoundaryError{
			Code:    runner.ErrCodeUnknownAction,
			Message: fmt.Sprintf("unknown workflow step type %q", stepType),
		}
	}
	if err != nil {
		return nil, nil, err
	}
	logs := []string{fmt.Sprintf("step type %s executed in module %s", stepType, req.ModuleContext.Module)}
	return output, logs, nil
}

// handleAssignmentStep resolve assigneeType into a canonical assignee token.
func handleAssignmentStep(config, input map[string]interface{}) (map[string]interface{}, error) {
	assigneeType, _ := config["assigneeType"].(string)
	switch assigneeType {
	case "user":
		assignee, _ := config["assignee"].(string)
		return map[string]interface{}{"status": "assigned", "assignee": "user:" + assignee}, nil
	case "group":
		group, _ := config["groupName"].(string)
		return map[string]interface{}{"status": "assigned", "assignee": "group:" + group}, nil
	case "rule":
		rule, _ := config["ruleName"].(string)
		return map[string]interface{}{"status": "assigned", "assignee": "rule:" + rule}, nil
	default:
		return nil, errors.Errorf("unknown assigneeType %q", assigneeType)
	}
}

// handleApprovalStep auto-approve or signal the engine to pause.
func handleApprovalStep(config map[string]interface{}) (map[string]interface{}, error) {
	if auto, _ := config["autoApprove"].(bool); auto {
		return map[string]interface{}{"status": "auto_approved"}, nil
	}
	output := map[string]interface{}{"status": "awaiting_approval"}
	if group, ok := config["approverGroup"].(string); ok && group != "" {
		output["approverGroup"] = group
	}
	return output, nil
}

// handleNotificationStep record the notification; delivery is out of scope.
func handleNotificationStep(config, input map[string]interface{}) (map[string]interface{}, error) {
	output := map[string]interface{}{
		"status":    "recorded",
		"delivered": false,
	}
	for _, key := range []string{"channel", "recipient", "template", "message"} {
		if value, ok := config[key]; ok {
			output[key] = value
		}
	}
	return output, nil
}

// handleDecisionStep evaluate conditionField OP conditionValue and emit the
// branch target orderIndex.
func handleDecisionStep(config, input map[string]interface{}) (map[string]interface{}, error) {
	field, _ := config["conditionField"].(string)
	if field == "" {
		return nil, errors.New("decision step requires a conditionField")
	}
	operator, _ := config["operator"].(string)
	value := input[field]

	var outcome bool
	switch operator {
	case "equals":
		outcome = fmt.Sprintf("%v", value) == fmt.Sprintf("%v", config["conditionValue"])
	case "not_equals":
		outcome = fmt.Sprintf("%v", value) != fmt.Sprintf("%v", config["conditionValue"])
	case "truthy":
		outcome = truthy(value)
	case "falsy":
		outcome = !truthy(value)
	default:
		return nil, errors.Errorf("unknown decision operator %q", operator)
	}

	branch := "onFalseStepIndex"
	if outcome {
		branch = "onTrueStepIndex"
	}
	target, ok := config[branch].(float64)
	if !ok {
		return nil, errors.Errorf("decision step %s is not a number", branch)
	}
	return map[string]interface{}{
		"status":          "evaluated",
		"result":          outcome,
		"targetStepIndex": target,
	}, nil
}

func truthy(value interface{}) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != "" && typed != "false" && typed != "0"
	case float64:
		return typed != 0
	case int:
		return typed != 0
	default:
		return true
	}
}

// handleRecordMutationStep compose the mutation map and assert no foreign
// advisory lock exists on the target record.
func (w *workflowServiceImpl) handleRecordMutationStep(ctx context.Context, tenant, workflowExecutionID string, config, input map[string]interface{}) (map[string]interface{}, error) {
	recordTypeID, _ := config["recordTypeId"].(string)
	recordIDField, _ := config["recordIdField"].(string)
	recordID, _ := input[recordIDField].(string)
	if recordTypeID == "" || recordID == "" {
		return nil, errors.New("record_mutation step requires recordTypeId and a resolvable record id")
	}

	lock, err := repository.GetRecordLock(ctx, w.Store, tenant, recordTypeID, recordID)
	if err != nil && err != datastore.ErrRecordNotExist {
		return nil, err
	}
	if lock != nil && lock.ExecutionID != workflowExecutionID {
		return nil, errors.Errorf("record %s/%s is locked by execution %s", recordTypeID, recordID, lock.ExecutionID)
	}

	mutation := map[string]interface{}{}
	if static, ok := config["mutations"].(map[string]interface{}); ok {
		for key, value := range static {
			mutation[key] = value
		}
	}
	if mapping, ok := config["sourceMapping"].(map[string]interface{}); ok {
		for outField, inField := range mapping {
			if sourceField, isString := inField.(string); isString {
				if value, present := input[sourceField]; present {
					mutation[outField] = value
				}
			}
		}
	}
	return map[string]interface{}{
		"status":       "mutated",
		"recordTypeId": recordTypeID,
		"recordId":     recordID,
		"mutation":     mutation,
	}, nil
}

// handleRecordLockStep take the advisory lock; an existing lock makes the
// step a no-op.
func (w *workflowServiceImpl) handleRecordLockStep(ctx context.Context, tenant, workflowExecutionID string, config, input map[string]interface{}) (map[string]interface{}, error) {
	recordTypeID, _ := config["recordTypeId"].(string)
	recordIDField, _ := config["recordIdField"].(string)
	recordID, _ := input[recordIDField].(string)
	if recordID == "" {
		recordID, _ = config["recordId"].(string)
	}
	if recordTypeID == "" || recordID == "" {
		return nil, errors.New("record_lock step requires recordTypeId and a resolvable record id")
	}

	existing, err := repository.GetRecordLock(ctx, w.Store, tenant, recordTypeID, recordID)
	if err != nil && err != datastore.ErrRecordNotExist {
		return nil, err
	}
	if existing != nil {
		return map[string]interface{}{
			"status":       "already_locked",
			"recordTypeId": recordTypeID,
			"recordId":     recordID,
			"lockedBy":     existing.ExecutionID,
		}, nil
	}
	lock := &model.RecordLock{
		Tenant:       tenant,
		RecordTypeID: recordTypeID,
		RecordID:     recordID,
		ExecutionID:  workflowExecutionID,
	}
	if err := w.Store.Add(ctx, lock); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status":       "locked",
		"recordTypeId": recordTypeID,
		"recordId":     recordID,
	}, nil
}
