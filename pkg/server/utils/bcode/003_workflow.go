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

package bcode

var (
	// ErrWorkflowNotExist workflow definition is not exist
	ErrWorkflowNotExist = NewBcode(404, 30001, "workflow definition is not exist")

	// ErrWorkflowNotActive only active definitions accept executions
	ErrWorkflowNotActive = NewBcode(400, 30002, "workflow definition is not active")

	// ErrWorkflowExist workflow definition name already used in the tenant
	ErrWorkflowExist = NewBcode(400, 30003, "workflow definition already exists")

	// ErrExecutionIntentRequired direct execution without a durable intent is refused
	ErrExecutionIntentRequired = NewBcode(403, 30004, "workflow execution requires an execution intent")

	// ErrWorkflowExecutionNotExist workflow execution is not exist
	ErrWorkflowExecutionNotExist = NewBcode(404, 30005, "workflow execution is not exist")

	// ErrExecutionNotPaused resume is only valid for paused executions
	ErrExecutionNotPaused = NewBcode(400, 30006, "workflow execution is not paused")

	// ErrStepNotAwaitingApproval the step execution is not awaiting approval
	ErrStepNotAwaitingApproval = NewBcode(400, 30007, "step execution is not awaiting approval")

	// ErrStepExecutionNotExist step execution is not exist
	ErrStepExecutionNotExist = NewBcode(404, 30008, "step execution is not exist")

	// ErrWorkflowInvalidSteps the definition failed activation validation
	ErrWorkflowInvalidSteps = NewBcode(400, 30009, "workflow definition steps are invalid")

	// ErrIntentNotExist workflow execution intent is not exist
	ErrIntentNotExist = NewBcode(404, 30010, "workflow execution intent is not exist")
)
