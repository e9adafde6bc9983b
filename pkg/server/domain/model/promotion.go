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

package model

import "time"

func init() {
	RegisterModel(&PromotionIntent{})
}

// Promotion intent statuses. executed and rejected are terminal.
const (
	PromotionStatusDraft     = "draft"
	PromotionStatusPreviewed = "previewed"
	PromotionStatusApproved  = "approved"
	PromotionStatusExecuted  = "executed"
	PromotionStatusRejected  = "rejected"
)

// Notification outcomes of the preview webhook.
const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// PromotionTransitions the allowed status moves. Every transition request is
// checked against this table; anything absent is rejected.
var PromotionTransitions = map[string][]string{
	PromotionStatusDraft:     {PromotionStatusPreviewed, PromotionStatusRejected},
	PromotionStatusPreviewed: {PromotionStatusPreviewed, PromotionStatusApproved, PromotionStatusRejected},
	PromotionStatusApproved:  {PromotionStatusExecuted, PromotionStatusRejected},
	PromotionStatusExecuted:  {},
	PromotionStatusRejected:  {},
}

// PromotionTransitionAllowed reports whether from may move to to.
func PromotionTransitionAllowed(from, to string) bool {
	for _, allowed := range PromotionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PromotionIntent one request to move the installed package set between two
// environments of a project.
type PromotionIntent struct {
	BaseModel
	ID                 string      `json:"id"`
	Tenant             string      `json:"tenant"`
	ProjectID          string      `json:"projectId"`
	FromEnvironmentID  string      `json:"fromEnvironmentId"`
	ToEnvironmentID    string      `json:"toEnvironmentId"`
	Status             string      `json:"status"`
	Diff               *JSONStruct `json:"diff,omitempty"`
	Result             *JSONStruct `json:"result,omitempty"`
	CreatedBy          string      `json:"createdBy,omitempty"`
	ApprovedBy         string      `json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time  `json:"approvedAt,omitempty"`
	NotificationStatus string      `json:"notificationStatus,omitempty"`
}

// TableName table name for datastore
func (p *PromotionIntent) TableName() string {
	return tableNamePrefix + "promotion_intent"
}

// ShortTableName is the compressed version of table name
func (p *PromotionIntent) ShortTableName() string {
	return "pmi"
}

// PrimaryKey primary key for datastore
func (p *PromotionIntent) PrimaryKey() string {
	return p.ID
}

// Index set to the fields used to query
func (p *PromotionIntent) Index() map[string]string {
	index := make(map[string]string)
	if p.Tenant != "" {
		index["tenant"] = p.Tenant
	}
	if p.ProjectID != "" {
		index["projectId"] = p.ProjectID
	}
	if p.Status != "" {
		index["status"] = p.Status
	}
	return index
}
