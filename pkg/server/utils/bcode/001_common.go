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
	// ErrServer an unexpected internal failure
	ErrServer = NewBcode(500, 10001, "the server is abnormal, please retry")

	// ErrForbidden the request carries no usable identity
	ErrForbidden = NewBcode(403, 10002, "403 Forbidden")

	// ErrTenantRequired the request carries no tenant context
	ErrTenantRequired = NewBcode(400, 10003, "tenant context is required")

	// ErrInvalidRequestBody the request body can not be decoded
	ErrInvalidRequestBody = NewBcode(400, 10004, "invalid request body")
)
