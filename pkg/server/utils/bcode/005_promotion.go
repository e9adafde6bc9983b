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
	// ErrPromotionIntentNotExist promotion intent is not exist
	ErrPromotionIntentNotExist = NewBcode(404, 50001, "promotion intent is not exist")

	// ErrPromotionInvalidTransition the requested transition is not in the state machine
	ErrPromotionInvalidTransition = NewBcode(400, 50002, "promotion intent state transition is not allowed")

	// ErrPromotionNotPreviewed approval requires a previewed intent
	ErrPromotionNotPreviewed = NewBcode(400, 50003, "promotion intent has not been previewed")

	// ErrPromotionSameEnvironment source and target environment are the same
	ErrPromotionSameEnvironment = NewBcode(400, 50004, "promotion source and target environments must differ")
)
