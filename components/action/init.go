/*
 * Copyright 2024 The Wireflow Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package action provides the timer-driven and scripted components: inject
// (periodic or cron source), delay (rate-limited queue), trigger (extend and
// reset pulse window) and function (user-supplied JavaScript).
package action

import (
	"github.com/wireflow/wireflow/api/types"
)

// Registry collects the components exported by this package.
var Registry = new(types.SafeComponentSlice)
