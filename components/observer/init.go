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

// Package observer provides the event-bus observer components: catch (errors),
// status (status changes) and complete (node completions). Observers have no
// inbound wires of their own; they subscribe on flow start and emit a message
// for every event they receive.
package observer

import (
	"github.com/wireflow/wireflow/api/types"
)

// Registry collects the components exported by this package.
var Registry = new(types.SafeComponentSlice)
