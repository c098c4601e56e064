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

// Package sequence provides the correlation-backed components: split, join,
// sort and batch. Split fans one payload out into an indexed sequence of
// messages; join, sort and batch accumulate sequences through the correlation
// engine and emit assembled or re-ordered results.
package sequence

import (
	"github.com/wireflow/wireflow/api/types"
)

// Registry collects the components exported by this package.
var Registry = new(types.SafeComponentSlice)
