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

package types

import (
	"sync"
)

// SafeComponentSlice collects the component prototypes of one package. Each
// components package exposes one as its Registry; the root registry gathers
// them at process start.
type SafeComponentSlice struct {
	components []Node
	sync.Mutex
}

// Add appends component prototypes, safe for concurrent use.
func (p *SafeComponentSlice) Add(nodes ...Node) {
	p.Lock()
	defer p.Unlock()
	p.components = append(p.components, nodes...)
}

// Components returns the collected prototypes.
func (p *SafeComponentSlice) Components() []Node {
	p.Lock()
	defer p.Unlock()
	return p.components
}
