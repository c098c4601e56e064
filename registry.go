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

package wireflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/action"
	"github.com/wireflow/wireflow/components/external"
	"github.com/wireflow/wireflow/components/filter"
	"github.com/wireflow/wireflow/components/observer"
	"github.com/wireflow/wireflow/components/sequence"
)

// Registry is the process-wide component registry. Built-in components
// register here at process start; custom components are added with
// Registry.Register before any flow referencing them is deployed.
var Registry = new(ComponentRegistry)

func init() {
	var components []types.Node
	components = append(components, sequence.Registry.Components()...)
	components = append(components, action.Registry.Components()...)
	components = append(components, filter.Registry.Components()...)
	components = append(components, observer.Registry.Components()...)
	components = append(components, external.Registry.Components()...)

	for _, node := range components {
		_ = Registry.Register(node)
	}
}

// ComponentRegistry is an explicit factory map from component type name to a
// prototype whose New method builds instances. Registration happens at
// process start; there is no ambient dynamic loading.
type ComponentRegistry struct {
	components map[string]types.Node
	sync.RWMutex
}

var _ types.ComponentRegistry = (*ComponentRegistry)(nil)

// Register adds a component prototype. Returns an error if node.Type() is
// already registered.
func (r *ComponentRegistry) Register(node types.Node) error {
	r.Lock()
	defer r.Unlock()
	if r.components == nil {
		r.components = make(map[string]types.Node)
	}
	if _, ok := r.components[node.Type()]; ok {
		return errors.New("the component already exists. nodeType=" + node.Type())
	}
	r.components[node.Type()] = node
	return nil
}

// Unregister removes a component type.
func (r *ComponentRegistry) Unregister(nodeType string) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.components[nodeType]; !ok {
		return fmt.Errorf("component not found. nodeType=%s", nodeType)
	}
	delete(r.components, nodeType)
	return nil
}

// NewNode creates a fresh instance of the given component type.
func (r *ComponentRegistry) NewNode(nodeType string) (types.Node, error) {
	r.RLock()
	defer r.RUnlock()
	node, ok := r.components[nodeType]
	if !ok {
		return nil, fmt.Errorf("component not found. nodeType=%s", nodeType)
	}
	return node.New(), nil
}

// GetComponents returns a copy of the registered prototype table.
func (r *ComponentRegistry) GetComponents() map[string]types.Node {
	r.RLock()
	defer r.RUnlock()
	components := make(map[string]types.Node, len(r.components))
	for k, v := range r.components {
		components[k] = v
	}
	return components
}
