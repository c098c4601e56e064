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

// FlowDef is one deployable flow: a named scope containing an ordered list of
// node definitions and their wiring. Produced by the editor/API layer and
// consumed by the engine at load time.
type FlowDef struct {
	Flow  FlowInfo   `json:"flow"`
	Nodes []*NodeDef `json:"nodes"`
}

// FlowInfo is the flow's base information.
type FlowInfo struct {
	// Id identifies the flow; the unit of deploy/undeploy.
	Id string `json:"id"`
	// Name is a display name, any string.
	Name string `json:"name,omitempty"`
	// DebugMode, when true, enables the OnDebug callback for every node of
	// the flow. A node's own DebugMode takes precedence.
	DebugMode bool `json:"debugMode,omitempty"`
	// AdditionalInfo carries editor metadata the engine ignores.
	AdditionalInfo map[string]string `json:"additionalInfo,omitempty"`
}

// NodeDef is one node's definition inside a flow.
type NodeDef struct {
	// Id is the node's unique identifier within the flow, any string.
	Id string `json:"id"`
	// Type selects the registered component that implements the node.
	Type string `json:"type"`
	// Name is a display name, any string.
	Name string `json:"name,omitempty"`
	// Wiring is the ordered list of output ports; each port lists the ids of
	// the downstream nodes it feeds, in delivery order.
	Wiring [][]string `json:"wiring,omitempty"`
	// DebugMode enables the OnDebug callback for this node.
	DebugMode bool `json:"debugMode,omitempty"`
	// Configuration holds the component's type-specific fields. A function
	// node carries its script here, an inject node its schedule, and so on.
	Configuration Configuration `json:"configuration,omitempty"`
	// AdditionalInfo carries editor metadata the engine ignores.
	AdditionalInfo NodeAdditionalInfo `json:"additionalInfo,omitempty"`
}

// NodeAdditionalInfo holds editor layout information (reserved).
type NodeAdditionalInfo struct {
	Description string `json:"description,omitempty"`
	LayoutX     int    `json:"layoutX,omitempty"`
	LayoutY     int    `json:"layoutY,omitempty"`
}
