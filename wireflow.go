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

// Package wireflow is a runtime for flow-based, event-driven pipelines: a
// directed graph of small processing nodes exchanging messages over named
// wires. Flows are assembled declaratively; the runtime instantiates the
// nodes, routes messages between them and manages the stateful time-based
// behaviors (sequencing, batching, rate limiting, timed triggers).
//
// Flow definition format:
//
//	{
//	  "flow": { "id": "flow01" },
//	  "nodes": [
//	    {
//	      "id": "s1",
//	      "type": "split",
//	      "configuration": { "separator": "," }
//	    },
//	    {
//	      "id": "s2",
//	      "type": "join",
//	      "configuration": { "kind": "string", "separator": "-" }
//	    }
//	  ]
//	}
//
// Each node's wiring is the ordered list of its output ports; every port
// lists the downstream node ids it feeds:
//
//	"wiring": [["s2", "s3"], ["s4"]]
//
// Deploy a flow and deliver a message:
//
//	flow, err := wireflow.Deploy("flow01", []byte(flowFile))
//	flow.Deliver("s1", types.NewMessage("alpha,beta,gamma"))
//
// Undeploy it:
//
//	wireflow.Undeploy("flow01")
package wireflow

import (
	"fmt"
	"sync"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/engine"
	"github.com/wireflow/wireflow/utils/store"
)

// DefaultEngine is the process-wide flow pool used by the package-level
// functions.
var DefaultEngine = NewEngine()

// Engine is a pool of deployed flows sharing one configuration and one
// process-scoped context store.
type Engine struct {
	config types.Config
	flows  sync.Map
}

// NewEngine creates an engine with defaults: the process registry, the JSON
// parser and an in-memory global context store.
func NewEngine(opts ...types.Option) *Engine {
	config := types.NewConfig(opts...)
	if config.ComponentsRegistry == nil {
		config.ComponentsRegistry = Registry
	}
	if config.Parser == nil {
		config.Parser = &engine.JsonParser{}
	}
	if config.Global == nil {
		config.Global = store.NewMemoryStore()
	}
	return &Engine{config: config}
}

// Config returns the engine configuration.
func (e *Engine) Config() types.Config {
	return e.config
}

// Deploy loads a flow definition and starts its nodes. If id is empty the
// definition's flow.id is used. Deploying over an existing id replaces it:
// the old flow is closed first, then the new one is created.
func (e *Engine) Deploy(id string, dsl []byte) (*engine.Flow, error) {
	def, err := e.config.Parser.DecodeFlow(e.config, dsl)
	if err != nil {
		return nil, err
	}
	if id != "" {
		def.Flow.Id = id
	}
	if def.Flow.Id == "" {
		return nil, fmt.Errorf("deploy: flow id is empty")
	}
	return e.DeployDef(def)
}

// DeployDef deploys an already-decoded flow definition.
func (e *Engine) DeployDef(def types.FlowDef) (*engine.Flow, error) {
	flow, err := engine.NewFlow(e.config, def)
	if err != nil {
		return nil, err
	}
	if old, loaded := e.flows.Load(def.Flow.Id); loaded {
		old.(*engine.Flow).Close(false)
	}
	e.flows.Store(def.Flow.Id, flow)
	return flow, nil
}

// Get returns the deployed flow with the given id.
func (e *Engine) Get(id string) (*engine.Flow, bool) {
	v, ok := e.flows.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*engine.Flow), true
}

// Undeploy closes and removes a flow. Nodes receive a close notification
// with removed=true.
func (e *Engine) Undeploy(id string) {
	if v, ok := e.flows.Load(id); ok {
		v.(*engine.Flow).Close(true)
		e.flows.Delete(id)
	}
}

// Deliver routes an inbound message to a node input of a deployed flow.
func (e *Engine) Deliver(flowId string, nodeId string, msg types.Message) bool {
	flow, ok := e.Get(flowId)
	if !ok {
		return false
	}
	return flow.Deliver(nodeId, msg)
}

// Range calls f for every deployed flow until f returns false.
func (e *Engine) Range(f func(flow *engine.Flow) bool) {
	e.flows.Range(func(_, value any) bool {
		return f(value.(*engine.Flow))
	})
}

// Stop closes every deployed flow.
func (e *Engine) Stop() {
	e.flows.Range(func(key, value any) bool {
		value.(*engine.Flow).Close(false)
		e.flows.Delete(key)
		return true
	})
}

// Deploy loads a flow into the default engine.
func Deploy(id string, dsl []byte) (*engine.Flow, error) {
	return DefaultEngine.Deploy(id, dsl)
}

// Get returns a flow from the default engine.
func Get(id string) (*engine.Flow, bool) {
	return DefaultEngine.Get(id)
}

// Undeploy closes and removes a flow from the default engine.
func Undeploy(id string) {
	DefaultEngine.Undeploy(id)
}

// Stop closes every flow of the default engine.
func Stop() {
	DefaultEngine.Stop()
}
