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

// Package engine implements the flow runtime: the per-flow node table and
// wiring dispatcher, the node instance actor, the event bus and the context
// stores. It instantiates node components against the registry, routes
// messages between them and contains node failures to the failing node.
package engine

import (
	"fmt"
	"sync"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/scheduler"
	"github.com/wireflow/wireflow/utils/store"
	"github.com/wireflow/wireflow/utils/str"
)

// Flow owns the node table for one flow scope and performs wiring fan-out.
// Created by NewFlow from a flow definition; destroyed by Close. Nodes live
// exactly as long as the flow.
type Flow struct {
	// Id is the flow's identifier from the definition.
	Id string

	def    types.FlowDef
	config types.Config

	nodes  map[string]*NodeCtx
	order  []string
	wiring map[string][][]string

	bus   *EventBus
	sched *scheduler.Scheduler
	store *store.MemoryStore

	closeOnce sync.Once
}

// NewFlow instantiates and starts every node of the definition. Malformed
// wiring, duplicate or empty node ids, unresolvable target ids and unknown
// component types are configuration errors rejected here, never coerced.
func NewFlow(config types.Config, def types.FlowDef) (*Flow, error) {
	if config.ComponentsRegistry == nil {
		return nil, fmt.Errorf("flow %s: no components registry configured", def.Flow.Id)
	}
	f := &Flow{
		Id:     def.Flow.Id,
		def:    def,
		config: config,
		nodes:  make(map[string]*NodeCtx, len(def.Nodes)),
		order:  make([]string, 0, len(def.Nodes)),
		wiring: make(map[string][][]string, len(def.Nodes)),
		bus:    NewEventBus(config.Logger),
		sched:  scheduler.New(config.Logger),
		store:  store.NewMemoryStore(),
	}

	if err := f.load(); err != nil {
		f.teardown(false)
		return nil, err
	}
	return f, nil
}

func (f *Flow) load() error {
	ids := make(map[string]struct{}, len(f.def.Nodes))
	for i, def := range f.def.Nodes {
		if def.Id == "" {
			def.Id = fmt.Sprintf("node%d", i)
		}
		if _, dup := ids[def.Id]; dup {
			return fmt.Errorf("flow %s: duplicate node id %s", f.Id, def.Id)
		}
		ids[def.Id] = struct{}{}
	}
	// wiring targets must resolve at load time; the routing-path warning
	// only covers nodes that disappear afterwards
	for _, def := range f.def.Nodes {
		for _, port := range def.Wiring {
			for _, target := range port {
				if _, ok := ids[target]; !ok {
					return fmt.Errorf("flow %s: node %s wired to unknown node %s", f.Id, def.Id, target)
				}
			}
		}
	}

	for _, def := range f.def.Nodes {
		node, err := f.config.ComponentsRegistry.NewNode(def.Type)
		if err != nil {
			return fmt.Errorf("flow %s: node %s: %w", f.Id, def.Id, err)
		}
		configuration := resolveProperties(def.Configuration, f.config.Properties)
		if err := node.Init(f.config, configuration); err != nil {
			return fmt.Errorf("flow %s: node %s init: %w", f.Id, def.Id, err)
		}
		ctx := newNodeCtx(f, def, node)
		f.nodes[def.Id] = ctx
		f.order = append(f.order, def.Id)
		f.wiring[def.Id] = def.Wiring
	}

	// all nodes exist and are wired; start mailboxes, then run the second
	// lifecycle phase where sources arm timers and observers subscribe
	for _, id := range f.order {
		f.nodes[id].start()
	}
	for _, id := range f.order {
		ctx := f.nodes[id]
		if starter, ok := ctx.node.(types.Starter); ok {
			if err := starter.OnStart(ctx); err != nil {
				return fmt.Errorf("flow %s: node %s start: %w", f.Id, id, err)
			}
		}
	}
	return nil
}

// Route delivers msg to every node wired to the source's output port.
// Fan-out to N targets delivers N-1 independent deep copies and the original
// to the last target, in declared wire order. An empty or out-of-range port
// is a no-op; an unknown target id is dropped with a logged warning, never a
// failure of the routing call.
func (f *Flow) Route(sourceNodeId string, outputIndex int, msg types.Message) {
	ports, ok := f.wiring[sourceNodeId]
	if !ok || outputIndex < 0 || outputIndex >= len(ports) {
		return
	}
	targets := ports[outputIndex]
	for i, targetId := range targets {
		target, ok := f.nodes[targetId]
		if !ok {
			f.logger().Printf("flow %s: node %s output %d wired to unknown node %s, message dropped", f.Id, sourceNodeId, outputIndex, targetId)
			continue
		}
		if i < len(targets)-1 {
			target.Deliver(msg.Copy())
		} else {
			target.Deliver(msg)
		}
	}
}

// RouteMany applies Route independently per output index: msgs[i] goes to
// output i, nil entries are skipped, declared output order is preserved.
func (f *Flow) RouteMany(sourceNodeId string, msgs []*types.Message) {
	for i, msg := range msgs {
		if msg == nil {
			continue
		}
		f.Route(sourceNodeId, i, *msg)
	}
}

// Deliver routes an inbound message from outside the graph to a node's
// input. Returns false when the node id is unknown.
func (f *Flow) Deliver(nodeId string, msg types.Message) bool {
	ctx, ok := f.nodes[nodeId]
	if !ok {
		f.logger().Printf("flow %s: deliver to unknown node %s, message dropped", f.Id, nodeId)
		return false
	}
	ctx.Deliver(msg)
	return true
}

// GetNode returns the running instance for a node id.
func (f *Flow) GetNode(nodeId string) (*NodeCtx, bool) {
	ctx, ok := f.nodes[nodeId]
	return ctx, ok
}

// NodeIds returns the node ids in definition order.
func (f *Flow) NodeIds() []string {
	ids := make([]string, len(f.order))
	copy(ids, f.order)
	return ids
}

// Definition returns the flow definition this flow was built from.
func (f *Flow) Definition() types.FlowDef {
	return f.def
}

// Bus returns the flow's event bus.
func (f *Flow) Bus() types.EventBus {
	return f.bus
}

// Close undeploys the flow: every node is closed with a close notification,
// all flow timers are cancelled and the flow context store is cleared.
// removed reports whether the flow is deleted rather than replaced.
func (f *Flow) Close(removed bool) {
	f.closeOnce.Do(func() {
		f.teardown(removed)
	})
}

func (f *Flow) teardown(removed bool) {
	// close in reverse definition order so sources stop before sinks
	for i := len(f.order) - 1; i >= 0; i-- {
		f.nodes[f.order[i]].Close(removed)
	}
	f.sched.Close()
	f.bus.Close()
	f.store.Clear()
}

func (f *Flow) logger() types.Logger {
	return types.NewLogger(f.config.Logger)
}

func (f *Flow) submit(task func()) {
	if f.config.Pool != nil {
		if err := f.config.Pool.Submit(task); err != nil {
			f.logger().Printf("flow %s: submit task: %s", f.Id, err)
		}
		return
	}
	go task()
}

// resolveProperties substitutes ${global.key} references in string
// configuration values with process properties, once, at load time.
func resolveProperties(configuration types.Configuration, properties map[string]string) types.Configuration {
	if configuration == nil {
		return make(types.Configuration)
	}
	if len(properties) == 0 {
		return configuration
	}
	dict := make(map[string]string, len(properties))
	for k, v := range properties {
		dict["global."+k] = v
	}
	resolved := make(types.Configuration, len(configuration))
	for key, value := range configuration {
		if s, ok := value.(string); ok && str.CheckHasVar(s) {
			resolved[key] = str.SprintfDict(s, dict)
		} else {
			resolved[key] = value
		}
	}
	return resolved
}
