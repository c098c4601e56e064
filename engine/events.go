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

package engine

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/utils/str"
)

// subscriberBuffer is the per-subscriber queue depth. A subscriber that falls
// further behind loses events rather than back-pressuring the publisher.
const subscriberBuffer = 64

// EventBus is the flow-scoped publish/subscribe channel for node status
// changes, errors and completions. Each subscriber runs on its own goroutine
// fed by a buffered channel, so publishing never blocks and a failing
// subscriber cannot affect its peers.
type EventBus struct {
	logger types.Logger
	subs   map[int]*busSubscriber
	nextId int
	closed bool
	mu     sync.RWMutex
}

var _ types.EventBus = (*EventBus)(nil)

type busSubscriber struct {
	spec    types.EventSubscription
	events  chan types.FlowEvent
	dropped int64
}

// NewEventBus creates an event bus. logger receives subscriber panics and
// overflow warnings.
func NewEventBus(logger types.Logger) *EventBus {
	return &EventBus{
		logger: types.NewLogger(logger),
		subs:   make(map[int]*busSubscriber),
	}
}

// Subscribe registers a subscription and returns a function that removes it.
// The handler runs on a dedicated goroutine; unsubscribing stops it.
func (b *EventBus) Subscribe(sub types.EventSubscription) func() {
	s := &busSubscriber{
		spec:   sub,
		events: make(chan types.FlowEvent, subscriberBuffer),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.nextId
	b.nextId++
	b.subs[id] = s
	b.mu.Unlock()

	go b.run(s)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.events)
			}
			b.mu.Unlock()
		})
	}
}

// PublishStatus broadcasts a status-changed event.
func (b *EventBus) PublishStatus(nodeId string, status types.Status) {
	b.publish(types.FlowEvent{
		Type:   types.EventStatusChanged,
		NodeId: nodeId,
		Status: &status,
	})
}

// PublishComplete broadcasts a node-complete event.
func (b *EventBus) PublishComplete(nodeId string, msg types.Message) {
	b.publish(types.FlowEvent{
		Type:   types.EventNodeComplete,
		NodeId: nodeId,
		Msg:    &msg,
	})
}

// PublishError broadcasts a node-error event. A subscriber whose allow-list
// names the source node claims the error; uncaught-only subscribers receive
// only unclaimed errors.
func (b *EventBus) PublishError(nodeId string, err error, msg *types.Message) {
	event := types.FlowEvent{
		Type:   types.EventNodeError,
		NodeId: nodeId,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if msg != nil {
		copied := msg.Copy()
		event.Msg = &copied
	}

	b.mu.RLock()
	targets := make([]*busSubscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if !matchesType(s.spec.Types, event.Type) {
			continue
		}
		if len(s.spec.Scope) > 0 {
			if str.Contains(s.spec.Scope, nodeId) {
				event.Caught = true
				targets = append(targets, s)
			}
			continue
		}
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if s.spec.UncaughtOnly && event.Caught {
			continue
		}
		b.offer(s, event)
	}
}

// Close drops every subscription and stops their goroutines.
func (b *EventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.events)
	}
	b.mu.Unlock()
}

func (b *EventBus) publish(event types.FlowEvent) {
	b.mu.RLock()
	targets := make([]*busSubscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if !matchesType(s.spec.Types, event.Type) {
			continue
		}
		if len(s.spec.Scope) > 0 && !str.Contains(s.spec.Scope, event.NodeId) {
			continue
		}
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.offer(s, event)
	}
}

// offer is the fire-and-forget delivery: a full subscriber queue drops the
// event and counts it.
func (b *EventBus) offer(s *busSubscriber, event types.FlowEvent) {
	select {
	case s.events <- event:
	default:
		if n := atomic.AddInt64(&s.dropped, 1); n == 1 || n%100 == 0 {
			b.logger.Printf("eventbus: slow subscriber, %d events dropped", n)
		}
	}
}

func (b *EventBus) run(s *busSubscriber) {
	for event := range s.events {
		b.handle(s, event)
	}
}

func (b *EventBus) handle(s *busSubscriber, event types.FlowEvent) {
	defer func() {
		if e := recover(); e != nil {
			b.logger.Printf("eventbus: subscriber panic on %s event: %v\n%s", event.Type, e, debug.Stack())
		}
	}()
	s.spec.Handler(event)
}

func matchesType(types []string, eventType string) bool {
	if len(types) == 0 {
		return true
	}
	return str.Contains(types, eventType)
}
