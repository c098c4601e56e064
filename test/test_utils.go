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

// Package test provides shared helpers for component tests: a capturing
// NodeContext and registry-backed node construction.
package test

import (
	"errors"
	"sync"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/engine"
	"github.com/wireflow/wireflow/scheduler"
	"github.com/wireflow/wireflow/utils/store"
)

// CreateAndInitNode builds and initializes a node of the given type from a
// package registry.
func CreateAndInitNode(targetNodeType string, initConfig types.Configuration, registry *types.SafeComponentSlice) (types.Node, error) {
	var nodeFactory types.Node
	for _, component := range registry.Components() {
		if component.Type() == targetNodeType {
			nodeFactory = component
		}
	}
	if nodeFactory == nil {
		return nil, errors.New("component not found: " + targetNodeType)
	}
	node := nodeFactory.New()
	err := node.Init(types.NewConfig(), initConfig)
	return node, err
}

// Sent is one captured emission.
type Sent struct {
	Output int
	Msg    types.Message
}

// NodeContext is a capturing types.NodeContext for driving single nodes in
// tests. Emissions, statuses, errors and completions are recorded; timers run
// on a real scheduler; the event bus is a real bus so observer components can
// be tested against it.
type NodeContext struct {
	Id  string
	Cfg types.Config

	//OnSend, when set, is called for every captured emission.
	OnSend func(output int, msg types.Message)

	sched       *scheduler.Scheduler
	bus         types.EventBus
	nodeStore   types.KVStore
	flowStore   types.KVStore
	globalStore types.KVStore

	sent      []Sent
	statuses  []types.Status
	errs      []error
	completed []types.Message
	mu        sync.Mutex
}

var _ types.NodeContext = (*NodeContext)(nil)

// NewNodeContext creates a capturing context for one node id.
func NewNodeContext(id string) *NodeContext {
	cfg := types.NewConfig()
	return &NodeContext{
		Id:          id,
		Cfg:         cfg,
		sched:       scheduler.New(cfg.Logger),
		bus:         engine.NewEventBus(cfg.Logger),
		nodeStore:   store.NewMemoryStore(),
		flowStore:   store.NewMemoryStore(),
		globalStore: store.NewMemoryStore(),
	}
}

// Close cancels outstanding timers and drops bus subscriptions.
func (c *NodeContext) Close() {
	c.sched.Close()
	c.bus.Close()
}

func (c *NodeContext) Send(outputIndex int, msg types.Message) {
	c.mu.Lock()
	c.sent = append(c.sent, Sent{Output: outputIndex, Msg: msg})
	onSend := c.OnSend
	c.mu.Unlock()
	if onSend != nil {
		onSend(outputIndex, msg)
	}
}

func (c *NodeContext) SendMany(msgs []*types.Message) {
	for i, msg := range msgs {
		if msg == nil {
			continue
		}
		c.Send(i, *msg)
	}
}

func (c *NodeContext) ReportStatus(status types.Status) {
	c.mu.Lock()
	c.statuses = append(c.statuses, status)
	c.mu.Unlock()
	c.bus.PublishStatus(c.Id, status)
}

func (c *NodeContext) ReportError(err error, msg *types.Message) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
	c.bus.PublishError(c.Id, err, msg)
}

func (c *NodeContext) Done(msg types.Message) {
	c.mu.Lock()
	c.completed = append(c.completed, msg)
	c.mu.Unlock()
	c.bus.PublishComplete(c.Id, msg)
}

func (c *NodeContext) ScheduleOnce(delay time.Duration, f func()) (types.TimerHandle, error) {
	return c.sched.Once(delay, f)
}

func (c *NodeContext) ScheduleRepeating(interval time.Duration, f func()) (types.TimerHandle, error) {
	return c.sched.Repeat(interval, f)
}

func (c *NodeContext) CancelTimer(h types.TimerHandle) {
	if h != nil {
		h.Cancel()
	}
}

func (c *NodeContext) ContextStore(scope types.ContextScope) types.KVStore {
	switch scope {
	case types.ScopeNode:
		return c.nodeStore
	case types.ScopeFlow:
		return c.flowStore
	default:
		return c.globalStore
	}
}

func (c *NodeContext) Bus() types.EventBus {
	return c.bus
}

func (c *NodeContext) NewMessage(payload interface{}) types.Message {
	return types.NewMessage(payload)
}

func (c *NodeContext) GetSelfId() string {
	return c.Id
}

func (c *NodeContext) Config() types.Config {
	return c.Cfg
}

// SentMsgs returns a snapshot of the captured emissions.
func (c *NodeContext) SentMsgs() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

// Statuses returns a snapshot of the captured status reports.
func (c *NodeContext) Statuses() []types.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Status, len(c.statuses))
	copy(out, c.statuses)
	return out
}

// Errors returns a snapshot of the captured error reports.
func (c *NodeContext) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Completed returns a snapshot of the captured completion signals.
func (c *NodeContext) Completed() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.completed))
	copy(out, c.completed)
	return out
}

// WaitSent polls until at least n emissions were captured or the timeout
// elapses, returning the snapshot either way.
func (c *NodeContext) WaitSent(n int, timeout time.Duration) []Sent {
	deadline := time.Now().Add(timeout)
	for {
		got := c.SentMsgs()
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(time.Millisecond)
	}
}
