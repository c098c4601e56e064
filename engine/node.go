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
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/utils/store"
)

// closeGrace bounds how long Close waits for an in-flight OnMsg before
// calling the node's OnClose anyway.
const closeGrace = 5 * time.Second

// NodeCtx is one running node instance: the component instance, its mailbox
// goroutine and the NodeContext surface handed to the component. A node
// processes at most one inbound message at a time, in arrival order.
type NodeCtx struct {
	node types.Node
	def  *types.NodeDef
	flow *Flow

	mailbox chan types.Message
	quit    chan struct{}
	done    chan struct{}

	status   *types.Status
	statusMu sync.RWMutex

	timers  map[types.TimerHandle]struct{}
	timerMu sync.Mutex

	store *store.MemoryStore

	closeOnce sync.Once
}

var _ types.NodeContext = (*NodeCtx)(nil)

func newNodeCtx(flow *Flow, def *types.NodeDef, node types.Node) *NodeCtx {
	size := flow.config.MailboxSize
	if size <= 0 {
		size = types.DefaultMailboxSize
	}
	return &NodeCtx{
		node:    node,
		def:     def,
		flow:    flow,
		mailbox: make(chan types.Message, size),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		timers:  make(map[types.TimerHandle]struct{}),
		store:   store.NewMemoryStore(),
	}
}

// start launches the mailbox goroutine.
func (ctx *NodeCtx) start() {
	go func() {
		defer close(ctx.done)
		for {
			select {
			case <-ctx.quit:
				return
			case msg := <-ctx.mailbox:
				ctx.dispatch(msg)
			}
		}
	}()
}

// Deliver enqueues one inbound message. Non-blocking: a full mailbox or a
// closed node drops the message with a logged warning.
func (ctx *NodeCtx) Deliver(msg types.Message) {
	select {
	case <-ctx.quit:
		ctx.flow.logger().Printf("flow %s: node %s is closed, message %s dropped", ctx.flow.Id, ctx.def.Id, msg.CorrelationId)
		return
	default:
	}
	select {
	case ctx.mailbox <- msg:
	default:
		ctx.flow.logger().Printf("flow %s: node %s mailbox full, message %s dropped", ctx.flow.Id, ctx.def.Id, msg.CorrelationId)
	}
}

// Close shuts the node down: cancels every timer the node owns, stops the
// mailbox goroutine and calls the component's OnClose. Idempotent; safe on a
// node that never received a message.
func (ctx *NodeCtx) Close(removed bool) {
	ctx.closeOnce.Do(func() {
		ctx.cancelAllTimers()
		close(ctx.quit)
		select {
		case <-ctx.done:
		case <-time.After(closeGrace):
			ctx.flow.logger().Printf("flow %s: node %s still processing after %v, closing anyway", ctx.flow.Id, ctx.def.Id, closeGrace)
		}
		ctx.closeNode(removed)
	})
}

func (ctx *NodeCtx) closeNode(removed bool) {
	defer func() {
		if e := recover(); e != nil {
			ctx.flow.logger().Printf("flow %s: node %s close panic: %v\n%s", ctx.flow.Id, ctx.def.Id, e, debug.Stack())
		}
	}()
	ctx.node.OnClose(removed)
}

// dispatch runs the component's OnMsg with failure containment: a panic is
// converted into a node-error event and the mailbox keeps running.
func (ctx *NodeCtx) dispatch(msg types.Message) {
	if ctx.isDebugMode() {
		ctx.onDebug(types.In, msg, nil)
	}
	defer func() {
		if e := recover(); e != nil {
			err := fmt.Errorf("node %s panic: %v", ctx.def.Id, e)
			ctx.flow.logger().Printf("flow %s: %s\n%s", ctx.flow.Id, err, debug.Stack())
			ctx.ReportError(err, &msg)
		}
	}()
	ctx.node.OnMsg(ctx, msg)
}

// Definition returns the node's definition record.
func (ctx *NodeCtx) Definition() *types.NodeDef {
	return ctx.def
}

// Status returns the node's current status record, nil when none was
// reported yet.
func (ctx *NodeCtx) Status() *types.Status {
	ctx.statusMu.RLock()
	defer ctx.statusMu.RUnlock()
	return ctx.status
}

// Send routes msg to the wires declared for outputIndex.
func (ctx *NodeCtx) Send(outputIndex int, msg types.Message) {
	if ctx.isDebugMode() {
		ctx.onDebug(types.Out, msg, nil)
	}
	ctx.flow.Route(ctx.def.Id, outputIndex, msg)
}

// SendMany routes msgs[i] to output i, skipping nil entries.
func (ctx *NodeCtx) SendMany(msgs []*types.Message) {
	ctx.flow.RouteMany(ctx.def.Id, msgs)
}

// ReportStatus records the status and publishes a status-changed event.
func (ctx *NodeCtx) ReportStatus(status types.Status) {
	ctx.statusMu.Lock()
	ctx.status = &status
	ctx.statusMu.Unlock()
	ctx.flow.bus.PublishStatus(ctx.def.Id, status)
}

// ReportError publishes a node-error event. Errors never propagate as
// routing-layer failures; observers consume them from the bus.
func (ctx *NodeCtx) ReportError(err error, msg *types.Message) {
	if ctx.isDebugMode() && msg != nil {
		ctx.onDebug(types.Out, *msg, err)
	}
	ctx.flow.bus.PublishError(ctx.def.Id, err, msg)
}

// Done publishes a node-complete event for msg.
func (ctx *NodeCtx) Done(msg types.Message) {
	ctx.flow.bus.PublishComplete(ctx.def.Id, msg)
}

// ScheduleOnce arms a one-shot callback owned by this node.
func (ctx *NodeCtx) ScheduleOnce(delay time.Duration, f func()) (types.TimerHandle, error) {
	h, err := ctx.flow.sched.Once(delay, f)
	if err != nil {
		return nil, err
	}
	ctx.trackTimer(h)
	return h, nil
}

// ScheduleRepeating arms a periodic callback owned by this node.
func (ctx *NodeCtx) ScheduleRepeating(interval time.Duration, f func()) (types.TimerHandle, error) {
	h, err := ctx.flow.sched.Repeat(interval, f)
	if err != nil {
		return nil, err
	}
	ctx.trackTimer(h)
	return h, nil
}

// CancelTimer cancels a handle created through this context. No callback
// fires after it returns.
func (ctx *NodeCtx) CancelTimer(h types.TimerHandle) {
	if h == nil {
		return
	}
	ctx.timerMu.Lock()
	delete(ctx.timers, h)
	ctx.timerMu.Unlock()
	h.Cancel()
}

// ContextStore returns the node, flow or process scoped store.
func (ctx *NodeCtx) ContextStore(scope types.ContextScope) types.KVStore {
	switch scope {
	case types.ScopeNode:
		return ctx.store
	case types.ScopeFlow:
		return ctx.flow.store
	default:
		return ctx.flow.config.Global
	}
}

// Bus returns the owning flow's event bus.
func (ctx *NodeCtx) Bus() types.EventBus {
	return ctx.flow.bus
}

// NewMessage creates a message with a fresh correlation id.
func (ctx *NodeCtx) NewMessage(payload interface{}) types.Message {
	return types.NewMessage(payload)
}

// GetSelfId returns the node's id in the flow definition.
func (ctx *NodeCtx) GetSelfId() string {
	return ctx.def.Id
}

// Config returns the engine configuration.
func (ctx *NodeCtx) Config() types.Config {
	return ctx.flow.config
}

// trackTimer records a live handle and sweeps ones that already finished, so
// fired one-shots and internally cancelled deadlines are not retained until
// node close.
func (ctx *NodeCtx) trackTimer(h types.TimerHandle) {
	ctx.timerMu.Lock()
	for old := range ctx.timers {
		if old.Done() {
			delete(ctx.timers, old)
		}
	}
	ctx.timers[h] = struct{}{}
	ctx.timerMu.Unlock()
}

func (ctx *NodeCtx) cancelAllTimers() {
	ctx.timerMu.Lock()
	pending := make([]types.TimerHandle, 0, len(ctx.timers))
	for h := range ctx.timers {
		pending = append(pending, h)
	}
	ctx.timers = make(map[types.TimerHandle]struct{})
	ctx.timerMu.Unlock()
	for _, h := range pending {
		h.Cancel()
	}
}

func (ctx *NodeCtx) isDebugMode() bool {
	return ctx.def.DebugMode || ctx.flow.def.Flow.DebugMode
}

func (ctx *NodeCtx) onDebug(flowType string, msg types.Message, err error) {
	if onDebug := ctx.flow.config.OnDebug; onDebug != nil {
		ctx.flow.submit(func() {
			onDebug(ctx.flow.Id, flowType, ctx.def.Id, msg.Copy(), err)
		})
	}
}
