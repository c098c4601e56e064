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

// Package types defines the contracts between the wireflow engine and node
// components: the message envelope, the node lifecycle, the node-facing
// context, the component registry and the flow definition format.
package types

import (
	"time"
)

// Configuration holds the type-specific fields of one node definition. The
// engine passes it to Node.Init as an opaque record; each component decodes
// the fields it understands.
type Configuration map[string]interface{}

// Node is the contract every component implements. A node is constructed from
// a configuration record and must not block on I/O during Init. OnMsg handles
// one inbound message; the engine guarantees no two concurrent OnMsg calls on
// the same instance. OnClose flushes in-flight state and releases resources;
// it must be idempotent and safe to call on a node that never received a
// message. Timers obtained through the NodeContext are cancelled by the
// engine before OnClose runs.
type Node interface {
	// New creates a fresh instance. Every node in a flow gets its own
	// instance with independent state.
	New() Node
	// Type is the component type name used in flow definitions. Use `/` to
	// namespace custom components, for example x/myNode.
	Type() string
	// Init applies the node's configuration. Returning an error rejects the
	// whole flow at load time.
	Init(config Config, configuration Configuration) error
	// OnMsg processes one inbound message. Outcomes observable outside the
	// node are emissions via ctx.Send/SendMany, status updates and errors
	// reported on the event bus.
	OnMsg(ctx NodeContext, msg Message)
	// OnClose releases resources. removed reports whether the node is being
	// deleted rather than restarted with the flow.
	OnClose(removed bool)
}

// Starter is implemented by nodes that need a running flow before they act:
// source nodes arm their timers here and observer nodes subscribe to the
// event bus. OnStart is called once, after every node in the flow has been
// constructed and wired.
type Starter interface {
	OnStart(ctx NodeContext) error
}

// ContextScope selects one of the three shared key-value stores.
type ContextScope int

const (
	ScopeNode ContextScope = iota
	ScopeFlow
	ScopeGlobal
)

// KVStore is a shared mutable key-value map. Implementations are safe for
// concurrent use; callers needing multi-key atomicity must lock externally.
type KVStore interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Delete(key string)
	Keys() []string
}

// TimerHandle is an opaque reference to one scheduled callback. It is owned
// exclusively by the node that created it. Cancel guarantees the callback
// does not fire after it returns.
type TimerHandle interface {
	Cancel()
	// Done reports that the callback can no longer fire: the handle was
	// cancelled, or a one-shot already ran.
	Done() bool
}

// NodeContext is the engine surface exposed to a node while it runs. One
// context belongs to exactly one node instance.
type NodeContext interface {
	// Send routes msg to the wires declared for outputIndex. Unknown output
	// indexes are a no-op.
	Send(outputIndex int, msg Message)
	// SendMany routes msgs[i] to output i, skipping nil entries, preserving
	// the declared per-output ordering.
	SendMany(msgs []*Message)
	// ReportStatus publishes a status-changed event and records the status
	// on the node instance.
	ReportStatus(status Status)
	// ReportError publishes a node-error event. msg, when not nil, is the
	// message being processed when the failure occurred.
	ReportError(err error, msg *Message)
	// Done publishes a node-complete event for msg.
	Done(msg Message)
	// ScheduleOnce arms a one-shot callback owned by this node. Delays above
	// MaxTimerInterval are rejected.
	ScheduleOnce(delay time.Duration, f func()) (TimerHandle, error)
	// ScheduleRepeating arms a periodic callback owned by this node.
	ScheduleRepeating(interval time.Duration, f func()) (TimerHandle, error)
	// CancelTimer cancels a handle previously returned by this context.
	CancelTimer(h TimerHandle)
	// ContextStore returns the shared store for the given scope.
	ContextStore(scope ContextScope) KVStore
	// Bus returns the owning flow's event bus.
	Bus() EventBus
	// NewMessage creates a message with a fresh correlation id.
	NewMessage(payload interface{}) Message
	// GetSelfId returns the node's id in the flow definition.
	GetSelfId() string
	// Config returns the engine configuration.
	Config() Config
}

// ComponentRegistry maps component type names to factories. Registration
// happens at process start; the engine resolves node types against it when a
// flow is loaded.
type ComponentRegistry interface {
	// Register adds a component. Returns an error if node.Type() is taken.
	Register(node Node) error
	// Unregister removes a component type.
	Unregister(nodeType string) error
	// NewNode creates a fresh instance of the given component type.
	NewNode(nodeType string) (Node, error)
	// GetComponents returns the registered component prototypes.
	GetComponents() map[string]Node
}

// Parser decodes flow definitions. The default implementation is JSON; other
// formats plug in via Config.Parser.
type Parser interface {
	DecodeFlow(config Config, dsl []byte) (FlowDef, error)
	EncodeFlow(def FlowDef) ([]byte, error)
}

// Pool is a worker pool for asynchronous tasks. If not configured, plain
// goroutines are used.
type Pool interface {
	Submit(task func()) error
	Release()
}
