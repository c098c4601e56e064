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
	"time"
)

const (
	// DefaultMailboxSize is the per-node inbound queue capacity used when
	// Config.MailboxSize is zero.
	DefaultMailboxSize = 1024
	// DefaultScriptMaxExecutionTime bounds one function-node script run.
	DefaultScriptMaxExecutionTime = 2000 * time.Millisecond
)

// Config is the engine configuration shared by every flow and node.
type Config struct {
	// OnDebug, when set, is called for every message entering and leaving a
	// node with debugMode enabled in its definition.
	// - flowId: the owning flow.
	// - flowType: In or Out relative to the node.
	// - nodeId: the node the message passed.
	// - msg: a copy of the message.
	// - err: error information, if any.
	OnDebug func(flowId string, flowType string, nodeId string, msg Message, err error)
	// Pool runs asynchronous engine tasks. Defaults to plain goroutines.
	Pool Pool
	// ComponentsRegistry resolves node types at flow load. Defaults to the
	// process-wide registry.
	ComponentsRegistry ComponentRegistry
	// Parser decodes flow definitions. Defaults to the JSON parser.
	Parser Parser
	// Logger receives engine warnings. Defaults to DefaultLogger().
	Logger Logger
	// Properties are process-wide key-value properties. Node configuration
	// values can reference them with ${global.key}; substitution happens
	// once, at node initialization.
	Properties map[string]string
	// MailboxSize is the per-node inbound queue capacity. A full mailbox
	// drops new deliveries with a logged warning rather than blocking.
	MailboxSize int
	// ScriptMaxExecutionTime bounds one script run in the function node.
	ScriptMaxExecutionTime time.Duration
	// Global is the process-scoped context store shared by every flow.
	Global KVStore
}

// Message flow direction reported to OnDebug.
const (
	In  = "IN"
	Out = "OUT"
)

// NewConfig creates a Config with defaults and applies the given options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		Logger:                 DefaultLogger(),
		Properties:             make(map[string]string),
		MailboxSize:            DefaultMailboxSize,
		ScriptMaxExecutionTime: DefaultScriptMaxExecutionTime,
	}
	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}
