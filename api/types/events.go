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

// Event categories observable on a flow's event bus.
const (
	EventStatusChanged = "status-changed"
	EventNodeError     = "node-error"
	EventNodeComplete  = "node-complete"
)

// FlowEvent is one occurrence published on the event bus. Status is set for
// status-changed events, Error for node-error events, Msg for node-error and
// node-complete events. Caught reports whether a node-scoped catch observer
// claimed the error.
type FlowEvent struct {
	Type   string   `json:"type"`
	NodeId string   `json:"nodeId"`
	Status *Status  `json:"status,omitempty"`
	Error  string   `json:"error,omitempty"`
	Msg    *Message `json:"msg,omitempty"`
	Caught bool     `json:"caught,omitempty"`
}

// EventSubscription registers interest in a set of event categories. An empty
// Types slice matches every category. An empty Scope slice matches every node
// in the flow; a non-empty Scope is an allow-list of source node ids and, for
// node-error events, marks the subscriber as a claiming observer.
// UncaughtOnly restricts node-error delivery to errors no claiming observer
// accepted; it is meaningless combined with a non-empty Scope.
type EventSubscription struct {
	Types        []string
	Scope        []string
	UncaughtOnly bool
	Handler      func(event FlowEvent)
}

// EventBus is a scoped publish/subscribe channel for node status changes,
// errors and completions. Publishing never blocks on subscriber processing; a
// slow or failing subscriber does not affect the publisher or its peers.
type EventBus interface {
	// Subscribe registers a subscription and returns a function removing it.
	Subscribe(sub EventSubscription) (unsubscribe func())
	// PublishStatus broadcasts a status-changed event.
	PublishStatus(nodeId string, status Status)
	// PublishError broadcasts a node-error event, applying catch-observer
	// claim semantics before uncaught-only delivery.
	PublishError(nodeId string, err error, msg *Message)
	// PublishComplete broadcasts a node-complete event.
	PublishComplete(nodeId string, msg Message)
	// Close drops all subscriptions.
	Close()
}
