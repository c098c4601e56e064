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
	"encoding/json"

	"github.com/gofrs/uuid/v5"
)

// Sequence kinds. Kind declares how the parts of a split group are
// reassembled when the group completes.
const (
	KindString = "string"
	KindArray  = "array"
	KindObject = "object"
	KindMerged = "merged"
	KindBuffer = "buffer"
)

// Sequence ties a message to one correlation group. Index is zero based and
// unique within GroupId. Count, when greater than zero, is the authoritative
// expected cardinality of the group.
type Sequence struct {
	GroupId   string `json:"groupId"`
	Index     int    `json:"index"`
	Count     int    `json:"count,omitempty"`
	Separator string `json:"separator,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// Copy returns an independent copy of the sequence descriptor.
func (s *Sequence) Copy() *Sequence {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Message is the envelope routed between nodes. Payload is untyped structured
// data; routing never mutates a message that is delivered to more than one
// downstream port (see Copy).
type Message struct {
	// CorrelationId is unique per originating event and shared by every
	// message derived from it.
	CorrelationId string `json:"correlationId"`
	// Payload is a scalar, map, slice or raw byte block.
	Payload interface{} `json:"payload"`
	// Topic is an optional classifier.
	Topic string `json:"topic,omitempty"`
	// Sequence is present only while the message is part of a
	// split/batch/sort group.
	Sequence *Sequence `json:"sequence,omitempty"`
	// Extensions is an open bag for node specific metadata, for example
	// error and status annotations.
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// NewMessage creates a message with a fresh correlation id.
func NewMessage(payload interface{}) Message {
	id, _ := uuid.NewV4()
	return Message{
		CorrelationId: id.String(),
		Payload:       payload,
	}
}

// NewMessageWithTopic creates a message with a fresh correlation id and topic.
func NewMessageWithTopic(topic string, payload interface{}) Message {
	msg := NewMessage(payload)
	msg.Topic = topic
	return msg
}

// Copy returns a deep copy. Payload maps, slices and byte blocks are copied
// recursively so a downstream node can mutate its copy freely.
func (m *Message) Copy() Message {
	c := Message{
		CorrelationId: m.CorrelationId,
		Payload:       copyValue(m.Payload),
		Topic:         m.Topic,
		Sequence:      m.Sequence.Copy(),
	}
	if m.Extensions != nil {
		c.Extensions = make(map[string]interface{}, len(m.Extensions))
		for k, v := range m.Extensions {
			c.Extensions[k] = copyValue(v)
		}
	}
	return c
}

// SetExtension stores node specific metadata on the message.
func (m *Message) SetExtension(key string, value interface{}) {
	if key == "" {
		return
	}
	if m.Extensions == nil {
		m.Extensions = make(map[string]interface{})
	}
	m.Extensions[key] = value
}

// GetExtension reads node specific metadata from the message.
func (m *Message) GetExtension(key string) (interface{}, bool) {
	if m.Extensions == nil {
		return nil, false
	}
	v, ok := m.Extensions[key]
	return v, ok
}

// MarshalJSON writes the process-boundary wire shape: extensions are flattened
// into the top level object next to correlationId/payload/topic/sequence.
func (m Message) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, 4+len(m.Extensions))
	for k, v := range m.Extensions {
		out[k] = v
	}
	out["correlationId"] = m.CorrelationId
	out["payload"] = m.Payload
	if m.Topic != "" {
		out["topic"] = m.Topic
	}
	if m.Sequence != nil {
		out["sequence"] = m.Sequence
	}
	return json.Marshal(out)
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		c := make(map[string]interface{}, len(val))
		for k, item := range val {
			c[k] = copyValue(item)
		}
		return c
	case []interface{}:
		c := make([]interface{}, len(val))
		for i, item := range val {
			c[i] = copyValue(item)
		}
		return c
	case []byte:
		c := make([]byte, len(val))
		copy(c, val)
		return c
	default:
		return v
	}
}

// Status severities and shapes understood by observer tooling.
const (
	StatusRed    = "red"
	StatusYellow = "yellow"
	StatusGreen  = "green"
	StatusBlue   = "blue"
	StatusGrey   = "grey"

	StatusShapeRing = "ring"
	StatusShapeDot  = "dot"
)

// Status is a node's current status record, published on the event bus and
// kept on the node instance until replaced.
type Status struct {
	Severity string `json:"severity,omitempty"`
	Shape    string `json:"shape,omitempty"`
	Text     string `json:"text,omitempty"`
}
