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

package sequence

//Node configuration example:
//{
//        "id": "s1",
//        "type": "split",
//        "name": "split csv line",
//        "configuration": {
//          "separator": ",",
//          "chunkSize": 1
//        }
//  }
import (
	"sort"
	"strings"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
)

func init() {
	Registry.Add(&SplitNode{})
}

// SplitNodeConfiguration node configuration
type SplitNodeConfiguration struct {
	//Separator splits string payloads. Also recorded on the emitted
	//sequence so a downstream join can reassemble with it.
	Separator string
	//ChunkSize is the byte-block size when splitting raw byte payloads.
	ChunkSize int
}

// SplitNode splits one payload into an indexed sequence of messages. The
// split kind follows the payload type: string payloads split on Separator,
// slices split per element, maps split per key with the key recorded on each
// part, byte blocks split into ChunkSize chunks. Every part carries
// Sequence{GroupId, Index, Count} with GroupId set to the inbound message's
// correlation id, so an unmodified downstream join reverses the split.
type SplitNode struct {
	Config SplitNodeConfiguration
}

// Type component type
func (x *SplitNode) Type() string {
	return "split"
}

func (x *SplitNode) New() types.Node {
	return &SplitNode{Config: SplitNodeConfiguration{Separator: ",", ChunkSize: 1}}
}

// Init initializes the component
func (x *SplitNode) Init(_ types.Config, configuration types.Configuration) error {
	err := base.DecodeConfig(configuration, &x.Config)
	if x.Config.ChunkSize <= 0 {
		x.Config.ChunkSize = 1
	}
	return err
}

// OnMsg splits the payload and emits the parts in index order.
func (x *SplitNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	switch payload := msg.Payload.(type) {
	case string:
		parts := strings.Split(payload, x.Config.Separator)
		x.emitParts(ctx, msg, types.KindString, toValues(parts), nil)
	case []byte:
		chunks := chunkBytes(payload, x.Config.ChunkSize)
		x.emitParts(ctx, msg, types.KindBuffer, chunks, nil)
	case map[string]interface{}:
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := make([]interface{}, len(keys))
		for i, k := range keys {
			values[i] = payload[k]
		}
		x.emitParts(ctx, msg, types.KindObject, values, keys)
	default:
		if items, ok := base.PayloadSlice(msg.Payload); ok {
			x.emitParts(ctx, msg, types.KindArray, items, nil)
		} else {
			// nothing to split, pass through untouched
			ctx.Send(0, msg)
		}
	}
	ctx.Done(msg)
}

// OnClose cleans up the component
func (x *SplitNode) OnClose(_ bool) {
}

func (x *SplitNode) emitParts(ctx types.NodeContext, msg types.Message, kind string, values []interface{}, keys []string) {
	count := len(values)
	for i, v := range values {
		part := msg.Copy()
		part.Payload = v
		part.Sequence = &types.Sequence{
			GroupId: msg.CorrelationId,
			Index:   i,
			Count:   count,
			Kind:    kind,
		}
		if kind == types.KindString {
			part.Sequence.Separator = x.Config.Separator
		}
		if keys != nil {
			part.SetExtension("key", keys[i])
		}
		ctx.Send(0, part)
	}
}

func toValues(parts []string) []interface{} {
	out := make([]interface{}, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

func chunkBytes(b []byte, size int) []interface{} {
	var out []interface{}
	for len(b) > size {
		chunk := make([]byte, size)
		copy(chunk, b[:size])
		out = append(out, chunk)
		b = b[size:]
	}
	last := make([]byte, len(b))
	copy(last, b)
	out = append(out, last)
	return out
}
