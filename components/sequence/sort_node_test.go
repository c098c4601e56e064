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

import (
	"testing"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/test"
	"github.com/wireflow/wireflow/test/assert"
)

func sortInput(node types.Node, ctx *test.NodeContext, payloads ...interface{}) {
	for i, p := range payloads {
		msg := types.NewMessage(p)
		msg.Sequence = &types.Sequence{GroupId: "g1", Index: i, Count: len(payloads)}
		node.OnMsg(ctx, msg)
	}
}

func TestSortNode(t *testing.T) {
	var targetNodeType = "sort"

	t.Run("InitNode", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"keyExpr": "payload.temperature",
			"order":   "desc",
		}, Registry)
		assert.Nil(t, err)
		assert.Equal(t, "desc", node.(*SortNode).Config.Order)
	})

	t.Run("InitBadOrder", func(t *testing.T) {
		_, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"order": "sideways",
		}, Registry)
		assert.NotNil(t, err)
	})

	t.Run("InitBadExpr", func(t *testing.T) {
		_, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"keyExpr": "payload..",
		}, Registry)
		assert.NotNil(t, err)
	})

	t.Run("SortByNumericKey", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"keyExpr": "payload.temperature",
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("s1")
		defer ctx.Close()

		sortInput(node, ctx,
			map[string]interface{}{"temperature": 21.5},
			map[string]interface{}{"temperature": 3.2},
			map[string]interface{}{"temperature": 10.0},
		)

		sent := ctx.SentMsgs()
		assert.Equal(t, 3, len(sent))
		assert.Equal(t, 3.2, sent[0].Msg.Payload.(map[string]interface{})["temperature"])
		assert.Equal(t, 10.0, sent[1].Msg.Payload.(map[string]interface{})["temperature"])
		assert.Equal(t, 21.5, sent[2].Msg.Payload.(map[string]interface{})["temperature"])

		// re-emitted indices are fresh and contiguous
		for i, s := range sent {
			assert.Equal(t, i, s.Msg.Sequence.Index)
			assert.Equal(t, 3, s.Msg.Sequence.Count)
			assert.Equal(t, "g1", s.Msg.Sequence.GroupId)
		}
	})

	t.Run("SortDescending", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"keyExpr": "payload",
			"order":   "desc",
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("s1")
		defer ctx.Close()

		sortInput(node, ctx, 2, 9, 5)

		sent := ctx.SentMsgs()
		assert.Equal(t, 3, len(sent))
		assert.Equal(t, 9, sent[0].Msg.Payload)
		assert.Equal(t, 5, sent[1].Msg.Payload)
		assert.Equal(t, 2, sent[2].Msg.Payload)
	})

	t.Run("SortStringKeys", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"keyExpr": "payload",
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("s1")
		defer ctx.Close()

		sortInput(node, ctx, "pear", "apple", "orange")

		sent := ctx.SentMsgs()
		assert.Equal(t, "apple", sent[0].Msg.Payload)
		assert.Equal(t, "orange", sent[1].Msg.Payload)
		assert.Equal(t, "pear", sent[2].Msg.Payload)
	})

	t.Run("IndexOrderWithoutKey", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("s1")
		defer ctx.Close()

		// arrivals out of order, no key: original index order is restored
		for _, i := range []int{2, 0, 1} {
			msg := types.NewMessage([]string{"a", "b", "c"}[i])
			msg.Sequence = &types.Sequence{GroupId: "g1", Index: i, Count: 3}
			node.OnMsg(ctx, msg)
		}

		sent := ctx.SentMsgs()
		assert.Equal(t, 3, len(sent))
		assert.Equal(t, "a", sent[0].Msg.Payload)
		assert.Equal(t, "b", sent[1].Msg.Payload)
		assert.Equal(t, "c", sent[2].Msg.Payload)
	})

	t.Run("WithoutSequence", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("s1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessage("loose"))
		assert.Equal(t, 1, len(ctx.Errors()))
	})
}
