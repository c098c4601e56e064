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

package action

import (
	"testing"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/test"
	"github.com/wireflow/wireflow/test/assert"
)

func TestFunctionNode(t *testing.T) {
	var targetNodeType = "function"

	t.Run("InitNode", func(t *testing.T) {
		_, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"script": "return msg;",
		}, Registry)
		assert.Nil(t, err)
	})

	t.Run("InitWithoutScript", func(t *testing.T) {
		_, err := test.CreateAndInitNode(targetNodeType, types.Configuration{}, Registry)
		assert.NotNil(t, err)
	})

	t.Run("InitBrokenScript", func(t *testing.T) {
		_, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"script": "this is not javascript ===",
		}, Registry)
		assert.NotNil(t, err)
	})

	t.Run("TransformPayload", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"script": "msg.payload = msg.payload * 2; return msg;",
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("f1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessage(21))

		sent := ctx.SentMsgs()
		assert.Equal(t, 1, len(sent))
		assert.Equal(t, int64(42), sent[0].Msg.Payload)
		assert.Equal(t, 1, len(ctx.Completed()))
	})

	t.Run("MessageShapedReturn", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"script": "return {payload: 'hello', topic: 'out/topic'};",
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("f1")
		defer ctx.Close()

		in := types.NewMessageWithTopic("in/topic", "x")
		node.OnMsg(ctx, in)

		sent := ctx.SentMsgs()
		assert.Equal(t, 1, len(sent))
		assert.Equal(t, "hello", sent[0].Msg.Payload)
		assert.Equal(t, "out/topic", sent[0].Msg.Topic)
		assert.Equal(t, in.CorrelationId, sent[0].Msg.CorrelationId)
	})

	t.Run("ReturnNothingConsumes", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"script": "var ignored = msg.payload;",
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("f1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessage("swallowed"))
		assert.Equal(t, 0, len(ctx.SentMsgs()))
		assert.Equal(t, 1, len(ctx.Completed()))
	})

	t.Run("ArrayReturnFansOut", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"script": "return [{payload: 'left'}, null, {payload: 'right'}];",
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("f1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessage("in"))

		sent := ctx.SentMsgs()
		assert.Equal(t, 2, len(sent))
		assert.Equal(t, 0, sent[0].Output)
		assert.Equal(t, "left", sent[0].Msg.Payload)
		assert.Equal(t, 2, sent[1].Output)
		assert.Equal(t, "right", sent[1].Msg.Payload)
	})

	t.Run("RuntimeErrorReported", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"script": "throw new Error('kaboom');",
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("f1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessage("in"))
		assert.Equal(t, 0, len(ctx.SentMsgs()))
		assert.Equal(t, 1, len(ctx.Errors()))
	})

	t.Run("InfiniteLoopTimesOut", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"script":    "while (true) {}",
			"timeoutMs": 100,
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("f1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessage("in"))
		assert.Equal(t, 0, len(ctx.SentMsgs()))
		assert.Equal(t, 1, len(ctx.Errors()))
	})
}
