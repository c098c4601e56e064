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
	"sync"
	"testing"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/test"
	"github.com/wireflow/wireflow/test/assert"
)

func TestBatchNode(t *testing.T) {
	var targetNodeType = "batch"

	t.Run("InitNode", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"count":   3,
			"overlap": 1,
		}, Registry)
		assert.Nil(t, err)
		assert.Equal(t, BatchModeCount, node.(*BatchNode).Config.Mode)
		assert.Equal(t, 3, node.(*BatchNode).Config.Count)
	})

	t.Run("InitBadOverlap", func(t *testing.T) {
		_, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"count":   3,
			"overlap": 3,
		}, Registry)
		assert.NotNil(t, err)
	})

	t.Run("InitIntervalWithoutPeriod", func(t *testing.T) {
		_, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"mode": "interval",
		}, Registry)
		assert.NotNil(t, err)
	})

	t.Run("CountMode", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"count": 3,
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("b1")
		defer ctx.Close()

		for i := 0; i < 3; i++ {
			node.OnMsg(ctx, types.NewMessage(i))
		}

		sent := ctx.SentMsgs()
		assert.Equal(t, 3, len(sent))
		groupId := sent[0].Msg.Sequence.GroupId
		for i, s := range sent {
			assert.Equal(t, i, s.Msg.Payload)
			assert.Equal(t, i, s.Msg.Sequence.Index)
			assert.Equal(t, 3, s.Msg.Sequence.Count)
			assert.Equal(t, groupId, s.Msg.Sequence.GroupId)
		}

		// a partial next group stays pending
		node.OnMsg(ctx, types.NewMessage(99))
		assert.Equal(t, 3, len(ctx.SentMsgs()))
	})

	t.Run("CountModeOverlap", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"count":   3,
			"overlap": 1,
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("b1")
		defer ctx.Close()

		for i := 0; i < 3; i++ {
			node.OnMsg(ctx, types.NewMessage(i))
		}
		assert.Equal(t, 3, len(ctx.SentMsgs()))

		// the carried message plus two fresh ones fill the next group
		node.OnMsg(ctx, types.NewMessage(3))
		node.OnMsg(ctx, types.NewMessage(4))

		sent := ctx.SentMsgs()
		assert.Equal(t, 6, len(sent))
		assert.Equal(t, 2, sent[3].Msg.Payload)
		assert.Equal(t, 3, sent[4].Msg.Payload)
		assert.Equal(t, 4, sent[5].Msg.Payload)
		assert.NotEqual(t, sent[0].Msg.Sequence.GroupId, sent[3].Msg.Sequence.GroupId)
	})

	t.Run("IntervalMode", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"mode":       "interval",
			"intervalMs": 50,
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("b1")
		defer ctx.Close()

		err = node.(types.Starter).OnStart(ctx)
		assert.Nil(t, err)

		node.OnMsg(ctx, types.NewMessage("a"))
		node.OnMsg(ctx, types.NewMessage("b"))
		assert.Equal(t, 0, len(ctx.SentMsgs()))

		sent := ctx.WaitSent(2, time.Second)
		assert.Equal(t, 2, len(sent))
		assert.Equal(t, "a", sent[0].Msg.Payload)
		assert.Equal(t, "b", sent[1].Msg.Payload)
		assert.Equal(t, 2, sent[0].Msg.Sequence.Count)

		// an empty tick emits nothing
		time.Sleep(120 * time.Millisecond)
		assert.Equal(t, 2, len(ctx.SentMsgs()))
	})

	t.Run("IntervalConcurrentInputs", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"mode":       "interval",
			"intervalMs": 10,
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("b1")
		defer ctx.Close()

		err = node.(types.Starter).OnStart(ctx)
		assert.Nil(t, err)

		// inputs land while the tick goroutine flushes
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					node.OnMsg(ctx, types.NewMessage(worker*10+j))
					time.Sleep(time.Millisecond)
				}
			}(i)
		}
		wg.Wait()

		sent := ctx.WaitSent(40, time.Second)
		assert.Equal(t, 40, len(sent))
	})

	t.Run("CloseDropsPending", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"count": 3,
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("b1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessage("pending"))
		node.OnClose(false)
		assert.Equal(t, 0, len(ctx.SentMsgs()))
	})
}
