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

package filter

import (
	"testing"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/test"
	"github.com/wireflow/wireflow/test/assert"
)

func TestSwitchNode(t *testing.T) {
	var targetNodeType = "switch"

	t.Run("InitNode", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"rules": []interface{}{
				map[string]interface{}{"rule": "payload > 50", "output": 0},
				map[string]interface{}{"rule": "payload > 20", "output": 1},
			},
		}, Registry)
		assert.Nil(t, err)
		assert.Equal(t, 2, len(node.(*SwitchNode).Config.Rules))
	})

	t.Run("InitBadRule", func(t *testing.T) {
		_, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"rules": []interface{}{
				map[string]interface{}{"rule": "payload >", "output": 0},
			},
		}, Registry)
		assert.NotNil(t, err)
	})

	t.Run("FirstMatchWins", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"rules": []interface{}{
				map[string]interface{}{"rule": "payload > 50", "output": 0},
				map[string]interface{}{"rule": "payload > 20", "output": 1},
			},
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("sw1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessage(80))
		node.OnMsg(ctx, types.NewMessage(30))

		sent := ctx.SentMsgs()
		assert.Equal(t, 2, len(sent))
		assert.Equal(t, 0, sent[0].Output)
		assert.Equal(t, 80, sent[0].Msg.Payload)
		assert.Equal(t, 1, sent[1].Output)
		assert.Equal(t, 30, sent[1].Msg.Payload)
	})

	t.Run("NoMatchDrops", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"rules": []interface{}{
				map[string]interface{}{"rule": "payload > 50", "output": 0},
			},
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("sw1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessage(10))
		assert.Equal(t, 0, len(ctx.SentMsgs()))
		assert.Equal(t, 0, len(ctx.Completed()))
	})

	t.Run("CheckAllMultipleOutputs", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"rules": []interface{}{
				map[string]interface{}{"rule": "payload.temperature > 50", "output": 0},
				map[string]interface{}{"rule": "payload.humidity > 80", "output": 2},
			},
			"checkAll": true,
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("sw1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessage(map[string]interface{}{
			"temperature": 60,
			"humidity":    90,
		}))

		sent := ctx.SentMsgs()
		assert.Equal(t, 2, len(sent))
		assert.Equal(t, 0, sent[0].Output)
		assert.Equal(t, 2, sent[1].Output)

		// routed instances are independent copies
		sent[0].Msg.Payload.(map[string]interface{})["temperature"] = 0
		assert.Equal(t, 60, sent[1].Msg.Payload.(map[string]interface{})["temperature"])
	})

	t.Run("TopicRouting", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"rules": []interface{}{
				map[string]interface{}{"rule": `topic startsWith "alarms/"`, "output": 0},
				map[string]interface{}{"rule": "true", "output": 1},
			},
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("sw1")
		defer ctx.Close()

		node.OnMsg(ctx, types.NewMessageWithTopic("alarms/kitchen", "smoke"))
		node.OnMsg(ctx, types.NewMessageWithTopic("sensors/kitchen", "21.5"))

		sent := ctx.SentMsgs()
		assert.Equal(t, 2, len(sent))
		assert.Equal(t, 0, sent[0].Output)
		assert.Equal(t, 1, sent[1].Output)
	})

	t.Run("RuleErrorReported", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"rules": []interface{}{
				map[string]interface{}{"rule": "payload.temperature > 50", "output": 0},
			},
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("sw1")
		defer ctx.Close()

		// payload is a string, the comparison cannot run
		node.OnMsg(ctx, types.NewMessage("not a record"))
		assert.Equal(t, 0, len(ctx.SentMsgs()))
		assert.Equal(t, 1, len(ctx.Errors()))
	})
}
