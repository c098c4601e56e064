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

package observer

import (
	"testing"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/test"
	"github.com/wireflow/wireflow/test/assert"
)

func TestStatusNode(t *testing.T) {
	var targetNodeType = "status"

	t.Run("ObserveStatus", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("st1")
		defer ctx.Close()
		defer node.OnClose(false)

		assert.Nil(t, node.(types.Starter).OnStart(ctx))

		ctx.Bus().PublishStatus("mqtt1", types.Status{
			Severity: types.StatusGreen,
			Shape:    types.StatusShapeDot,
			Text:     "connected",
		})

		sent := ctx.WaitSent(1, time.Second)
		assert.Equal(t, 1, len(sent))
		payload := sent[0].Msg.Payload.(map[string]interface{})
		assert.Equal(t, types.StatusGreen, payload["severity"])
		assert.Equal(t, types.StatusShapeDot, payload["shape"])
		assert.Equal(t, "connected", payload["text"])
		source, _ := sent[0].Msg.GetExtension("statusSource")
		assert.Equal(t, "mqtt1", source)
	})

	t.Run("ScopeFilters", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{
			"scope": []string{"mqtt1"},
		}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("st1")
		defer ctx.Close()
		defer node.OnClose(false)

		assert.Nil(t, node.(types.Starter).OnStart(ctx))

		ctx.Bus().PublishStatus("other", types.Status{Text: "ignored"})
		ctx.Bus().PublishStatus("mqtt1", types.Status{Text: "observed"})

		sent := ctx.WaitSent(1, time.Second)
		time.Sleep(20 * time.Millisecond)
		sent = ctx.SentMsgs()
		assert.Equal(t, 1, len(sent))
		assert.Equal(t, "observed", sent[0].Msg.Payload.(map[string]interface{})["text"])
	})

	t.Run("IgnoresOtherEventTypes", func(t *testing.T) {
		node, err := test.CreateAndInitNode(targetNodeType, types.Configuration{}, Registry)
		assert.Nil(t, err)
		ctx := test.NewNodeContext("st1")
		defer ctx.Close()
		defer node.OnClose(false)

		assert.Nil(t, node.(types.Starter).OnStart(ctx))

		ctx.Bus().PublishComplete("mqtt1", types.NewMessage("done"))
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 0, len(ctx.SentMsgs()))
	})
}
