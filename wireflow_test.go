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

package wireflow

import (
	"sync"
	"testing"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/engine"
	"github.com/wireflow/wireflow/test/assert"
)

// captureNode terminates a flow under test and records what reached it.
type captureNode struct {
	msgs *[]types.Message
	mu   *sync.Mutex
}

func newCaptureNode() *captureNode {
	return &captureNode{msgs: &[]types.Message{}, mu: &sync.Mutex{}}
}

func (x *captureNode) Type() string { return "testCapture" }

func (x *captureNode) New() types.Node { return &captureNode{msgs: x.msgs, mu: x.mu} }

func (x *captureNode) Init(_ types.Config, _ types.Configuration) error { return nil }

func (x *captureNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	x.mu.Lock()
	*x.msgs = append(*x.msgs, msg)
	x.mu.Unlock()
	ctx.Done(msg)
}

func (x *captureNode) OnClose(_ bool) {}

func (x *captureNode) received() []types.Message {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]types.Message, len(*x.msgs))
	copy(out, *x.msgs)
	return out
}

func (x *captureNode) wait(n int, timeout time.Duration) []types.Message {
	deadline := time.Now().Add(timeout)
	for {
		got := x.received()
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestDeploySplitJoinFlow(t *testing.T) {
	capture := newCaptureNode()
	assert.Nil(t, Registry.Register(capture))
	defer func() {
		assert.Nil(t, Registry.Unregister(capture.Type()))
	}()

	dsl := `{
	  "flow": {"id": "csv"},
	  "nodes": [
	    {
	      "id": "split",
	      "type": "split",
	      "configuration": {"separator": ","},
	      "wiring": [["join"]]
	    },
	    {
	      "id": "join",
	      "type": "join",
	      "configuration": {"kind": "string", "separator": "-"},
	      "wiring": [["out"]]
	    },
	    {"id": "out", "type": "testCapture"}
	  ]
	}`

	e := NewEngine()
	defer e.Stop()

	flow, err := e.Deploy("", []byte(dsl))
	assert.Nil(t, err)
	assert.Equal(t, "csv", flow.Id)

	assert.True(t, e.Deliver("csv", "split", types.NewMessage("alpha,beta,gamma")))

	got := capture.wait(1, 2*time.Second)
	assert.Equal(t, 1, len(got))
	assert.Equal(t, "alpha-beta-gamma", got[0].Payload)
	assert.Nil(t, got[0].Sequence)
}

func TestDeployInjectFlow(t *testing.T) {
	capture := newCaptureNode()
	assert.Nil(t, Registry.Register(capture))
	defer func() {
		assert.Nil(t, Registry.Unregister(capture.Type()))
	}()

	dsl := `{
	  "flow": {"id": "ticker"},
	  "nodes": [
	    {
	      "id": "tick",
	      "type": "inject",
	      "configuration": {"payload": "tick", "intervalMs": 20},
	      "wiring": [["out"]]
	    },
	    {"id": "out", "type": "testCapture"}
	  ]
	}`

	e := NewEngine()
	defer e.Stop()

	_, err := e.Deploy("", []byte(dsl))
	assert.Nil(t, err)

	got := capture.wait(3, 2*time.Second)
	assert.True(t, len(got) >= 3)
	assert.Equal(t, "tick", got[0].Payload)

	// undeploy stops the source
	e.Undeploy("ticker")
	n := len(capture.received())
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, n, len(capture.received()))
}

func TestDeployErrors(t *testing.T) {
	e := NewEngine()
	defer e.Stop()

	_, err := e.Deploy("f1", []byte(`{"flow":`))
	assert.NotNil(t, err)

	_, err = e.Deploy("", []byte(`{"nodes": []}`))
	assert.NotNil(t, err)

	_, err = e.Deploy("f1", []byte(`{"nodes": [{"id": "a", "type": "no-such-type"}]}`))
	assert.NotNil(t, err)
}

func TestRedeployReplaces(t *testing.T) {
	capture := newCaptureNode()
	assert.Nil(t, Registry.Register(capture))
	defer func() {
		assert.Nil(t, Registry.Unregister(capture.Type()))
	}()

	dsl := `{"nodes": [{"id": "out", "type": "testCapture"}]}`

	e := NewEngine()
	defer e.Stop()

	first, err := e.Deploy("f1", []byte(dsl))
	assert.Nil(t, err)
	second, err := e.Deploy("f1", []byte(dsl))
	assert.Nil(t, err)
	assert.True(t, first != second)

	current, ok := e.Get("f1")
	assert.True(t, ok)
	assert.True(t, current == second)

	count := 0
	e.Range(func(flow *engine.Flow) bool {
		count++
		return true
	})
	assert.Equal(t, 1, count)
}

func TestGetUnknownFlow(t *testing.T) {
	e := NewEngine()
	defer e.Stop()

	_, ok := e.Get("missing")
	assert.False(t, ok)
	assert.False(t, e.Deliver("missing", "n1", types.NewMessage(nil)))
}
