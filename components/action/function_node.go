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

//Node configuration example:
//{
//        "id": "s4",
//        "type": "function",
//        "name": "double it",
//        "configuration": {
//          "script": "msg.payload = msg.payload * 2; return msg;"
//        }
//  }
//The script body runs as function OnMessage(msg). Returning nothing emits
//nothing; returning msg (or any value) emits on output 0; returning an array
//emits element i on output i.
import (
	"errors"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
	"github.com/wireflow/wireflow/utils/js"
)

func init() {
	Registry.Add(&FunctionNode{})
}

// FunctionNodeConfiguration node configuration
type FunctionNodeConfiguration struct {
	//Script is the JavaScript body of function OnMessage(msg).
	Script string
	//TimeoutMs overrides the engine-wide script execution budget.
	TimeoutMs int
	//PoolSize is the number of pooled VMs for this node.
	PoolSize int
}

// FunctionNode runs user-supplied JavaScript against each message. Script
// failures and timeouts are contained to the node and published as node-error
// events.
type FunctionNode struct {
	Config FunctionNodeConfiguration

	engine *js.GojaJsEngine
}

// Type component type
func (x *FunctionNode) Type() string {
	return "function"
}

func (x *FunctionNode) New() types.Node {
	return &FunctionNode{}
}

// Init compiles the script. A script that does not parse, or whose top level
// throws, rejects the flow at load.
func (x *FunctionNode) Init(config types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	if x.Config.Script == "" {
		return errors.New("function requires a script")
	}
	if x.Config.TimeoutMs > 0 {
		config.ScriptMaxExecutionTime = time.Duration(x.Config.TimeoutMs) * time.Millisecond
	}
	engine, err := js.NewGojaJsEngine(config, "function OnMessage(msg) { "+x.Config.Script+" }", nil, x.Config.PoolSize)
	if err != nil {
		return err
	}
	x.engine = engine
	return nil
}

// OnMsg runs the script and routes its return value.
func (x *FunctionNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	env := map[string]interface{}{
		"payload":       msg.Payload,
		"topic":         msg.Topic,
		"correlationId": msg.CorrelationId,
		"extensions":    msg.Extensions,
	}
	out, err := x.engine.Execute("OnMessage", env)
	if err != nil {
		ctx.ReportError(err, &msg)
		return
	}
	switch result := out.(type) {
	case nil:
		// script consumed the message
	case []interface{}:
		msgs := make([]*types.Message, len(result))
		for i, v := range result {
			if v == nil {
				continue
			}
			m := x.buildMessage(msg, v)
			msgs[i] = &m
		}
		ctx.SendMany(msgs)
	default:
		ctx.Send(0, x.buildMessage(msg, result))
	}
	ctx.Done(msg)
}

// OnClose releases the VM pool.
func (x *FunctionNode) OnClose(_ bool) {
	if x.engine != nil {
		x.engine.Stop()
	}
}

// buildMessage turns a script return value into an outbound message. A map
// with a payload key is treated as message-shaped; anything else becomes the
// payload directly.
func (x *FunctionNode) buildMessage(in types.Message, v interface{}) types.Message {
	out := in.Copy()
	if m, ok := v.(map[string]interface{}); ok {
		if payload, has := m["payload"]; has {
			out.Payload = payload
			if topic, ok := m["topic"].(string); ok {
				out.Topic = topic
			}
			return out
		}
	}
	out.Payload = v
	return out
}
