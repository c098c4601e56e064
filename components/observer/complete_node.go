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

//Node configuration example:
//{
//        "id": "cp1",
//        "type": "complete",
//        "name": "after split finishes",
//        "configuration": {
//          "scope": ["s1"]
//        }
//  }
import (
	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
)

func init() {
	Registry.Add(&CompleteNode{})
}

// CompleteNodeConfiguration node configuration
type CompleteNodeConfiguration struct {
	//Scope is the allow-list of source node ids. Empty observes every node.
	Scope []string
}

// CompleteNode emits the completed message for every node-complete event it
// observes.
type CompleteNode struct {
	Config CompleteNodeConfiguration

	unsubscribe func()
}

// Type component type
func (x *CompleteNode) Type() string {
	return "complete"
}

func (x *CompleteNode) New() types.Node {
	return &CompleteNode{}
}

// Init initializes the component
func (x *CompleteNode) Init(_ types.Config, configuration types.Configuration) error {
	return base.DecodeConfig(configuration, &x.Config)
}

// OnStart subscribes to node-complete events.
func (x *CompleteNode) OnStart(ctx types.NodeContext) error {
	x.unsubscribe = ctx.Bus().Subscribe(types.EventSubscription{
		Types: []string{types.EventNodeComplete},
		Scope: x.Config.Scope,
		Handler: func(event types.FlowEvent) {
			if event.Msg == nil {
				return
			}
			out := event.Msg.Copy()
			out.SetExtension("completeSource", event.NodeId)
			ctx.Send(0, out)
		},
	})
	return nil
}

// OnMsg passes unrelated inbound messages through.
func (x *CompleteNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	ctx.Send(0, msg)
}

// OnClose drops the subscription.
func (x *CompleteNode) OnClose(_ bool) {
	if x.unsubscribe != nil {
		x.unsubscribe()
		x.unsubscribe = nil
	}
}
