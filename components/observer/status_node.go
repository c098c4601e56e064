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
//        "id": "st1",
//        "type": "status",
//        "name": "watch joins",
//        "configuration": {
//          "scope": ["j1"]
//        }
//  }
import (
	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
)

func init() {
	Registry.Add(&StatusNode{})
}

// StatusNodeConfiguration node configuration
type StatusNodeConfiguration struct {
	//Scope is the allow-list of source node ids. Empty observes every node.
	Scope []string
}

// StatusNode emits a message for every status-changed event it observes. The
// payload is the status record; the source node id rides in the extensions.
type StatusNode struct {
	Config StatusNodeConfiguration

	unsubscribe func()
}

// Type component type
func (x *StatusNode) Type() string {
	return "status"
}

func (x *StatusNode) New() types.Node {
	return &StatusNode{}
}

// Init initializes the component
func (x *StatusNode) Init(_ types.Config, configuration types.Configuration) error {
	return base.DecodeConfig(configuration, &x.Config)
}

// OnStart subscribes to status-changed events.
func (x *StatusNode) OnStart(ctx types.NodeContext) error {
	x.unsubscribe = ctx.Bus().Subscribe(types.EventSubscription{
		Types: []string{types.EventStatusChanged},
		Scope: x.Config.Scope,
		Handler: func(event types.FlowEvent) {
			out := ctx.NewMessage(map[string]interface{}{
				"severity": event.Status.Severity,
				"shape":    event.Status.Shape,
				"text":     event.Status.Text,
			})
			out.SetExtension("statusSource", event.NodeId)
			ctx.Send(0, out)
		},
	})
	return nil
}

// OnMsg passes unrelated inbound messages through.
func (x *StatusNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	ctx.Send(0, msg)
}

// OnClose drops the subscription.
func (x *StatusNode) OnClose(_ bool) {
	if x.unsubscribe != nil {
		x.unsubscribe()
		x.unsubscribe = nil
	}
}
