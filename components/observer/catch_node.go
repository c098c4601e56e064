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
//        "id": "c1",
//        "type": "catch",
//        "name": "catch db errors",
//        "configuration": {
//          "scope": ["db1", "db2"]
//        }
//  }
//An empty scope with uncaughtOnly=true receives only errors no scoped catch
//claimed.
import (
	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
)

func init() {
	Registry.Add(&CatchNode{})
}

// CatchNodeConfiguration node configuration
type CatchNodeConfiguration struct {
	//Scope is the allow-list of source node ids. Empty observes every node.
	Scope []string
	//UncaughtOnly, with an empty scope, restricts delivery to errors no
	//scoped catch observer claimed.
	UncaughtOnly bool
}

// CatchNode emits a message for every node-error event it observes. The
// failing message, when present, is re-emitted with the error recorded in its
// extensions; otherwise a fresh message is created.
type CatchNode struct {
	Config CatchNodeConfiguration

	unsubscribe func()
}

// Type component type
func (x *CatchNode) Type() string {
	return "catch"
}

func (x *CatchNode) New() types.Node {
	return &CatchNode{}
}

// Init initializes the component
func (x *CatchNode) Init(_ types.Config, configuration types.Configuration) error {
	return base.DecodeConfig(configuration, &x.Config)
}

// OnStart subscribes to node-error events.
func (x *CatchNode) OnStart(ctx types.NodeContext) error {
	x.unsubscribe = ctx.Bus().Subscribe(types.EventSubscription{
		Types:        []string{types.EventNodeError},
		Scope:        x.Config.Scope,
		UncaughtOnly: x.Config.UncaughtOnly,
		Handler: func(event types.FlowEvent) {
			var out types.Message
			if event.Msg != nil {
				out = event.Msg.Copy()
			} else {
				out = ctx.NewMessage(nil)
			}
			out.SetExtension("error", event.Error)
			out.SetExtension("errorSource", event.NodeId)
			ctx.Send(0, out)
		},
	})
	return nil
}

// OnMsg passes unrelated inbound messages through.
func (x *CatchNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	ctx.Send(0, msg)
}

// OnClose drops the subscription.
func (x *CatchNode) OnClose(_ bool) {
	if x.unsubscribe != nil {
		x.unsubscribe()
		x.unsubscribe = nil
	}
}
