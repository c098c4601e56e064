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
//        "id": "s2",
//        "type": "delay",
//        "name": "1 msg per second",
//        "configuration": {
//          "rateMs": 1000,
//          "maxQueue": 1000
//        }
//  }
import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
)

func init() {
	Registry.Add(&DelayNode{})
}

// DelayNodeConfiguration node configuration
type DelayNodeConfiguration struct {
	//RateMs is the tick period; at most one queued message is emitted per
	//tick.
	RateMs int
	//MaxQueue bounds the queue. Arrivals beyond it are reported as errors.
	MaxQueue int
	//DropWhenBusy drops new arrivals while the queue is non-empty instead
	//of enqueueing them.
	DropWhenBusy bool
}

// DelayNode is the rate-limiting component: inbound messages are queued and a
// periodic tick emits at most one per period, in arrival order.
type DelayNode struct {
	Config DelayNodeConfiguration

	queue []types.Message
	ctx   types.NodeContext
	mu    sync.Mutex
}

// Type component type
func (x *DelayNode) Type() string {
	return "delay"
}

func (x *DelayNode) New() types.Node {
	return &DelayNode{Config: DelayNodeConfiguration{RateMs: 1000, MaxQueue: 1000}}
}

// Init initializes the component
func (x *DelayNode) Init(_ types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	if x.Config.RateMs <= 0 {
		return errors.New("delay requires a positive rateMs")
	}
	if x.Config.MaxQueue <= 0 {
		x.Config.MaxQueue = 1000
	}
	return nil
}

// OnStart arms the emit tick for the lifetime of the flow.
func (x *DelayNode) OnStart(ctx types.NodeContext) error {
	x.ctx = ctx
	_, err := ctx.ScheduleRepeating(time.Duration(x.Config.RateMs)*time.Millisecond, x.tick)
	return err
}

// OnMsg enqueues one message for a later tick.
func (x *DelayNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	x.mu.Lock()
	if x.Config.DropWhenBusy && len(x.queue) > 0 {
		x.mu.Unlock()
		ctx.Done(msg)
		return
	}
	if len(x.queue) >= x.Config.MaxQueue {
		x.mu.Unlock()
		ctx.ReportError(fmt.Errorf("queue full, limit %d", x.Config.MaxQueue), &msg)
		return
	}
	x.queue = append(x.queue, msg)
	x.mu.Unlock()
	ctx.Done(msg)
}

// OnClose drops the queue; the tick is cancelled by the engine.
func (x *DelayNode) OnClose(_ bool) {
	x.mu.Lock()
	x.queue = nil
	x.mu.Unlock()
}

func (x *DelayNode) tick() {
	x.mu.Lock()
	if len(x.queue) == 0 {
		x.mu.Unlock()
		return
	}
	msg := x.queue[0]
	x.queue = x.queue[1:]
	x.mu.Unlock()
	x.ctx.Send(0, msg)
}
