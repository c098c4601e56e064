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
//        "id": "s3",
//        "type": "trigger",
//        "name": "pulse",
//        "configuration": {
//          "startValue": "on",
//          "endValue": "off",
//          "windowMs": 100,
//          "extend": true,
//          "resetPayload": "reset"
//        }
//  }
import (
	"errors"
	"sync"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
	"github.com/wireflow/wireflow/utils/str"
)

func init() {
	Registry.Add(&TriggerNode{})
}

// TriggerNodeConfiguration node configuration
type TriggerNodeConfiguration struct {
	//StartValue is emitted immediately on the first input of a window.
	StartValue interface{}
	//EndValue is emitted when the window deadline fires.
	EndValue interface{}
	//WindowMs is the deadline after the first (or, with Extend, the last)
	//input.
	WindowMs int
	//Extend rearms the deadline on every input instead of ignoring inputs
	//while a window is open.
	Extend bool
	//ResetPayload, when set, is a sentinel: an input whose payload matches
	//it cancels the pending deadline without emitting EndValue.
	ResetPayload interface{}
}

// TriggerNode emits a start value on first input and an end value when the
// window expires. Every arm or disarm bumps gen; a deadline callback carries
// the gen it was armed under and does nothing when it no longer matches, so
// rearm and cancel never race into a stray end emission.
type TriggerNode struct {
	Config TriggerNodeConfiguration

	pending types.TimerHandle
	gen     uint64
	lastMsg types.Message
	mu      sync.Mutex
}

// Type component type
func (x *TriggerNode) Type() string {
	return "trigger"
}

func (x *TriggerNode) New() types.Node {
	return &TriggerNode{Config: TriggerNodeConfiguration{
		StartValue: "1",
		EndValue:   "0",
		WindowMs:   250,
	}}
}

// Init initializes the component
func (x *TriggerNode) Init(_ types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	if x.Config.WindowMs <= 0 {
		return errors.New("trigger requires a positive windowMs")
	}
	return nil
}

// OnMsg runs the window state machine for one input.
func (x *TriggerNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	if x.isReset(msg) {
		x.mu.Lock()
		h := x.pending
		x.pending = nil
		x.gen++
		x.mu.Unlock()
		if h != nil {
			ctx.CancelTimer(h)
		}
		ctx.Done(msg)
		return
	}

	x.mu.Lock()
	open := x.pending != nil
	if open && !x.Config.Extend {
		x.mu.Unlock()
		ctx.Done(msg)
		return
	}
	h := x.pending
	x.pending = nil
	x.gen++
	gen := x.gen
	x.lastMsg = msg
	x.mu.Unlock()
	if h != nil {
		// disarmed above; CancelTimer only releases the timer
		ctx.CancelTimer(h)
	}

	deadline, err := ctx.ScheduleOnce(time.Duration(x.Config.WindowMs)*time.Millisecond, func() {
		x.expire(ctx, gen)
	})
	if err != nil {
		ctx.ReportError(err, &msg)
		return
	}
	x.mu.Lock()
	if x.gen == gen {
		x.pending = deadline
	}
	x.mu.Unlock()

	if !open {
		out := msg.Copy()
		out.Payload = x.Config.StartValue
		ctx.Send(0, out)
	}
	ctx.Done(msg)
}

// OnClose drops the window without emitting; timers are cancelled by the
// engine.
func (x *TriggerNode) OnClose(_ bool) {
	x.mu.Lock()
	x.pending = nil
	x.gen++
	x.mu.Unlock()
}

func (x *TriggerNode) isReset(msg types.Message) bool {
	if x.Config.ResetPayload == nil {
		return false
	}
	return str.ToString(msg.Payload) == str.ToString(x.Config.ResetPayload)
}

func (x *TriggerNode) expire(ctx types.NodeContext, gen uint64) {
	x.mu.Lock()
	if x.gen != gen {
		// disarmed by an extend or reset while this deadline was firing
		x.mu.Unlock()
		return
	}
	x.pending = nil
	// invalidate the armed generation: when this deadline beats OnMsg's
	// handle store, the late store must not reopen the window
	x.gen++
	out := x.lastMsg.Copy()
	x.mu.Unlock()
	out.Payload = x.Config.EndValue
	ctx.Send(0, out)
}
