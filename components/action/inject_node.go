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
//        "id": "s1",
//        "type": "inject",
//        "name": "tick every 5s",
//        "configuration": {
//          "payload": "tick",
//          "delayMs": 100,
//          "intervalMs": 5000
//        }
//  }
//Cron example: "cron": "0 30 * * * *" fires at half past every hour
//(six fields, seconds first).
import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
	"github.com/wireflow/wireflow/scheduler"
)

func init() {
	Registry.Add(&InjectNode{})
}

// InjectNodeConfiguration node configuration
type InjectNodeConfiguration struct {
	//Payload emitted on every fire. Nil emits the current unix
	//millisecond timestamp.
	Payload interface{}
	//Topic set on every emitted message.
	Topic string
	//DelayMs delays the first fire. Zero fires as soon as the flow starts.
	DelayMs int
	//IntervalMs, when positive, keeps firing at this period after the
	//first fire. Values above the scheduler ceiling are rejected at load.
	IntervalMs int
	//Cron, when set, replaces the delay/interval discipline with a cron
	//expression (six fields, seconds first).
	Cron string
}

// InjectNode is a source: it emits a configured payload once after a delay,
// then optionally at a fixed interval, or on a cron expression. An inbound
// message fires it manually regardless of its timers.
type InjectNode struct {
	Config InjectNodeConfiguration

	cronRunner *cron.Cron
	timer      types.TimerHandle
	mu         sync.Mutex
}

// Type component type
func (x *InjectNode) Type() string {
	return "inject"
}

func (x *InjectNode) New() types.Node {
	return &InjectNode{}
}

// Init validates the timer configuration. Out-of-range intervals and
// malformed cron expressions reject the flow at load.
func (x *InjectNode) Init(_ types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	if time.Duration(x.Config.IntervalMs)*time.Millisecond > scheduler.MaxInterval {
		return scheduler.ErrIntervalTooBig
	}
	if time.Duration(x.Config.DelayMs)*time.Millisecond > scheduler.MaxInterval {
		return scheduler.ErrIntervalTooBig
	}
	if x.Config.Cron != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(x.Config.Cron); err != nil {
			return err
		}
	}
	return nil
}

// OnStart arms the configured timer discipline.
func (x *InjectNode) OnStart(ctx types.NodeContext) error {
	if x.Config.Cron != "" {
		runner := cron.New(cron.WithSeconds())
		if _, err := runner.AddFunc(x.Config.Cron, func() {
			x.fire(ctx)
		}); err != nil {
			return err
		}
		runner.Start()
		x.mu.Lock()
		x.cronRunner = runner
		x.mu.Unlock()
		return nil
	}

	delay := time.Duration(x.Config.DelayMs) * time.Millisecond
	interval := time.Duration(x.Config.IntervalMs) * time.Millisecond
	first, err := ctx.ScheduleOnce(delay, func() {
		x.fire(ctx)
		if interval <= 0 {
			return
		}
		repeating, err := ctx.ScheduleRepeating(interval, func() {
			x.fire(ctx)
		})
		if err != nil {
			ctx.ReportError(err, nil)
			return
		}
		x.mu.Lock()
		x.timer = repeating
		x.mu.Unlock()
	})
	if err != nil {
		return err
	}
	x.mu.Lock()
	x.timer = first
	x.mu.Unlock()
	return nil
}

// OnMsg fires the inject manually.
func (x *InjectNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	x.fire(ctx)
	ctx.Done(msg)
}

// OnClose stops the cron runner; node-owned timers are cancelled by the
// engine.
func (x *InjectNode) OnClose(_ bool) {
	x.mu.Lock()
	runner := x.cronRunner
	x.cronRunner = nil
	x.timer = nil
	x.mu.Unlock()
	if runner != nil {
		runner.Stop()
	}
}

func (x *InjectNode) fire(ctx types.NodeContext) {
	payload := x.Config.Payload
	if payload == nil {
		payload = time.Now().UnixMilli()
	}
	out := ctx.NewMessage(payload)
	out.Topic = x.Config.Topic
	ctx.Send(0, out)
}
