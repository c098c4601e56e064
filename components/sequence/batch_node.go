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

package sequence

//Node configuration example:
//{
//        "id": "s4",
//        "type": "batch",
//        "name": "batch of ten",
//        "configuration": {
//          "mode": "count",
//          "count": 10,
//          "overlap": 2
//        }
//  }
import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
)

func init() {
	Registry.Add(&BatchNode{})
}

const (
	//BatchModeCount emits a group every Count accumulated messages.
	BatchModeCount = "count"
	//BatchModeInterval emits whatever accumulated every IntervalMs.
	BatchModeInterval = "interval"
)

// BatchNodeConfiguration node configuration
type BatchNodeConfiguration struct {
	//Mode is count or interval.
	Mode string
	//Count is the group size in count mode.
	Count int
	//Overlap retains this many trailing messages to seed the next group.
	Overlap int
	//IntervalMs is the flush period in interval mode.
	IntervalMs int
}

// BatchNode groups a free-running message stream into synthesized sequences.
// Each flush re-emits the accumulated messages tagged with a fresh group id
// and contiguous indices, so a downstream join or sort treats them as one
// split. Messages still pending at close are dropped.
type BatchNode struct {
	Config BatchNodeConfiguration

	pending []types.Message
	ctx     types.NodeContext
	ticker  types.TimerHandle
	mu      sync.Mutex
}

// Type component type
func (x *BatchNode) Type() string {
	return "batch"
}

func (x *BatchNode) New() types.Node {
	return &BatchNode{Config: BatchNodeConfiguration{Mode: BatchModeCount, Count: 10}}
}

// Init initializes the component
func (x *BatchNode) Init(_ types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	switch x.Config.Mode {
	case "", BatchModeCount:
		x.Config.Mode = BatchModeCount
		if x.Config.Count <= 0 {
			return errors.New("count mode requires a positive count")
		}
		if x.Config.Overlap < 0 || x.Config.Overlap >= x.Config.Count {
			return fmt.Errorf("overlap must be in [0, count): %d", x.Config.Overlap)
		}
	case BatchModeInterval:
		if x.Config.IntervalMs <= 0 {
			return errors.New("interval mode requires a positive intervalMs")
		}
	default:
		return fmt.Errorf("unknown batch mode: %s", x.Config.Mode)
	}
	return nil
}

// OnStart arms the interval-mode flush tick.
func (x *BatchNode) OnStart(ctx types.NodeContext) error {
	x.mu.Lock()
	x.ctx = ctx
	x.mu.Unlock()
	if x.Config.Mode != BatchModeInterval {
		return nil
	}
	ticker, err := ctx.ScheduleRepeating(time.Duration(x.Config.IntervalMs)*time.Millisecond, func() {
		x.flush(false)
	})
	if err != nil {
		return err
	}
	x.ticker = ticker
	return nil
}

// OnMsg accumulates one message, flushing in count mode when the group fills.
func (x *BatchNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	x.mu.Lock()
	x.ctx = ctx
	x.pending = append(x.pending, msg)
	full := x.Config.Mode == BatchModeCount && len(x.pending) >= x.Config.Count
	x.mu.Unlock()
	if full {
		x.flush(true)
	}
	ctx.Done(msg)
}

// OnClose drops pending messages and stops the flush tick.
func (x *BatchNode) OnClose(_ bool) {
	x.mu.Lock()
	x.pending = nil
	x.ticker = nil
	x.mu.Unlock()
}

// flush re-emits the accumulated messages as one synthesized group. keepOverlap
// applies the count-mode overlap carry-over.
func (x *BatchNode) flush(keepOverlap bool) {
	x.mu.Lock()
	ctx := x.ctx
	if len(x.pending) == 0 || ctx == nil {
		x.mu.Unlock()
		return
	}
	group := x.pending
	if keepOverlap && x.Config.Overlap > 0 {
		carry := group[len(group)-x.Config.Overlap:]
		x.pending = make([]types.Message, len(carry))
		for i, m := range carry {
			x.pending[i] = m.Copy()
		}
	} else {
		x.pending = nil
	}
	x.mu.Unlock()

	id, _ := uuid.NewV4()
	groupId := id.String()
	for i, m := range group {
		m.Sequence = &types.Sequence{
			GroupId: groupId,
			Index:   i,
			Count:   len(group),
		}
		ctx.Send(0, m)
	}
}
