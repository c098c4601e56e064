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
//        "id": "s2",
//        "type": "join",
//        "name": "reassemble csv line",
//        "configuration": {
//          "mode": "auto",
//          "kind": "string",
//          "separator": "-",
//          "timeoutMs": 5000
//        }
//  }
import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
	"github.com/wireflow/wireflow/correlation"
)

func init() {
	Registry.Add(&JoinNode{})
}

const (
	//JoinModeAuto completes groups from the inbound Sequence descriptors.
	JoinModeAuto = "auto"
	//JoinModeManual completes groups after Count arrivals, in arrival order.
	JoinModeManual = "manual"
)

// JoinNodeConfiguration node configuration
type JoinNodeConfiguration struct {
	//Mode is auto or manual.
	Mode string
	//Count is the manual-mode completion threshold.
	Count int
	//TimeoutMs flushes an incomplete group best-effort after this deadline.
	//Zero disables the deadline.
	TimeoutMs int
	//Kind overrides the assembly kind declared on the sequence.
	Kind string
	//Separator overrides the string-kind separator declared on the sequence.
	Separator string
	//DropLate drops contributions arriving after their group was flushed
	//instead of opening a new group with them.
	DropLate bool
}

// JoinNode reassembles a split sequence into one message. Auto mode trusts
// the Sequence descriptor on each inbound message; manual mode groups by
// correlation id and completes after Count arrivals. An incomplete group
// flushes best-effort when the deadline fires, with a warning status.
type JoinNode struct {
	Config JoinNodeConfiguration

	engine *correlation.Engine
	ctx    types.NodeContext
	//manual-mode arrival counters per group, shared with the deadline
	//callback
	arrivals map[string]int
	mu       sync.Mutex
}

// Type component type
func (x *JoinNode) Type() string {
	return "join"
}

func (x *JoinNode) New() types.Node {
	return &JoinNode{Config: JoinNodeConfiguration{Mode: JoinModeAuto}}
}

// Init initializes the component
func (x *JoinNode) Init(_ types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	if x.Config.Mode == "" {
		x.Config.Mode = JoinModeAuto
	}
	if x.Config.Mode != JoinModeAuto && x.Config.Mode != JoinModeManual {
		return fmt.Errorf("unknown join mode: %s", x.Config.Mode)
	}
	if x.Config.Mode == JoinModeManual && x.Config.Count <= 0 {
		return errors.New("manual join requires a positive count")
	}
	x.arrivals = make(map[string]int)
	return nil
}

// OnMsg accumulates one contribution, emitting the assembled message when its
// group completes.
func (x *JoinNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	if x.engine == nil {
		// the engine arms deadlines through the node context, so it is
		// built on first use rather than at Init
		x.ctx = ctx
		x.engine = correlation.New(ctx, correlation.Options{
			Threshold: x.manualThreshold(),
			Timeout:   time.Duration(x.Config.TimeoutMs) * time.Millisecond,
			DropLate:  x.Config.DropLate,
			Kind:      x.Config.Kind,
			Separator: x.Config.Separator,
		}, x.flush)
	}

	if x.Config.Mode == JoinModeManual {
		groupId := msg.CorrelationId
		x.mu.Lock()
		index := x.arrivals[groupId]
		x.arrivals[groupId] = index + 1
		x.mu.Unlock()
		if x.engine.Add(groupId, index, 0, msg) {
			ctx.Done(msg)
		}
		return
	}

	seq := msg.Sequence
	if seq == nil {
		ctx.ReportError(errors.New("message has no sequence, cannot join"), &msg)
		return
	}
	if x.engine.Add(seq.GroupId, seq.Index, seq.Count, msg) {
		ctx.Done(msg)
	}
}

// OnClose discards incomplete groups without flushing.
func (x *JoinNode) OnClose(_ bool) {
	if x.engine != nil {
		x.engine.Close()
	}
	x.mu.Lock()
	x.arrivals = make(map[string]int)
	x.mu.Unlock()
}

func (x *JoinNode) manualThreshold() int {
	if x.Config.Mode == JoinModeManual {
		return x.Config.Count
	}
	return 0
}

func (x *JoinNode) flush(g *correlation.Group, reason correlation.Reason) {
	x.mu.Lock()
	delete(x.arrivals, g.Id)
	x.mu.Unlock()
	payload, err := correlation.Assemble(g)
	if err != nil {
		x.ctx.ReportError(err, nil)
		return
	}
	out := g.Template.Copy()
	out.Payload = payload
	out.Sequence = nil
	if reason == correlation.ReasonTimeout {
		x.ctx.ReportStatus(types.Status{
			Severity: types.StatusYellow,
			Shape:    types.StatusShapeRing,
			Text:     fmt.Sprintf("group %s timed out with %d parts", g.Id, g.Size()),
		})
	}
	x.ctx.Send(0, out)
}
