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
//        "id": "s3",
//        "type": "sort",
//        "name": "order by temperature",
//        "configuration": {
//          "keyExpr": "payload.temperature",
//          "order": "desc",
//          "timeoutMs": 5000
//        }
//  }
import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
	"github.com/wireflow/wireflow/correlation"
	"github.com/wireflow/wireflow/utils/str"
)

func init() {
	Registry.Add(&SortNode{})
}

// SortNodeConfiguration node configuration
type SortNodeConfiguration struct {
	//KeyExpr is an expr expression evaluated per buffered message; its value
	//is the sort key. Empty sorts by the original sequence index.
	KeyExpr string
	//Order is asc or desc.
	Order string
	//Count bounds the group when inbound sequences carry no count.
	Count int
	//TimeoutMs re-emits an incomplete group best-effort after this deadline.
	TimeoutMs int
	//DropLate drops contributions arriving after their group was flushed.
	DropLate bool
}

// SortNode buffers a bounded sequence and re-emits its messages ordered by a
// key expression, with fresh contiguous sequence indices and the original
// group id.
type SortNode struct {
	Config SortNodeConfiguration

	program *vm.Program
	engine  *correlation.Engine
	ctx     types.NodeContext
}

// Type component type
func (x *SortNode) Type() string {
	return "sort"
}

func (x *SortNode) New() types.Node {
	return &SortNode{Config: SortNodeConfiguration{Order: "asc"}}
}

// Init initializes the component
func (x *SortNode) Init(_ types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	switch x.Config.Order {
	case "", "asc":
		x.Config.Order = "asc"
	case "desc":
	default:
		return fmt.Errorf("unknown sort order: %s", x.Config.Order)
	}
	if x.Config.KeyExpr != "" {
		program, err := expr.Compile(x.Config.KeyExpr, expr.AllowUndefinedVariables())
		if err != nil {
			return err
		}
		x.program = program
	}
	return nil
}

// OnMsg buffers one message of a bounded group.
func (x *SortNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	if x.engine == nil {
		x.ctx = ctx
		x.engine = correlation.New(ctx, correlation.Options{
			Count:    x.Config.Count,
			Timeout:  time.Duration(x.Config.TimeoutMs) * time.Millisecond,
			DropLate: x.Config.DropLate,
		}, x.flush)
	}
	seq := msg.Sequence
	if seq == nil {
		ctx.ReportError(errors.New("message has no sequence, cannot sort"), &msg)
		return
	}
	if x.engine.Add(seq.GroupId, seq.Index, seq.Count, msg) {
		ctx.Done(msg)
	}
}

// OnClose discards incomplete groups without flushing.
func (x *SortNode) OnClose(_ bool) {
	if x.engine != nil {
		x.engine.Close()
	}
}

func (x *SortNode) flush(g *correlation.Group, reason correlation.Reason) {
	contribs := g.Contributions()
	if x.program != nil {
		type keyed struct {
			key interface{}
			c   correlation.Contribution
		}
		list := make([]keyed, len(contribs))
		for i, c := range contribs {
			out, err := vm.Run(x.program, base.ExprEnv(x.ctx, c.Msg))
			if err != nil {
				x.ctx.ReportError(err, nil)
				return
			}
			list[i] = keyed{key: out, c: c}
		}
		sort.SliceStable(list, func(i, j int) bool {
			return lessValue(list[i].key, list[j].key)
		})
		for i := range list {
			contribs[i] = list[i].c
		}
	}
	if x.Config.Order == "desc" {
		reverse(contribs)
	}

	if reason == correlation.ReasonTimeout {
		x.ctx.ReportStatus(types.Status{
			Severity: types.StatusYellow,
			Shape:    types.StatusShapeRing,
			Text:     fmt.Sprintf("group %s timed out with %d parts", g.Id, len(contribs)),
		})
	}
	for i, c := range contribs {
		out := c.Msg
		out.Sequence = &types.Sequence{
			GroupId: g.Id,
			Index:   i,
			Count:   len(contribs),
		}
		x.ctx.Send(0, out)
	}
}

// lessValue orders two sort keys: numerically when both are numbers, by
// string rendering otherwise.
func lessValue(a, b interface{}) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa < fb
	}
	return strings.Compare(str.ToString(a), str.ToString(b)) < 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func reverse(list []correlation.Contribution) {
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
}
