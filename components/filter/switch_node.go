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

package filter

//Node configuration example:
//{
//        "id": "s1",
//        "type": "switch",
//        "name": "route by temperature",
//        "configuration": {
//         "rules": [
//           {"rule": "payload.temperature > 50", "output": 0},
//           {"rule": "payload.temperature > 20", "output": 1}
//         ],
//         "checkAll": false
//        }
//      }
import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
)

func init() {
	Registry.Add(&SwitchNode{})
}

// SwitchNodeConfiguration node configuration
type SwitchNodeConfiguration struct {
	//Rules are evaluated in order against each message. Rule expressions
	//see the payload, topic, correlationId, index, extensions and global
	//variables.
	Rules []Rule
	//CheckAll evaluates every rule instead of stopping at the first match,
	//so one message can be routed to several outputs.
	CheckAll bool
}

type Rule struct {
	//Rule is an expr expression returning a boolean.
	Rule string `json:"rule"`
	//Output is the output index the message is routed to on a match.
	Output int `json:"output"`
}

// SwitchNode routes a message to outputs by ordered rule evaluation. With
// CheckAll off, the first matching rule wins; with it on, the message goes to
// every matching rule's output. A rule evaluation failure is reported and
// stops routing for that message.
type SwitchNode struct {
	Config   SwitchNodeConfiguration
	programs []*vm.Program
}

// Type component type
func (x *SwitchNode) Type() string {
	return "switch"
}

func (x *SwitchNode) New() types.Node {
	return &SwitchNode{}
}

// Init compiles the rule expressions. A rule that does not compile rejects
// the flow at load.
func (x *SwitchNode) Init(_ types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	x.programs = nil
	for _, rule := range x.Config.Rules {
		program, err := expr.Compile(rule.Rule, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return err
		}
		x.programs = append(x.programs, program)
	}
	return nil
}

// OnMsg routes the message by the configured rules.
func (x *SwitchNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	env := base.ExprEnv(ctx, msg)
	var outputs []int
	for i, program := range x.programs {
		out, err := vm.Run(program, env)
		if err != nil {
			ctx.ReportError(err, &msg)
			return
		}
		if result, ok := out.(bool); ok && result {
			outputs = append(outputs, x.Config.Rules[i].Output)
			if !x.Config.CheckAll {
				break
			}
		}
	}
	if len(outputs) == 0 {
		return
	}
	if len(outputs) == 1 {
		ctx.Send(outputs[0], msg)
		ctx.Done(msg)
		return
	}
	max := 0
	for _, o := range outputs {
		if o > max {
			max = o
		}
	}
	// each matched output gets its own instance; the last keeps the original
	msgs := make([]*types.Message, max+1)
	for j, o := range outputs {
		if msgs[o] != nil {
			continue
		}
		m := msg
		if j < len(outputs)-1 {
			m = msg.Copy()
		}
		msgs[o] = &m
	}
	ctx.SendMany(msgs)
	ctx.Done(msg)
}

// OnClose cleans up the component
func (x *SwitchNode) OnClose(_ bool) {
}
