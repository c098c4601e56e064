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

// Package js runs user-supplied JavaScript through goja. Scripts are compiled
// once, VMs are pooled, and executions are interrupted when they exceed the
// configured budget.
package js

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/wireflow/wireflow/api/types"
)

// GlobalKey exposes config.Properties to scripts as global.xx.
const GlobalKey = "global"

// GojaJsEngine compiles a script once and executes its functions on pooled
// goja VMs.
type GojaJsEngine struct {
	vmPool   chan *goja.Runtime
	config   types.Config
	jsScript *goja.Program
}

// NewGojaJsEngine compiles jsScript and prepares a VM pool of the given size.
// fromVars are bound as VM globals before the script runs.
func NewGojaJsEngine(config types.Config, jsScript string, fromVars map[string]interface{}, poolSize int) (*GojaJsEngine, error) {
	program, err := goja.Compile("", jsScript, true)
	if err != nil {
		return nil, err
	}
	if poolSize <= 0 {
		poolSize = 4
	}
	engine := &GojaJsEngine{
		vmPool:   make(chan *goja.Runtime, poolSize),
		config:   config,
		jsScript: program,
	}
	// Build the first VM eagerly so a script whose top level throws fails
	// at init rather than on the first message.
	vm, err := engine.newVm(fromVars)
	if err != nil {
		return nil, err
	}
	engine.vmPool <- vm
	for i := 1; i < poolSize; i++ {
		vm, err := engine.newVm(fromVars)
		if err != nil {
			return nil, err
		}
		engine.vmPool <- vm
	}
	return engine, nil
}

func (g *GojaJsEngine) newVm(fromVars map[string]interface{}) (*goja.Runtime, error) {
	vm := goja.New()
	for k, v := range fromVars {
		if err := vm.Set(k, v); err != nil {
			return nil, err
		}
	}
	if len(g.config.Properties) != 0 {
		if err := vm.Set(GlobalKey, g.config.Properties); err != nil {
			return nil, err
		}
	}
	timer := g.startTimeout(vm)
	_, err := vm.RunProgram(g.jsScript)
	g.stopTimeout(timer)
	if err != nil {
		return nil, err
	}
	return vm, nil
}

// Execute calls functionName on a pooled VM and returns the exported result.
func (g *GojaJsEngine) Execute(functionName string, argumentList ...interface{}) (out interface{}, err error) {
	defer func() {
		if caught := recover(); caught != nil {
			err = fmt.Errorf("%s", caught)
		}
	}()

	vm := <-g.vmPool
	defer func() {
		vm.ClearInterrupt()
		g.vmPool <- vm
	}()

	var timer *time.Timer
	if g.config.ScriptMaxExecutionTime > 0 {
		timer = g.startTimeout(vm)
		defer g.stopTimeout(timer)
	}

	f, ok := goja.AssertFunction(vm.Get(functionName))
	if !ok {
		return nil, errors.New(functionName + " is not a function")
	}

	var params []goja.Value
	if len(argumentList) > 0 {
		params = make([]goja.Value, len(argumentList))
		for i, v := range argumentList {
			params[i] = vm.ToValue(v)
		}
	}

	res, err := f(goja.Undefined(), params...)
	if err != nil {
		return nil, err
	}
	return res.Export(), nil
}

func (g *GojaJsEngine) Stop() {
}

func (g *GojaJsEngine) startTimeout(vm *goja.Runtime) *time.Timer {
	if g.config.ScriptMaxExecutionTime <= 0 {
		return nil
	}
	return time.AfterFunc(g.config.ScriptMaxExecutionTime, func() {
		vm.Interrupt("execution timeout")
	})
}

func (g *GojaJsEngine) stopTimeout(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
