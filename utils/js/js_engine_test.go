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

package js

import (
	"sync"
	"testing"
	"time"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/test/assert"
)

func TestJsEngine(t *testing.T) {
	t.Run("Execute", func(t *testing.T) {
		engine, err := NewGojaJsEngine(types.NewConfig(), "function add(a, b) { return a + b; }", nil, 0)
		assert.Nil(t, err)
		defer engine.Stop()

		out, err := engine.Execute("add", 2, 3)
		assert.Nil(t, err)
		assert.Equal(t, int64(5), out)
	})

	t.Run("BrokenScript", func(t *testing.T) {
		_, err := NewGojaJsEngine(types.NewConfig(), "function add(a { return a; }", nil, 0)
		assert.NotNil(t, err)
	})

	t.Run("TopLevelThrow", func(t *testing.T) {
		_, err := NewGojaJsEngine(types.NewConfig(), "throw new Error('bad module');", nil, 0)
		assert.NotNil(t, err)
	})

	t.Run("RuntimeError", func(t *testing.T) {
		engine, err := NewGojaJsEngine(types.NewConfig(), "function boom() { throw new Error('kaboom'); }", nil, 0)
		assert.Nil(t, err)
		defer engine.Stop()

		_, err = engine.Execute("boom")
		assert.NotNil(t, err)
	})

	t.Run("UnknownFunction", func(t *testing.T) {
		engine, err := NewGojaJsEngine(types.NewConfig(), "function known() { return 1; }", nil, 0)
		assert.Nil(t, err)
		defer engine.Stop()

		_, err = engine.Execute("unknown")
		assert.NotNil(t, err)
	})

	t.Run("Timeout", func(t *testing.T) {
		config := types.NewConfig(types.WithScriptMaxExecutionTime(100 * time.Millisecond))
		engine, err := NewGojaJsEngine(config, "function spin() { while (true) {} }", nil, 0)
		assert.Nil(t, err)
		defer engine.Stop()

		start := time.Now()
		_, err = engine.Execute("spin")
		assert.NotNil(t, err)
		assert.True(t, time.Since(start) < 5*time.Second)

		// the interrupted VM must be usable again
		engine2, err := NewGojaJsEngine(config, "function ok() { return 'fine'; }", nil, 0)
		assert.Nil(t, err)
		defer engine2.Stop()
		out, err := engine2.Execute("ok")
		assert.Nil(t, err)
		assert.Equal(t, "fine", out)
	})

	t.Run("FromVars", func(t *testing.T) {
		engine, err := NewGojaJsEngine(types.NewConfig(), "function whoAmI() { return name; }", map[string]interface{}{
			"name": "wireflow",
		}, 0)
		assert.Nil(t, err)
		defer engine.Stop()

		out, err := engine.Execute("whoAmI")
		assert.Nil(t, err)
		assert.Equal(t, "wireflow", out)
	})

	t.Run("GlobalProperties", func(t *testing.T) {
		config := types.NewConfig(types.WithProperties(map[string]string{"region": "eu-west"}))
		engine, err := NewGojaJsEngine(config, "function region() { return global.region; }", nil, 0)
		assert.Nil(t, err)
		defer engine.Stop()

		out, err := engine.Execute("region")
		assert.Nil(t, err)
		assert.Equal(t, "eu-west", out)
	})

	t.Run("ConcurrentExecute", func(t *testing.T) {
		engine, err := NewGojaJsEngine(types.NewConfig(), "function double(n) { return n * 2; }", nil, 4)
		assert.Nil(t, err)
		defer engine.Stop()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				out, err := engine.Execute("double", n)
				assert.Nil(t, err)
				assert.Equal(t, int64(n*2), out)
			}(i)
		}
		wg.Wait()
	})
}
