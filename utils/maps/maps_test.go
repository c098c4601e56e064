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

package maps

import (
	"testing"

	"github.com/wireflow/wireflow/test/assert"
)

type sampleConfig struct {
	Server   string
	Qos      uint8
	Retained bool
	MaxQueue int
}

func TestMap2Struct(t *testing.T) {
	var out sampleConfig
	err := Map2Struct(map[string]interface{}{
		"server":   "tcp://localhost:1883",
		"maxQueue": 100,
	}, &out)
	assert.Nil(t, err)
	assert.Equal(t, "tcp://localhost:1883", out.Server)
	assert.Equal(t, 100, out.MaxQueue)
}

func TestMap2StructWeakly(t *testing.T) {
	var out sampleConfig
	err := Map2StructWeakly(map[string]interface{}{
		"server":   "tcp://localhost:1883",
		"qos":      1,
		"retained": "true",
		"maxQueue": "250",
	}, &out)
	assert.Nil(t, err)
	assert.Equal(t, uint8(1), out.Qos)
	assert.Equal(t, true, out.Retained)
	assert.Equal(t, 250, out.MaxQueue)
}

func TestMap2StructWeaklyPartial(t *testing.T) {
	out := sampleConfig{Server: "tcp://default:1883", MaxQueue: 10}
	err := Map2StructWeakly(map[string]interface{}{
		"maxQueue": 99,
	}, &out)
	assert.Nil(t, err)
	// untouched fields keep their values
	assert.Equal(t, "tcp://default:1883", out.Server)
	assert.Equal(t, 99, out.MaxQueue)
}
