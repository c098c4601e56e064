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

package engine

import (
	"fmt"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/utils/json"
)

// JsonParser is the default flow definition parser. Other definition formats
// plug in through types.Parser via Config.Parser.
type JsonParser struct {
}

var _ types.Parser = (*JsonParser)(nil)

// DecodeFlow parses a flow definition from JSON.
func (p *JsonParser) DecodeFlow(_ types.Config, dsl []byte) (types.FlowDef, error) {
	var def types.FlowDef
	if err := json.Unmarshal(dsl, &def); err != nil {
		return types.FlowDef{}, fmt.Errorf("parse flow: %w", err)
	}
	return def, nil
}

// EncodeFlow serializes a flow definition to JSON.
func (p *JsonParser) EncodeFlow(def types.FlowDef) ([]byte, error) {
	return json.Marshal(def)
}
