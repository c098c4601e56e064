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

// Package base provides helpers shared by the built-in node packages.
package base

import (
	"errors"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/utils/json"
	"github.com/wireflow/wireflow/utils/maps"
	"github.com/wireflow/wireflow/utils/str"
)

var ErrClientNotInit = errors.New("client not init")

// DecodeConfig fills target from a node's raw configuration map. Decoding is
// weakly typed: "5" satisfies an int field, 1 satisfies a bool.
func DecodeConfig(configuration types.Configuration, target interface{}) error {
	return maps.Map2StructWeakly(configuration, target)
}

// PayloadString renders a payload for string assembly and templating.
func PayloadString(payload interface{}) string {
	return str.ToString(payload)
}

// PayloadSlice returns the payload as a slice when it already is one, or when
// it is a JSON array in string or byte form.
func PayloadSlice(payload interface{}) ([]interface{}, bool) {
	switch v := payload.(type) {
	case []interface{}:
		return v, true
	case string:
		var out []interface{}
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out, true
		}
	case []byte:
		var out []interface{}
		if err := json.Unmarshal(v, &out); err == nil {
			return out, true
		}
	}
	return nil, false
}

// ExprEnv builds the variable environment handed to expr programs: payload,
// topic, correlationId, index (the sequence index, -1 when absent),
// extensions, and global (config properties).
func ExprEnv(ctx types.NodeContext, msg types.Message) map[string]interface{} {
	index := -1
	if msg.Sequence != nil {
		index = msg.Sequence.Index
	}
	return map[string]interface{}{
		"payload":       msg.Payload,
		"topic":         msg.Topic,
		"correlationId": msg.CorrelationId,
		"index":         index,
		"extensions":    msg.Extensions,
		"global":        ctx.Config().Properties,
	}
}

// PayloadMap returns the payload as a map when it already is one, or when it
// is a JSON object in string or byte form.
func PayloadMap(payload interface{}) (map[string]interface{}, bool) {
	switch v := payload.(type) {
	case map[string]interface{}:
		return v, true
	case string:
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out, true
		}
	case []byte:
		var out map[string]interface{}
		if err := json.Unmarshal(v, &out); err == nil {
			return out, true
		}
	}
	return nil, false
}
