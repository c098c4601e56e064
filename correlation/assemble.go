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

package correlation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/utils/str"
)

// Assemble builds the completed payload for a flushed group according to its
// declared kind, from the contributions in ascending index order:
//   - string: payloads stringified and joined with the group separator
//   - array:  ordered sequence of payloads
//   - object: each payload nested under its contribution key
//   - merged: structured payloads merged into one map, later index wins
//   - buffer: raw byte blocks concatenated
func Assemble(g *Group) (interface{}, error) {
	contribs := g.Contributions()
	switch g.Kind() {
	case types.KindString, "":
		return assembleString(contribs, g.Separator()), nil
	case types.KindArray:
		out := make([]interface{}, 0, len(contribs))
		for _, c := range contribs {
			out = append(out, c.Payload)
		}
		return out, nil
	case types.KindObject:
		out := make(map[string]interface{}, len(contribs))
		for _, c := range contribs {
			key := c.Key
			if key == "" {
				key = strconv.Itoa(c.Index)
			}
			out[key] = c.Payload
		}
		return out, nil
	case types.KindMerged:
		out := make(map[string]interface{})
		for _, c := range contribs {
			m, ok := c.Payload.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("correlation: merged kind needs map payloads, group %s index %d has %T", g.Id, c.Index, c.Payload)
			}
			for k, v := range m {
				out[k] = v
			}
		}
		return out, nil
	case types.KindBuffer:
		var out []byte
		for _, c := range contribs {
			switch block := c.Payload.(type) {
			case []byte:
				out = append(out, block...)
			case string:
				out = append(out, block...)
			default:
				return nil, fmt.Errorf("correlation: buffer kind needs byte payloads, group %s index %d has %T", g.Id, c.Index, c.Payload)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("correlation: unknown kind %q for group %s", g.Kind(), g.Id)
	}
}

func assembleString(contribs []Contribution, separator string) string {
	var b strings.Builder
	for i, c := range contribs {
		if i > 0 {
			b.WriteString(separator)
		}
		b.WriteString(str.ToString(c.Payload))
	}
	return b.String()
}
