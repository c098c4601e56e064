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

// Package json wraps encoding/json with HTML escaping disabled, so payloads
// containing &, < or > round-trip unchanged through the debug sidecar and
// flow definitions.
package json

import (
	"bytes"
	"encoding/json"
)

// Marshal marshals v without escaping &, < and > to &, <, >.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(v)
	if err == nil && buf.Len() > 0 {
		// drop the trailing newline the encoder appends
		return buf.Bytes()[:buf.Len()-1], nil
	}
	return buf.Bytes(), err
}

// Unmarshal decodes JSON data into v.
func Unmarshal(b []byte, v interface{}) error {
	return json.Unmarshal(b, v)
}
