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

// Package str provides string conversion and ${} template helpers shared by
// the engine and the component packages.
package str

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var tplVarRegex = regexp.MustCompile(`\$\{(.*?)\}`)

// SprintfDict replaces ${key} placeholders in original with values from dict.
// Unmatched placeholders are left untouched.
// Example: SprintfDict("Hello,${name}", map[string]string{"name": "Alice"})
// returns "Hello,Alice".
func SprintfDict(original string, dict map[string]string) string {
	return tplVarRegex.ReplaceAllStringFunc(original, func(s string) string {
		matches := tplVarRegex.FindStringSubmatch(s)
		if len(matches) < 2 {
			return s
		}
		if result, ok := dict[strings.TrimSpace(matches[1])]; ok {
			return result
		}
		return s
	})
}

// CheckHasVar reports whether str contains a ${} placeholder.
func CheckHasVar(str string) bool {
	return strings.Contains(str, "${") && strings.Contains(str, "}")
}

// ToString converts input to a string, ignoring conversion errors.
func ToString(input interface{}) string {
	v, _ := ToStringMaybeErr(input)
	return v
}

// ToStringMaybeErr converts input to a string. Non-scalar values are encoded
// as JSON.
func ToStringMaybeErr(input interface{}) (string, error) {
	if input == nil {
		return "", nil
	}
	switch v := input.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case int8:
		return strconv.Itoa(int(v)), nil
	case uint8:
		return strconv.Itoa(int(v)), nil
	case int16:
		return strconv.Itoa(int(v)), nil
	case uint16:
		return strconv.Itoa(int(v)), nil
	case int32:
		return strconv.Itoa(int(v)), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	case error:
		return v.Error(), nil
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(v))
		for k, value := range v {
			converted[fmt.Sprintf("%v", k)] = value
		}
		newValue, err := json.Marshal(converted)
		if err != nil {
			return "", err
		}
		return string(newValue), nil
	default:
		newValue, err := json.Marshal(input)
		if err != nil {
			return "", err
		}
		return string(newValue), nil
	}
}

// Contains reports whether target is present in list.
func Contains(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}
