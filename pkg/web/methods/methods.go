/*
 * Copyright 2018 The Trickster Authors
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

// Package methods provides functionality for handling HTTP methods
package methods

import (
	"net/http"
	"strings"
)

const (
	get uint16 = 1 << iota
	head
	post
	put
	patch
	del
	options
	connect
	trace
)

const safeMethods = get | head | options

var logicalIDs = map[string]uint16{
	http.MethodGet:     get,
	http.MethodHead:    head,
	http.MethodPost:    post,
	http.MethodPut:     put,
	http.MethodPatch:   patch,
	http.MethodDelete:  del,
	http.MethodOptions: options,
	http.MethodConnect: connect,
	http.MethodTrace:   trace,
}

func logicalID(method string) uint16 {
	return logicalIDs[strings.ToUpper(method)]
}

// IsSafe returns true if the method is GET, HEAD or OPTIONS, which never
// carry side effects and are exempt from the requested-with check
func IsSafe(method string) bool {
	return safeMethods&logicalID(method) != 0
}

// IsBodyless returns true if the request body is always ignored for the
// method (GET and HEAD)
func IsBodyless(method string) bool {
	m := logicalID(method)
	return m == get || m == head
}

// IsValidMethod returns true if the method is a known HTTP method
func IsValidMethod(method string) bool {
	return logicalID(method) > 0
}

// MethodMask returns the bitmask of the known methods in the list
func MethodMask(methods ...string) uint16 {
	var i uint16
	for _, m := range methods {
		i |= logicalID(m)
	}
	return i
}

// MaskHas returns true if the method is included in the mask
func MaskHas(mask uint16, method string) bool {
	return mask&logicalID(method) != 0
}
