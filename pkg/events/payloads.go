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

package events

import (
	"errors"
	"net/http"
)

// ErrPayloadType is returned when a typed subscriber receives an unexpected payload
var ErrPayloadType = errors.New("unexpected event payload type")

// RawRequest is the payload of RequestMiddleware. A listener that fully
// handles the request returns errors.ErrStreamEnded from pkg/web/errors.
type RawRequest struct {
	W http.ResponseWriter
	R *http.Request
}

// TiddlerChange is the payload of TiddlerSaved and TiddlerDeleted
type TiddlerChange struct {
	Bag      string `json:"bag_name"`
	Title    string `json:"title"`
	Revision int64  `json:"revision_id"`
}
