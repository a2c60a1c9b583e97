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

// Package request provides the per-request state handed to route handlers
package request

import (
	"net/http"
	"net/url"

	"github.com/wikiserv/wikiserv/pkg/events"
	"github.com/wikiserv/wikiserv/pkg/web/headers"
	"github.com/wikiserv/wikiserv/pkg/web/streamer"
)

// User is the authenticated user of a request
type User struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
	// SessionID is the id of the session the user was resolved from
	SessionID string `json:"-"`
}

// State is the view of one request that route handlers receive. The
// embedded Streamer provides the send and stream operations.
type State struct {
	*streamer.Streamer

	// Bus is the process-wide event bus
	Bus *events.Bus
	// PathParams holds named captures from the matched route patterns
	PathParams map[string]string
	// Matches holds the capture groups of each route in the matched chain,
	// root first
	Matches [][]string
	// QueryParams are the parsed query string parameters
	QueryParams url.Values
	// Body is the request body read according to the route's body format
	Body Body
	// User is set by the session middleware for authenticated requests
	User *User
}

// New returns a State for s
func New(s *streamer.Streamer, bus *events.Bus, body Body) *State {
	return &State{
		Streamer:    s,
		Bus:         bus,
		PathParams:  make(map[string]string),
		QueryParams: s.URL().Query(),
		Body:        body,
	}
}

// Authenticated reports whether a session user is attached to the request
func (st *State) Authenticated() bool {
	return st.User != nil
}

// SendJSON encodes v and sends it as application/json
func (st *State) SendJSON(status int, h http.Header, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	out := http.Header{headers.NameContentType: {headers.ValueApplicationJSON}}
	headers.Merge(out, h)
	return st.SendBuffer(status, out, b)
}
