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

package handlers

import (
	"errors"

	"github.com/wikiserv/wikiserv/pkg/auth/sessions"
	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/web/request"
)

// Session resolves the session cookie into st.User. It runs first for
// every routable request and never sends a response.
func (h *Handlers) Session(st *request.State) error {
	if h.opts.Sessions == nil {
		return nil
	}
	s, err := h.opts.Sessions.FromCookies(st.Cookies())
	switch {
	case errors.Is(err, sessions.ErrNoSession):
		return nil
	case err != nil:
		// a store outage degrades to an anonymous request
		st.Logger().Warn("session lookup failed", logging.Pairs{"detail": err})
		return nil
	}
	st.User = &request.User{ID: s.UserID, Username: s.Username, SessionID: s.ID}
	return nil
}
