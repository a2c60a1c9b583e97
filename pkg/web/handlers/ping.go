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
	"net/http"

	"github.com/wikiserv/wikiserv/pkg/web/headers"
	"github.com/wikiserv/wikiserv/pkg/web/request"
)

// Ping responds with 200 OK and "pong"
func (h *Handlers) Ping(st *request.State) error {
	return st.SendString(http.StatusOK, http.Header{
		headers.NameCacheControl: {headers.ValueNoCache},
	}, "pong")
}
