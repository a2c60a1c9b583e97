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

	"github.com/wikiserv/wikiserv/pkg/appinfo"
	"github.com/wikiserv/wikiserv/pkg/web/headers"
	"github.com/wikiserv/wikiserv/pkg/web/request"
)

type statusResponse struct {
	UserID   *string `json:"user_id"`
	Username *string `json:"username"`
	Server   string  `json:"server"`
	Version  string  `json:"version"`
}

// Status reports the session user and the server identity
func (h *Handlers) Status(st *request.State) error {
	out := statusResponse{Server: appinfo.Server, Version: appinfo.Version}
	if st.User != nil {
		out.UserID = &st.User.ID
		out.Username = &st.User.Username
	}
	return st.SendJSON(http.StatusOK, http.Header{
		headers.NameCacheControl: {headers.ValueNoCache},
	}, out)
}
