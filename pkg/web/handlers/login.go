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
	"net/http"

	"github.com/wikiserv/wikiserv/pkg/auth/login"
	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	werrors "github.com/wikiserv/wikiserv/pkg/web/errors"
	"github.com/wikiserv/wikiserv/pkg/web/headers"
	"github.com/wikiserv/wikiserv/pkg/web/request"
)

var errMissingFields = errors.New("missing required fields")

type loginStartRequest struct {
	Username          string `json:"username"`
	StartLoginRequest string `json:"startLoginRequest"`
}

type loginStartResponse struct {
	LoginResponse string `json:"loginResponse"`
	LoginSession  string `json:"loginSession"`
}

type loginFinishRequest struct {
	LoginSession       string `json:"loginSession"`
	FinishLoginRequest string `json:"finishLoginRequest"`
}

type loginFinishResponse struct {
	UserID string `json:"user_id"`
}

var noStore = http.Header{headers.NameCacheControl: {headers.ValueNoStore}}

// LoginStart runs step 0 of a login exchange
func (h *Handlers) LoginStart(st *request.State) error {
	var in loginStartRequest
	if err := st.Body.DecodeJSON(&in); err != nil {
		return werrors.InvalidRequest(err)
	}
	if in.Username == "" || in.StartLoginRequest == "" {
		return werrors.InvalidRequest(errMissingFields)
	}
	userID, rec, err := h.opts.Credentials.Lookup(in.Username)
	if err != nil {
		return werrors.Internal(err)
	}
	token, out, err := h.opts.Logins.StartLogin(login.Step0Input{
		UserID:             userID,
		Username:           in.Username,
		StartLoginRequest:  in.StartLoginRequest,
		RegistrationRecord: rec,
	})
	if err != nil {
		return werrors.LoginFailed(err)
	}
	return st.SendJSON(http.StatusOK, noStore, loginStartResponse{
		LoginResponse: out.LoginResponse,
		LoginSession:  token,
	})
}

// LoginFinish runs step 1 of a login exchange and opens a session on success
func (h *Handlers) LoginFinish(st *request.State) error {
	var in loginFinishRequest
	if err := st.Body.DecodeJSON(&in); err != nil {
		return werrors.InvalidRequest(err)
	}
	if in.LoginSession == "" || in.FinishLoginRequest == "" {
		return werrors.LoginFailed(errMissingFields)
	}
	out, err := h.opts.Logins.FinishLogin(in.LoginSession,
		login.Step1Input{FinishLoginRequest: in.FinishLoginRequest})
	if err != nil {
		return werrors.LoginFailed(err)
	}
	if out.Session == nil {
		return werrors.LoginFailed(nil)
	}
	s, err := h.opts.Sessions.Create(out.UserID, out.Username, out.Session.SessionKey)
	if err != nil {
		return werrors.Internal(err)
	}
	st.Logger().Info("login succeeded", logging.Pairs{"userID": out.UserID})
	st.SetCookie(h.opts.Sessions.Cookie(s))
	return st.SendJSON(http.StatusOK, noStore, loginFinishResponse{UserID: out.UserID})
}

// Logout removes the session and its cookie
func (h *Handlers) Logout(st *request.State) error {
	if st.User != nil {
		if err := h.opts.Sessions.Delete(st.User.SessionID); err != nil {
			return werrors.Internal(err)
		}
	}
	st.SetCookie(h.opts.Sessions.ClearCookie())
	return st.SendEmpty(http.StatusNoContent, nil)
}
