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

// Package handlers provides the wiki server's route handlers and builds the
// route tree
package handlers

import (
	"net/http"

	"github.com/wikiserv/wikiserv/pkg/auth/credentials"
	"github.com/wikiserv/wikiserv/pkg/auth/login"
	"github.com/wikiserv/wikiserv/pkg/auth/sessions"
	"github.com/wikiserv/wikiserv/pkg/router"
	"github.com/wikiserv/wikiserv/pkg/router/route"
	"github.com/wikiserv/wikiserv/pkg/web/request"
	"github.com/wikiserv/wikiserv/pkg/web/sse"

	"github.com/spf13/afero"
)

// DefaultStaticIndex is served for static directory requests
const DefaultStaticIndex = "index.html"

// Options holds the dependencies of the handlers
type Options struct {
	Logins      *login.Manager
	Credentials *credentials.Credentials
	Sessions    *sessions.Manager
	SSE         sse.Options
	// StaticFs and StaticRoot locate the files served below /static/.
	// An empty StaticRoot disables the static route.
	StaticFs    afero.Fs
	StaticRoot  string
	StaticIndex string
}

// Handlers serves the routes of the wiki server
type Handlers struct {
	opts Options
}

// New returns Handlers for o
func New(o Options) *Handlers {
	if o.StaticFs == nil {
		o.StaticFs = afero.NewOsFs()
	}
	if o.StaticIndex == "" {
		o.StaticIndex = DefaultStaticIndex
	}
	return &Handlers{opts: o}
}

// Register defines the routes below rt's root
func (h *Handlers) Register(rt *router.Router) error {
	defs := []route.Definition{
		{Pattern: `^/ping$`, Methods: []string{http.MethodGet}, Handler: h.Ping},
		{Pattern: `^/status$`, Methods: []string{http.MethodGet}, Handler: h.Status},
		{Pattern: `^/events$`, Methods: []string{http.MethodGet}, Handler: h.Events},
	}
	if h.opts.StaticRoot != "" {
		defs = append(defs, route.Definition{
			Pattern:    `^/static/(.*)$`,
			Methods:    []string{http.MethodGet},
			PathParams: []string{"path"},
			Handler:    h.Static,
		})
	}
	for _, d := range defs {
		if _, err := rt.Define(d); err != nil {
			return err
		}
	}

	// state-changing auth routes require a trusted X-Requested-With
	auth, err := rt.Define(route.Definition{
		Pattern:             `^/`,
		DenyFinal:           true,
		RequestedWithHeader: true,
	})
	if err != nil {
		return err
	}
	for _, d := range []route.Definition{
		{Pattern: `^login/1$`, Methods: []string{http.MethodPost},
			BodyFormat: request.FormatJSON, Handler: h.LoginStart},
		{Pattern: `^login/2$`, Methods: []string{http.MethodPost},
			BodyFormat: request.FormatJSON, Handler: h.LoginFinish},
		{Pattern: `^logout$`, Methods: []string{http.MethodPost},
			BodyFormat: request.FormatIgnore, Handler: h.Logout},
	} {
		if _, err := auth.Define(d); err != nil {
			return err
		}
	}
	return nil
}
