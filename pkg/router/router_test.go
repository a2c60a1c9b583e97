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

package router

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wikiserv/wikiserv/pkg/encoding/gzip"
	"github.com/wikiserv/wikiserv/pkg/events"
	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/observability/logging/level"
	"github.com/wikiserv/wikiserv/pkg/router/route"
	"github.com/wikiserv/wikiserv/pkg/web/errors"
	"github.com/wikiserv/wikiserv/pkg/web/request"
	"github.com/wikiserv/wikiserv/pkg/web/streamer"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newTestRouter(t *testing.T, logs *bytes.Buffer) *Router {
	t.Helper()
	var lg logging.Logger = logging.NoopLogger()
	if logs != nil {
		lg = logging.StreamLogger(logs, level.Debug)
	}
	return New(Options{Logger: lg, MaxBodySize: 64}, nil)
}

func serve(rt *Router, method, target, body string, h http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	for k, v := range h {
		r.Header[k] = v
	}
	rt.ServeHTTP(w, r)
	return w
}

func reasonOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var b struct {
		Status int    `json:"status"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	require.Equal(t, w.Code, b.Status)
	return b.Reason
}

func TestScenarioNestedMatch(t *testing.T) {
	rt := newTestRouter(t, nil)
	a, err := rt.Define(route.Definition{Pattern: "^/a", DenyFinal: true})
	require.NoError(t, err)
	_, err = a.Define(route.Definition{
		Pattern: "^/b",
		Methods: []string{http.MethodGet},
		Handler: func(st *request.State) error {
			return st.SendString(http.StatusOK, nil, "b")
		},
	})
	require.NoError(t, err)
	rt.Freeze()

	c := rt.Match(http.MethodGet, "/a/b")
	require.Len(t, c, 3)
	require.Equal(t, "^/a", c[1].Route.Pattern())

	w := serve(rt, http.MethodGet, "/a/b", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "b", w.Body.String())

	require.Nil(t, rt.Match(http.MethodPost, "/a/b"))
	w = serve(rt, http.MethodPost, "/a/b", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "NO_ROUTE", reasonOf(t, w))
}

func TestScenarioFirstHandlerSends(t *testing.T) {
	rt := newTestRouter(t, nil)
	var secondRan bool
	p, _ := rt.Define(route.Definition{
		Pattern: "^/p",
		Methods: []string{http.MethodGet},
		Handler: func(st *request.State) error {
			return st.SendEmpty(http.StatusNoContent, nil)
		},
	})
	p.MustDefine(route.Definition{
		Pattern: "^",
		Methods: []string{http.MethodGet},
		Handler: func(st *request.State) error {
			secondRan = true
			return st.SendString(http.StatusOK, nil, "second")
		},
	})
	rt.Freeze()
	w := serve(rt, http.MethodGet, "/p", "", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.False(t, secondRan)
}

func TestHandlersRunInOrder(t *testing.T) {
	var order []string
	rt := New(Options{Logger: logging.NoopLogger()}, func(st *request.State) error {
		order = append(order, "root")
		return nil
	})
	p := rt.Root().MustDefine(route.Definition{
		Pattern: "^/p", DenyFinal: true,
		Handler: func(st *request.State) error {
			order = append(order, "p")
			return nil
		},
	})
	p.MustDefine(route.Definition{
		Pattern: "^/q$", Methods: []string{http.MethodGet},
		Handler: func(st *request.State) error {
			order = append(order, "q")
			return st.SendEmpty(http.StatusNoContent, nil)
		},
	})
	rt.Freeze()
	serve(rt, http.MethodGet, "/p/q", "", nil)
	require.Equal(t, []string{"root", "p", "q"}, order)
}

func TestNoResponseFallback(t *testing.T) {
	logs := &bytes.Buffer{}
	rt := newTestRouter(t, logs)
	rt.Define(route.Definition{
		Pattern: "^/silent$",
		Methods: []string{http.MethodGet},
		Handler: func(st *request.State) error { return nil },
	})
	var fallback bool
	rt.Bus().On(events.RequestFallback, func(ctx context.Context, payload any) error {
		_, fallback = payload.(*request.State)
		return nil
	})
	rt.Freeze()
	w := serve(rt, http.MethodGet, "/silent", "", nil)
	require.True(t, fallback)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "HANDLER_NO_RESPONSE", reasonOf(t, w))
	require.Contains(t, logs.String(), "handler chain completed without sending a response")
}

func TestCatchHandler(t *testing.T) {
	rt := newTestRouter(t, nil)
	boom := stderrors.New("boom")
	var caught error
	rt.Define(route.Definition{
		Pattern: "^/recover$",
		Methods: []string{http.MethodGet},
		Handler: func(st *request.State) error { return boom },
		Catch: func(st *request.State, err error) error {
			caught = err
			return st.SendString(http.StatusOK, nil, "recovered")
		},
	})
	rt.Define(route.Definition{
		Pattern: "^/rethrow$",
		Methods: []string{http.MethodGet},
		Handler: func(st *request.State) error { return boom },
		Catch:   func(st *request.State, err error) error { return err },
	})
	rt.Freeze()

	w := serve(rt, http.MethodGet, "/recover", "", nil)
	require.Equal(t, "recovered", w.Body.String())
	require.ErrorIs(t, caught, boom)

	w = serve(rt, http.MethodGet, "/rethrow", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "INTERNAL_ERROR", reasonOf(t, w))
	require.NotContains(t, w.Body.String(), "boom")
}

func TestPanicIsRecovered(t *testing.T) {
	rt := newTestRouter(t, nil)
	rt.Define(route.Definition{
		Pattern: "^/panic$",
		Methods: []string{http.MethodGet},
		Handler: func(st *request.State) error { panic("handler bug") },
	})
	rt.Freeze()
	w := serve(rt, http.MethodGet, "/panic", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "handler bug")
}

func TestRequestedWithGuard(t *testing.T) {
	rt := newTestRouter(t, nil)
	var bodyRead bool
	login := rt.Root().MustDefine(route.Definition{
		Pattern: "^/login", DenyFinal: true, RequestedWithHeader: true,
	})
	login.MustDefine(route.Definition{
		Pattern: "^/1$", Methods: []string{http.MethodGet, http.MethodPost},
		BodyFormat: request.FormatString,
		Handler: func(st *request.State) error {
			_, err := st.Body.Text()
			bodyRead = err == nil
			return st.SendEmpty(http.StatusNoContent, nil)
		},
	})
	rt.Freeze()

	w := serve(rt, http.MethodPost, "/login/1", "x", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "REQUESTED_WITH_HEADER_REQUIRED", reasonOf(t, w))
	require.False(t, bodyRead)

	w = serve(rt, http.MethodPost, "/login/1", "x", http.Header{"X-Requested-With": {"Evil"}})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = serve(rt, http.MethodPost, "/login/1", "x", http.Header{"X-Requested-With": {"TiddlyWiki"}})
	require.Equal(t, http.StatusNoContent, w.Code)
	require.True(t, bodyRead)

	// safe methods are exempt
	w = serve(rt, http.MethodGet, "/login/1", "", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestBodyErrors(t *testing.T) {
	rt := newTestRouter(t, nil)
	rt.Define(route.Definition{
		Pattern: "^/json$", Methods: []string{http.MethodPut},
		BodyFormat: request.FormatJSON,
		Handler: func(st *request.State) error {
			v, err := st.Body.JSON()
			if err != nil {
				return err
			}
			return st.SendJSON(http.StatusOK, nil, v)
		},
	})
	rt.Freeze()

	w := serve(rt, http.MethodPut, "/json", `{"a":1}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"a":1}`, w.Body.String())

	w = serve(rt, http.MethodPut, "/json", `{"a":`, nil)
	require.Equal(t, "MALFORMED_JSON", reasonOf(t, w))

	w = serve(rt, http.MethodPut, "/json", `{"__proto__":{"x":1}}`, nil)
	require.Equal(t, "PROTOTYPE_POLLUTION", reasonOf(t, w))

	w = serve(rt, http.MethodPut, "/json", `{"a":"`+strings.Repeat("x", 100)+`"}`, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	gz := &bytes.Buffer{}
	enc := gzip.NewEncoder(gz, 0)
	enc.Write([]byte(`{"b":2}`))
	require.NoError(t, enc.Close())
	w = serve(rt, http.MethodPut, "/json", gz.String(),
		http.Header{"Content-Encoding": {"gzip"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"b":2}`, w.Body.String())

	w = serve(rt, http.MethodPut, "/json", `{"a":1}`,
		http.Header{"Content-Encoding": {"compress"}})
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	require.Equal(t, "UNSUPPORTED_CONTENT_ENCODING", reasonOf(t, w))

	w = serve(rt, http.MethodPut, "/json", `{"a":1}`,
		http.Header{"Content-Encoding": {"gzip"}})
	require.Equal(t, "MALFORMED_CONTENT_ENCODING", reasonOf(t, w))
}

func TestPathPrefixAndEvents(t *testing.T) {
	bus := events.New()
	var seen []events.Name
	for _, n := range []events.Name{events.RequestMiddleware, events.RequestStreamer,
		events.RequestState, events.RequestHandle} {
		bus.On(n, func(ctx context.Context, payload any) error {
			seen = append(seen, n)
			return nil
		})
	}
	rt := New(Options{
		Bus:      bus,
		Logger:   logging.NoopLogger(),
		Streamer: streamer.Options{PathPrefix: "/wiki"},
	}, nil)
	rt.Define(route.Definition{
		Pattern: "^/ping$", Methods: []string{http.MethodGet},
		Handler: func(st *request.State) error {
			return st.SendString(http.StatusOK, nil, "pong")
		},
	})
	rt.Freeze()

	w := serve(rt, http.MethodGet, "/wiki/ping", "", nil)
	require.Equal(t, "pong", w.Body.String())
	require.Equal(t, []events.Name{events.RequestMiddleware, events.RequestStreamer,
		events.RequestState, events.RequestHandle}, seen)

	w = serve(rt, http.MethodGet, "/wiki", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/wiki/", w.Header().Get("Location"))

	w = serve(rt, http.MethodGet, "/ping", "", nil)
	require.Equal(t, "OUTSIDE_PATH_PREFIX", reasonOf(t, w))
}

func TestMiddlewareCanEndRequest(t *testing.T) {
	rt := newTestRouter(t, nil)
	rt.Bus().On(events.RequestMiddleware, func(ctx context.Context, payload any) error {
		rr := payload.(*events.RawRequest)
		rr.W.WriteHeader(http.StatusTeapot)
		return errors.ErrStreamEnded
	})
	rt.Freeze()
	w := serve(rt, http.MethodGet, "/anything", "", nil)
	require.Equal(t, http.StatusTeapot, w.Code)
}
