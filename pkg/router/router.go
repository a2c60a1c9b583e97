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

// Package router dispatches requests through the route tree. The Router is
// the outermost request boundary: it builds the Streamer, matches the
// chain, enforces the requested-with check, reads the body, runs the
// handlers in order and renders any error as a structured response.
package router

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/wikiserv/wikiserv/pkg/events"
	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/observability/logging/logger"
	"github.com/wikiserv/wikiserv/pkg/observability/metrics"
	"github.com/wikiserv/wikiserv/pkg/observability/tracing"
	"github.com/wikiserv/wikiserv/pkg/observability/tracing/span"
	"github.com/wikiserv/wikiserv/pkg/router/route"
	"github.com/wikiserv/wikiserv/pkg/web/errors"
	"github.com/wikiserv/wikiserv/pkg/web/failures"
	"github.com/wikiserv/wikiserv/pkg/web/headers"
	"github.com/wikiserv/wikiserv/pkg/web/methods"
	"github.com/wikiserv/wikiserv/pkg/web/request"
	"github.com/wikiserv/wikiserv/pkg/web/streamer"

	"github.com/go-stack/stack"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRequestedWith is the X-Requested-With value trusted by default
var DefaultRequestedWith = []string{"TiddlyWiki"}

// Options configures a Router
type Options struct {
	Streamer streamer.Options
	// RequestedWith lists the trusted X-Requested-With values
	RequestedWith []string
	// MaxBodySize limits buffered request bodies. 0 is unlimited.
	MaxBodySize int64
	Bus         *events.Bus
	Tracer      *tracing.Tracer
	Logger      logging.Logger
}

// Router is an http.Handler over a route tree
type Router struct {
	root          *route.Route
	bus           *events.Bus
	tracer        *tracing.Tracer
	log           logging.Logger
	streamerOpts  streamer.Options
	requestedWith []string
	maxBodySize   int64
}

// New returns a Router whose root runs rootHandler, which may be nil, for
// every routable request
func New(o Options, rootHandler route.Handler) *Router {
	lg := o.Logger
	if lg == nil {
		lg = logger.Logger()
	}
	bus := o.Bus
	if bus == nil {
		bus = events.New()
	}
	so := o.Streamer
	if so.Logger == nil {
		so.Logger = lg
	}
	rw := o.RequestedWith
	if len(rw) == 0 {
		rw = DefaultRequestedWith
	}
	return &Router{
		root:          route.NewRoot(rootHandler),
		bus:           bus,
		tracer:        o.Tracer,
		log:           lg,
		streamerOpts:  so,
		requestedWith: slices.Clone(rw),
		maxBodySize:   o.MaxBodySize,
	}
}

// Root returns the root of the route tree
func (rt *Router) Root() *route.Route {
	return rt.root
}

// Define adds a route below the root
func (rt *Router) Define(d route.Definition) (*route.Route, error) {
	return rt.root.Define(d)
}

// Freeze ends the build phase. It must be called before serving.
func (rt *Router) Freeze() {
	rt.root.Freeze()
}

// Bus returns the Router's event bus
func (rt *Router) Bus() *events.Bus {
	return rt.bus
}

// Match returns the chain for method and path, or nil when the request has
// no route, including when the chain ends at a deny-final node
func (rt *Router) Match(method, path string) route.Chain {
	c := rt.root.Match(method, path)
	if !c.Routable() {
		return nil
	}
	return c
}

// Dispatch runs the handlers of the chain in order, one at a time, and
// stops as soon as one of them sends the response headers or returns
// errors.ErrStreamEnded. A failing handler's Catch handler gets one
// attempt to handle the error.
func (rt *Router) Dispatch(st *request.State, chain route.Chain) error {
	for _, m := range chain {
		h := m.Route.Handler()
		if h == nil {
			continue
		}
		_, sp := span.NewChildSpan(st.Context(), rt.tracer, "handle "+m.Route.Pattern())
		err := h(st)
		if err != nil && !errors.IsStreamEnded(err) {
			if c := m.Route.Catch(); c != nil && !st.HeadersSent() {
				err = c(st, err)
			}
		}
		span.End(sp, st.Status(), filterEnded(err))
		if errors.IsStreamEnded(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if st.HeadersSent() {
			return nil
		}
	}
	return nil
}

func filterEnded(err error) error {
	if errors.IsStreamEnded(err) {
		return nil
	}
	return err
}

func (rt *Router) trusted(h http.Header) bool {
	v := h.Get(headers.NameRequestedWith)
	return v != "" && slices.Contains(rt.requestedWith, v)
}

// ServeHTTP handles one request from start to finish
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r, sp := span.PrepareRequest(r, rt.tracer)
	var s *streamer.Streamer
	var status int

	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				panic(p)
			}
			rt.log.Error("panic handling request", logging.Pairs{
				"method": r.Method,
				"path":   r.URL.Path,
				"panic":  fmt.Sprint(p),
				"stack":  fmt.Sprintf("%+v", stack.Trace().TrimRuntime()),
			})
			status = rt.fail(w, r, s, errors.Internal(fmt.Errorf("panic: %v", p)))
		}
		var written int64
		if s != nil {
			if sent := s.Status(); sent > 0 {
				status = sent
			}
			written = s.BytesWritten()
			if err := s.End(); err != nil {
				rt.log.Debug("error ending response", logging.Pairs{"detail": err})
			}
		}
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		metrics.FrontendRequestStatus.WithLabelValues(r.Method, code).Inc()
		metrics.FrontendRequestDuration.WithLabelValues(r.Method, code).
			Observe(time.Since(start).Seconds())
		metrics.FrontendRequestWrittenBytes.WithLabelValues(r.Method, code).Add(float64(written))
		span.End(sp, status, nil)
	}()

	if err := rt.serve(w, r, sp, &s); err != nil {
		status = rt.fail(w, r, s, err)
	}
}

func (rt *Router) serve(w http.ResponseWriter, r *http.Request, sp trace.Span,
	out **streamer.Streamer) error {
	ctx := r.Context()
	if err := rt.bus.Emit(ctx, events.RequestMiddleware,
		&events.RawRequest{W: w, R: r}); err != nil {
		return err
	}
	s, err := streamer.New(w, r, rt.streamerOpts)
	*out = s
	if err != nil {
		return err
	}
	if err := rt.bus.Emit(ctx, events.RequestStreamer, s); err != nil {
		return err
	}

	chain := rt.Match(s.Method(), s.URL().EscapedPath())
	if chain == nil {
		return errors.NoRoute()
	}
	leaf := chain[len(chain)-1].Route.Pattern()
	span.SetAttributes(sp, attribute.String("http.route", leaf))

	if chain.RequiresRequestedWith() && !methods.IsSafe(s.Method()) &&
		!rt.trusted(s.Headers()) {
		return errors.RequestedWithRequired()
	}

	body, err := request.ReadEncodedBody(s.RequestBody(),
		s.Headers().Values(headers.NameContentEncoding), chain.BodyFormat(s.Method()),
		rt.maxBodySize)
	if err != nil {
		return err
	}
	st := request.New(s, rt.bus, body)
	st.PathParams = chain.PathParams()
	st.Matches = chain.Captures()

	if err := rt.bus.Emit(ctx, events.RequestState, st); err != nil {
		return err
	}
	if err := rt.bus.Emit(ctx, events.RequestHandle, st); err != nil {
		return err
	}
	if err := rt.Dispatch(st, chain); err != nil || s.HeadersSent() {
		return err
	}
	if err := rt.bus.Emit(ctx, events.RequestFallback, st); err != nil || s.HeadersSent() {
		return err
	}
	rt.log.Error("handler chain completed without sending a response", logging.Pairs{
		"method": s.Method(),
		"path":   s.URL().Path,
		"route":  leaf,
	})
	return errors.NoResponse()
}

// fail renders err as the response and returns its status. ErrStreamEnded
// means the response was already sent and is not an error.
func (rt *Router) fail(w http.ResponseWriter, r *http.Request, s *streamer.Streamer, err error) int {
	if errors.IsStreamEnded(err) {
		return 0
	}
	status, h, b := failures.Response(err)
	pairs := logging.Pairs{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
		"detail": err,
	}
	if he, ok := errors.AsHTTPError(err); ok {
		pairs["reason"] = he.Reason
	}
	if status >= http.StatusInternalServerError {
		rt.log.Error("request failed", pairs)
	} else {
		rt.log.Debug("request rejected", pairs)
	}
	if s == nil {
		failures.Write(w, err)
		return status
	}
	if s.HeadersSent() {
		rt.log.Warn("error after response headers were sent", logging.Pairs{
			"path":   r.URL.Path,
			"sentBy": s.HeadersSentBy(),
			"detail": err,
		})
		return 0
	}
	if serr := s.SendBuffer(status, h, b); serr != nil && !errors.IsStreamEnded(serr) &&
		!stderrors.Is(serr, errors.ErrHeadersAlreadySent) {
		rt.log.Error("failed to send error response", logging.Pairs{"detail": serr})
	}
	return status
}
