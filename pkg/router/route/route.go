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

// Package route provides the nodes of the route tree and the matching of a
// request path and method against them
package route

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/wikiserv/wikiserv/pkg/errors"
	"github.com/wikiserv/wikiserv/pkg/web/methods"
	"github.com/wikiserv/wikiserv/pkg/web/request"
)

// Handler handles a request for one node of a matched chain. Returning
// errors.ErrStreamEnded, or sending the response headers, stops the chain.
type Handler func(*request.State) error

// CatchHandler is given one chance to handle the error returned by the
// Handler of the same node
type CatchHandler func(*request.State, error) error

// Definition describes a Route to add to the tree
type Definition struct {
	// Pattern is a regular expression that must start with "^". It is
	// matched against the part of the path the parent left unconsumed.
	Pattern string
	// Methods lists the allowed methods. GET implies HEAD. An empty list is
	// only valid with DenyFinal.
	Methods []string
	// BodyFormat is how the request body is read, when this is the first
	// node of the chain to declare one
	BodyFormat request.Format
	// DenyFinal makes a chain ending at this node count as no route
	DenyFinal bool
	// RequestedWithHeader requires a trusted X-Requested-With value for
	// unsafe methods anywhere below this node
	RequestedWithHeader bool
	// PathParams names the capture groups of Pattern, in order
	PathParams []string
	Handler    Handler
	Catch      CatchHandler
}

// Route is a node of the route tree. Routes are created with Define and are
// read-only once the tree is frozen.
type Route struct {
	pattern       *regexp.Regexp
	source        string
	methods       uint16
	bodyFormat    request.Format
	denyFinal     bool
	requestedWith bool
	paramNames    []string
	handler       Handler
	catch         CatchHandler
	children      []*Route
	frozen        *atomic.Bool
}

// NewRoot returns the root of a new tree. The root matches every method
// and every path and never handles on its own.
func NewRoot(handler Handler) *Route {
	return &Route{
		pattern:   regexp.MustCompile("^"),
		source:    "^",
		denyFinal: true,
		handler:   handler,
		frozen:    &atomic.Bool{},
	}
}

// Define validates d and adds it as the last child of r
func (r *Route) Define(d Definition) (*Route, error) {
	if r.frozen.Load() {
		return nil, errors.ErrTreeFrozen
	}
	if !strings.HasPrefix(d.Pattern, "^") {
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidPattern, d.Pattern)
	}
	re, err := regexp.Compile(d.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidPattern, err)
	}
	if len(d.Methods) == 0 && !d.DenyFinal {
		return nil, fmt.Errorf("%w: %q", errors.ErrNoMethods, d.Pattern)
	}
	for _, m := range d.Methods {
		if !methods.IsValidMethod(m) {
			return nil, fmt.Errorf("%w: %q", errors.ErrInvalidMethod, m)
		}
	}
	if d.BodyFormat != "" && !d.BodyFormat.IsValid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidBodyFormat, d.BodyFormat)
	}
	mask := methods.MethodMask(d.Methods...)
	if methods.MaskHas(mask, http.MethodGet) {
		mask |= methods.MethodMask(http.MethodHead)
	}
	c := &Route{
		pattern:       re,
		source:        d.Pattern,
		methods:       mask,
		bodyFormat:    d.BodyFormat,
		denyFinal:     d.DenyFinal,
		requestedWith: d.RequestedWithHeader,
		paramNames:    d.PathParams,
		handler:       d.Handler,
		catch:         d.Catch,
		frozen:        r.frozen,
	}
	r.children = append(r.children, c)
	return c, nil
}

// MustDefine is Define for static trees, panicking on an invalid Definition
func (r *Route) MustDefine(d Definition) *Route {
	c, err := r.Define(d)
	if err != nil {
		panic(err)
	}
	return c
}

// Freeze ends the build phase of the whole tree r belongs to
func (r *Route) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether the tree has been frozen
func (r *Route) Frozen() bool {
	return r.frozen.Load()
}

// Pattern returns the pattern source
func (r *Route) Pattern() string { return r.source }

// DenyFinal reports whether a chain ending here counts as no route
func (r *Route) DenyFinal() bool { return r.denyFinal }

// BodyFormat returns the declared body format, or "" if none
func (r *Route) BodyFormat() request.Format { return r.bodyFormat }

// Handler returns the route handler, which may be nil
func (r *Route) Handler() Handler { return r.handler }

// Catch returns the route catch handler, which may be nil
func (r *Route) Catch() CatchHandler { return r.catch }

// Children returns the child routes in declaration order
func (r *Route) Children() []*Route { return r.children }

// Allows reports whether the route accepts method. A deny-final route
// without methods accepts every method.
func (r *Route) Allows(method string) bool {
	if r.methods == 0 {
		return r.denyFinal
	}
	return methods.MaskHas(r.methods, method)
}

func (r *Route) String() string {
	return r.source
}
