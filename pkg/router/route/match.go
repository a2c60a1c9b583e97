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

package route

import (
	"net/url"

	"github.com/wikiserv/wikiserv/pkg/web/methods"
	"github.com/wikiserv/wikiserv/pkg/web/request"
)

// Match is one node of a matched chain
type Match struct {
	Route *Route
	// Prefix is the part of the path this node consumed
	Prefix string
	// Params are the capture groups of the node pattern
	Params []string
	// Remaining is the path left for the node's children. It is "/" when
	// nothing remains.
	Remaining string
}

// Chain is a matched list of nodes, root first
type Chain []Match

// Match walks the tree below and including r depth first and returns the
// first chain that matches method and path from r to a leaf. Siblings are
// tried in declaration order, and a sibling whose subtree yields no leaf
// is skipped in favor of the next one. A nil Chain means no match.
func (r *Route) Match(method, path string) Chain {
	return matchRoutes([]*Route{r}, method, path)
}

func matchRoutes(routes []*Route, method, path string) Chain {
	for _, rt := range routes {
		if !rt.Allows(method) {
			continue
		}
		loc := rt.pattern.FindStringSubmatchIndex(path)
		if loc == nil || loc[0] != 0 {
			continue
		}
		m := Match{
			Route:     rt,
			Prefix:    path[:loc[1]],
			Remaining: path[loc[1]:],
		}
		if m.Remaining == "" {
			m.Remaining = "/"
		}
		for i := 2; i+1 < len(loc); i += 2 {
			if loc[i] < 0 {
				m.Params = append(m.Params, "")
				continue
			}
			m.Params = append(m.Params, path[loc[i]:loc[i+1]])
		}
		if len(rt.children) == 0 {
			return Chain{m}
		}
		if sub := matchRoutes(rt.children, method, m.Remaining); sub != nil {
			return append(Chain{m}, sub...)
		}
	}
	return nil
}

// Routable reports whether the chain can be handled. An empty chain, or
// one that ends at a deny-final node, is treated as no route.
func (c Chain) Routable() bool {
	return len(c) > 0 && !c[len(c)-1].Route.denyFinal
}

// BodyFormat returns the first body format declared from root to leaf, or
// FormatIgnore when none is declared. GET and HEAD always ignore the body.
func (c Chain) BodyFormat(method string) request.Format {
	if methods.IsBodyless(method) {
		return request.FormatIgnore
	}
	for _, m := range c {
		if m.Route.bodyFormat != "" {
			return m.Route.bodyFormat
		}
	}
	return request.FormatIgnore
}

// RequiresRequestedWith reports whether any node in the chain demands a
// trusted X-Requested-With header
func (c Chain) RequiresRequestedWith() bool {
	for _, m := range c {
		if m.Route.requestedWith {
			return true
		}
	}
	return false
}

// PathParams maps the named capture groups of every node in the chain to
// their URL-decoded values. Later nodes win for repeated names.
func (c Chain) PathParams() map[string]string {
	out := make(map[string]string)
	for _, m := range c {
		for i, name := range m.Route.paramNames {
			if i >= len(m.Params) || name == "" {
				continue
			}
			v, err := url.PathUnescape(m.Params[i])
			if err != nil {
				v = m.Params[i]
			}
			out[name] = v
		}
	}
	return out
}

// Captures returns the capture groups of each node, root first
func (c Chain) Captures() [][]string {
	out := make([][]string, len(c))
	for i, m := range c {
		out[i] = m.Params
	}
	return out
}

// Path returns the concatenation of every node's consumed prefix
func (c Chain) Path() string {
	var s string
	for _, m := range c {
		s += m.Prefix
	}
	return s
}
