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
	"net/http"
	"testing"

	"github.com/wikiserv/wikiserv/pkg/errors"
	"github.com/wikiserv/wikiserv/pkg/web/request"

	"github.com/stretchr/testify/require"
)

func testTree(t *testing.T) *Route {
	t.Helper()
	root := NewRoot(nil)
	a := root.MustDefine(Definition{Pattern: "^/a", DenyFinal: true})
	a.MustDefine(Definition{Pattern: "^/b$", Methods: []string{http.MethodGet}})
	a.MustDefine(Definition{Pattern: "^/b$", Methods: []string{http.MethodPut},
		BodyFormat: request.FormatString})
	root.MustDefine(Definition{
		Pattern:    "^/bags/([^/]+)/tiddlers/(.+)$",
		Methods:    []string{http.MethodGet, http.MethodPut},
		BodyFormat: request.FormatJSON,
		PathParams: []string{"bag", "title"},
	})
	login := root.MustDefine(Definition{Pattern: "^/login", DenyFinal: true,
		RequestedWithHeader: true, BodyFormat: request.FormatJSON})
	login.MustDefine(Definition{Pattern: "^/1$", Methods: []string{http.MethodPost}})
	// every method on /deny matches but never handles
	root.MustDefine(Definition{Pattern: "^/deny", DenyFinal: true})
	// shadowed by the first definition
	root.MustDefine(Definition{Pattern: "^/bags/([^/]+)/tiddlers/(.+)$",
		Methods: []string{http.MethodGet}, BodyFormat: request.FormatBuffer})
	root.Freeze()
	return root
}

func TestMatchChain(t *testing.T) {
	root := testTree(t)

	c := root.Match(http.MethodGet, "/a/b")
	require.Len(t, c, 3)
	require.True(t, c.Routable())
	require.Equal(t, "^/a", c[1].Route.Pattern())
	require.Equal(t, "^/b$", c[2].Route.Pattern())
	require.Equal(t, "/a/b", c.Path())
	require.Equal(t, "/", c[2].Remaining)

	// HEAD is implied by GET
	require.True(t, root.Match(http.MethodHead, "/a/b").Routable())

	// no method match at the leaf
	require.False(t, root.Match(http.MethodPost, "/a/b").Routable())
	require.False(t, root.Match(http.MethodGet, "/a/c").Routable())
	require.False(t, root.Match(http.MethodGet, "/nothing").Routable())

	// a deny-final leaf is matched for every method but is not routable
	for _, m := range []string{http.MethodGet, http.MethodDelete, http.MethodPost} {
		c = root.Match(m, "/deny/x")
		require.NotNil(t, c)
		require.False(t, c.Routable())
	}
}

func TestMatchPrefixesConcatenate(t *testing.T) {
	root := testTree(t)
	for _, p := range []string{"/a/b", "/bags/default/tiddlers/Hello%20World", "/login/1"} {
		for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodPost} {
			c := root.Match(m, p)
			if c == nil {
				continue
			}
			require.Equal(t, p, c.Path(), "%s %s", m, p)
		}
	}
}

func TestChainBodyFormat(t *testing.T) {
	root := testTree(t)
	require.Equal(t, request.FormatString, root.Match(http.MethodPut, "/a/b").BodyFormat(http.MethodPut))
	require.Equal(t, request.FormatIgnore, root.Match(http.MethodGet, "/a/b").BodyFormat(http.MethodGet))

	c := root.Match(http.MethodPut, "/bags/b/tiddlers/t")
	require.Equal(t, request.FormatJSON, c.BodyFormat(http.MethodPut))
	// GET and HEAD always ignore, even with a declared format
	require.Equal(t, request.FormatIgnore, c.BodyFormat(http.MethodGet))
	require.Equal(t, request.FormatIgnore, c.BodyFormat(http.MethodHead))

	// the first format declared from the root wins
	c = root.Match(http.MethodPost, "/login/1")
	require.Equal(t, request.FormatJSON, c.BodyFormat(http.MethodPost))
	require.True(t, c.RequiresRequestedWith())
}

func TestChainPathParams(t *testing.T) {
	root := testTree(t)
	c := root.Match(http.MethodGet, "/bags/default/tiddlers/Hello%20World")
	require.Equal(t, map[string]string{"bag": "default", "title": "Hello World"}, c.PathParams())
	require.Equal(t, []string{"default", "Hello%20World"}, c.Captures()[1])
}

func TestDefineErrors(t *testing.T) {
	root := NewRoot(nil)
	_, err := root.Define(Definition{Pattern: "/a", Methods: []string{http.MethodGet}})
	require.ErrorIs(t, err, errors.ErrInvalidPattern)
	_, err = root.Define(Definition{Pattern: "^/a(", Methods: []string{http.MethodGet}})
	require.ErrorIs(t, err, errors.ErrInvalidPattern)
	_, err = root.Define(Definition{Pattern: "^/a"})
	require.ErrorIs(t, err, errors.ErrNoMethods)
	_, err = root.Define(Definition{Pattern: "^/a", Methods: []string{"FETCH"}})
	require.ErrorIs(t, err, errors.ErrInvalidMethod)
	_, err = root.Define(Definition{Pattern: "^/a", Methods: []string{http.MethodPost},
		BodyFormat: "xml"})
	require.ErrorIs(t, err, errors.ErrInvalidBodyFormat)

	child, err := root.Define(Definition{Pattern: "^/a", DenyFinal: true})
	require.NoError(t, err)
	root.Freeze()
	require.True(t, child.Frozen())
	_, err = child.Define(Definition{Pattern: "^/b", Methods: []string{http.MethodGet}})
	require.ErrorIs(t, err, errors.ErrTreeFrozen)
	require.Panics(t, func() {
		child.MustDefine(Definition{Pattern: "^/b", Methods: []string{http.MethodGet}})
	})
}
