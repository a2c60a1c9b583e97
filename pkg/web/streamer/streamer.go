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

// Package streamer wraps one inbound request and its response behind a
// single interface for HTTP/1.1 and HTTP/2, and provides the primitive
// send operations every handler responds with.
package streamer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/wikiserv/wikiserv/pkg/encoding/compressor"
	"github.com/wikiserv/wikiserv/pkg/encoding/profile"
	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/observability/logging/logger"
	"github.com/wikiserv/wikiserv/pkg/web/errors"
	"github.com/wikiserv/wikiserv/pkg/web/headers"

	"github.com/go-stack/stack"
)

const modulePrefix = "github.com/wikiserv/wikiserv/"

// Options configures how Streamers are built for a listener
type Options struct {
	// PathPrefix is removed from every request path. Requests outside of it
	// are rejected.
	PathPrefix string
	// ExpectSecure marks cookies Secure
	ExpectSecure bool
	// Compression decides response encodings. nil uses the defaults.
	Compression *profile.Profile
	Logger      logging.Logger
}

// Streamer is the transport-normalized view of one request and its response
type Streamer struct {
	w    http.ResponseWriter
	r    *http.Request
	comp *compressor.Compressor
	log  logging.Logger

	method       string
	url          *url.URL
	header       http.Header
	cookies      map[string]string
	pathPrefix   string
	expectSecure bool

	mtx           sync.Mutex
	headersSentBy string
	ended         bool
	status        int
	bytesWritten  int64
}

// New validates r and returns its Streamer. When the path equals the
// prefix exactly, a trailing-slash redirect is sent and ErrStreamEnded is
// returned.
func New(w http.ResponseWriter, r *http.Request, o Options) (*Streamer, error) {
	if r.Method == "" {
		return nil, errors.InvalidRequest(errors.ErrNoMethod)
	}
	if r.URL == nil {
		return nil, errors.InvalidRequest(errors.ErrNoURL)
	}
	lg := o.Logger
	if lg == nil {
		lg = logger.Logger()
	}
	s := &Streamer{
		w:            w,
		r:            r,
		log:          lg,
		method:       r.Method,
		header:       r.Header,
		pathPrefix:   strings.TrimSuffix(o.PathPrefix, "/"),
		expectSecure: o.ExpectSecure,
	}
	normalizeHost(r)
	s.comp = compressor.New(w, r, o.Compression)

	u := *r.URL
	s.url = &u
	if s.pathPrefix != "" {
		switch {
		case u.Path == s.pathPrefix:
			loc := s.pathPrefix + "/"
			if u.RawQuery != "" {
				loc += "?" + u.RawQuery
			}
			if err := s.Redirect(http.StatusFound, loc); !errors.IsStreamEnded(err) {
				return nil, err
			}
			return s, errors.ErrStreamEnded
		case strings.HasPrefix(u.Path, s.pathPrefix+"/"):
			u.Path = strings.TrimPrefix(u.Path, s.pathPrefix)
			u.RawPath = ""
		default:
			return nil, errors.OutsidePrefix()
		}
	}
	if u.Path == "" {
		u.Path = "/"
	}
	s.cookies = ParseCookies(r.Header.Values(headers.NameCookie))
	return s, nil
}

// normalizeHost makes the Host header available on every transport. HTTP/2
// carries it as the :authority pseudo-header, which net/http surfaces only
// as Request.Host.
func normalizeHost(r *http.Request) {
	if r.Header.Get(headers.NameHost) != "" {
		return
	}
	host := r.Host
	if host == "" {
		host = r.Header.Get(headers.PseudoAuthority)
	}
	if host != "" {
		r.Header.Set(headers.NameHost, host)
	}
}

// ParseCookies parses Cookie header values into a map. Pairs without an
// "=" are skipped and the first occurrence of a name wins.
func ParseCookies(values []string) map[string]string {
	out := make(map[string]string)
	for _, v := range values {
		for part := range strings.SplitSeq(v, ";") {
			name, val, ok := strings.Cut(part, "=")
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, exists := out[name]; exists {
				continue
			}
			val = strings.TrimSpace(val)
			if len(val) > 1 && val[0] == '"' && val[len(val)-1] == '"' {
				val = val[1 : len(val)-1]
			}
			if dv, err := url.QueryUnescape(val); err == nil {
				val = dv
			}
			out[name] = val
		}
	}
	return out
}

// Method returns the request method
func (s *Streamer) Method() string { return s.method }

// URL returns the request URL with the path prefix removed
func (s *Streamer) URL() *url.URL { return s.url }

// Headers returns the request headers
func (s *Streamer) Headers() http.Header { return s.header }

// Cookies returns the parsed request cookies
func (s *Streamer) Cookies() map[string]string { return s.cookies }

// Host returns the normalized Host header
func (s *Streamer) Host() string { return s.header.Get(headers.NameHost) }

// PathPrefix returns the configured path prefix
func (s *Streamer) PathPrefix() string { return s.pathPrefix }

// ExpectSecure reports whether the server is expected to be reached over TLS
func (s *Streamer) ExpectSecure() bool { return s.expectSecure }

// Request returns the underlying request
func (s *Streamer) Request() *http.Request { return s.r }

// RequestBody returns the unread request body
func (s *Streamer) RequestBody() io.ReadCloser { return s.r.Body }

// Context returns the request context, which is cancelled when the client
// goes away
func (s *Streamer) Context() context.Context { return s.r.Context() }

// ResponseHeader returns the header map that will be sent with the response
func (s *Streamer) ResponseHeader() http.Header { return s.comp.Header() }

// CompressionMethod returns the negotiated response encoding
func (s *Streamer) CompressionMethod() string { return s.comp.Method() }

// Logger returns the Streamer's logger
func (s *Streamer) Logger() logging.Logger { return s.log }

// Status returns the status sent, or 0 if headers have not been sent
func (s *Streamer) Status() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.status
}

// BytesWritten returns the count of body bytes accepted before encoding
func (s *Streamer) BytesWritten() int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.bytesWritten
}

// HeadersSent reports whether the response headers were sent
func (s *Streamer) HeadersSent() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.headersSentBy != ""
}

// HeadersSentBy returns the call site that first sent the response headers
func (s *Streamer) HeadersSentBy() string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.headersSentBy
}

// Ended reports whether End has run
func (s *Streamer) Ended() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.ended
}

// Closed reports whether the response ended or the client went away
func (s *Streamer) Closed() bool {
	return s.Ended() || s.r.Context().Err() != nil
}

// SetCookie adds a Set-Cookie header to the pending response
func (s *Streamer) SetCookie(c *http.Cookie) {
	if s.expectSecure {
		c.Secure = true
	}
	http.SetCookie(s.comp.Header(), c)
}

// callSite returns the first frame outside of this package
func callSite() string {
	for _, c := range stack.Trace().TrimRuntime() {
		f := c.Frame()
		if strings.Contains(f.Function, "/pkg/web/streamer.") &&
			!strings.HasSuffix(f.File, "_test.go") {
			continue
		}
		return strings.TrimPrefix(fmt.Sprintf("%+v", c), modulePrefix)
	}
	return "unknown"
}
