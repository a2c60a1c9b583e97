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

// Package compressor negotiates the content encoding of a single response
// and owns the lifetime of its compression stream
package compressor

import (
	"errors"
	"net/http"

	"github.com/wikiserv/wikiserv/pkg/encoding/profile"
	"github.com/wikiserv/wikiserv/pkg/encoding/providers"
	"github.com/wikiserv/wikiserv/pkg/observability/metrics"
	"github.com/wikiserv/wikiserv/pkg/web/headers"
)

// ErrClosed is returned by writes after Close
var ErrClosed = errors.New("compressor closed")

var (
	_ http.ResponseWriter = &Compressor{}
	_ http.Flusher        = &Compressor{}
)

type writeFunc func([]byte) (int, error)

// Compressor is an http.ResponseWriter that decides the response encoding
// just before the headers are written and then routes the body through the
// chosen encoder. It is owned by exactly one response and is not safe for
// concurrent use.
type Compressor struct {
	http.ResponseWriter // the writer that receives the encoded bytes
	profile             *profile.Profile
	reqMethod           string
	reqHeader           http.Header

	prepared  bool
	closed    bool
	method    string
	provider  providers.Provider
	initFn    providers.EncoderInitializer
	encoder   providers.Encoder
	writeFunc writeFunc
	segments  int
}

// New returns a Compressor for the response to r
func New(w http.ResponseWriter, r *http.Request, p *profile.Profile) *Compressor {
	if p == nil {
		p = profile.New(nil)
	}
	return &Compressor{
		ResponseWriter: w,
		profile:        p,
		reqMethod:      r.Method,
		reqHeader:      r.Header,
		method:         profile.MethodPassthrough,
	}
}

// Method returns the negotiated method. Before the headers are written it
// is "passthrough".
func (c *Compressor) Method() string {
	return c.method
}

// Segments returns the number of compressed segments started so far
func (c *Compressor) Segments() int {
	return c.segments
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController
func (c *Compressor) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

// WriteHeader negotiates the encoding from the headers set so far, installs
// the encoder, and writes the status line and headers
func (c *Compressor) WriteHeader(code int) {
	if !c.prepared {
		c.prepareWriter(code)
	}
	c.ResponseWriter.WriteHeader(code)
}

// Write writes b through the encoder, writing a 200 header first if needed
func (c *Compressor) Write(b []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if !c.prepared {
		c.WriteHeader(http.StatusOK)
	}
	return c.writeFunc(b)
}

func (c *Compressor) prepareWriter(code int) {
	c.prepared = true
	c.writeFunc = c.writeDirect
	// informational and bodiless statuses are never encoded
	if code < http.StatusOK || code == http.StatusNoContent || code == http.StatusNotModified {
		return
	}
	h := c.Header()
	method, vary := c.profile.Negotiate(c.reqMethod, c.reqHeader, h)
	if vary {
		headers.AppendVary(h, headers.NameAcceptEncoding)
	}
	c.method = method
	metrics.CompressionResponses.WithLabelValues(method).Inc()
	p, ok := providers.ProviderID(method)
	if !ok || p == providers.Identity {
		return
	}
	ei, en := providers.SelectEncoderInitializer(p)
	if ei == nil {
		return
	}
	c.provider = p
	c.initFn = ei
	c.encoder = ei(c.ResponseWriter, c.profile.Level)
	c.segments = 1
	h.Del(headers.NameContentLength)
	h.Set(headers.NameContentEncoding, en)
	c.writeFunc = c.writeEncoded
}

func (c *Compressor) writeDirect(b []byte) (int, error) {
	return c.ResponseWriter.Write(b)
}

func (c *Compressor) writeEncoded(b []byte) (int, error) {
	_, err := c.encoder.Write(b)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// FlushError flushes any buffered encoder output and then the transport.
// Before the headers are written it does nothing, so a flush can never
// commit an implicit status ahead of negotiation.
func (c *Compressor) FlushError() error {
	if !c.prepared {
		return nil
	}
	if c.encoder != nil {
		if err := c.encoder.Flush(); err != nil {
			return err
		}
	}
	return c.flushTransport()
}

// Flush implements http.Flusher
func (c *Compressor) Flush() {
	c.FlushError()
}

func (c *Compressor) flushTransport() error {
	err := http.NewResponseController(c.ResponseWriter).Flush()
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}

// SplitStream ends the current compressed segment so that everything
// written so far reaches the client as independently decodable output,
// without ending the response. For encodings whose streams may be
// concatenated (gzip, zstd) the live encoder is finished and replaced with
// a fresh one. Brotli and deflate streams are sync-flushed instead.
func (c *Compressor) SplitStream() error {
	if c.closed {
		return ErrClosed
	}
	if !c.prepared {
		return nil
	}
	if c.encoder == nil {
		return c.flushTransport()
	}
	if !c.provider.Concatenable() {
		return c.FlushError()
	}
	if err := c.encoder.Close(); err != nil {
		return err
	}
	c.encoder = c.initFn(c.ResponseWriter, c.profile.Level)
	c.segments++
	return c.flushTransport()
}

// Close finishes the compression stream, if any. It does not end the
// underlying response and is safe to call more than once.
func (c *Compressor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.encoder == nil {
		return nil
	}
	err := c.encoder.Close()
	c.encoder = nil
	return err
}
