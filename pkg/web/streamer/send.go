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

package streamer

import (
	"bytes"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/web/errors"
	"github.com/wikiserv/wikiserv/pkg/web/headers"

	"github.com/hashicorp/go-multierror"
)

// claimHeaders records the first call site to send headers. A second
// attempt is logged with both call sites and rejected.
func (s *Streamer) claimHeaders() error {
	site := callSite()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.headersSentBy != "" {
		s.log.Error("response headers already sent", logging.Pairs{
			"method":    s.method,
			"path":      s.url.Path,
			"firstSend": s.headersSentBy,
			"thisSend":  site,
		})
		return errors.ErrHeadersAlreadySent
	}
	if s.ended {
		return errors.ErrWriteAfterEnd
	}
	s.headersSentBy = site
	return nil
}

func (s *Streamer) writeHead(status int, h http.Header) {
	rh := s.comp.Header()
	headers.Merge(rh, h)
	s.mtx.Lock()
	s.status = status
	s.mtx.Unlock()
	s.comp.WriteHeader(status)
}

// WriteHead sends the status and headers without ending the response. The
// body follows with Write and the response is finished with End.
func (s *Streamer) WriteHead(status int, h http.Header) error {
	if err := s.claimHeaders(); err != nil {
		return err
	}
	s.writeHead(status, h)
	return nil
}

// Write writes b to the response body. It blocks until the transport
// accepts the bytes, so callers are paced by the client.
func (s *Streamer) Write(b []byte) (int, error) {
	s.mtx.Lock()
	switch {
	case s.ended:
		s.mtx.Unlock()
		return 0, errors.ErrWriteAfterEnd
	case s.headersSentBy == "":
		s.mtx.Unlock()
		return 0, errors.ErrHeadersNotSent
	}
	s.mtx.Unlock()
	if s.method == http.MethodHead {
		return len(b), nil
	}
	n, err := s.comp.Write(b)
	s.mtx.Lock()
	s.bytesWritten += int64(n)
	s.mtx.Unlock()
	return n, err
}

// Flush pushes buffered output, including any pending compressed bytes, to
// the client. It fails until the headers are sent.
func (s *Streamer) Flush() error {
	if s.Ended() {
		return errors.ErrWriteAfterEnd
	}
	if !s.HeadersSent() {
		return errors.ErrHeadersNotSent
	}
	return s.comp.FlushError()
}

// SplitCompressionStream ends the current compressed segment so that all
// output so far is decodable by the client, without ending the response
func (s *Streamer) SplitCompressionStream() error {
	if s.Ended() {
		return errors.ErrWriteAfterEnd
	}
	if !s.HeadersSent() {
		return errors.ErrHeadersNotSent
	}
	return s.comp.SplitStream()
}

// SetWriteDeadline bounds the writes to the client that are in flight or
// still to come. The zero time clears it. Writers that cannot take a
// deadline ignore it.
func (s *Streamer) SetWriteDeadline(t time.Time) error {
	err := http.NewResponseController(s.w).SetWriteDeadline(t)
	if stderrors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}

// End finishes the response. Headers are sent with a 200 status first if
// nothing was sent yet. End is safe to call more than once.
func (s *Streamer) End() error {
	if !s.HeadersSent() {
		if err := s.WriteHead(http.StatusOK, nil); err != nil &&
			err != errors.ErrWriteAfterEnd {
			return err
		}
	}
	s.mtx.Lock()
	if s.ended {
		s.mtx.Unlock()
		return nil
	}
	s.ended = true
	s.mtx.Unlock()
	var result *multierror.Error
	if err := s.comp.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := http.NewResponseController(s.w).Flush(); err != nil &&
		!stderrors.Is(err, http.ErrNotSupported) {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// SendEmpty sends a response without a body. Like every Send primitive it
// ends the response and returns ErrStreamEnded on success, so handlers can
// return its result directly.
func (s *Streamer) SendEmpty(status int, h http.Header) error {
	if err := s.claimHeaders(); err != nil {
		return err
	}
	s.comp.Header().Del(headers.NameContentType)
	s.writeHead(status, h)
	return s.finish(nil)
}

// SendString sends body as text/plain unless h sets a Content-Type
func (s *Streamer) SendString(status int, h http.Header, body string) error {
	return s.sendBytes(status, h, []byte(body), headers.ValueTextPlainUTF8)
}

// SendBuffer sends body as application/octet-stream unless h sets a
// Content-Type
func (s *Streamer) SendBuffer(status int, h http.Header, body []byte) error {
	return s.sendBytes(status, h, body, headers.ValueOctetStream)
}

func (s *Streamer) sendBytes(status int, h http.Header, body []byte, ctype string) error {
	if err := s.claimHeaders(); err != nil {
		return err
	}
	rh := s.comp.Header()
	headers.Merge(rh, h)
	if rh.Get(headers.NameContentType) == "" {
		rh.Set(headers.NameContentType, ctype)
	}
	rh.Set(headers.NameContentLength, strconv.Itoa(len(body)))
	s.writeHead(status, nil)
	if s.method == http.MethodHead {
		return s.finish(nil)
	}
	return s.finish(s.copyBody(bytes.NewReader(body)))
}

// SendStream sends the contents of body, closing it when it is an
// io.Closer. For HEAD requests the body is closed unread while headers are
// sent as for a GET.
func (s *Streamer) SendStream(status int, h http.Header, body io.Reader) error {
	if c, ok := body.(io.Closer); ok {
		defer c.Close()
	}
	if err := s.claimHeaders(); err != nil {
		return err
	}
	rh := s.comp.Header()
	headers.Merge(rh, h)
	if rh.Get(headers.NameContentType) == "" {
		rh.Set(headers.NameContentType, headers.ValueOctetStream)
	}
	s.writeHead(status, nil)
	if s.method == http.MethodHead {
		return s.finish(nil)
	}
	return s.finish(s.copyBody(body))
}

// Redirect sends an empty response with a Location header
func (s *Streamer) Redirect(status int, location string) error {
	return s.SendEmpty(status, http.Header{headers.NameLocation: []string{location}})
}

func (s *Streamer) copyBody(r io.Reader) error {
	n, err := io.Copy(s.comp, r)
	s.mtx.Lock()
	s.bytesWritten += n
	s.mtx.Unlock()
	return err
}

// finish ends the response and converts success into ErrStreamEnded
func (s *Streamer) finish(err error) error {
	if endErr := s.End(); endErr != nil {
		err = multierror.Append(err, endErr).ErrorOrNil()
	}
	if err != nil {
		return err
	}
	return errors.ErrStreamEnded
}
