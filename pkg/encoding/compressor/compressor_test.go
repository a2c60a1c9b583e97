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

package compressor

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wikiserv/wikiserv/pkg/encoding/options"
	"github.com/wikiserv/wikiserv/pkg/encoding/profile"
	"github.com/wikiserv/wikiserv/pkg/encoding/providers"

	"github.com/stretchr/testify/require"
)

func newTestCompressor(method, acceptEncoding string,
	o *options.Options) (*Compressor, *httptest.ResponseRecorder) {
	if o == nil {
		o = options.New()
		o.Threshold = 1
	}
	r := httptest.NewRequest(method, "/", nil)
	if acceptEncoding != "" {
		r.Header.Set("Accept-Encoding", acceptEncoding)
	}
	w := httptest.NewRecorder()
	return New(w, r, profile.New(o)), w
}

func decodeBody(contentEncoding string, b []byte) ([]byte, error) {
	dec, err := providers.NewDecoder(contentEncoding, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

func TestGzipSplitStream(t *testing.T) {
	c, w := newTestCompressor(http.MethodGet, "gzip", nil)
	c.Header().Set("Content-Type", "text/plain")
	c.WriteHeader(http.StatusOK)
	require.Equal(t, "gzip", c.Method())
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	require.Contains(t, w.Header().Values("Vary"), "Accept-Encoding")

	_, err := c.Write([]byte("first segment "))
	require.NoError(t, err)
	require.NoError(t, c.SplitStream())
	require.Equal(t, 2, c.Segments())

	// everything before the split is decodable on its own
	b, err := decodeBody("gzip", w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, "first segment ", string(b))

	_, err = c.Write([]byte("second segment"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	b, err = decodeBody("gzip", w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, "first segment second segment", string(b))
}

func TestZstdSplitStream(t *testing.T) {
	o := options.New()
	o.Threshold = 1
	o.Preferred = []string{"zstd", "gzip"}
	c, w := newTestCompressor(http.MethodGet, "zstd, gzip", o)
	c.Header().Set("Content-Type", "application/json")
	c.Write([]byte(`{"a":`))
	require.Equal(t, "zstd", c.Method())
	require.NoError(t, c.SplitStream())
	c.Write([]byte(`1}`))
	require.NoError(t, c.Close())
	b, err := decodeBody("zstd", w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(b))
}

func TestBrotliSplitFlushes(t *testing.T) {
	c, w := newTestCompressor(http.MethodGet, "br", nil)
	c.Header().Set("Content-Type", "text/html")
	c.Write([]byte(strings.Repeat("wiki ", 50)))
	require.Equal(t, "br", c.Method())
	require.NoError(t, c.SplitStream())
	require.Equal(t, 1, c.Segments())
	require.NotZero(t, w.Body.Len())
	require.True(t, w.Flushed)
	c.Write([]byte("end"))
	require.NoError(t, c.Close())
	b, err := decodeBody("br", w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("wiki ", 50)+"end", string(b))
}

func TestIdentityPassthrough(t *testing.T) {
	o := options.New()
	o.Threshold = 1
	c, w := newTestCompressor(http.MethodGet, "identity", o)
	c.Header().Set("Content-Type", "text/plain")
	c.Header().Set("Content-Length", "10240")
	body := bytes.Repeat([]byte("x"), 10240)
	c.Write(body)
	require.NoError(t, c.SplitStream())
	require.NoError(t, c.Close())
	require.Equal(t, "identity", c.Method())
	require.Empty(t, w.Header().Get("Content-Encoding"))
	require.Equal(t, "10240", w.Header().Get("Content-Length"))
	require.Equal(t, body, w.Body.Bytes())
}

func TestContentLengthRemoved(t *testing.T) {
	c, w := newTestCompressor(http.MethodGet, "gzip", nil)
	c.Header().Set("Content-Type", "text/plain")
	c.Header().Set("Content-Length", "2048")
	c.WriteHeader(http.StatusOK)
	require.Empty(t, w.Header().Get("Content-Length"))
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	require.NoError(t, c.Close())
}

func TestHeadIsPassthrough(t *testing.T) {
	c, w := newTestCompressor(http.MethodHead, "gzip", nil)
	c.Header().Set("Content-Type", "text/plain")
	c.WriteHeader(http.StatusOK)
	require.Equal(t, profile.MethodPassthrough, c.Method())
	require.Empty(t, w.Header().Get("Content-Encoding"))
}

func TestNoContentIsNotEncoded(t *testing.T) {
	c, w := newTestCompressor(http.MethodGet, "gzip", nil)
	c.Header().Set("Content-Type", "text/plain")
	c.WriteHeader(http.StatusNoContent)
	require.Equal(t, profile.MethodPassthrough, c.Method())
	require.Empty(t, w.Header().Get("Content-Encoding"))
	require.NoError(t, c.Close())
}

func TestWriteAfterClose(t *testing.T) {
	c, _ := newTestCompressor(http.MethodGet, "gzip", nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err := c.Write([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, c.SplitStream(), ErrClosed)
}

func TestFlushBeforeHeadersCommitsNothing(t *testing.T) {
	c, w := newTestCompressor(http.MethodGet, "gzip", nil)
	require.NoError(t, c.FlushError())
	c.Flush()
	require.NoError(t, c.SplitStream())
	require.False(t, w.Flushed)

	c.Header().Set("Content-Type", "text/plain")
	c.WriteHeader(http.StatusCreated)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	require.NoError(t, c.FlushError())
	require.True(t, w.Flushed)
}
