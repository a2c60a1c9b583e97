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

package providers

import (
	"errors"
	"io"

	"github.com/wikiserv/wikiserv/pkg/encoding/brotli"
	"github.com/wikiserv/wikiserv/pkg/encoding/deflate"
	"github.com/wikiserv/wikiserv/pkg/encoding/gzip"
	"github.com/wikiserv/wikiserv/pkg/encoding/zstd"
)

// ErrUnsupportedEncoding indicates a content encoding wikiserv cannot decode
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// Encoder is a compression stream that can be flushed mid-stream
type Encoder interface {
	io.WriteCloser
	Flush() error
}

// EncoderInitializer wraps an io.Writer in an Encoder at the provided level
type EncoderInitializer func(io.Writer, int) Encoder

// SelectEncoderInitializer returns the EncoderInitializer for exactly one
// provider, along with its Content-Encoding value. Identity has none.
func SelectEncoderInitializer(p Provider) (EncoderInitializer, string) {
	switch p {
	case Zstandard:
		return func(w io.Writer, l int) Encoder { return zstd.NewEncoder(w, l) }, ZstandardValue
	case Brotli:
		return func(w io.Writer, l int) Encoder { return brotli.NewEncoder(w, l) }, BrotliValue
	case GZip:
		return func(w io.Writer, l int) Encoder { return gzip.NewEncoder(w, l) }, GZipValue
	case Deflate:
		return func(w io.Writer, l int) Encoder { return deflate.NewEncoder(w, l) }, DeflateValue
	}
	return nil, ""
}

// NewDecoder returns a reader that decodes r per the provided Content-Encoding
// value. Identity and empty values return r unchanged.
func NewDecoder(contentEncoding string, r io.Reader) (io.ReadCloser, error) {
	if contentEncoding == "" {
		return io.NopCloser(r), nil
	}
	p, ok := ProviderID(contentEncoding)
	if !ok {
		return nil, ErrUnsupportedEncoding
	}
	switch p {
	case Zstandard:
		return zstd.NewDecoder(r)
	case Brotli:
		return brotli.NewDecoder(r), nil
	case GZip:
		return gzip.NewDecoder(r)
	case Deflate:
		return deflate.NewDecoder(r), nil
	}
	return io.NopCloser(r), nil
}
