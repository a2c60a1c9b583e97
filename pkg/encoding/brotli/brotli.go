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

// Package brotli provides brotli encoders and decoders
package brotli

import (
	"io"

	"github.com/andybalholm/brotli"
)

// DefaultLevel is the brotli quality used when no level is configured
const DefaultLevel = 4

// Writer is a brotli stream that supports mid-stream flushes
type Writer interface {
	io.WriteCloser
	Flush() error
}

// NewEncoder returns a brotli stream writing into w
func NewEncoder(w io.Writer, level int) Writer {
	if level < 1 || level > brotli.BestCompression {
		level = DefaultLevel
	}
	return brotli.NewWriterLevel(w, level)
}

// NewDecoder returns a brotli decoding reader
func NewDecoder(r io.Reader) io.ReadCloser {
	return io.NopCloser(brotli.NewReader(r))
}
