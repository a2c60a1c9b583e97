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

// Package gzip provides gzip capabilities for byte slices and streams
package gzip

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// DefaultLevel is the gzip level used when no level is configured
const DefaultLevel = 6

// NewEncoder returns a gzip member writer into w
func NewEncoder(w io.Writer, level int) *gzip.Writer {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression || level == 0 {
		level = DefaultLevel
	}
	gw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		gw = gzip.NewWriter(w)
	}
	return gw
}

// NewDecoder returns a gzip decoding reader, or an error if the gzip header
// is invalid. Concatenated members are decoded as one stream.
func NewDecoder(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}
