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

// Package deflate provides raw deflate capabilities for byte slices and streams
package deflate

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// DefaultLevel is the deflate level used when no level is configured
const DefaultLevel = flate.DefaultCompression

// NewEncoder returns a deflate stream writing into w
func NewEncoder(w io.Writer, level int) *flate.Writer {
	if level == 0 {
		level = DefaultLevel
	}
	dw, err := flate.NewWriter(w, level)
	if err != nil {
		dw, _ = flate.NewWriter(w, DefaultLevel)
	}
	return dw
}

// NewDecoder returns a deflate decoding reader
func NewDecoder(r io.Reader) io.ReadCloser {
	return flate.NewReader(r)
}
