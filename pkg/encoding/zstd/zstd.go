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

// Package zstd provides zstandard capabilities for byte slices and streams
package zstd

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// NewEncoder returns a zstd frame writer into w
func NewEncoder(w io.Writer, level int) *zstd.Encoder {
	if level < 1 {
		level = 3
	}
	l := zstd.SpeedDefault
	if level < 3 {
		l = zstd.SpeedFastest
	} else if level > 3 && level < 8 {
		l = zstd.SpeedBetterCompression
	} else if level > 7 {
		l = zstd.SpeedBestCompression
	}
	zw, _ := zstd.NewWriter(w, zstd.WithEncoderLevel(l))
	return zw
}

// NewDecoder returns a zstd decoding reader. Concatenated frames are
// decoded as one stream.
func NewDecoder(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}
