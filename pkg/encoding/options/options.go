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

// Package options provides the response compression options
package options

import (
	"fmt"
	"slices"

	"github.com/wikiserv/wikiserv/pkg/encoding/providers"

	"github.com/c2h5oh/datasize"
)

const (
	// DefaultThreshold is the smallest declared Content-Length that is compressed
	DefaultThreshold = datasize.KB
	// DefaultEncoding is used when the client sends no Accept-Encoding header
	DefaultEncoding = providers.IdentityValue
)

// DefaultPreferred is the server preference order used to break q-value ties
var DefaultPreferred = []string{
	providers.BrotliValue,
	providers.GZipValue,
	providers.DeflateValue,
	providers.IdentityValue,
}

// Options is a collection of response compression options
type Options struct {
	// Enabled turns response compression on or off
	Enabled bool `yaml:"enabled"`
	// Threshold is the Content-Length below which responses are not compressed
	Threshold datasize.ByteSize `yaml:"threshold,omitempty"`
	// DefaultEncoding is used for clients that send no Accept-Encoding header
	DefaultEncoding string `yaml:"default_encoding,omitempty"`
	// Preferred lists the supported encodings in server preference order
	Preferred []string `yaml:"preferred,omitempty"`
	// Level is the encoder level; 0 uses each encoder's default
	Level int `yaml:"level,omitempty"`
	// CompressTypes lists extra media types to compress
	CompressTypes []string `yaml:"compress_types,omitempty"`
}

// New returns a new Options with default values
func New() *Options {
	return &Options{
		Enabled:         true,
		Threshold:       DefaultThreshold,
		DefaultEncoding: DefaultEncoding,
		Preferred:       slices.Clone(DefaultPreferred),
	}
}

// Clone returns an exact copy of the Options
func (o *Options) Clone() *Options {
	return &Options{
		Enabled:         o.Enabled,
		Threshold:       o.Threshold,
		DefaultEncoding: o.DefaultEncoding,
		Preferred:       slices.Clone(o.Preferred),
		Level:           o.Level,
		CompressTypes:   slices.Clone(o.CompressTypes),
	}
}

// Validate returns an error if any configured encoding is unknown
func (o *Options) Validate() error {
	for _, v := range o.Preferred {
		if _, ok := providers.ProviderID(v); !ok {
			return fmt.Errorf("invalid compression.preferred encoding: %s", v)
		}
	}
	if o.DefaultEncoding != "" {
		if _, ok := providers.ProviderID(o.DefaultEncoding); !ok {
			return fmt.Errorf("invalid compression.default_encoding: %s", o.DefaultEncoding)
		}
	}
	return nil
}
