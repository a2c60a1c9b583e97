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

// Package providers enumerates the content encodings wikiserv can produce
package providers

import (
	"slices"
	"strconv"
	"strings"
)

const (
	Zstandard Provider = 1 << iota
	Brotli                 // 2
	GZip                   // 4
	Deflate                // 8
	Identity  Provider = 0 // no encoding

	// for use in headers
	ZstandardValue = "zstd"
	BrotliValue    = "br"
	GZipValue      = "gzip"
	DeflateValue   = "deflate"
	IdentityValue  = "identity"
	// might be used in configs
	ZstandardAltValue = "zstandard"
	BrotliAltValue    = "brotli"
)

type (
	Provider      byte
	Lookup        map[string]Provider
	ReverseLookup map[Provider]string
)

// Update whenever a new encoder provider is added
var providerVals = []Provider{Zstandard, Brotli, GZip, Deflate}

// Update whenever a new encoder provider is added
var providerValLookup = ReverseLookup{
	Zstandard: ZstandardValue,
	Brotli:    BrotliValue,
	GZip:      GZipValue,
	Deflate:   DeflateValue,
}

var (
	providers      []string
	providerLookup Lookup
	// AllSupportedProviders is the comma-separated list of supported encodings
	AllSupportedProviders string
)

func init() {
	providers = make([]string, 0, len(providerVals))
	providerLookup = make(Lookup)
	for _, p := range providerVals {
		s := providerValLookup[p]
		providers = append(providers, s)
		providerLookup[s] = p
	}
	AllSupportedProviders = strings.Join(providers, ", ")
	providerLookup[BrotliAltValue] = Brotli
	providerLookup[ZstandardAltValue] = Zstandard
}

func (p Provider) String() string {
	if p == Identity {
		return IdentityValue
	}
	if v, ok := providerValLookup[p]; ok {
		return v
	}
	return strconv.Itoa(int(p))
}

// Concatenable returns true if independently finished streams of the
// provider, written back to back, decode as a single stream. gzip members
// and zstd frames have this property; brotli and raw deflate do not.
func (p Provider) Concatenable() bool {
	return p == GZip || p == Zstandard
}

// Providers returns the list of content encodings wikiserv can produce
func Providers() []string {
	return slices.Clone(providers)
}

// ProviderID returns the value of the provided encoding provider name, and
// false when the name is unknown. "identity" is known and maps to Identity.
func ProviderID(providerName string) (Provider, bool) {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	if providerName == IdentityValue {
		return Identity, true
	}
	p, ok := providerLookup[providerName]
	return p, ok
}
