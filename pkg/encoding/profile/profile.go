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

// Package profile decides the content encoding of a response
package profile

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/wikiserv/wikiserv/pkg/encoding/options"
	"github.com/wikiserv/wikiserv/pkg/encoding/providers"
	"github.com/wikiserv/wikiserv/pkg/web/headers"
)

// MethodPassthrough means the response body is written exactly as produced,
// without negotiation
const MethodPassthrough = "passthrough"

// Profile is the immutable, per-server compression profile built from Options
type Profile struct {
	// Enabled is false when compression is explicitly disabled
	Enabled bool
	// Threshold is the smallest declared Content-Length that is compressed
	Threshold int64
	// Default is the encoding used when the client sends no Accept-Encoding
	Default providers.Provider
	// HasDefault is false when the default encoding is not in Preferred
	HasDefault bool
	// Preferred is the server preference order, possibly including Identity
	Preferred []providers.Provider
	// Level is the encoder level
	Level int
	// CompressTypes is a lookup of extra compressible media types
	CompressTypes map[string]struct{}
}

// defaultCompressTypes are the non-text media types that are compressed
// without configuration
var defaultCompressTypes = map[string]struct{}{
	"application/json":                  {},
	"application/javascript":            {},
	"application/x-javascript":          {},
	"application/ecmascript":            {},
	"application/xml":                   {},
	"application/x-www-form-urlencoded": {},
	"application/wasm":                  {},
	"application/x-tiddler":             {},
	"application/x-tiddlers":            {},
	"application/x-tiddler-dictionary":  {},
	"image/svg+xml":                     {},
	"image/x-icon":                      {},
	"font/ttf":                          {},
	"font/otf":                          {},
}

// New returns a Profile for the provided options
func New(o *options.Options) *Profile {
	if o == nil {
		o = options.New()
	}
	p := &Profile{
		Enabled:       o.Enabled,
		Threshold:     int64(o.Threshold.Bytes()),
		Level:         o.Level,
		Preferred:     make([]providers.Provider, 0, len(o.Preferred)),
		CompressTypes: make(map[string]struct{}, len(o.CompressTypes)),
	}
	for _, v := range o.Preferred {
		if pv, ok := providers.ProviderID(v); ok {
			p.Preferred = append(p.Preferred, pv)
		}
	}
	for _, v := range o.CompressTypes {
		p.CompressTypes[headers.MediaType(v)] = struct{}{}
	}
	if d, ok := providers.ProviderID(o.DefaultEncoding); ok && p.supports(d) {
		p.Default, p.HasDefault = d, true
	}
	return p
}

func (p *Profile) supports(pv providers.Provider) bool {
	if pv == providers.Identity {
		return true
	}
	for _, v := range p.Preferred {
		if v == pv {
			return true
		}
	}
	return false
}

// IsCompressible returns true if the Content-Type value names a media type
// that benefits from compression
func (p *Profile) IsCompressible(contentType string) bool {
	mt := headers.MediaType(contentType)
	if mt == "" {
		return false
	}
	if _, ok := p.CompressTypes[mt]; ok {
		return true
	}
	if _, ok := defaultCompressTypes[mt]; ok {
		return true
	}
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	return strings.HasSuffix(mt, "+json") || strings.HasSuffix(mt, "+xml") ||
		strings.HasSuffix(mt, "+text")
}

// Negotiate returns the encoding method for a response: a Content-Encoding
// value, "identity", or MethodPassthrough. The second value reports whether
// the choice depended on the request's Accept-Encoding header.
//
// The checks run in order and the first one that applies decides:
// compression disabled, an existing Content-Encoding, a media type that is
// not compressible, Cache-Control: no-transform, a Content-Length below the
// threshold, and HEAD requests all pass through. A request without
// Accept-Encoding gets the configured default. Otherwise the client's
// q-values are matched against Preferred, ties going to the earlier entry.
func (p *Profile) Negotiate(method string, reqHeader, respHeader http.Header) (string, bool) {
	if !p.Enabled {
		return MethodPassthrough, false
	}
	if ce := respHeader.Get(headers.NameContentEncoding); ce != "" &&
		!strings.EqualFold(ce, providers.IdentityValue) {
		return MethodPassthrough, false
	}
	if !p.IsCompressible(respHeader.Get(headers.NameContentType)) {
		return MethodPassthrough, false
	}
	if headers.HasToken(respHeader, headers.NameCacheControl, headers.ValueNoTransform) {
		return MethodPassthrough, false
	}
	if cl := respHeader.Get(headers.NameContentLength); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n < p.Threshold {
			return MethodPassthrough, false
		}
	}
	if method == http.MethodHead {
		return MethodPassthrough, false
	}
	ae := reqHeader.Values(headers.NameAcceptEncoding)
	if len(ae) == 0 {
		if p.HasDefault {
			return p.Default.String(), true
		}
		return MethodPassthrough, true
	}
	return p.negotiateAccepted(strings.Join(ae, ",")).String(), true
}

// identityImplicitQ ranks an unlisted identity below anything listed
const identityImplicitQ = 0.0001

func (p *Profile) negotiateAccepted(acceptEncoding string) providers.Provider {
	accepted, wildcard, hasWildcard := ParseAcceptEncoding(acceptEncoding)
	best := providers.Identity
	var bestQ float64
	for _, pv := range p.Preferred {
		q, ok := accepted[pv.String()]
		if !ok {
			switch {
			case hasWildcard:
				q = wildcard
			case pv == providers.Identity:
				q = identityImplicitQ
			}
		}
		if q > bestQ {
			best, bestQ = pv, q
		}
	}
	return best
}

// ParseAcceptEncoding parses an Accept-Encoding value into a lookup of
// lower-cased codings to q-values. The "*" coding is returned separately.
// A coding listed more than once keeps its highest q-value.
func ParseAcceptEncoding(v string) (map[string]float64, float64, bool) {
	out := make(map[string]float64)
	var wildcard float64
	var hasWildcard bool
	for part := range strings.SplitSeq(v, ",") {
		coding, params, _ := strings.Cut(part, ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding == "" {
			continue
		}
		q := 1.0
		for param := range strings.SplitSeq(params, ";") {
			k, val, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil || f < 0 || f > 1 {
				f = 0
			}
			q = f
		}
		if coding == "*" {
			if !hasWildcard || q > wildcard {
				wildcard = q
			}
			hasWildcard = true
			continue
		}
		if prev, ok := out[coding]; !ok || q > prev {
			out[coding] = q
		}
	}
	return out, wildcard, hasWildcard
}
