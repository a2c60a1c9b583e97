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

// Package headers provides HTTP header names, values and helpers
package headers

import (
	"net/http"
	"strings"
)

const (
	// Common HTTP Header Values

	// ValueApplicationJSON represents the HTTP Header Value of "application/json"
	ValueApplicationJSON = "application/json"
	// ValueTextPlain represents the HTTP Header Value of "text/plain"
	ValueTextPlain = "text/plain"
	// ValueTextPlainUTF8 represents a UTF-8 "text/plain" value
	ValueTextPlainUTF8 = "text/plain; charset=utf-8"
	// ValueTextEventStream represents the HTTP Header Value of "text/event-stream"
	ValueTextEventStream = "text/event-stream"
	// ValueXFormURLEncoded represents the HTTP Header Value of "application/x-www-form-urlencoded"
	ValueXFormURLEncoded = "application/x-www-form-urlencoded"
	// ValueNoCache represents the HTTP Header Value of "no-cache"
	ValueNoCache = "no-cache"
	// ValueNoStore represents the HTTP Header Value of "no-store"
	ValueNoStore = "no-store"
	// ValueNoTransform represents the HTTP Header Value of "no-transform"
	ValueNoTransform = "no-transform"
	// ValueKeepAlive represents the HTTP Header Value of "keep-alive"
	ValueKeepAlive = "keep-alive"
	// ValueIdentity represents the HTTP Header Value of "identity"
	ValueIdentity = "identity"
	// ValueNo represents the HTTP Header Value of "no"
	ValueNo = "no"
	// ValueOctetStream represents the HTTP Header Value of "application/octet-stream"
	ValueOctetStream = "application/octet-stream"

	// Common HTTP Header Names

	// NameAccept represents the HTTP Header Name of "Accept"
	NameAccept = "Accept"
	// NameAcceptEncoding represents the HTTP Header Name of "Accept-Encoding"
	NameAcceptEncoding = "Accept-Encoding"
	// NameCacheControl represents the HTTP Header Name of "Cache-Control"
	NameCacheControl = "Cache-Control"
	// NameConnection represents the HTTP Header Name of "Connection"
	NameConnection = "Connection"
	// NameContentType represents the HTTP Header Name of "Content-Type"
	NameContentType = "Content-Type"
	// NameContentEncoding represents the HTTP Header Name of "Content-Encoding"
	NameContentEncoding = "Content-Encoding"
	// NameContentLength represents the HTTP Header Name of "Content-Length"
	NameContentLength = "Content-Length"
	// NameContentRange represents the HTTP Header Name of "Content-Range"
	NameContentRange = "Content-Range"
	// NameCookie represents the HTTP Header Name of "Cookie"
	NameCookie = "Cookie"
	// NameSetCookie represents the HTTP Header Name of "Set-Cookie"
	NameSetCookie = "Set-Cookie"
	// NameHost represents the HTTP Header Name of "Host"
	NameHost = "Host"
	// NameLastModified represents the HTTP Header Name of "Last-Modified"
	NameLastModified = "Last-Modified"
	// NameLocation represents the HTTP Header Name of "Location"
	NameLocation = "Location"
	// NameVary represents the HTTP Header Name of "Vary"
	NameVary = "Vary"
	// NameXAccelBuffering represents the HTTP Header Name of "X-Accel-Buffering"
	NameXAccelBuffering = "X-Accel-Buffering"
	// NameRequestedWith represents the HTTP Header Name of "X-Requested-With"
	NameRequestedWith = "X-Requested-With"
	// NameXContentTypeOptions represents the HTTP Header Name of "X-Content-Type-Options"
	NameXContentTypeOptions = "X-Content-Type-Options"

	// PseudoAuthority is the HTTP/2 :authority pseudo-header
	PseudoAuthority = ":authority"
)

// Merge merges the source http.Header map into destination map.
// If a key exists in both maps, the source value wins.
func Merge(dst, src http.Header) {
	if len(src) == 0 || dst == nil {
		return
	}
	for k, sv := range src {
		if len(sv) == 0 {
			continue
		}
		dst[http.CanonicalHeaderKey(k)] = append([]string(nil), sv...)
	}
}

// HasToken returns true if any comma-separated element of the named header
// equals token, case-insensitively and ignoring any "=value" suffix
func HasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for part := range strings.SplitSeq(v, ",") {
			part = strings.TrimSpace(part)
			if i := strings.IndexByte(part, '='); i >= 0 {
				part = part[:i]
			}
			if strings.EqualFold(part, token) {
				return true
			}
		}
	}
	return false
}

// AppendVary adds value to the Vary header unless it is already present
func AppendVary(h http.Header, value string) {
	if HasToken(h, NameVary, value) || HasToken(h, NameVary, "*") {
		return
	}
	h.Add(NameVary, value)
}

// MediaType returns the lower-cased media type of a Content-Type value,
// with any parameters removed
func MediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
