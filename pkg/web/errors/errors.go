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

// Package errors provides the request-handling error taxonomy
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrStreamEnded signals that the response has already been fully sent. It
// is control flow, not a failure, and is never logged as an error.
var ErrStreamEnded = errors.New("response stream ended")

// ErrHeadersAlreadySent indicates a second attempt to send response headers
var ErrHeadersAlreadySent = errors.New("response headers already sent")

// ErrHeadersNotSent indicates a body write before the response headers were sent
var ErrHeadersNotSent = errors.New("response headers not sent")

// ErrWriteAfterEnd indicates a write to a response that has already ended
var ErrWriteAfterEnd = errors.New("write after end")

// ErrNoMethod indicates an inbound request without a method
var ErrNoMethod = errors.New("request has no method")

// ErrNoURL indicates an inbound request without a URL
var ErrNoURL = errors.New("request has no url")

// Reason is a machine-readable reason code sent with error responses
type Reason string

const (
	ReasonNoRoute            Reason = "NO_ROUTE"
	ReasonOutsidePrefix      Reason = "OUTSIDE_PATH_PREFIX"
	ReasonInvalidRequest     Reason = "INVALID_REQUEST"
	ReasonRequestedWith      Reason = "REQUESTED_WITH_HEADER_REQUIRED"
	ReasonMalformedJSON      Reason = "MALFORMED_JSON"
	ReasonPrototypePollution Reason = "PROTOTYPE_POLLUTION"
	ReasonMalformedForm      Reason = "MALFORMED_FORM"
	ReasonBodyTooLarge       Reason = "BODY_TOO_LARGE"
	ReasonUnsupportedCoding  Reason = "UNSUPPORTED_CONTENT_ENCODING"
	ReasonMalformedCoding    Reason = "MALFORMED_CONTENT_ENCODING"
	ReasonNotFound           Reason = "NOT_FOUND"
	ReasonNoResponse         Reason = "HANDLER_NO_RESPONSE"
	ReasonLoginFailed        Reason = "LOGIN_FAILED"
	ReasonInternal           Reason = "INTERNAL_ERROR"
)

// HTTPError is an error that the request boundary renders as a structured
// response carrying a status, a reason code and optional details
type HTTPError struct {
	Status  int
	Reason  Reason
	Details any
	Err     error
}

// New returns a new *HTTPError
func New(status int, reason Reason, details any) *HTTPError {
	return &HTTPError{Status: status, Reason: reason, Details: details}
}

// Wrap returns a new *HTTPError that wraps err. err is kept for logging and
// is not rendered to the client.
func Wrap(status int, reason Reason, err error) *HTTPError {
	return &HTTPError{Status: status, Reason: reason, Err: err}
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Reason, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Reason)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// AsHTTPError returns the first *HTTPError in err's chain
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// IsStreamEnded returns true if err is, or wraps, ErrStreamEnded
func IsStreamEnded(err error) bool {
	return errors.Is(err, ErrStreamEnded)
}

// NoRoute returns the error for a request that matched no route
func NoRoute() *HTTPError {
	return New(http.StatusBadRequest, ReasonNoRoute, nil)
}

// OutsidePrefix returns the error for a request outside of the path prefix
func OutsidePrefix() *HTTPError {
	return New(http.StatusBadRequest, ReasonOutsidePrefix, nil)
}

// InvalidRequest returns the error for a request missing its method or url
func InvalidRequest(err error) *HTTPError {
	return Wrap(http.StatusBadRequest, ReasonInvalidRequest, err)
}

// RequestedWithRequired returns the error for an unsafe request without a
// trusted X-Requested-With value
func RequestedWithRequired() *HTTPError {
	return New(http.StatusForbidden, ReasonRequestedWith, nil)
}

// MalformedJSON returns the error for a json body that could not be parsed
func MalformedJSON(err error) *HTTPError {
	return Wrap(http.StatusBadRequest, ReasonMalformedJSON, err)
}

// PrototypePollution returns the error for a json body with forbidden keys
func PrototypePollution(key string) *HTTPError {
	return New(http.StatusBadRequest, ReasonPrototypePollution, map[string]string{"key": key})
}

// MalformedForm returns the error for a form body that could not be parsed
func MalformedForm(err error) *HTTPError {
	return Wrap(http.StatusBadRequest, ReasonMalformedForm, err)
}

// BodyTooLarge returns the error for a buffered body over the size limit
func BodyTooLarge(limit int64) *HTTPError {
	return New(http.StatusRequestEntityTooLarge, ReasonBodyTooLarge, map[string]int64{"limit": limit})
}

// UnsupportedEncoding returns the error for a body sent with a
// Content-Encoding that cannot be decoded
func UnsupportedEncoding(coding string) *HTTPError {
	return New(http.StatusUnsupportedMediaType, ReasonUnsupportedCoding,
		map[string]string{"encoding": coding})
}

// MalformedEncoding returns the error for a body that does not decode per
// its Content-Encoding
func MalformedEncoding(err error) *HTTPError {
	return Wrap(http.StatusBadRequest, ReasonMalformedCoding, err)
}

// NotFound returns a 404 error
func NotFound() *HTTPError {
	return New(http.StatusNotFound, ReasonNotFound, nil)
}

// NoResponse returns the error for a handler chain that never responded
func NoResponse() *HTTPError {
	return New(http.StatusInternalServerError, ReasonNoResponse, nil)
}

// LoginFailed returns the single generic error for every login failure
func LoginFailed(err error) *HTTPError {
	return Wrap(http.StatusUnauthorized, ReasonLoginFailed, err)
}

// Internal returns the error for an unexpected failure
func Internal(err error) *HTTPError {
	return Wrap(http.StatusInternalServerError, ReasonInternal, err)
}
