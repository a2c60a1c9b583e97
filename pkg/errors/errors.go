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

// Package errors provides the sentinel errors for configuration and
// route-tree construction
package errors

import "errors"

// ErrNilWriter is an error for a nil writer when a non-nil writer was expected
var ErrNilWriter = errors.New("nil writer")

// ErrInvalidOptions is an error for when a configuration is invalid
var ErrInvalidOptions = errors.New("invalid options")

// ErrInvalidPathPrefix is an error for a path prefix that does not start
// with "/"
var ErrInvalidPathPrefix = errors.New("invalid path prefix in config")

// ErrInvalidPattern is an error for a route pattern that is not anchored
// with "^" or does not compile
var ErrInvalidPattern = errors.New("invalid route pattern")

// ErrInvalidMethod is an error for when a route's method is invalid
var ErrInvalidMethod = errors.New("invalid method value in route")

// ErrNoMethods is an error for a route without methods that is not deny-final
var ErrNoMethods = errors.New("route has no methods and is not deny-final")

// ErrInvalidBodyFormat is an error for an unknown route body format
var ErrInvalidBodyFormat = errors.New("invalid body format in route")

// ErrTreeFrozen is an error for defining a route after the tree is frozen
var ErrTreeFrozen = errors.New("route tree is frozen")

// ErrMissingCredentials is an error for an auth user without a record
var ErrMissingCredentials = errors.New("missing registration record")

// ErrServerAlreadyStarted is an error for starting the daemon twice
var ErrServerAlreadyStarted = errors.New("the server is already started")
