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

// Package store defines the key/value storage interface used for
// credentials and login sessions
package store

import (
	"errors"
	"time"
)

// ErrKNF represents the error "key not found in store". It is also
// returned for keys whose TTL has passed.
var ErrKNF = errors.New("key not found in store")

// Store is the interface for the supported storage providers. Retrieve must
// return ErrKNF on a miss.
type Store interface {
	Connect() error
	// Store writes data under key. A ttl of 0 never expires.
	Store(key string, data []byte, ttl time.Duration) error
	Retrieve(key string) ([]byte, error)
	Remove(keys ...string) error
	Close() error
}
