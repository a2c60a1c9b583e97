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

// Package memory is the in-process implementation of the store
package memory

import (
	"sync"
	"time"

	"github.com/wikiserv/wikiserv/pkg/store"
)

var _ store.Store = &Store{}

type entry struct {
	data    []byte
	expires time.Time
}

// Store keeps entries in a map. Expired entries are dropped when read and
// by Reap.
type Store struct {
	mtx     sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New returns a new memory Store
func New() *Store {
	return &Store{entries: make(map[string]entry), now: time.Now}
}

// Connect initializes the Store
func (s *Store) Connect() error {
	return nil
}

// Store places a copy of data in the store using the specified key and ttl
func (s *Store) Store(key string, data []byte, ttl time.Duration) error {
	e := entry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mtx.Lock()
	s.entries[key] = e
	s.mtx.Unlock()
	return nil
}

// Retrieve returns a copy of the data stored under key
func (s *Store) Retrieve(key string) ([]byte, error) {
	s.mtx.RLock()
	e, ok := s.entries[key]
	s.mtx.RUnlock()
	if !ok {
		return nil, store.ErrKNF
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		s.Remove(key)
		return nil, store.ErrKNF
	}
	return append([]byte(nil), e.data...), nil
}

// Remove deletes keys from the store
func (s *Store) Remove(keys ...string) error {
	s.mtx.Lock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	s.mtx.Unlock()
	return nil
}

// Reap removes every expired entry and returns how many were removed
func (s *Store) Reap() int {
	now := s.now()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var n int
	for k, e := range s.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Close empties the store
func (s *Store) Close() error {
	s.mtx.Lock()
	clear(s.entries)
	s.mtx.Unlock()
	return nil
}
