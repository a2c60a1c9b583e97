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

// Package bbolt is the bbolt implementation of the store
package bbolt

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/wikiserv/wikiserv/pkg/store"
	"github.com/wikiserv/wikiserv/pkg/store/bbolt/options"

	"go.etcd.io/bbolt"
)

var _ store.Store = &Store{}

// each value is prefixed with its expiration in unix nanoseconds; 0 never expires
const expiryLen = 8

// Store describes a BBolt Store
type Store struct {
	Config *options.Options
	dbh    *bbolt.DB
	now    func() time.Time
}

// New returns a new bbolt Store
func New(cfg *options.Options) *Store {
	if cfg == nil {
		cfg = options.New()
	}
	return &Store{Config: cfg, now: time.Now}
}

func (s *Store) Close() error {
	if s.dbh == nil {
		return nil
	}
	return s.dbh.Close()
}

// Connect opens the database file and creates the bucket
func (s *Store) Connect() error {
	var err error
	s.dbh, err = bbolt.Open(s.Config.Filename, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return err
	}
	return s.dbh.Update(func(tx *bbolt.Tx) error {
		_, err2 := tx.CreateBucketIfNotExists([]byte(s.Config.Bucket))
		if err2 != nil {
			return fmt.Errorf("create bucket: %w", err2)
		}
		return nil
	})
}

// Store writes data under key with the provided TTL
func (s *Store) Store(key string, data []byte, ttl time.Duration) error {
	v := make([]byte, expiryLen+len(data))
	if ttl > 0 {
		binary.BigEndian.PutUint64(v, uint64(s.now().Add(ttl).UnixNano())) // #nosec G115
	}
	copy(v[expiryLen:], data)
	return s.dbh.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(s.Config.Bucket)).Put([]byte(key), v)
	})
}

// Retrieve returns the data stored under key. Expired entries are removed.
func (s *Store) Retrieve(key string) ([]byte, error) {
	var data []byte
	var expired bool
	err := s.dbh.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(s.Config.Bucket)).Get([]byte(key))
		if len(v) < expiryLen {
			return store.ErrKNF
		}
		if exp := binary.BigEndian.Uint64(v); exp != 0 &&
			s.now().UnixNano() >= int64(exp) { // #nosec G115
			expired = true
			return store.ErrKNF
		}
		// bbolt values are only valid for the life of the transaction
		data = append([]byte(nil), v[expiryLen:]...)
		return nil
	})
	if expired {
		s.Remove(key)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Remove deletes keys from the bucket
func (s *Store) Remove(keys ...string) error {
	return s.dbh.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(s.Config.Bucket))
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}
