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

// Package badger is the BadgerDB implementation of the store
package badger

import (
	"errors"
	"time"

	"github.com/wikiserv/wikiserv/pkg/store"
	"github.com/wikiserv/wikiserv/pkg/store/badger/options"

	"github.com/dgraph-io/badger/v4"
)

var _ store.Store = &Store{}

// Store describes a Badger Store
type Store struct {
	Config *options.Options
	dbh    *badger.DB
}

// New returns a new Badger Store
func New(cfg *options.Options) *Store {
	if cfg == nil {
		cfg = options.New()
	}
	return &Store{Config: cfg}
}

// Connect opens the configured Badger key-value store
func (s *Store) Connect() error {
	opts := badger.DefaultOptions(s.Config.Directory).WithLogger(nil)
	if s.Config.ValueDirectory != "" {
		opts.ValueDir = s.Config.ValueDirectory
	}
	var err error
	s.dbh, err = badger.Open(opts)
	return err
}

// Remove deletes keys from the store
func (s *Store) Remove(keys ...string) error {
	return s.dbh.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	if s.dbh == nil {
		return nil
	}
	return s.dbh.Close()
}

// Store places the data into Badger using the provided key and TTL
func (s *Store) Store(key string, data []byte, ttl time.Duration) error {
	return s.dbh.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Retrieve gets data from Badger using the provided key. Badger manages
// expiration internally.
func (s *Store) Retrieve(key string) ([]byte, error) {
	var data []byte
	err := s.dbh.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrKNF
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
