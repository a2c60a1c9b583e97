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

// Package redis is the redis implementation of the store
// and supports Standalone, Sentinel and Cluster
package redis

import (
	"time"

	"github.com/wikiserv/wikiserv/pkg/store"
	"github.com/wikiserv/wikiserv/pkg/store/redis/options"

	"github.com/go-redis/redis"
)

var _ store.Store = &Store{}

// Store represents a redis store client
type Store struct {
	Config *options.Options
	client redis.Cmdable
	closer func() error
}

// New returns a new redis Store
func New(cfg *options.Options) *Store {
	if cfg == nil {
		cfg = options.New()
	}
	return &Store{Config: cfg}
}

// Connect connects to the configured Redis endpoint
func (s *Store) Connect() error {
	switch s.Config.ClientType {
	case options.ClientTypeSentinel:
		opts, err := s.sentinelOpts()
		if err != nil {
			return err
		}
		client := redis.NewFailoverClient(opts)
		s.closer = client.Close
		s.client = client
	case options.ClientTypeCluster:
		opts, err := s.clusterOpts()
		if err != nil {
			return err
		}
		client := redis.NewClusterClient(opts)
		s.closer = client.Close
		s.client = client
	case options.ClientTypeStandard, "":
		opts, err := s.clientOpts()
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		s.closer = client.Close
		s.client = client
	default:
		return ErrInvalidClientType
	}
	return s.client.Ping().Err()
}

// Remove deletes keys from Redis
func (s *Store) Remove(keys ...string) error {
	return s.client.Del(keys...).Err()
}

// Store places the data into Redis using the provided key and TTL
func (s *Store) Store(key string, data []byte, ttl time.Duration) error {
	return s.client.Set(key, data, ttl).Err()
}

// Retrieve gets data from Redis using the provided key. Redis manages
// expiration internally.
func (s *Store) Retrieve(key string) ([]byte, error) {
	data, err := s.client.Get(key).Bytes()
	if err == redis.Nil {
		return nil, store.ErrKNF
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
