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

package redis

import (
	"crypto/tls"

	"github.com/go-redis/redis"
)

func (s *Store) tlsConfig() *tls.Config {
	if !s.Config.UseTLS {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

func (s *Store) clientOpts() (*redis.Options, error) {
	c := s.Config
	if c.Endpoint == "" {
		return nil, ErrInvalidEndpointConfig
	}
	return &redis.Options{
		Addr:            c.Endpoint,
		Network:         c.Protocol,
		Password:        c.Password,
		DB:              c.DB,
		MaxRetries:      c.MaxRetries,
		MinRetryBackoff: c.MinRetryBackoff,
		MaxRetryBackoff: c.MaxRetryBackoff,
		DialTimeout:     c.DialTimeout,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		PoolSize:        c.PoolSize,
		MinIdleConns:    c.MinIdleConns,
		MaxConnAge:      c.MaxConnAge,
		PoolTimeout:     c.PoolTimeout,
		IdleTimeout:     c.IdleTimeout,
		TLSConfig:       s.tlsConfig(),
	}, nil
}

func (s *Store) clusterOpts() (*redis.ClusterOptions, error) {
	c := s.Config
	if len(c.Endpoints) == 0 {
		return nil, ErrInvalidEndpointsConfig
	}
	return &redis.ClusterOptions{
		Addrs:           c.Endpoints,
		Password:        c.Password,
		MaxRetries:      c.MaxRetries,
		MinRetryBackoff: c.MinRetryBackoff,
		MaxRetryBackoff: c.MaxRetryBackoff,
		DialTimeout:     c.DialTimeout,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		PoolSize:        c.PoolSize,
		MinIdleConns:    c.MinIdleConns,
		MaxConnAge:      c.MaxConnAge,
		PoolTimeout:     c.PoolTimeout,
		IdleTimeout:     c.IdleTimeout,
		TLSConfig:       s.tlsConfig(),
	}, nil
}

func (s *Store) sentinelOpts() (*redis.FailoverOptions, error) {
	c := s.Config
	if len(c.Endpoints) == 0 {
		return nil, ErrInvalidEndpointsConfig
	}
	if c.SentinelMaster == "" {
		return nil, ErrInvalidSentinelMasterConfig
	}
	return &redis.FailoverOptions{
		SentinelAddrs:   c.Endpoints,
		MasterName:      c.SentinelMaster,
		Password:        c.Password,
		DB:              c.DB,
		MaxRetries:      c.MaxRetries,
		MinRetryBackoff: c.MinRetryBackoff,
		MaxRetryBackoff: c.MaxRetryBackoff,
		DialTimeout:     c.DialTimeout,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		PoolSize:        c.PoolSize,
		MinIdleConns:    c.MinIdleConns,
		MaxConnAge:      c.MaxConnAge,
		PoolTimeout:     c.PoolTimeout,
		IdleTimeout:     c.IdleTimeout,
		TLSConfig:       s.tlsConfig(),
	}, nil
}
