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

package config

import (
	"os"
	"strconv"
)

const (
	// Environment variables
	evPort          = "WIKISERV_PORT"
	evMetricsPort   = "WIKISERV_METRICS_PORT"
	evLogLevel      = "WIKISERV_LOG_LEVEL"
	evPathPrefix    = "WIKISERV_PATH_PREFIX"
	evStoreProvider = "WIKISERV_STORE_PROVIDER"
	evRedisPassword = "WIKISERV_REDIS_PASSWORD"
)

func (c *Config) loadEnvVars() {
	if x := os.Getenv(evPort); x != "" {
		if y, err := strconv.ParseInt(x, 10, 32); err == nil {
			c.Frontend.ListenPort = int(y)
		}
	}
	if x := os.Getenv(evMetricsPort); x != "" {
		if y, err := strconv.ParseInt(x, 10, 32); err == nil {
			c.Metrics.ListenPort = int(y)
		}
	}
	if x := os.Getenv(evLogLevel); x != "" {
		c.Logging.LogLevel = x
	}
	if x := os.Getenv(evPathPrefix); x != "" {
		c.Main.PathPrefix = x
	}
	if c.Auth == nil || c.Auth.Store == nil {
		return
	}
	if x := os.Getenv(evStoreProvider); x != "" {
		c.Auth.Store.Provider = x
	}
	if x := os.Getenv(evRedisPassword); x != "" && c.Auth.Store.Redis != nil {
		c.Auth.Store.Redis.Password = x
	}
}
