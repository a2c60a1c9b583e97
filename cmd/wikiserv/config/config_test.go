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
	"path/filepath"
	"testing"
	"time"

	"github.com/wikiserv/wikiserv/pkg/errors"
	tr "github.com/wikiserv/wikiserv/pkg/observability/tracing/registration"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
)

const testConfig = `
main:
  path_prefix: /wiki
  expect_secure: true
frontend:
  listen_port: 9090
  h2c: true
compression:
  threshold: 2kb
  preferred: [gzip, identity]
request:
  max_body_size: 1mb
auth:
  login_window: 30s
  session_ttl: 2h
  store:
    provider: bbolt
    bbolt:
      filename: /var/lib/wikiserv/auth.db
sse:
  keepalive_interval: 15s
  write_timeout: 5s
static:
  root: /srv/wikiserv/static
logging:
  log_level: debug
tracing:
  provider: stdout
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "wikiserv.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load([]string{"-config", writeConfig(t, "")})
	require.NoError(t, err)
	require.Equal(t, 8080, c.Frontend.ListenPort)
	require.Equal(t, DefaultMaxBodySize, c.Request.MaxBodySize)
	require.Equal(t, []string{"TiddlyWiki"}, c.Security.RequestedWith)
	require.Equal(t, "memory", c.Auth.Store.Provider)
	require.Equal(t, time.Minute, c.Auth.LoginWindow)
}

func TestLoadFile(t *testing.T) {
	c, err := Load([]string{"-config", writeConfig(t, testConfig)})
	require.NoError(t, err)
	require.Equal(t, "/wiki", c.Main.PathPrefix)
	require.True(t, c.Main.ExpectSecure)
	require.Equal(t, 9090, c.Frontend.ListenPort)
	require.True(t, c.Frontend.H2C)
	require.Equal(t, 2*datasize.KB, c.Compression.Threshold)
	require.Equal(t, []string{"gzip", "identity"}, c.Compression.Preferred)
	require.Equal(t, datasize.MB, c.Request.MaxBodySize)
	require.Equal(t, 30*time.Second, c.Auth.LoginWindow)
	require.Equal(t, 2*time.Hour, c.Auth.SessionTTL)
	require.Equal(t, "bbolt", c.Auth.Store.Provider)
	require.Equal(t, "/var/lib/wikiserv/auth.db", c.Auth.Store.BBolt.Filename)
	require.Equal(t, 15*time.Second, c.SSE.KeepAliveInterval)
	require.Equal(t, 5*time.Second, c.SSE.WriteTimeout)
	require.Equal(t, "/srv/wikiserv/static", c.Static.Root)
	require.Equal(t, DefaultStaticIndex, c.Static.Index)
	require.Equal(t, "debug", c.Logging.LogLevel)
	require.Equal(t, "stdout", c.Tracing.Provider)
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv(evPort, "7000")
	t.Setenv(evLogLevel, "warn")
	t.Setenv(evStoreProvider, "badger")
	c, err := Load([]string{"-config", writeConfig(t, testConfig), "-log-level", "error"})
	require.NoError(t, err)
	require.Equal(t, 7000, c.Frontend.ListenPort)
	require.Equal(t, "error", c.Logging.LogLevel)
	require.Equal(t, "badger", c.Auth.Store.Provider)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load([]string{"-config", "/non/existent/wikiserv.yaml"})
	require.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load([]string{"-config", writeConfig(t, "main:\n  path_prefix: wiki/\n")})
	require.ErrorIs(t, err, errors.ErrInvalidPathPrefix)

	_, err = Load([]string{"-config", writeConfig(t, "auth:\n  store:\n    provider: floppy\n")})
	require.ErrorIs(t, err, errors.ErrInvalidOptions)

	_, err = Load([]string{"-config", writeConfig(t, "tracing:\n  provider: jaeger\n")})
	require.ErrorIs(t, err, tr.ErrInvalidProvider)

	_, err = Load([]string{"-config", writeConfig(t, "main: [")})
	require.ErrorContains(t, err, "parse config")

	_, err = Load([]string{"-no-such-flag"})
	require.Error(t, err)
}

func TestLoadShortCircuitFlags(t *testing.T) {
	c, err := Load([]string{"-version", "-config", "/non/existent/wikiserv.yaml"})
	require.NoError(t, err)
	require.True(t, c.Flags.PrintVersion)

	c, err = Load([]string{"-make-record", "alice"})
	require.NoError(t, err)
	require.Equal(t, "alice", c.Flags.MakeRecord)
}
