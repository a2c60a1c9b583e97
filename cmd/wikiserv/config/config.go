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

// Package config provides wikiserv configuration abilities, including
// parsing configuration files, command line parameters, and environment
// variables, as well as default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/wikiserv/wikiserv/pkg/auth/credentials"
	"github.com/wikiserv/wikiserv/pkg/auth/login"
	"github.com/wikiserv/wikiserv/pkg/auth/sessions"
	encopts "github.com/wikiserv/wikiserv/pkg/encoding/options"
	ferrors "github.com/wikiserv/wikiserv/pkg/errors"
	fropts "github.com/wikiserv/wikiserv/pkg/frontend/options"
	lo "github.com/wikiserv/wikiserv/pkg/observability/logging/options"
	mo "github.com/wikiserv/wikiserv/pkg/observability/metrics/options"
	to "github.com/wikiserv/wikiserv/pkg/observability/tracing/options"
	tr "github.com/wikiserv/wikiserv/pkg/observability/tracing/registration"
	"github.com/wikiserv/wikiserv/pkg/router"
	storeopts "github.com/wikiserv/wikiserv/pkg/store/options"
	"github.com/wikiserv/wikiserv/pkg/web/sse"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is the default location of the configuration file
	DefaultConfigPath = "/etc/wikiserv/wikiserv.yaml"
	// DefaultMaxBodySize limits buffered request bodies
	DefaultMaxBodySize = 64 * datasize.MB
	// DefaultStaticIndex is served for static directory requests
	DefaultStaticIndex = "index.html"
)

// Config is the main configuration object
type Config struct {
	// Main is the primary MainConfig section
	Main *MainConfig `yaml:"main,omitempty"`
	// Frontend configures the HTTP listener
	Frontend *fropts.Options `yaml:"frontend,omitempty"`
	// Compression configures response compression
	Compression *encopts.Options `yaml:"compression,omitempty"`
	// Security configures the cross-site request checks
	Security *SecurityConfig `yaml:"security,omitempty"`
	// Request configures request body handling
	Request *RequestConfig `yaml:"request,omitempty"`
	// Auth configures login and sessions
	Auth *AuthConfig `yaml:"auth,omitempty"`
	// SSE configures server-sent event channels
	SSE *SSEConfig `yaml:"sse,omitempty"`
	// Static configures the static file route
	Static *StaticConfig `yaml:"static,omitempty"`
	// Logging provides configurations that affect logging behavior
	Logging *lo.Options `yaml:"logging,omitempty"`
	// Metrics provides configurations for collecting Metrics about the application
	Metrics *mo.Options `yaml:"metrics,omitempty"`
	// Tracing provides the distributed tracing configuration
	Tracing *to.Options `yaml:"tracing,omitempty"`

	Flags *Flags `yaml:"-"`
	// LoaderWarnings are reported once the logger exists
	LoaderWarnings []string `yaml:"-"`
}

// MainConfig is a collection of general configuration values
type MainConfig struct {
	// InstanceID distinguishes the log files of several processes sharing a config
	InstanceID int `yaml:"instance_id,omitempty"`
	// ServerName is reported by the status endpoint; defaults to os.Hostname
	ServerName string `yaml:"server_name,omitempty"`
	// PathPrefix mounts the wiki below a path, e.g. "/wiki"
	PathPrefix string `yaml:"path_prefix,omitempty"`
	// ExpectSecure marks cookies Secure, for deployments behind a TLS proxy
	ExpectSecure bool `yaml:"expect_secure,omitempty"`
}

// SecurityConfig configures the cross-site request checks
type SecurityConfig struct {
	// RequestedWith lists the trusted X-Requested-With values
	RequestedWith []string `yaml:"requested_with,omitempty"`
}

// RequestConfig configures request handling
type RequestConfig struct {
	// MaxBodySize limits buffered request bodies, e.g. "64mb"
	MaxBodySize datasize.ByteSize `yaml:"max_body_size,omitempty"`
}

// AuthConfig configures login and sessions
type AuthConfig struct {
	// LoginWindow is the time allowed between the two login steps
	LoginWindow time.Duration `yaml:"login_window,omitempty"`
	// SessionTTL is how long a login session remains valid
	SessionTTL time.Duration `yaml:"session_ttl,omitempty"`
	// CookieName names the session cookie
	CookieName string `yaml:"cookie_name,omitempty"`
	// FakeRecordSecret seeds the records served for unknown users. A random
	// secret is used when empty, which makes them vary across restarts.
	FakeRecordSecret string `yaml:"fake_record_secret,omitempty"`
	// Users seeds the credential store, keyed by username
	Users map[string]credentials.Seed `yaml:"users,omitempty"`
	// Store selects where credentials and sessions are kept
	Store *storeopts.Options `yaml:"store,omitempty"`
}

// SSEConfig configures server-sent event channels
type SSEConfig struct {
	// KeepAliveInterval is the time between keep-alive comments; negative disables
	KeepAliveInterval time.Duration `yaml:"keepalive_interval,omitempty"`
	// WriteTimeout bounds each event write to a client; negative disables
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
}

// StaticConfig configures the static file route
type StaticConfig struct {
	// Root is the directory served below /static/; empty disables the route
	Root string `yaml:"root,omitempty"`
	// Index is served for directory requests
	Index string `yaml:"index,omitempty"`
}

// NewConfig returns a Config initialized with default values
func NewConfig() *Config {
	hn, _ := os.Hostname()
	return &Config{
		Main:        &MainConfig{ServerName: hn},
		Frontend:    fropts.New(),
		Compression: encopts.New(),
		Security: &SecurityConfig{
			RequestedWith: append([]string(nil), router.DefaultRequestedWith...),
		},
		Request: &RequestConfig{MaxBodySize: DefaultMaxBodySize},
		Auth: &AuthConfig{
			LoginWindow: login.DefaultWindow,
			SessionTTL:  sessions.DefaultTTL,
			CookieName:  sessions.DefaultCookieName,
			Users:       make(map[string]credentials.Seed),
			Store:       storeopts.New(),
		},
		SSE: &SSEConfig{
			KeepAliveInterval: sse.DefaultKeepAlive,
			WriteTimeout:      sse.DefaultWriteTimeout,
		},
		Static:  &StaticConfig{Index: DefaultStaticIndex},
		Logging: lo.New(),
		Metrics: mo.New(),
		Tracing: to.New(),
	}
}

// Load returns the Config built from defaults, the config file, environment
// variables and command line flags, in that order
func Load(args []string) (*Config, error) {
	flags, err := parseFlags(args)
	if err != nil {
		return nil, err
	}
	c := NewConfig()
	c.Flags = flags
	if flags.PrintVersion || flags.MakeRecord != "" {
		return c, nil
	}
	if err := c.loadFile(flags); err != nil {
		return nil, err
	}
	c.fillDefaults()
	c.loadEnvVars()
	c.loadFlags(flags)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadFile loads configuration from a YAML file. A missing file at the
// default path is not an error.
func (c *Config) loadFile(flags *Flags) error {
	b, err := os.ReadFile(flags.ConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !flags.customPath {
			c.LoaderWarnings = append(c.LoaderWarnings,
				"no configuration file at "+flags.ConfigPath+", using defaults")
			return nil
		}
		return err
	}
	return c.loadYAMLConfig(b)
}

// loadYAMLConfig loads configuration from a YAML document
func (c *Config) loadYAMLConfig(b []byte) error {
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// fillDefaults replaces sections the config file set to null
func (c *Config) fillDefaults() {
	d := NewConfig()
	if c.Main == nil {
		c.Main = d.Main
	}
	if c.Frontend == nil {
		c.Frontend = d.Frontend
	}
	if c.Compression == nil {
		c.Compression = d.Compression
	}
	if c.Security == nil || len(c.Security.RequestedWith) == 0 {
		c.Security = d.Security
	}
	if c.Request == nil {
		c.Request = d.Request
	}
	if c.Auth == nil {
		c.Auth = d.Auth
	}
	if c.Auth.Store == nil {
		c.Auth.Store = storeopts.New()
	}
	if c.SSE == nil {
		c.SSE = d.SSE
	}
	if c.Static == nil {
		c.Static = d.Static
	}
	if c.Logging == nil {
		c.Logging = d.Logging
	}
	if c.Metrics == nil {
		c.Metrics = d.Metrics
	}
	if c.Tracing == nil {
		c.Tracing = d.Tracing
	}
}

// Validate checks the Config and fills in defaults for omitted sections
func (c *Config) Validate() error {
	c.fillDefaults()
	if p := c.Main.PathPrefix; p != "" {
		if !strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
			return fmt.Errorf("%w: %q must start and must not end with /",
				ferrors.ErrInvalidPathPrefix, p)
		}
	}
	if c.Auth.LoginWindow <= 0 || c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("%w: auth.login_window and auth.session_ttl must be positive",
			ferrors.ErrInvalidOptions)
	}
	if c.Request.MaxBodySize == 0 {
		c.Request.MaxBodySize = DefaultMaxBodySize
	}
	if c.Static.Index == "" {
		c.Static.Index = DefaultStaticIndex
	}
	if !slices.Contains(tr.Providers(), c.Tracing.Provider) {
		return fmt.Errorf("%w: %s", tr.ErrInvalidProvider, c.Tracing.Provider)
	}
	for _, v := range []interface{ Validate() error }{
		c.Frontend, c.Compression, c.Logging, c.Auth.Store,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
