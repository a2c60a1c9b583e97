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

// Package options configures the HTTP frontend listener
package options

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/wikiserv/wikiserv/pkg/errors"
)

const (
	// DefaultListenPort is the default port that the HTTP frontend will listen on
	DefaultListenPort = 8080
	// DefaultListenAddress is the default address that the HTTP frontend will listen on
	DefaultListenAddress = ""
	// DefaultReadHeaderTimeout bounds the time to read request headers
	DefaultReadHeaderTimeout = 10 * time.Second
)

// Options is a collection of configurations for the HTTP frontend
type Options struct {
	// ListenAddress is the IP address for the frontend listener
	ListenAddress string `yaml:"listen_address,omitempty"`
	// ListenPort is the TCP port for the frontend listener
	ListenPort int `yaml:"listen_port,omitempty"`
	// ConnectionsLimit caps concurrent connections. 0 is unlimited.
	ConnectionsLimit int `yaml:"connections_limit,omitempty"`
	// H2C serves HTTP/2 over cleartext connections
	H2C bool `yaml:"h2c,omitempty"`
	// TLSCertPath and TLSKeyPath enable https when both are set
	TLSCertPath string `yaml:"tls_cert_path,omitempty"`
	TLSKeyPath  string `yaml:"tls_key_path,omitempty"`
	// ReadHeaderTimeout bounds the time to read request headers
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout,omitempty"`
}

// New returns a new Options with default values
func New() *Options {
	return &Options{
		ListenPort:        DefaultListenPort,
		ListenAddress:     DefaultListenAddress,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
}

// Equal returns true if the Options are identical
func (o *Options) Equal(o2 *Options) bool {
	return *o == *o2
}

// Clone returns a copy of the Options
func (o *Options) Clone() *Options {
	o2 := *o
	return &o2
}

// ServeTLS reports whether a certificate and key are configured
func (o *Options) ServeTLS() bool {
	return o.TLSCertPath != "" && o.TLSKeyPath != ""
}

// Validate checks the Options
func (o *Options) Validate() error {
	if o.ListenPort < 0 || o.ListenPort > 65535 {
		return fmt.Errorf("%w: frontend.listen_port %d", errors.ErrInvalidOptions, o.ListenPort)
	}
	if o.ConnectionsLimit < 0 {
		return fmt.Errorf("%w: frontend.connections_limit must not be negative", errors.ErrInvalidOptions)
	}
	if (o.TLSCertPath == "") != (o.TLSKeyPath == "") {
		return fmt.Errorf("%w: frontend.tls_cert_path and tls_key_path must be set together",
			errors.ErrInvalidOptions)
	}
	return nil
}

// TLSConfig loads the configured certificate. It returns nil when TLS is
// not configured.
func (o *Options) TLSConfig() (*tls.Config, error) {
	if !o.ServeTLS() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(o.TLSCertPath, o.TLSKeyPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
