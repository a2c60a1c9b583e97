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

package options

import (
	"maps"
	"time"

)

const (
	// DefaultTracerProvider is the default tracing provider
	DefaultTracerProvider = "none"
	// DefaultTracerServiceName is the default service name reported with spans
	DefaultTracerServiceName = "wikiserv"
)

// Options is a Tracing Options collection
type Options struct {
	Name               string            `yaml:"-"`
	Provider           string            `yaml:"provider,omitempty"`
	ServiceName        string            `yaml:"service_name,omitempty"`
	Endpoint           string            `yaml:"endpoint,omitempty"`
	Timeout            time.Duration     `yaml:"timeout,omitempty"`
	Headers            map[string]string `yaml:"headers,omitempty"`
	DisableCompression bool              `yaml:"disable_compression,omitempty"`
	SampleRate         float64           `yaml:"sample_rate,omitempty"`
	Tags               map[string]string `yaml:"tags,omitempty"`
	// PrettyPrint indents the spans written by the stdout provider
	PrettyPrint        bool              `yaml:"pretty_print,omitempty"`
}

// New returns a new *Options with the default values
func New() *Options {
	return &Options{
		Name:        "default",
		Provider:    DefaultTracerProvider,
		ServiceName: DefaultTracerServiceName,
		SampleRate:  1,
	}
}

// Clone returns an exact copy of a tracing config
func (o *Options) Clone() *Options {
	return &Options{
		Name:               o.Name,
		Provider:           o.Provider,
		ServiceName:        o.ServiceName,
		Endpoint:           o.Endpoint,
		Timeout:            o.Timeout,
		Headers:            maps.Clone(o.Headers),
		DisableCompression: o.DisableCompression,
		SampleRate:         o.SampleRate,
		Tags:               maps.Clone(o.Tags),
		PrettyPrint:        o.PrettyPrint,
	}
}
