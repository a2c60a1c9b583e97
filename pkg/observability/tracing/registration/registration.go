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

// Package registration builds the configured tracer
package registration

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/observability/tracing"
	"github.com/wikiserv/wikiserv/pkg/observability/tracing/exporters/otlp"
	"github.com/wikiserv/wikiserv/pkg/observability/tracing/exporters/stdout"
	"github.com/wikiserv/wikiserv/pkg/observability/tracing/exporters/zipkin"
	"github.com/wikiserv/wikiserv/pkg/observability/tracing/options"
)

// ErrInvalidProvider is an error for an unknown tracing provider name
var ErrInvalidProvider = errors.New("invalid tracing provider")

// ProviderNone disables tracing
const ProviderNone = "none"

type constructor func(*options.Options) (*tracing.Tracer, error)

var constructors = map[string]constructor{
	"stdout": func(o *options.Options) (*tracing.Tracer, error) { return stdout.New(o, nil) },
	"otlp":   otlp.New,
	"zipkin": zipkin.New,
}

// Providers returns the names of the supported tracing providers, sorted
func Providers() []string {
	return append(slices.Sorted(maps.Keys(constructors)), ProviderNone)
}

// GetTracer returns a *Tracer based on the provided options. The "none"
// provider returns a nil Tracer, which every tracing helper accepts.
func GetTracer(opts *options.Options, log logging.Logger) (*tracing.Tracer, error) {
	if opts == nil || opts.Provider == ProviderNone || opts.Provider == "" {
		return nil, nil
	}
	f, ok := constructors[opts.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProvider, opts.Provider)
	}
	if log != nil {
		log.Info("tracer registration",
			logging.Pairs{
				"name":        opts.Name,
				"provider":    opts.Provider,
				"serviceName": opts.ServiceName,
				"endpoint":    opts.Endpoint,
				"sampleRate":  opts.SampleRate,
			},
		)
	}
	return f(opts)
}
