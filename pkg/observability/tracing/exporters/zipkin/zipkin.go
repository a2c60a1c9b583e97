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

// Package zipkin provides a Zipkin Tracer
package zipkin

import (
	"github.com/wikiserv/wikiserv/pkg/observability/tracing"
	"github.com/wikiserv/wikiserv/pkg/observability/tracing/options"

	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// New returns a new Zipkin Tracer
func New(o *options.Options) (*tracing.Tracer, error) {
	if o == nil {
		return nil, tracing.ErrNoTracerOptions
	}
	if o.Endpoint == "" {
		return nil, tracing.ErrInvalidEndpointURL
	}

	exporter, err := zipkin.New(o.Endpoint)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(10),
		),
		sdktrace.WithSampler(tracing.Sampler(o.SampleRate)),
		sdktrace.WithResource(resource.NewWithAttributes("", tracing.ResourceAttrs(o)...)),
	)

	return &tracing.Tracer{
		Name:         o.Name,
		Tracer:       tp.Tracer(o.Name),
		Options:      o,
		ShutdownFunc: tp.Shutdown,
	}, nil
}
