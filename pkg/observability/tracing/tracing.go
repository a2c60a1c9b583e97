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

// Package tracing provides distributed tracing services to wikiserv
package tracing

import (
	"context"
	"errors"
	"net/http"

	"github.com/wikiserv/wikiserv/pkg/observability/tracing/options"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNoTracerOptions is returned by an exporter given nil Options
	ErrNoTracerOptions = errors.New("no tracer options provided")
	// ErrInvalidEndpointURL is returned when an exporter's endpoint does not parse
	ErrInvalidEndpointURL = errors.New("invalid endpoint url")
)

// ShutdownFunc defines a function used to Flush a Tracer
type ShutdownFunc func(context.Context) error

// Tracer is a Tracer object used by wikiserv
type Tracer struct {
	trace.Tracer
	Name         string
	ShutdownFunc ShutdownFunc
	Options      *options.Options
}

// Shutdown flushes and stops the Tracer, if it supports it
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.ShutdownFunc == nil {
		return nil
	}
	return t.ShutdownFunc(ctx)
}

// Tags represents a collection of Tags
type Tags map[string]string

// HTTPToCode translates an HTTP status code into an OpenTelemetry status code
func HTTPToCode(status int) codes.Code {
	switch {
	case status < http.StatusBadRequest:
		return codes.Ok
	default:
		return codes.Error
	}
}

// Sampler returns the sdk sampler for the provided sample rate
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Merge merges t2, when not nil, into t
func (t Tags) Merge(t2 Tags) {
	for k, v := range t2 {
		t[k] = v
	}
}

// ToAttr returns the Tags map as an Attributes List
func (t Tags) ToAttr() []attribute.KeyValue {
	attr := make([]attribute.KeyValue, 0, len(t))
	for k, v := range t {
		attr = append(attr, attribute.String(k, v))
	}
	return attr
}

// ResourceAttrs returns the service name attribute followed by the option tags
func ResourceAttrs(o *options.Options) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("service.name", o.ServiceName)}
	return append(attrs, Tags(o.Tags).ToAttr()...)
}
