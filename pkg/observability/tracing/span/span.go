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

// Package span creates request and handler spans for a Tracer
package span

import (
	"context"
	"net/http"

	"github.com/wikiserv/wikiserv/pkg/observability/tracing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

// PrepareRequest extracts trace information from the headers of the incoming request.
// It returns a pointer to the incoming request with the request context updated to include
// all span and tracing info. It also returns a span with the name "request" that is meant
// to be a parent span for all child spans of this request.
func PrepareRequest(r *http.Request, tr *tracing.Tracer) (*http.Request, trace.Span) {
	if tr == nil || tr.Tracer == nil {
		return r, nil
	}

	attrs, entries, spanCtx := otelhttptrace.Extract(r.Context(), r)
	r = r.WithContext(baggage.ContextWithBaggage(r.Context(), entries))

	attrs = append(attrs,
		attribute.String("http.method", r.Method),
		attribute.String("http.target", r.URL.Path),
	)

	ctx, span := tr.Start(
		trace.ContextWithRemoteSpanContext(r.Context(), spanCtx),
		"request",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)

	return r.WithContext(ctx), span
}

// NewChildSpan returns the context with a new Span situated as the child of the previous span
func NewChildSpan(ctx context.Context, tr *tracing.Tracer,
	spanName string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tr == nil || tr.Tracer == nil {
		return ctx, nil
	}
	return tr.Start(ctx, spanName)
}

// SetAttributes safely sets attributes on a span
func SetAttributes(span trace.Span, kvs ...attribute.KeyValue) {
	if span == nil || len(kvs) == 0 {
		return
	}
	span.SetAttributes(kvs...)
}

// End records the response status on the span, if any, and ends it
func End(span trace.Span, status int, err error) {
	if span == nil {
		return
	}
	if status > 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
		span.SetStatus(tracing.HTTPToCode(status), http.StatusText(status))
	}
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
