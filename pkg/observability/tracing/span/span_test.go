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

package span

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/wikiserv/wikiserv/pkg/observability/tracing/exporters/stdout"
	"github.com/wikiserv/wikiserv/pkg/observability/tracing/options"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestPrepareRequestNilTracer(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r2, sp := PrepareRequest(r, nil)
	require.Nil(t, sp)
	require.Equal(t, r, r2)

	ctx, sp := NewChildSpan(context.Background(), nil, "child")
	require.Nil(t, sp)
	require.NotNil(t, ctx)
	// nil spans are accepted everywhere
	SetAttributes(nil, attribute.String("k", "v"))
	End(nil, 200, nil)
}

func TestSpansAreExported(t *testing.T) {
	buf := &bytes.Buffer{}
	o := options.New()
	o.Provider = "stdout"
	tr, err := stdout.New(o, buf)
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/login/1", nil)
	r, sp := PrepareRequest(r, tr)
	require.NotNil(t, sp)
	_, child := NewChildSpan(r.Context(), tr, "handler")
	SetAttributes(child, attribute.Int("depth", 1))
	End(child, 0, errors.New("boom"))
	End(sp, 401, nil)
	require.NoError(t, tr.Shutdown(context.Background()))
	require.Contains(t, buf.String(), `"Name":"request"`)
	require.Contains(t, buf.String(), `"Name":"handler"`)
}
