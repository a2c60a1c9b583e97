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

package failures

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	werrors "github.com/wikiserv/wikiserv/pkg/web/errors"

	"github.com/stretchr/testify/require"
)

func TestResponse(t *testing.T) {
	status, h, b := Response(werrors.PrototypePollution("__proto__"))
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "application/json", h.Get("Content-Type"))
	require.JSONEq(t, `{"status":400,"reason":"PROTOTYPE_POLLUTION","details":{"key":"__proto__"}}`, string(b))
}

func TestResponseHidesUnexpectedErrors(t *testing.T) {
	status, _, b := Response(errors.New("db password is hunter2"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.JSONEq(t, `{"status":500,"reason":"INTERNAL_ERROR"}`, string(b))
}

func TestWrite(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, werrors.NoRoute())
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected %d got %d", http.StatusBadRequest, w.Code)
	}
	require.JSONEq(t, `{"status":400,"reason":"NO_ROUTE"}`, w.Body.String())
	Write(nil, werrors.NoRoute())
}
