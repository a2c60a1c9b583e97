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

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPError(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := fmt.Errorf("reading body: %w", MalformedJSON(cause))
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Status)
	require.Equal(t, ReasonMalformedJSON, he.Reason)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "400 MALFORMED_JSON: unexpected EOF", he.Error())
	require.Equal(t, "403 REQUESTED_WITH_HEADER_REQUIRED", RequestedWithRequired().Error())

	_, ok = AsHTTPError(cause)
	require.False(t, ok)
}

func TestIsStreamEnded(t *testing.T) {
	require.True(t, IsStreamEnded(ErrStreamEnded))
	require.True(t, IsStreamEnded(fmt.Errorf("handler: %w", ErrStreamEnded)))
	require.False(t, IsStreamEnded(ErrWriteAfterEnd))
	require.False(t, IsStreamEnded(nil))
}

func TestTaxonomyStatuses(t *testing.T) {
	tests := []struct {
		err    *HTTPError
		status int
	}{
		{NoRoute(), http.StatusBadRequest},
		{OutsidePrefix(), http.StatusBadRequest},
		{PrototypePollution("__proto__"), http.StatusBadRequest},
		{BodyTooLarge(10), http.StatusRequestEntityTooLarge},
		{NoResponse(), http.StatusInternalServerError},
		{LoginFailed(nil), http.StatusUnauthorized},
		{Internal(nil), http.StatusInternalServerError},
	}
	for _, test := range tests {
		t.Run(string(test.err.Reason), func(t *testing.T) {
			require.Equal(t, test.status, test.err.Status)
		})
	}
}
