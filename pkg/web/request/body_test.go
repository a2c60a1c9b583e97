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

package request

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/wikiserv/wikiserv/pkg/web/errors"

	"github.com/stretchr/testify/require"
)

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestReadBodyFormats(t *testing.T) {
	b, err := ReadBody(body("ignored"), FormatIgnore, 0)
	require.NoError(t, err)
	require.Equal(t, FormatIgnore, b.BodyFormat())
	_, err = b.Text()
	require.ErrorIs(t, err, ErrWrongBodyFormat)

	b, err = ReadBody(body("hello"), FormatString, 0)
	require.NoError(t, err)
	s, err := b.Text()
	require.NoError(t, err)
	require.Equal(t, "hello", s)
	_, err = b.Buffer()
	require.ErrorIs(t, err, ErrWrongBodyFormat)

	b, err = ReadBody(body("raw"), FormatBuffer, 0)
	require.NoError(t, err)
	buf, err := b.Buffer()
	require.NoError(t, err)
	require.Equal(t, []byte("raw"), buf)

	b, err = ReadBody(body("streamed"), FormatStream, 0)
	require.NoError(t, err)
	rc, err := b.Stream()
	require.NoError(t, err)
	all, _ := io.ReadAll(rc)
	require.Equal(t, "streamed", string(all))

	b, err = ReadBody(body(`{"title":"Hello","tags":["a"]}`), FormatJSON, 0)
	require.NoError(t, err)
	v, err := b.JSON()
	require.NoError(t, err)
	require.Equal(t, "Hello", v.(map[string]any)["title"])
	var dst struct {
		Title string   `json:"title"`
		Tags  []string `json:"tags"`
	}
	require.NoError(t, b.DecodeJSON(&dst))
	require.Equal(t, []string{"a"}, dst.Tags)

	_, err = ReadBody(body(""), Format("yaml"), 0)
	require.Error(t, err)
}

func TestReadBodyForms(t *testing.T) {
	b, err := ReadBody(body("a=1&b=two+words&a=3&flag"), FormatForm, 0)
	require.NoError(t, err)
	pairs, err := b.Form()
	require.NoError(t, err)
	require.Equal(t, []FormPair{{"a", "1"}, {"b", "two words"}, {"a", "3"}, {"flag", ""}}, pairs)

	b, err = ReadBody(body("a=1&b=2&a=3"), FormatFormMap, 0)
	require.NoError(t, err)
	m, err := b.FormMap()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "3", "b": "2"}, m)

	_, err = ReadBody(body("a=%zz"), FormatForm, 0)
	he, ok := errors.AsHTTPError(err)
	require.True(t, ok)
	require.Equal(t, errors.ReasonMalformedForm, he.Reason)
}

func TestReadBodyJSONErrors(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		reason errors.Reason
	}{
		{"malformed", `{"a":`, errors.ReasonMalformedJSON},
		{"empty", ``, errors.ReasonMalformedJSON},
		{"proto", `{"__proto__":{"admin":true}}`, errors.ReasonPrototypePollution},
		{"nested proto", `{"a":[{"b":{"__proto__":1}}]}`, errors.ReasonPrototypePollution},
		{"constructor prototype", `{"constructor":{"prototype":{"x":1}}}`, errors.ReasonPrototypePollution},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadBody(body(test.in), FormatJSON, 0)
			he, ok := errors.AsHTTPError(err)
			require.True(t, ok)
			require.Equal(t, http.StatusBadRequest, he.Status)
			require.Equal(t, test.reason, he.Reason)
		})
	}

	// a constructor key without a prototype is ordinary data
	_, err := ReadBody(body(`{"constructor":{"name":"x"},"c":"constructor"}`), FormatJSON, 0)
	require.NoError(t, err)
}

func TestReadBodyLimit(t *testing.T) {
	_, err := ReadBody(body("0123456789"), FormatString, 10)
	require.NoError(t, err)
	_, err = ReadBody(body("0123456789a"), FormatString, 10)
	he, ok := errors.AsHTTPError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusRequestEntityTooLarge, he.Status)
}
