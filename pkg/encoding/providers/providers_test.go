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

package providers

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProviderID(t *testing.T) {
	tests := []struct {
		name string
		p    Provider
		ok   bool
	}{
		{"br", Brotli, true},
		{"Brotli", Brotli, true},
		{" gzip", GZip, true},
		{"deflate", Deflate, true},
		{"zstandard", Zstandard, true},
		{"identity", Identity, true},
		{"snappy", 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, ok := ProviderID(test.name)
			require.Equal(t, test.ok, ok)
			require.Equal(t, test.p, p)
		})
	}
	require.Equal(t, "identity", Identity.String())
	require.Equal(t, "16", Provider(16).String())
	require.Equal(t, "zstd, br, gzip, deflate", AllSupportedProviders)
}

func TestConcatenable(t *testing.T) {
	require.True(t, GZip.Concatenable())
	require.True(t, Zstandard.Concatenable())
	require.False(t, Brotli.Concatenable())
	require.False(t, Deflate.Concatenable())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	const body = "HelloThere, this is a wiki page body that compresses well. "
	for _, name := range Providers() {
		t.Run(name, func(t *testing.T) {
			p, ok := ProviderID(name)
			require.True(t, ok)
			ei, hv := SelectEncoderInitializer(p)
			require.Equal(t, name, hv)
			buf := &bytes.Buffer{}
			enc := ei(buf, 0)
			_, err := enc.Write([]byte(strings.Repeat(body, 20)))
			require.NoError(t, err)
			require.NoError(t, enc.Close())

			dec, err := NewDecoder(name, buf)
			require.NoError(t, err)
			out, err := io.ReadAll(dec)
			require.NoError(t, err)
			require.Equal(t, strings.Repeat(body, 20), string(out))
		})
	}
}

func TestNewDecoderPassthrough(t *testing.T) {
	r, err := NewDecoder("", strings.NewReader("plain"))
	require.NoError(t, err)
	b, _ := io.ReadAll(r)
	require.Equal(t, "plain", string(b))

	_, err = NewDecoder("snappy", strings.NewReader(""))
	require.ErrorIs(t, err, ErrUnsupportedEncoding)

	ei, hv := SelectEncoderInitializer(Identity)
	require.Nil(t, ei)
	require.Empty(t, hv)
}
