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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestUnmarshalYAMLDefaults(t *testing.T) {
	var o Options
	require.NoError(t, yaml.Unmarshal([]byte("db: 2\ndial_timeout: 3s\n"), &o))
	require.Equal(t, DefaultClientType, o.ClientType)
	require.Equal(t, DefaultEndpoint, o.Endpoint)
	require.Equal(t, 2, o.DB)
	require.Equal(t, 3*time.Second, o.DialTimeout)
}

func TestEqual(t *testing.T) {
	o := New()
	require.True(t, o.Equal(New()))
	o2 := New()
	o2.Endpoints = append(o2.Endpoints, "redis2:6379")
	require.False(t, o.Equal(o2))
	require.False(t, o.Equal(nil))
	var n *Options
	require.True(t, n.Equal(nil))
}
