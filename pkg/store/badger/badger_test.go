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

package badger

import (
	"testing"
	"time"

	"github.com/wikiserv/wikiserv/pkg/store"
	"github.com/wikiserv/wikiserv/pkg/store/badger/options"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	dir := t.TempDir()
	s := New(&options.Options{Directory: dir, ValueDirectory: dir})
	require.NoError(t, s.Connect())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerStore(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Store("user:alice", []byte("record"), 0))
	b, err := s.Retrieve("user:alice")
	require.NoError(t, err)
	require.Equal(t, "record", string(b))

	require.NoError(t, s.Remove("user:alice"))
	_, err = s.Retrieve("user:alice")
	require.ErrorIs(t, err, store.ErrKNF)
}

func TestBadgerStoreTTL(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Store("session:x", []byte("1"), time.Hour))
	_, err := s.Retrieve("session:x")
	require.NoError(t, err)
}

func TestBadgerConnectFailed(t *testing.T) {
	s := New(&options.Options{Directory: "/dev/null/nope"})
	require.Error(t, s.Connect())
	require.NoError(t, s.Close())
}
