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

package sessions

import (
	"net/http"
	"testing"
	"time"

	"github.com/wikiserv/wikiserv/pkg/store/memory"

	"github.com/stretchr/testify/require"
)

func TestCreateGetDelete(t *testing.T) {
	m := New(memory.New(), Options{CookiePath: "/wiki/"})
	s, err := m.Create("u-1", "alice", []byte("key material"))
	require.NoError(t, err)
	require.Len(t, s.ID, 43)
	require.Len(t, s.Binding, 64)

	got, err := m.FromCookies(map[string]string{DefaultCookieName: s.ID})
	require.NoError(t, err)
	require.Equal(t, "u-1", got.UserID)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, s.ID, got.ID)

	require.NoError(t, m.Delete(s.ID))
	_, err = m.Get(s.ID)
	require.ErrorIs(t, err, ErrNoSession)
	_, err = m.Get("")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestCookies(t *testing.T) {
	m := New(memory.New(), Options{TTL: time.Hour, CookiePath: "/wiki/"})
	s, err := m.Create("u-1", "alice", nil)
	require.NoError(t, err)

	c := m.Cookie(s)
	require.Equal(t, DefaultCookieName, c.Name)
	require.Equal(t, 3600, c.MaxAge)
	require.Equal(t, "/wiki/", c.Path)
	require.True(t, c.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)

	cc := m.ClearCookie()
	require.Equal(t, -1, cc.MaxAge)
	require.Empty(t, cc.Value)
}

func TestSessionsExpire(t *testing.T) {
	st := memory.New()
	m := New(st, Options{TTL: time.Millisecond})
	s, err := m.Create("u-1", "alice", nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = m.Get(s.ID)
	require.ErrorIs(t, err, ErrNoSession)
}
