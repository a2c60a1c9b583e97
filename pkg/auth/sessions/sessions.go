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

// Package sessions persists authenticated login sessions and maps them to
// and from cookies
package sessions

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/wikiserv/wikiserv/pkg/store"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// KeyPrefix is prepended to the session id to form the store key
	KeyPrefix = "session:"
	// DefaultCookieName is the cookie carrying the session id
	DefaultCookieName = "wikiserv_session"
	// DefaultTTL is the default session lifetime
	DefaultTTL = 24 * time.Hour
)

// ErrNoSession is returned for unknown or expired session ids
var ErrNoSession = errors.New("no such session")

// Session is a stored login session
type Session struct {
	ID       string    `json:"-"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Created  time.Time `json:"created"`
	// Binding is a digest of the PAKE session key the login produced
	Binding string `json:"binding"`
}

// Options configures a Manager
type Options struct {
	TTL        time.Duration
	CookieName string
	// CookiePath scopes the cookie, normally the path prefix plus "/"
	CookiePath string
}

// Manager creates and resolves sessions
type Manager struct {
	st   store.Store
	opts Options
	now  func() time.Time
}

// New returns a Manager storing sessions in st
func New(st store.Store, o Options) *Manager {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.CookieName == "" {
		o.CookieName = DefaultCookieName
	}
	if o.CookiePath == "" {
		o.CookiePath = "/"
	}
	return &Manager{st: st, opts: o, now: time.Now}
}

// CookieName returns the name of the session cookie
func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

// Create stores a new session for the user
func (m *Manager) Create(userID, username string, sessionKey []byte) (*Session, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(sessionKey)
	s := &Session{
		ID:       base64.RawURLEncoding.EncodeToString(b),
		UserID:   userID,
		Username: username,
		Created:  m.now().UTC(),
		Binding:  hex.EncodeToString(sum[:]),
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := m.st.Store(KeyPrefix+s.ID, data, m.opts.TTL); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the session for id
func (m *Manager) Get(id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	data, err := m.st.Retrieve(KeyPrefix + id)
	if errors.Is(err, store.ErrKNF) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	s := &Session{ID: id}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// FromCookies resolves the session named by the session cookie
func (m *Manager) FromCookies(cookies map[string]string) (*Session, error) {
	return m.Get(cookies[m.opts.CookieName])
}

// Delete removes the session for id
func (m *Manager) Delete(id string) error {
	if id == "" {
		return nil
	}
	return m.st.Remove(KeyPrefix + id)
}

// Cookie returns the cookie that carries s
func (m *Manager) Cookie(s *Session) *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    s.ID,
		Path:     m.opts.CookiePath,
		MaxAge:   int(m.opts.TTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie returns a cookie that removes the session cookie
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     m.opts.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
