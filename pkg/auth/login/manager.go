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

package login

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/observability/logging/logger"
	"github.com/wikiserv/wikiserv/pkg/observability/metrics"
)

// ErrUnknownToken is returned for a token that is not pending, including
// one that was already finished
var ErrUnknownToken = errors.New("unknown login session")

// DefaultWindow is the time allowed between the two login messages
const DefaultWindow = 60 * time.Second

const tokenLen = 32

// Manager holds the in-flight exchanges of the process
type Manager struct {
	mtx     sync.Mutex
	pending map[string]*Exchange
	window  time.Duration
	log     logging.Logger
	now     func() time.Time
}

// NewManager returns a Manager whose exchanges expire after window
func NewManager(window time.Duration, lg logging.Logger) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	if lg == nil {
		lg = logger.Logger()
	}
	return &Manager{
		pending: make(map[string]*Exchange),
		window:  window,
		log:     lg,
		now:     time.Now,
	}
}

// Window returns the exchange window
func (m *Manager) Window() time.Duration {
	return m.window
}

func newToken() (string, error) {
	b := make([]byte, tokenLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// StartLogin runs step 0 of a new exchange and stores it under a new token
func (m *Manager) StartLogin(in Step0Input) (string, Step0Output, error) {
	e := NewExchange(m.window)
	e.now = m.now
	out, err := e.Step0(in)
	if err != nil {
		return "", Step0Output{}, err
	}
	token, err := newToken()
	if err != nil {
		return "", Step0Output{}, err
	}
	m.mtx.Lock()
	m.pending[token] = e
	n := len(m.pending)
	m.mtx.Unlock()
	metrics.LoginPendingExchanges.Set(float64(n))
	return token, out, nil
}

// FinishLoginSession removes and returns the exchange for token. A token
// is returned at most once.
func (m *Manager) FinishLoginSession(token string) (*Exchange, bool) {
	m.mtx.Lock()
	e, ok := m.pending[token]
	if ok {
		delete(m.pending, token)
	}
	n := len(m.pending)
	m.mtx.Unlock()
	metrics.LoginPendingExchanges.Set(float64(n))
	return e, ok
}

// FinishLogin consumes token and runs step 1 of its exchange
func (m *Manager) FinishLogin(token string, in Step1Input) (Step1Output, error) {
	e, ok := m.FinishLoginSession(token)
	if !ok {
		metrics.LoginAttempts.WithLabelValues("unknown").Inc()
		return Step1Output{}, ErrUnknownToken
	}
	expired := e.Expired()
	out, err := e.Step1(in)
	switch {
	case err != nil:
		metrics.LoginAttempts.WithLabelValues("error").Inc()
	case out.Session != nil:
		metrics.LoginAttempts.WithLabelValues("success").Inc()
	case expired:
		metrics.LoginAttempts.WithLabelValues("expired").Inc()
	default:
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
	}
	return out, err
}

// Pending returns the number of in-flight exchanges
func (m *Manager) Pending() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return len(m.pending)
}

// Reap removes exchanges abandoned for more than twice the window and
// returns how many were removed
func (m *Manager) Reap() int {
	cutoff := m.now().Add(-2 * m.window)
	m.mtx.Lock()
	var n int
	for token, e := range m.pending {
		if e.Started().Before(cutoff) {
			delete(m.pending, token)
			n++
		}
	}
	left := len(m.pending)
	m.mtx.Unlock()
	metrics.LoginPendingExchanges.Set(float64(left))
	return n
}

// Run reaps abandoned exchanges every window until ctx is done
func (m *Manager) Run(ctx context.Context) {
	t := time.NewTicker(m.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Reap(); n > 0 {
				m.log.Debug("reaped abandoned login exchanges", logging.Pairs{"count": n})
			}
		}
	}
}
