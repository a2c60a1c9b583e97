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

package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wikiserv/wikiserv/pkg/events"
	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/web/streamer"

	"github.com/stretchr/testify/require"
)

// syncRecorder guards a ResponseRecorder for writes from several goroutines
type syncRecorder struct {
	*httptest.ResponseRecorder
	mtx sync.Mutex
}

func (r *syncRecorder) Write(b []byte) (int, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.ResponseRecorder.Write(b)
}

func (r *syncRecorder) body() string {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.Body.String()
}

func openTestChannel(t *testing.T, ctx context.Context,
	bus *events.Bus) (*Channel, *syncRecorder) {
	t.Helper()
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}
	r := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	s, err := streamer.New(w, r, streamer.Options{Logger: logging.NoopLogger()})
	require.NoError(t, err)
	c, err := Open(s, bus, Options{KeepAlive: -1})
	require.NoError(t, err)
	return c, w
}

func TestOpenWritesHeadersAndPreamble(t *testing.T) {
	c, w := openTestChannel(t, context.Background(), events.New())
	defer c.Close()
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	require.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	require.Equal(t, "keep-alive", w.Header().Get("Connection"))
	require.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
	lines := strings.Split(w.body(), "\n")
	require.True(t, strings.HasPrefix(lines[0], ": "))
	require.True(t, strings.HasPrefix(lines[1], ": "))
	require.Equal(t, "", lines[2])
}

func TestSendFormat(t *testing.T) {
	c, w := openTestChannel(t, context.Background(), events.New())
	defer c.Close()
	start := len(w.body())
	require.NoError(t, c.Send(Event{Name: "tiddler", Data: map[string]string{"title": "A"},
		ID: "7", Retry: 2 * time.Second}))
	require.NoError(t, c.Send(Event{Data: 1}))
	require.Equal(t, "event: tiddler\ndata: {\"title\":\"A\"}\nid: 7\nretry: 2000\n\n"+
		"data: 1\n\n", w.body()[start:])
}

func TestSendRejectsNewlines(t *testing.T) {
	c, w := openTestChannel(t, context.Background(), events.New())
	defer c.Close()
	before := w.body()
	require.ErrorIs(t, c.Send(Event{Name: "a\nb", Data: 1}), ErrInvalidField)
	require.ErrorIs(t, c.Send(Event{ID: "1\r", Data: 1}), ErrInvalidField)
	require.Equal(t, before, w.body())
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := events.New()
	c, w := openTestChannel(t, context.Background(), bus)
	c.Subscribe(events.TiddlerSaved, func(context.Context, any) error { return nil })
	require.Equal(t, 1, bus.ListenerCount(events.Exit))
	require.Equal(t, 1, bus.ListenerCount(events.TiddlerSaved))

	require.NoError(t, c.Close())
	after := w.body()
	require.NoError(t, c.Close())
	require.Equal(t, after, w.body())
	require.True(t, c.Closed())
	require.Zero(t, bus.ListenerCount(events.Exit))
	require.Zero(t, bus.ListenerCount(events.TiddlerSaved))
	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
	require.ErrorIs(t, c.Send(Event{Data: 1}), ErrClosed)

	// subscribing after close never registers
	c.Subscribe(events.TiddlerDeleted, func(context.Context, any) error { return nil })
	require.Zero(t, bus.ListenerCount(events.TiddlerDeleted))
}

func TestExitClosesChannel(t *testing.T) {
	bus := events.New()
	c, _ := openTestChannel(t, context.Background(), bus)
	require.NoError(t, bus.Emit(context.Background(), events.Exit, nil))
	<-c.Done()
	require.True(t, c.Closed())
}

func TestTransportCloseClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, _ := openTestChannel(t, ctx, events.New())
	cancel()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestNoEventAfterClose(t *testing.T) {
	bus := events.New()
	c, w := openTestChannel(t, context.Background(), bus)
	var calls int
	c.Subscribe(events.TiddlerSaved, func(ctx context.Context, payload any) error {
		calls++
		return c.Send(Event{Name: "saved", Data: payload})
	})
	require.NoError(t, bus.Emit(context.Background(), events.TiddlerSaved, "a"))
	require.Equal(t, 1, calls)
	c.Close()
	after := w.body()
	require.NoError(t, bus.Emit(context.Background(), events.TiddlerSaved, "b"))
	require.Equal(t, 1, calls)
	require.Equal(t, after, w.body())
}

func TestInFlightEventAfterClose(t *testing.T) {
	bus := events.New()
	c, w := openTestChannel(t, context.Background(), bus)
	entered := make(chan struct{})
	release := make(chan struct{})
	result := make(chan error, 1)
	c.Subscribe(events.TiddlerSaved, func(ctx context.Context, payload any) error {
		close(entered)
		<-release
		// resumed after cleanup already ran
		if c.Closed() {
			result <- ErrClosed
			return nil
		}
		err := c.Send(Event{Data: payload})
		result <- err
		return err
	})
	go bus.Emit(context.Background(), events.TiddlerSaved, "late")
	<-entered
	require.NoError(t, c.Close())
	after := w.body()
	close(release)
	require.ErrorIs(t, <-result, ErrClosed)
	require.Equal(t, after, w.body())
}

func TestKeepAlive(t *testing.T) {
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}
	r := httptest.NewRequest(http.MethodGet, "/events", nil)
	s, err := streamer.New(w, r, streamer.Options{Logger: logging.NoopLogger()})
	require.NoError(t, err)
	c, err := Open(s, nil, Options{KeepAlive: 10 * time.Millisecond})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(w.body(), ": keep-alive\n\n")
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
}

// stallWriter accepts writes until stall is called. After that each write
// blocks until a write deadline at or before now is set.
type stallWriter struct {
	header  http.Header
	mtx     sync.Mutex
	stalled bool
	cut     bool
	entered chan struct{}
	unblock chan struct{}
	// deadline is the last deadline set while a write was not yet blocked
	deadline time.Time
}

func newStallWriter() *stallWriter {
	return &stallWriter{
		header:  make(http.Header),
		entered: make(chan struct{}, 1),
		unblock: make(chan struct{}),
	}
}

func (w *stallWriter) Header() http.Header { return w.header }

func (w *stallWriter) WriteHeader(int) {}

func (w *stallWriter) stall() {
	w.mtx.Lock()
	w.stalled = true
	w.mtx.Unlock()
}

func (w *stallWriter) Write(b []byte) (int, error) {
	w.mtx.Lock()
	stalled := w.stalled
	w.mtx.Unlock()
	if !stalled {
		return len(b), nil
	}
	select {
	case w.entered <- struct{}{}:
	default:
	}
	<-w.unblock
	return 0, os.ErrDeadlineExceeded
}

func (w *stallWriter) SetWriteDeadline(t time.Time) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if t.IsZero() {
		return nil
	}
	if t.After(time.Now()) {
		if !w.cut {
			w.deadline = t
		}
		return nil
	}
	if w.stalled && !w.cut {
		w.cut = true
		close(w.unblock)
	}
	return nil
}

func TestCloseWithStalledWrite(t *testing.T) {
	grace := closeGrace
	closeGrace = 20 * time.Millisecond
	t.Cleanup(func() { closeGrace = grace })

	w := newStallWriter()
	r := httptest.NewRequest(http.MethodGet, "/events", nil)
	s, err := streamer.New(w, r, streamer.Options{Logger: logging.NoopLogger()})
	require.NoError(t, err)
	bus := events.New()
	c, err := Open(s, bus, Options{KeepAlive: -1, WriteTimeout: time.Minute})
	require.NoError(t, err)

	w.stall()
	sent := make(chan error, 1)
	go func() { sent <- c.Comment("stuck") }()
	<-w.entered
	w.mtx.Lock()
	require.False(t, w.deadline.IsZero())
	w.mtx.Unlock()

	closed := make(chan error, 1)
	go func() { closed <- bus.Emit(context.Background(), events.Exit, nil) }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("exit blocked by a stalled write")
	}
	require.True(t, c.Closed())
	require.ErrorIs(t, <-sent, os.ErrDeadlineExceeded)
	<-c.Done()
	require.ErrorIs(t, c.Send(Event{Data: 1}), ErrClosed)
}
