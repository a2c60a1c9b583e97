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

// Package sse writes Server-Sent Events to a Streamer and ties the life of
// each channel to its transport and to process shutdown
package sse

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wikiserv/wikiserv/pkg/events"
	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/observability/metrics"
	werrors "github.com/wikiserv/wikiserv/pkg/web/errors"
	"github.com/wikiserv/wikiserv/pkg/web/headers"
	"github.com/wikiserv/wikiserv/pkg/web/streamer"

	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrClosed is returned when sending on a closed Channel
var ErrClosed = errors.New("sse channel closed")

// ErrInvalidField is returned for an event name or id containing a newline
var ErrInvalidField = errors.New("sse event name and id may not contain newlines")

// ErrWriteStalled is returned by Close when a write to the client could not
// be interrupted in time. The response is ended once that write returns.
var ErrWriteStalled = errors.New("sse write to client stalled")

const (
	// DefaultKeepAlive is the interval between keep-alive comments
	DefaultKeepAlive = 30 * time.Second
	// DefaultWriteTimeout bounds a single event write to the client
	DefaultWriteTimeout = 10 * time.Second
)

// closeGrace is how long Close waits for an in-flight write before cutting
// it short, and again for the response to end after that
var closeGrace = 2 * time.Second

var preamble = []byte(": This is a server-sent event stream.\n" +
	": Events are delivered as they happen. Comments like these keep the connection open.\n\n")

// Options configures a Channel
type Options struct {
	// KeepAlive is the interval between keep-alive comments. 0 uses
	// DefaultKeepAlive and a negative value disables them.
	KeepAlive time.Duration
	// WriteTimeout bounds each write to the client. 0 uses
	// DefaultWriteTimeout and a negative value disables it.
	WriteTimeout time.Duration
}

// Event is one server-sent event
type Event struct {
	// Name is sent as the "event" field, unless empty
	Name string
	// Data is JSON-encoded into the "data" field
	Data any
	// ID is sent as the "id" field, unless empty
	ID string
	// Retry is sent as the "retry" field in milliseconds, unless zero
	Retry time.Duration
}

// Channel is the write side of one event stream
type Channel struct {
	s   *streamer.Streamer
	bus *events.Bus
	log logging.Logger

	writeTimeout time.Duration

	closed   atomic.Bool
	writeMtx sync.Mutex

	cleanupMtx sync.Mutex
	cleanups   []func() error
	end        func() error
	done       chan struct{}
}

// Open starts an event stream on s. Cleanup is wired to the transport and
// to the bus Exit event before anything else happens, so a channel can
// never outlive either. Listeners added later with Subscribe are removed
// by the same cleanup.
func Open(s *streamer.Streamer, bus *events.Bus, o Options) (*Channel, error) {
	c := &Channel{
		s:            s,
		bus:          bus,
		log:          s.Logger(),
		writeTimeout: o.WriteTimeout,
		done:         make(chan struct{}),
	}
	if c.writeTimeout == 0 {
		c.writeTimeout = DefaultWriteTimeout
	}
	stop := context.AfterFunc(s.Context(), func() { c.Close() })
	c.onClose(func() error { stop(); return nil })
	if bus != nil {
		off := bus.On(events.Exit, func(context.Context, any) error {
			c.Close()
			return nil
		})
		c.onClose(func() error { off(); return nil })
	}

	if err := s.WriteHead(http.StatusOK, streamHeader(s.Request())); err != nil {
		c.Close()
		return nil, err
	}
	c.cleanupMtx.Lock()
	if c.closed.Load() {
		c.cleanupMtx.Unlock()
		s.End()
		return nil, ErrClosed
	}
	c.end = s.End
	c.cleanupMtx.Unlock()
	metrics.SSEActiveChannels.Inc()
	c.onClose(func() error { metrics.SSEActiveChannels.Dec(); return nil })

	if err := c.write(preamble); err != nil {
		return nil, err
	}

	ka := o.KeepAlive
	if ka == 0 {
		ka = DefaultKeepAlive
	}
	if ka > 0 {
		go c.keepAlive(ka)
	}
	return c, nil
}

// Head answers a HEAD request for an event stream with the headers Open
// would send and no body. Like the Streamer's send primitives it returns
// ErrStreamEnded on success.
func Head(s *streamer.Streamer) error {
	if err := s.WriteHead(http.StatusOK, streamHeader(s.Request())); err != nil {
		return err
	}
	if err := s.End(); err != nil {
		return err
	}
	return werrors.ErrStreamEnded
}

func streamHeader(r *http.Request) http.Header {
	h := http.Header{
		headers.NameContentType:     {headers.ValueTextEventStream},
		headers.NameCacheControl:    {headers.ValueNoCache},
		headers.NameXAccelBuffering: {headers.ValueNo},
	}
	// connection-specific headers are not allowed in HTTP/2
	if r.ProtoMajor < 2 {
		h.Set(headers.NameConnection, headers.ValueKeepAlive)
	}
	return h
}

func (c *Channel) keepAlive(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.Comment("keep-alive"); err != nil {
				return
			}
		}
	}
}

// onClose registers fn to run on Close. If the channel is already closed
// fn runs immediately.
func (c *Channel) onClose(fn func() error) {
	c.cleanupMtx.Lock()
	if c.closed.Load() {
		c.cleanupMtx.Unlock()
		fn()
		return
	}
	c.cleanups = append(c.cleanups, fn)
	c.cleanupMtx.Unlock()
}

// Closed reports whether the channel has been closed. Listeners check it
// on entry and again after anything that blocks.
func (c *Channel) Closed() bool {
	return c.closed.Load()
}

// Done is closed once Close has finished running its cleanups
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close stops the channel, removes its listeners and ends the response.
// It is safe to call more than once and from any goroutine. Close never
// waits on a client that stopped reading for longer than twice closeGrace,
// and no event is written once it has begun.
func (c *Channel) Close() error {
	c.cleanupMtx.Lock()
	if c.closed.Swap(true) {
		c.cleanupMtx.Unlock()
		<-c.done
		return nil
	}
	cleanups, end := c.cleanups, c.end
	c.cleanups, c.end = nil, nil
	c.cleanupMtx.Unlock()

	var result *multierror.Error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if end != nil {
		if err := c.endAfterWrite(end); err != nil {
			result = multierror.Append(result, err)
		}
	}
	close(c.done)
	return result.ErrorOrNil()
}

// endAfterWrite runs end once no write is in flight. A write still running
// after closeGrace has its deadline moved to now. If the writer cannot be
// interrupted, end is left to the goroutine waiting on it.
func (c *Channel) endAfterWrite(end func() error) error {
	ended := make(chan struct{})
	var err error
	go func() {
		c.writeMtx.Lock()
		defer c.writeMtx.Unlock()
		c.s.SetWriteDeadline(time.Now().Add(closeGrace))
		err = end()
		close(ended)
	}()
	select {
	case <-ended:
		return err
	case <-time.After(closeGrace):
	}
	c.s.SetWriteDeadline(time.Now())
	select {
	case <-ended:
		return err
	case <-time.After(closeGrace):
		c.log.Warn("sse channel closed with a write still in flight", logging.Pairs{
			"path": c.s.URL().Path,
		})
		return ErrWriteStalled
	}
}

// Subscribe relays the named bus event to fn for as long as the channel is
// open. fn is skipped once the channel is closed, and a failure inside fn
// closes the channel instead of failing the emit for other listeners.
func (c *Channel) Subscribe(name events.Name, fn func(ctx context.Context, payload any) error) {
	if c.bus == nil {
		return
	}
	off := c.bus.On(name, func(ctx context.Context, payload any) error {
		if c.closed.Load() {
			return nil
		}
		if err := fn(ctx, payload); err != nil {
			c.log.Debug("closing sse channel after listener error", logging.Pairs{
				"name":   string(name),
				"detail": err,
			})
			c.Close()
		}
		return nil
	})
	c.onClose(func() error { off(); return nil })
}

// Send writes ev. Invalid fields are rejected before any byte is written.
func (c *Channel) Send(ev Event) error {
	if strings.ContainsAny(ev.Name, "\r\n") || strings.ContainsAny(ev.ID, "\r\n") {
		return ErrInvalidField
	}
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	if ev.Name != "" {
		b.WriteString("event: " + ev.Name + "\n")
	}
	b.WriteString("data: ")
	b.Write(data)
	b.WriteByte('\n')
	if ev.ID != "" {
		b.WriteString("id: " + ev.ID + "\n")
	}
	if ev.Retry > 0 {
		b.WriteString("retry: " + strconv.FormatInt(ev.Retry.Milliseconds(), 10) + "\n")
	}
	b.WriteByte('\n')
	return c.write(b.Bytes())
}

// Comment writes a comment line, which clients ignore
func (c *Channel) Comment(text string) error {
	if strings.ContainsAny(text, "\r\n") {
		return ErrInvalidField
	}
	return c.write([]byte(": " + text + "\n\n"))
}

func (c *Channel) write(b []byte) error {
	c.writeMtx.Lock()
	if c.closed.Load() {
		c.writeMtx.Unlock()
		return ErrClosed
	}
	if c.writeTimeout > 0 {
		c.s.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.s.Write(b)
	if err == nil {
		err = c.s.Flush()
	}
	if c.writeTimeout > 0 && err == nil {
		c.s.SetWriteDeadline(time.Time{})
	}
	c.writeMtx.Unlock()
	if err != nil {
		c.Close()
	}
	return err
}
