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

// Package events provides the ordered, awaited publish/subscribe bus that
// connects request handling, long-lived channels and process shutdown.
package events

import (
	"context"
	"fmt"
	"sync"
)

// Name is the name of an event on the Bus
type Name string

const (
	// RequestMiddleware fires before the Streamer is built, with a *RawRequest
	RequestMiddleware Name = "request.middleware"
	// RequestStreamer fires once the Streamer is built
	RequestStreamer Name = "request.streamer"
	// RequestState fires once the request state and body are ready
	RequestState Name = "request.state"
	// RequestHandle fires immediately before the matched chain is dispatched
	RequestHandle Name = "request.handle"
	// RequestFallback fires when the matched chain completed without sending
	RequestFallback Name = "request.fallback"
	// Exit fires once when the process begins shutting down
	Exit Name = "exit"
	// TiddlerSaved fires after a tiddler is written to a bag
	TiddlerSaved Name = "tiddler.saved"
	// TiddlerDeleted fires after a tiddler is removed from a bag
	TiddlerDeleted Name = "tiddler.deleted"
)

// Listener is a callback registered for an event. Returning an error aborts
// the Emit for all remaining listeners.
type Listener func(ctx context.Context, payload any) error

type entry struct {
	id uint64
	fn Listener
}

// Bus is an ordered publish/subscribe mechanism. The zero value is not
// usable; create one with New.
type Bus struct {
	mtx       sync.RWMutex
	listeners map[Name][]entry
	seq       uint64
}

// New returns a new, empty Bus
func New() *Bus {
	return &Bus{listeners: make(map[Name][]entry)}
}

// On registers fn for the named event and returns a func that removes it.
// The returned func is safe to call more than once.
func (b *Bus) On(name Name, fn Listener) func() {
	b.mtx.Lock()
	b.seq++
	id := b.seq
	b.listeners[name] = append(b.listeners[name], entry{id: id, fn: fn})
	b.mtx.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() { b.off(name, id) })
	}
}

func (b *Bus) off(name Name, id uint64) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	l := b.listeners[name]
	for i, e := range l {
		if e.id == id {
			// copy so that in-flight emits keep their snapshot intact
			n := make([]entry, 0, len(l)-1)
			n = append(n, l[:i]...)
			n = append(n, l[i+1:]...)
			if len(n) == 0 {
				delete(b.listeners, name)
			} else {
				b.listeners[name] = n
			}
			return
		}
	}
}

// Emit invokes every listener registered for name, in registration order,
// one at a time. The first listener error stops the emit and is returned.
// Listeners added or removed during an Emit do not affect it.
func (b *Bus) Emit(ctx context.Context, name Name, payload any) error {
	b.mtx.RLock()
	snapshot := b.listeners[name]
	b.mtx.RUnlock()
	for _, e := range snapshot {
		if err := e.fn(ctx, payload); err != nil {
			return fmt.Errorf("%s listener: %w", name, err)
		}
	}
	return nil
}

// ListenerCount returns the number of listeners registered for name
func (b *Bus) ListenerCount(name Name) int {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return len(b.listeners[name])
}

// Subscribe registers a listener that receives payloads of type T. A payload
// of any other type fails the emit with ErrPayloadType.
func Subscribe[T any](b *Bus, name Name, fn func(context.Context, T) error) func() {
	return b.On(name, func(ctx context.Context, payload any) error {
		v, ok := payload.(T)
		if !ok {
			return fmt.Errorf("%w: got %T", ErrPayloadType, payload)
		}
		return fn(ctx, v)
	})
}
