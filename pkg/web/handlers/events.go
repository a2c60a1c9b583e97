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

package handlers

import (
	"context"
	"net/http"

	"github.com/wikiserv/wikiserv/pkg/events"
	werrors "github.com/wikiserv/wikiserv/pkg/web/errors"
	"github.com/wikiserv/wikiserv/pkg/web/request"
	"github.com/wikiserv/wikiserv/pkg/web/sse"
)

// Events streams tiddler change notifications until the client goes away
// or the process exits. The optional bag query parameter limits the
// stream to one bag. HEAD gets the stream headers only.
func (h *Handlers) Events(st *request.State) error {
	if st.Streamer.Method() == http.MethodHead {
		return sse.Head(st.Streamer)
	}
	bag := st.QueryParams.Get("bag")
	c, err := sse.Open(st.Streamer, st.Bus, h.opts.SSE)
	if err != nil {
		return err
	}
	relay := func(name events.Name) {
		c.Subscribe(name, func(_ context.Context, payload any) error {
			tc, ok := payload.(events.TiddlerChange)
			if !ok {
				return nil
			}
			if bag != "" && tc.Bag != bag {
				return nil
			}
			return c.Send(sse.Event{Name: string(name), Data: tc})
		})
	}
	relay(events.TiddlerSaved)
	relay(events.TiddlerDeleted)
	<-c.Done()
	return werrors.ErrStreamEnded
}
