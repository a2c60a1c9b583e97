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

// Package registration builds the configured store implementation
package registration

import (
	"context"
	"fmt"
	"time"

	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/store"
	"github.com/wikiserv/wikiserv/pkg/store/badger"
	"github.com/wikiserv/wikiserv/pkg/store/bbolt"
	"github.com/wikiserv/wikiserv/pkg/store/memory"
	"github.com/wikiserv/wikiserv/pkg/store/options"
	"github.com/wikiserv/wikiserv/pkg/store/providers"
	"github.com/wikiserv/wikiserv/pkg/store/redis"
)

// Reaper is implemented by stores that do not expire entries on their own
type Reaper interface {
	Reap() int
}

// New returns a connected Store based on the provided options
func New(o *options.Options) (store.Store, error) {
	if o == nil {
		o = options.New()
	}
	var s store.Store
	switch providers.Names[o.Provider] {
	case providers.RedisID:
		s = redis.New(o.Redis)
	case providers.BBoltID:
		s = bbolt.New(o.BBolt)
	case providers.BadgerDBID:
		s = badger.New(o.Badger)
	default:
		s = memory.New()
	}
	if err := s.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s store: %w", o.Provider, err)
	}
	return s, nil
}

// RunReaper periodically reaps s until ctx is done. It returns immediately
// when s expires entries itself.
func RunReaper(ctx context.Context, s store.Store, every time.Duration, lg logging.Logger) {
	r, ok := s.(Reaper)
	if !ok || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Reap(); n > 0 {
				lg.Debug("reaped expired store entries", logging.Pairs{"count": n})
			}
		}
	}
}
