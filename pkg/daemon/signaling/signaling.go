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

// Package signaling waits for the process signals that stop or reload the
// daemon
package signaling

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Wait blocks until ctx is done or SIGINT or SIGTERM arrives. onHup is
// called for each SIGHUP.
func Wait(ctx context.Context, onHup func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				if onHup != nil {
					onHup()
				}
			case syscall.SIGINT, syscall.SIGTERM:
				return
			}
		}
	}
}
