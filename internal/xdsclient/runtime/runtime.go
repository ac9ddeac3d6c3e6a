// Copyright Project Contour Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package runtime abstracts the asynchronous primitives the session worker
// needs from the concrete goroutine runtime, so the worker can be driven by
// a synthetic clock in tests.
package runtime

import (
	"context"
	"time"
)

// Runtime spawns background work and produces timed wakeups. It exists so
// the session worker depends on an interface rather than bare `go` statements
// and `time.Timer`, the same way the original xds-client crate abstracted
// tokio behind a Runtime trait.
type Runtime interface {
	// Spawn launches fn in the background. Spawn must not block.
	Spawn(fn func())

	// Sleep returns a channel that is closed after d has elapsed, or when
	// ctx is done, whichever happens first. Cancelling ctx is the Go
	// equivalent of dropping the original's sleep future.
	Sleep(ctx context.Context, d time.Duration) <-chan struct{}
}

// Go is the production Runtime, backed by the goroutine scheduler and
// time.Timer. The zero value is ready to use.
type Go struct{}

var _ Runtime = Go{}

// Spawn launches fn in its own goroutine.
func (Go) Spawn(fn func()) {
	go fn()
}

// Sleep waits for d or for ctx to be done.
func (Go) Sleep(ctx context.Context, d time.Duration) <-chan struct{} {
	done := make(chan struct{})
	timer := time.NewTimer(d)
	go func() {
		defer close(done)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}()
	return done
}
