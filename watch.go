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

package xdsclient

import (
	"sync"

	"github.com/projectcontour/xdsclient/internal/xdsclient/buffer"
	"github.com/projectcontour/xdsclient/internal/xdsclient/xdsresource"
)

// Resource is the set of typed views Watch may be instantiated with. It is
// closed over the four resource kinds this module understands; adding a
// new kind means adding a decoder in xdsresource and a case in
// decoderFor.
type Resource interface {
	xdsresource.Listener | xdsresource.RouteConfiguration | xdsresource.Cluster | xdsresource.ClusterLoadAssignment
}

// Update is the tagged union of events a Watcher delivers: SetUpdate on a
// successfully decoded resource, ErrorUpdate on a decode or delivery
// failure, and RemoveUpdate, reserved for future use (the core never
// constructs one; see spec's open question on resource removal under
// State-of-the-World).
type Update[T any] interface {
	isUpdate()
}

// SetUpdate reports a new value for the watched resource.
type SetUpdate[T any] struct{ Value T }

func (SetUpdate[T]) isUpdate() {}

// RemoveUpdate reports the watched resource no longer exists. The core
// never emits this today.
type RemoveUpdate[T any] struct{}

func (RemoveUpdate[T]) isUpdate() {}

// ErrorUpdate reports a failure specific to the watched resource, most
// commonly a decode failure. The session continues; further updates may
// still arrive.
type ErrorUpdate[T any] struct{ Err error }

func (ErrorUpdate[T]) isUpdate() {}

// Watcher is the caller-visible handle returned by Watch: a live sequence
// of updates plus a synchronous accessor for the last-observed value.
type Watcher[T any] struct {
	mu   sync.Mutex
	last T
	ok   bool

	queue *buffer.Unbounded[Update[T]]
	ch    chan Update[T]
}

func newWatcher[T any]() *Watcher[T] {
	w := &Watcher[T]{
		queue: buffer.NewUnbounded[Update[T]](),
		ch:    make(chan Update[T]),
	}
	go w.pump()
	return w
}

// pump forwards the internal unbounded queue onto the channel Updates
// returns, translating the buffer's Get/Load protocol into an ordinary
// receive-only channel so callers never see it.
func (w *Watcher[T]) pump() {
	defer close(w.ch)
	for {
		select {
		case u := <-w.queue.Get():
			w.queue.Load()
			w.ch <- u
		case <-w.queue.Closed():
			w.drain()
			return
		}
	}
}

func (w *Watcher[T]) drain() {
	for {
		select {
		case u := <-w.queue.Get():
			w.queue.Load()
			w.ch <- u
		default:
			return
		}
	}
}

// Updates returns the channel on which this watcher's events are
// delivered, in the order the server emitted the resources they came
// from. The channel is closed once the watcher is dropped (see Close).
func (w *Watcher[T]) Updates() <-chan Update[T] {
	return w.ch
}

// Get returns the most recently observed value, or the zero value and
// false if none has arrived yet. It may be called concurrently with the
// stream being consumed.
func (w *Watcher[T]) Get() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.ok
}

// Close stops new updates from being queued for this watcher; updates
// already queued are still delivered on Updates before the channel is
// closed. The worker retains its
// handler reference (handler sends become silent no-ops) for the
// lifetime of the session, matching the core's contract that there is no
// unwatch operation.
func (w *Watcher[T]) Close() {
	w.queue.Close()
}

func (w *Watcher[T]) setLast(v T) {
	w.mu.Lock()
	w.last = v
	w.ok = true
	w.mu.Unlock()
}

// handlerAdapter bridges the worker's untyped ResourceHandler interface to
// a typed Watcher: it owns the decoder for T and the watcher's queue, so
// the worker itself never needs to know T.
type handlerAdapter[T any] struct {
	decoder xdsresource.Decoder[T]
	watcher *Watcher[T]
}

func (h *handlerAdapter[T]) OnUpdate(raw []byte) error {
	v, err := h.decoder.Decode(raw)
	if err != nil {
		h.watcher.queue.Put(ErrorUpdate[T]{Err: err})
		return err
	}
	h.watcher.setLast(v)
	h.watcher.queue.Put(SetUpdate[T]{Value: v})
	return nil
}

func (h *handlerAdapter[T]) OnError(err error) {
	h.watcher.queue.Put(ErrorUpdate[T]{Err: err})
}

// Watch registers a watch for name against type T's resource kind and
// returns a Watcher delivering its updates. The watch is sent to the
// worker asynchronously; a non-nil error here means the request could not
// be enqueued at all (e.g. the client is already closed), not that the
// resource was rejected by the server.
func Watch[T Resource](c *Client, name string) (*Watcher[T], error) {
	decoder := decoderFor[T]()
	w := newWatcher[T]()
	handler := &handlerAdapter[T]{decoder: decoder, watcher: w}

	if err := c.worker.Watch(decoder.TypeURL(), []string{name}, handler); err != nil {
		return nil, &Error{Kind: KindWatch, Err: err}
	}
	return w, nil
}

// decoderFor resolves T's decoder via a type switch over its zero value.
// Go generics have no notion of an associated function per type
// parameter, so this closed type set is matched at the one call site that
// needs it, the same way a Rust `match` would dispatch on a type tag.
func decoderFor[T Resource]() xdsresource.Decoder[T] {
	var zero T
	switch any(zero).(type) {
	case xdsresource.Listener:
		return any(xdsresource.ListenerDecoder{}).(xdsresource.Decoder[T])
	case xdsresource.RouteConfiguration:
		return any(xdsresource.RouteConfigurationDecoder{}).(xdsresource.Decoder[T])
	case xdsresource.Cluster:
		return any(xdsresource.ClusterDecoder{}).(xdsresource.Decoder[T])
	case xdsresource.ClusterLoadAssignment:
		return any(xdsresource.ClusterLoadAssignmentDecoder{}).(xdsresource.Decoder[T])
	default:
		panic("xdsclient: unsupported resource kind")
	}
}
