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

// Package xdsclient implements the SotW ADS session worker: the state
// machine that owns the discovery stream, multiplexes per-type-URL
// subscriptions, and drives the request/ACK protocol. It is untyped over
// resource payloads — every handler it invokes takes raw bytes and knows
// how to decode its own kind, so this package never imports xdsresource's
// concrete decoders.
package xdsclient

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/projectcontour/xdsclient/internal/xdsclient/buffer"
	"github.com/projectcontour/xdsclient/internal/xdsclient/runtime"
	"github.com/projectcontour/xdsclient/internal/xdsclient/transport"
)

// ResourceHandler is notified of every resource update and decode error for
// the type URL it was registered against. Implementations must not block.
type ResourceHandler interface {
	// OnUpdate is called once per resource payload in a response, in the
	// order the server sent them. A returned error is logged and does not
	// abort the rest of the batch.
	OnUpdate(raw []byte) error
	// OnError reports a failure that is not specific to a single resource
	// payload. The Worker itself never calls it: decode errors are reported
	// through OnUpdate's return, and stream failures lead to a reconnect
	// without notifying handlers.
	OnError(err error)
}

// Command is a message sent from the facade to the worker over its
// unbounded command queue.
type Command interface {
	isCommand()
}

// WatchCommand registers handler against typeURL for the given resource
// names, merging into any existing subscription for that type URL.
type WatchCommand struct {
	TypeURL string
	Names   []string
	Handler ResourceHandler
}

func (WatchCommand) isCommand() {}

// subscription is the per-type-URL state the worker owns exclusively: the
// union of watched names, the handlers to invoke on update, and the most
// recently accepted (version, nonce) pair.
type subscription struct {
	names    map[string]struct{}
	handlers []ResourceHandler
	version  string
	nonce    string
}

func newSubscription() *subscription {
	return &subscription{names: make(map[string]struct{})}
}

func (s *subscription) nameList() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	return out
}

// Worker is the SotW session worker. A Worker is only ever driven by its
// own Run goroutine; its subscription table requires no locking because
// only that goroutine ever touches it.
type Worker struct {
	runtime        runtime.Runtime
	factory        transport.Factory
	nodeID         string
	connectTimeout time.Duration
	log            logrus.FieldLogger

	cmds *buffer.Unbounded[Command]

	closeOnce sync.Once
}

// NewWorker builds a Worker. The returned Worker does nothing until Run is
// called.
func NewWorker(rt runtime.Runtime, factory transport.Factory, nodeID string, connectTimeout time.Duration, log logrus.FieldLogger) *Worker {
	return &Worker{
		runtime:        rt,
		factory:        factory,
		nodeID:         nodeID,
		connectTimeout: connectTimeout,
		log:            log,
		cmds:           buffer.NewUnbounded[Command](),
	}
}

// Watch enqueues a WatchCommand for the worker to process. It fails
// synchronously only if the worker has already been closed.
func (w *Worker) Watch(typeURL string, names []string, handler ResourceHandler) error {
	select {
	case <-w.cmds.Closed():
		return errors.New("xdsclient: worker is closed")
	default:
	}
	w.cmds.Put(WatchCommand{TypeURL: typeURL, Names: names, Handler: handler})
	return nil
}

// Close ends the session: the command queue is closed, which the worker's
// run loop observes the next time it would otherwise block on it.
func (w *Worker) Close() {
	w.closeOnce.Do(w.cmds.Close)
}

// Run drives the worker's outer reconnect loop until ctx is done or Close
// is called. It does not return until the session has ended.
func (w *Worker) Run(ctx context.Context) {
	subs := make(map[string]*subscription)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.cmds.Closed():
			return
		default:
		}

		stream, err := w.factory.CreateStream(ctx)
		if err != nil {
			w.log.WithError(err).Warn("xdsclient: creating ADS stream")
			if !w.sleep(ctx) {
				return
			}
			continue
		}

		if err := w.work(ctx, stream, subs); err != nil {
			w.log.WithError(err).Warn("xdsclient: ADS stream ended")
			if !w.sleep(ctx) {
				return
			}
			continue
		}

		return
	}
}

func (w *Worker) sleep(ctx context.Context) bool {
	select {
	case <-w.runtime.Sleep(ctx, w.connectTimeout):
		return true
	case <-ctx.Done():
		return false
	}
}

// work drives a single stream from its initial requests through steady
// state, until the stream errors or the session ends. subs is shared
// across reconnects; only each subscription's (version, nonce) is reset
// for the new stream, per spec: empty version and empty nonce are sent on
// the first post-reconnect request for every type URL already subscribed.
func (w *Worker) work(ctx context.Context, stream transport.Stream, subs map[string]*subscription) error {
	defer stream.Close()

	for typeURL, sub := range subs {
		sub.version, sub.nonce = "", ""
		if err := stream.Send(transport.Request{
			NodeID:        w.nodeID,
			ResourceNames: sub.nameList(),
			TypeURL:       typeURL,
		}); err != nil {
			return errors.Wrap(err, "sending initial request")
		}
	}

	respCh := make(chan transport.Response)
	errCh := make(chan error, 1)
	w.runtime.Spawn(func() {
		for {
			resp, err := stream.Recv()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case respCh <- resp:
			case <-ctx.Done():
				return
			}
		}
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.cmds.Closed():
			return nil

		case cmd := <-w.cmds.Get():
			w.cmds.Load()
			if err := w.handleCommand(stream, subs, cmd); err != nil {
				return err
			}

		case resp := <-respCh:
			if err := w.handleResponse(stream, subs, resp); err != nil {
				return err
			}

		case err := <-errCh:
			return errors.Wrap(err, "receiving discovery response")
		}
	}
}

func (w *Worker) handleCommand(stream transport.Stream, subs map[string]*subscription, cmd Command) error {
	watch, ok := cmd.(WatchCommand)
	if !ok {
		return nil
	}

	sub, ok := subs[watch.TypeURL]
	if !ok {
		sub = newSubscription()
		subs[watch.TypeURL] = sub
	}
	for _, name := range watch.Names {
		sub.names[name] = struct{}{}
	}
	sub.handlers = append(sub.handlers, watch.Handler)

	return stream.Send(transport.Request{
		NodeID:        w.nodeID,
		ResourceNames: sub.nameList(),
		TypeURL:       watch.TypeURL,
		VersionInfo:   sub.version,
		ResponseNonce: sub.nonce,
	})
}

func (w *Worker) handleResponse(stream transport.Stream, subs map[string]*subscription, resp transport.Response) error {
	sub, ok := subs[resp.TypeURL]
	if !ok {
		// Defensive: the server sent a response for a type URL we never
		// subscribed to. Should not happen in normal operation.
		return nil
	}

	for _, raw := range resp.Resources {
		for _, handler := range sub.handlers {
			if err := handler.OnUpdate(raw); err != nil {
				w.log.WithError(err).WithField("type_url", resp.TypeURL).Warn("xdsclient: resource handler error")
			}
		}
	}

	sub.version, sub.nonce = resp.VersionInfo, resp.Nonce

	return stream.Send(transport.Request{
		NodeID:        w.nodeID,
		ResourceNames: sub.nameList(),
		TypeURL:       resp.TypeURL,
		VersionInfo:   sub.version,
		ResponseNonce: sub.nonce,
	})
}
