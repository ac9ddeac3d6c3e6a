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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectcontour/xdsclient/internal/xdsclient/transport"
)

const testTimeout = 2 * time.Second

// fakeRuntime spawns with a real goroutine (the worker's own concurrency
// still needs to be exercised) but sleeps instantly, so reconnect retries
// in tests don't wait on a wall clock.
type fakeRuntime struct{}

func (fakeRuntime) Spawn(fn func()) { go fn() }

func (fakeRuntime) Sleep(ctx context.Context, _ time.Duration) <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}

type recvResult struct {
	resp transport.Response
	err  error
}

// fakeStream is a transport.Stream whose Send/Recv are driven entirely by
// the test through channels.
type fakeStream struct {
	sent chan transport.Request
	recv chan recvResult

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		sent:   make(chan transport.Request, 16),
		recv:   make(chan recvResult, 16),
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) Send(req transport.Request) error {
	select {
	case s.sent <- req:
		return nil
	case <-s.closed:
		return errors.New("fakeStream: closed")
	}
}

func (s *fakeStream) Recv() (transport.Response, error) {
	select {
	case r := <-s.recv:
		return r.resp, r.err
	case <-s.closed:
		return transport.Response{}, errors.New("fakeStream: closed")
	}
}

func (s *fakeStream) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

var _ transport.Stream = (*fakeStream)(nil)

// fakeFactory hands out pre-queued streams one at a time, simulating a
// management server that accepts a new connection after each one drops.
type fakeFactory struct {
	streams chan *fakeStream
}

func newFakeFactory(streams ...*fakeStream) *fakeFactory {
	ch := make(chan *fakeStream, len(streams))
	for _, s := range streams {
		ch <- s
	}
	return &fakeFactory{streams: ch}
}

func (f *fakeFactory) CreateStream(ctx context.Context) (transport.Stream, error) {
	select {
	case s := <-f.streams:
		return s, nil
	default:
		return nil, errors.New("fakeFactory: no more streams configured")
	}
}

var _ transport.Factory = (*fakeFactory)(nil)

// fakeHandler records every OnUpdate/OnError call it receives.
type fakeHandler struct {
	updates chan []byte
	errs    chan error
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{
		updates: make(chan []byte, 16),
		errs:    make(chan error, 16),
	}
}

func (h *fakeHandler) OnUpdate(raw []byte) error {
	h.updates <- raw
	return nil
}

func (h *fakeHandler) OnError(err error) {
	h.errs <- err
}

func recvRequest(t *testing.T, stream *fakeStream) transport.Request {
	t.Helper()
	select {
	case r := <-stream.sent:
		return r
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for outbound request")
		return transport.Request{}
	}
}

func assertNoRequest(t *testing.T, stream *fakeStream) {
	t.Helper()
	select {
	case r := <-stream.sent:
		t.Fatalf("unexpected outbound request: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWorkerInitialWatchRequest(t *testing.T) {
	stream := newFakeStream()
	factory := newFakeFactory(stream)
	w := NewWorker(fakeRuntime{}, factory, "node-1", time.Millisecond, logrus.StandardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	handler := newFakeHandler()
	require.NoError(t, w.Watch("type.A", []string{"L"}, handler))

	req := recvRequest(t, stream)
	assert.Equal(t, "type.A", req.TypeURL)
	assert.Equal(t, []string{"L"}, req.ResourceNames)
	assert.Equal(t, "", req.VersionInfo)
	assert.Equal(t, "", req.ResponseNonce)
	assert.Equal(t, "node-1", req.NodeID)
}

func TestWorkerDispatchThenAck(t *testing.T) {
	stream := newFakeStream()
	factory := newFakeFactory(stream)
	w := NewWorker(fakeRuntime{}, factory, "node-1", time.Millisecond, logrus.StandardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	handler := newFakeHandler()
	require.NoError(t, w.Watch("type.A", []string{"L"}, handler))
	recvRequest(t, stream) // initial subscribe request

	stream.recv <- recvResult{resp: transport.Response{
		TypeURL:     "type.A",
		VersionInfo: "v1",
		Nonce:       "n1",
		Resources:   [][]byte{[]byte("payload")},
	}}

	select {
	case raw := <-handler.updates:
		assert.Equal(t, []byte("payload"), raw)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for handler dispatch")
	}

	ack := recvRequest(t, stream)
	assert.Equal(t, "v1", ack.VersionInfo)
	assert.Equal(t, "n1", ack.ResponseNonce)
	assert.Equal(t, []string{"L"}, ack.ResourceNames)
}

func TestWorkerZeroResourcesStillAcks(t *testing.T) {
	stream := newFakeStream()
	factory := newFakeFactory(stream)
	w := NewWorker(fakeRuntime{}, factory, "node-1", time.Millisecond, logrus.StandardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	handler := newFakeHandler()
	require.NoError(t, w.Watch("type.A", []string{"L"}, handler))
	recvRequest(t, stream)

	stream.recv <- recvResult{resp: transport.Response{
		TypeURL:     "type.A",
		VersionInfo: "v1",
		Nonce:       "n1",
	}}

	ack := recvRequest(t, stream)
	assert.Equal(t, "v1", ack.VersionInfo)
	assert.Equal(t, "n1", ack.ResponseNonce)

	select {
	case raw := <-handler.updates:
		t.Fatalf("unexpected handler dispatch for zero-resource response: %v", raw)
	default:
	}
}

func TestWorkerResponseForUnknownTypeURLIsIgnored(t *testing.T) {
	stream := newFakeStream()
	factory := newFakeFactory(stream)
	w := NewWorker(fakeRuntime{}, factory, "node-1", time.Millisecond, logrus.StandardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	stream.recv <- recvResult{resp: transport.Response{
		TypeURL:     "type.unknown",
		VersionInfo: "v1",
		Nonce:       "n1",
		Resources:   [][]byte{[]byte("x")},
	}}

	assertNoRequest(t, stream)
}

func TestWorkerReconnectResetsVersionAndNonce(t *testing.T) {
	first := newFakeStream()
	second := newFakeStream()
	factory := newFakeFactory(first, second)
	w := NewWorker(fakeRuntime{}, factory, "node-1", time.Millisecond, logrus.StandardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	handler := newFakeHandler()
	require.NoError(t, w.Watch("type.A", []string{"L"}, handler))
	recvRequest(t, first)

	first.recv <- recvResult{resp: transport.Response{
		TypeURL:     "type.A",
		VersionInfo: "v1",
		Nonce:       "n1",
		Resources:   [][]byte{[]byte("payload")},
	}}
	<-handler.updates
	recvRequest(t, first) // the ACK for v1/n1

	// Simulate the stream dying; the worker should reconnect onto the
	// second pre-queued stream and resend L with empty version/nonce.
	first.recv <- recvResult{err: errors.New("stream reset by peer")}

	req := recvRequest(t, second)
	assert.Equal(t, "type.A", req.TypeURL)
	assert.Equal(t, []string{"L"}, req.ResourceNames)
	assert.Equal(t, "", req.VersionInfo)
	assert.Equal(t, "", req.ResponseNonce)
}

func TestWorkerCloseEndsSession(t *testing.T) {
	stream := newFakeStream()
	factory := newFakeFactory(stream)
	w := NewWorker(fakeRuntime{}, factory, "node-1", time.Millisecond, logrus.StandardLogger())

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	handler := newFakeHandler()
	require.NoError(t, w.Watch("type.A", []string{"L"}, handler))
	recvRequest(t, stream)

	w.Close()

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for Run to return after Close")
	}

	assert.Error(t, w.Watch("type.B", []string{"M"}, handler))
}
