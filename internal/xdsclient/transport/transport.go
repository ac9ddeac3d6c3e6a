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

// Package transport defines the resource-type-agnostic ADS transport the
// session worker is built against, and a gRPC implementation of it.
//
// The session worker never sees protobuf wire messages directly: it deals
// only in the Request/Response shapes below, so that the wire codec and the
// gRPC/HTTP2 plumbing stay external collaborators, swappable in tests.
package transport

import (
	"context"

	statuspb "google.golang.org/genproto/googleapis/rpc/status"
)

// Request is an outgoing DiscoveryRequest, stripped to the fields the
// worker needs to populate. The Node fields required by the xDS transport
// protocol (user_agent_name, client_features) are added by the transport
// implementation, not by callers of Send.
type Request struct {
	// VersionInfo is the version of the config the client currently has for
	// TypeURL, or "" if none (or on the first request of a new stream).
	VersionInfo string
	// NodeID identifies this client to the management server.
	NodeID string
	// ResourceNames is the current union of all watched names for TypeURL.
	ResourceNames []string
	// TypeURL identifies the resource type being requested or ACKed.
	TypeURL string
	// ResponseNonce echoes the nonce of the response being ACKed, or "" for
	// a subscription request that isn't acknowledging anything yet.
	ResponseNonce string
	// ErrorDetail is populated only for a NACK. The core never sets this;
	// the field exists so the wire shape can express NACKs if a future
	// revision adds support for them.
	ErrorDetail *statuspb.Status
}

// Response is an incoming DiscoveryResponse, with each resource's Any
// already unwrapped to its inner value bytes (the outer type URL is
// authoritative and is reported once per response, not per resource).
type Response struct {
	// TypeURL identifies the resource type of every resource in Resources.
	TypeURL string
	// VersionInfo is the version the server assigned to this response.
	VersionInfo string
	// Nonce identifies this response; echoed back by the client's ACK.
	Nonce string
	// Resources holds each resource's unwrapped payload bytes.
	Resources [][]byte
}

// Stream is a paired duplex: Send pushes requests out, Recv pulls responses
// in FIFO order. The server's ordering guarantee (no reordering in the
// transport) is the caller's to rely on; Stream makes no promises beyond
// forwarding it.
type Stream interface {
	// Send enqueues req to be written to the wire. It does not block for
	// the write itself; the gRPC implementation backpressures once its
	// outbound queue (capacity 128) is full.
	Send(req Request) error
	// Recv blocks until the next response is available, the stream ends
	// (io.EOF-shaped as a nil error won't happen: see RecvMsg contract),
	// or ctx passed to CreateStream is done. A non-nil error here always
	// means the stream is no longer usable.
	Recv() (Response, error)
	// Close releases any resources held by the stream.
	Close()
}

// Factory creates fresh ADS streams. A Factory is expected to be reused
// across many streams over the worker's lifetime.
type Factory interface {
	// CreateStream returns a new stream, or an error if one could not be
	// established. The returned stream may still be handshaking: in the
	// gRPC implementation the first Send or Recv waits for it to be ready.
	CreateStream(ctx context.Context) (Stream, error)
}
