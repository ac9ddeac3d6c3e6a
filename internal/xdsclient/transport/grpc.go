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

package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	v3corepb "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	v3discoverygrpc "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/anypb"
)

// adsStream is the subset of the generated streaming client this adapter
// drives.
type adsStream = v3discoverygrpc.AggregatedDiscoveryService_StreamAggregatedResourcesClient

// TLSConfig carries the material needed to establish an mTLS channel to the
// management server. mTLS is enabled iff both ClientCertPEM and
// ClientKeyPEM are supplied, matching the contour cli's `dial()`: all three
// of CA/cert/key are optional together, but cert+key must arrive as a pair.
type TLSConfig struct {
	CACertPEM     []byte
	ClientCertPEM []byte
	ClientKeyPEM  []byte
	DomainName    string
}

// GRPCOptions configures a gRPC-backed Factory.
type GRPCOptions struct {
	// ServerURI is the management server address, as accepted by
	// grpc.NewClient.
	ServerURI string
	// NodeID identifies this client in every outgoing request.
	NodeID string
	// TLS, if non-nil, enables a TLS (or mTLS) channel instead of an
	// insecure one.
	TLS *TLSConfig
	// Registry, if non-nil, registers gRPC client metrics (connection and
	// per-RPC counters) the same way the teacher's xds server registers
	// grpc_prometheus.ServerMetrics in internal/xds/server.go.
	Registry *prometheus.Registry
	// Log, if non-nil, receives one log entry per ADS stream event (the
	// same grpc-ecosystem interceptor family the teacher uses for its
	// e2e gRPC retry client, applied here to the stream lifecycle instead
	// of call retries).
	Log *logrus.Entry
}

// NewGRPCFactory dials the management server at opts.ServerURI and returns
// a Factory producing ADS streams over that channel. The channel is shared
// across every stream the factory creates (matching grpc-go's Transport,
// which dials once in New and reuses the ClientConn across reconnects).
func NewGRPCFactory(opts GRPCOptions) (*GRPCFactory, error) {
	if opts.ServerURI == "" {
		return nil, errors.New("transport: missing server URI")
	}

	dialOpts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			// Matches grpc-go's own xDS transport: a five minute ping
			// interval with a generous timeout, the "sane defaults"
			// every gRPC xDS client implementation settled on.
			Time:    5 * time.Minute,
			Timeout: 20 * time.Second,
		}),
	}

	creds, err := dialCredentials(opts.TLS)
	if err != nil {
		return nil, errors.Wrap(err, "transport: building TLS credentials")
	}
	dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))

	if opts.Registry != nil {
		metrics := grpc_prometheus.NewClientMetrics()
		opts.Registry.MustRegister(metrics)
		dialOpts = append(dialOpts,
			grpc.WithChainStreamInterceptor(metrics.StreamClientInterceptor()),
			grpc.WithChainUnaryInterceptor(metrics.UnaryClientInterceptor()),
		)
	}

	if opts.Log != nil {
		dialOpts = append(dialOpts,
			grpc.WithChainStreamInterceptor(grpc_logrus.StreamClientInterceptor(opts.Log)),
		)
	}

	cc, err := grpc.NewClient(opts.ServerURI, dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: dialing management server %q", opts.ServerURI)
	}

	return &GRPCFactory{
		cc: cc,
		node: &v3corepb.Node{
			Id:            opts.NodeID,
			UserAgentName: "grpc",
			ClientFeatures: []string{
				"xds.v3",
			},
		},
	}, nil
}

func dialCredentials(tlsCfg *TLSConfig) (credentials.TransportCredentials, error) {
	if tlsCfg == nil {
		return insecure.NewCredentials(), nil
	}

	cfg := &tls.Config{ServerName: tlsCfg.DomainName} //nolint:gosec

	if len(tlsCfg.ClientCertPEM) != 0 || len(tlsCfg.ClientKeyPEM) != 0 {
		if len(tlsCfg.ClientCertPEM) == 0 || len(tlsCfg.ClientKeyPEM) == 0 {
			return nil, errors.New("transport: both client cert and client key are required for mTLS, or neither")
		}
		cert, err := tls.X509KeyPair(tlsCfg.ClientCertPEM, tlsCfg.ClientKeyPEM)
		if err != nil {
			return nil, errors.Wrap(err, "transport: parsing client certificate/key")
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if len(tlsCfg.CACertPEM) != 0 {
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(tlsCfg.CACertPEM); !ok {
			return nil, errors.New("transport: failed to parse CA certificate PEM")
		}
		cfg.RootCAs = pool
	}

	return credentials.NewTLS(cfg), nil
}

// GRPCFactory is the production transport.Factory, backed by a single
// shared *grpc.ClientConn.
type GRPCFactory struct {
	cc   *grpc.ClientConn
	node *v3corepb.Node
}

var _ Factory = (*GRPCFactory)(nil)

// outboundQueueCapacity is the bounded intermediate queue capacity the spec
// requires (">= 128"), matching the original tonic transport's
// tokio::sync::mpsc::channel(128).
const outboundQueueCapacity = 128

// CreateStream opens a new ADS stream. It returns immediately with the
// stream in a handshaking state; the underlying StreamAggregatedResources
// call is started at once by a background goroutine, not by the first Recv,
// and the first Send or Recv waits until that call has completed. Once the
// stream is ready, sends are queued into a bounded channel and written to
// the wire by a dedicated goroutine, so Send only backpressures the caller
// once that queue is full, rather than on every individual wire write.
func (f *GRPCFactory) CreateStream(ctx context.Context) (Stream, error) {
	client := v3discoverygrpc.NewAggregatedDiscoveryServiceClient(f.cc)

	ctx, cancel := context.WithCancel(ctx)
	ready := make(chan struct{})
	s := &grpcStream{
		node:    f.node,
		cancel:  cancel,
		ready:   ready,
		reqCh:   make(chan *v3discoverygrpc.DiscoveryRequest, outboundQueueCapacity),
		sendErr: make(chan error, 1),
	}

	go func() {
		defer close(ready)
		stream, err := client.StreamAggregatedResources(ctx, grpc.WaitForReady(true))
		s.stream, s.handshakeErr = stream, err
		if err != nil {
			return
		}
		go s.pump()
	}()

	return s, nil
}

// pump drains reqCh onto the wire until the stream errors or reqCh is
// closed.
func (s *grpcStream) pump() {
	for req := range s.reqCh {
		if err := s.stream.Send(req); err != nil {
			select {
			case s.sendErr <- errors.Wrap(err, "transport: sending discovery request"):
			default:
			}
			return
		}
	}
}

// Close releases the underlying ClientConn. Callers should only Close the
// factory once, after every stream it produced has also been closed.
func (f *GRPCFactory) Close() error {
	return f.cc.Close()
}

// grpcStream implements Stream by wrapping the generated ADS streaming
// client. Handshaking is lazy: the goroutine started in CreateStream
// populates stream/handshakeErr, and the first call to Send or Recv blocks
// on ready before touching either.
type grpcStream struct {
	node   *v3corepb.Node
	cancel context.CancelFunc

	ready        chan struct{}
	stream       adsStream
	handshakeErr error

	reqCh   chan *v3discoverygrpc.DiscoveryRequest
	sendErr chan error
}

func (s *grpcStream) Send(req Request) error {
	<-s.ready
	if s.handshakeErr != nil {
		return s.handshakeErr
	}
	select {
	case err := <-s.sendErr:
		return err
	default:
	}

	wire := &v3discoverygrpc.DiscoveryRequest{
		VersionInfo:   req.VersionInfo,
		Node:          s.node,
		ResourceNames: req.ResourceNames,
		TypeUrl:       req.TypeURL,
		ResponseNonce: req.ResponseNonce,
		ErrorDetail:   req.ErrorDetail,
	}
	select {
	case s.reqCh <- wire:
		return nil
	case err := <-s.sendErr:
		return err
	}
}

func (s *grpcStream) Recv() (Response, error) {
	<-s.ready
	if s.handshakeErr != nil {
		return Response{}, errors.Wrap(s.handshakeErr, "transport: establishing ADS stream")
	}

	resp, err := s.stream.Recv()
	if err != nil {
		return Response{}, errors.Wrap(err, "transport: receiving discovery response")
	}

	resources := make([][]byte, 0, len(resp.GetResources()))
	for _, any := range resp.GetResources() {
		resources = append(resources, unwrapAny(any))
	}

	return Response{
		TypeURL:     resp.GetTypeUrl(),
		VersionInfo: resp.GetVersionInfo(),
		Nonce:       resp.GetNonce(),
		Resources:   resources,
	}, nil
}

func (s *grpcStream) Close() {
	s.cancel()
}

func unwrapAny(a *anypb.Any) []byte {
	if a == nil {
		return nil
	}
	return a.GetValue()
}

// HostnameOrDefault returns the local hostname, or fallback if it can't be
// determined; used by the demo CLI to pick a reasonable default node ID.
func HostnameOrDefault(fallback string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fallback
	}
	return h
}
