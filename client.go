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

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	internalxdsclient "github.com/projectcontour/xdsclient/internal/xdsclient"
	"github.com/projectcontour/xdsclient/internal/xdsclient/runtime"
	"github.com/projectcontour/xdsclient/internal/xdsclient/transport"
)

// Client is a running xDS session: a single ADS stream, its subscription
// table, and the reconnect loop that keeps it alive. Construct one with
// New and call Close when done with it.
type Client struct {
	worker *internalxdsclient.Worker
	cancel context.CancelFunc
}

// New dials cfg.ServerURI and starts the session worker in the
// background. The returned Client is usable immediately: Watch may be
// called before the underlying stream has finished connecting.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ServerURI == "" {
		return nil, &Error{Kind: KindConfig, Err: errors.New("missing server URI")}
	}

	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	factory, err := transport.NewGRPCFactory(transport.GRPCOptions{
		ServerURI: cfg.ServerURI,
		NodeID:    nodeID,
		TLS:       convertTLSConfig(cfg.TLS),
		Registry:  cfg.Registry,
		Log:       logEntry(log),
	})
	if err != nil {
		return nil, &Error{Kind: KindConfig, Err: err}
	}

	worker := internalxdsclient.NewWorker(runtime.Go{}, factory, nodeID, connectTimeout, log)

	runCtx, cancel := context.WithCancel(ctx)
	rt := runtime.Go{}
	rt.Spawn(func() { worker.Run(runCtx) })

	return &Client{worker: worker, cancel: cancel}, nil
}

// Close ends the session: its command queue is closed, which tells the
// worker's run loop to stop after its current stream operation, and the
// worker's context is cancelled as a backstop against a stream stuck
// without traffic.
func (c *Client) Close() error {
	c.worker.Close()
	c.cancel()
	return nil
}

func convertTLSConfig(t *TLSConfig) *transport.TLSConfig {
	if t == nil {
		return nil
	}
	return &transport.TLSConfig{
		CACertPEM:     t.CACertPEM,
		ClientCertPEM: t.ClientCertPEM,
		ClientKeyPEM:  t.ClientKeyPEM,
		DomainName:    t.DomainName,
	}
}

// logEntry adapts a logrus.FieldLogger to the *logrus.Entry the gRPC
// logging interceptor requires.
func logEntry(log logrus.FieldLogger) *logrus.Entry {
	switch l := log.(type) {
	case *logrus.Entry:
		return l
	case *logrus.Logger:
		return logrus.NewEntry(l)
	default:
		return logrus.NewEntry(logrus.StandardLogger())
	}
}
