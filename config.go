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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// defaultConnectTimeout is used when Config.ConnectTimeout is zero.
const defaultConnectTimeout = 5 * time.Second

// Config configures a Client.
type Config struct {
	// ServerURI is the management server address, as accepted by
	// grpc.NewClient (e.g. "dns:///xds.example.com:18000").
	ServerURI string
	// NodeID identifies this client to the management server.
	NodeID string
	// ConnectTimeout is the delay between reconnect attempts after a
	// stream failure. Defaults to 5 seconds if zero.
	ConnectTimeout time.Duration
	// TLS, if non-nil, enables a TLS (or mTLS) channel instead of an
	// insecure one.
	TLS *TLSConfig
	// Registry, if non-nil, registers gRPC client metrics into it.
	Registry *prometheus.Registry
	// Log receives the client's diagnostic output. Defaults to
	// logrus.StandardLogger() if nil.
	Log logrus.FieldLogger
}

// TLSConfig carries the material needed to establish an mTLS channel to
// the management server. mTLS is enabled iff both ClientCertPEM and
// ClientKeyPEM are supplied.
type TLSConfig struct {
	CACertPEM     []byte
	ClientCertPEM []byte
	ClientKeyPEM  []byte
	DomainName    string
}
