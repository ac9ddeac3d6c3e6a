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

// Package xdsconfig loads a client Config from an xDS bootstrap file: the
// JSON document real xDS clients (including gRPC's own) are virtually
// always constructed from, rather than a literal struct.
//
// This is a deliberately small subset of the real bootstrap schema: a
// single xds_servers entry, and channel_creds of type "insecure" or "tls"
// (with PEM material supplied inline rather than via
// certificate_providers). server_features and additional xds_servers
// entries are rejected rather than silently ignored. certificate_providers
// is not read: a document carrying it loads as if it were absent.
package xdsconfig

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Config is the parsed result of a bootstrap document, ready to be
// converted into an xdsclient.Config by the caller.
type Config struct {
	ServerURI string
	NodeID    string
	TLS       *TLSConfig
}

// TLSConfig mirrors xdsclient.TLSConfig; it is a distinct type so this
// package does not need to import the root package.
type TLSConfig struct {
	CACertPEM     []byte
	ClientCertPEM []byte
	ClientKeyPEM  []byte
	DomainName    string
}

type document struct {
	Node struct {
		ID string `json:"id"`
	} `json:"node"`
	XDSServers []server `json:"xds_servers"`
}

type server struct {
	ServerURI      string        `json:"server_uri"`
	ChannelCreds   []channelCred `json:"channel_creds"`
	ServerFeatures []string      `json:"server_features"`
}

type channelCred struct {
	Type          string `json:"type"`
	CACertPEM     string `json:"ca_cert_pem"`
	ClientCertPEM string `json:"client_cert_pem"`
	ClientKeyPEM  string `json:"client_key_pem"`
	DomainName    string `json:"domain_name"`
}

// LoadFile reads and parses the bootstrap file at path.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "xdsconfig: opening bootstrap file %q", path)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a bootstrap document from r.
func Load(r io.Reader) (*Config, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "xdsconfig: parsing bootstrap document")
	}

	if doc.Node.ID == "" {
		return nil, errors.New("xdsconfig: bootstrap document is missing node.id")
	}
	if len(doc.XDSServers) == 0 {
		return nil, errors.New("xdsconfig: bootstrap document has no xds_servers entries")
	}
	if len(doc.XDSServers) > 1 {
		return nil, errors.New("xdsconfig: multiple xds_servers entries are not supported; federated authorities are out of scope")
	}

	srv := doc.XDSServers[0]
	if srv.ServerURI == "" {
		return nil, errors.New("xdsconfig: xds_servers[0] is missing server_uri")
	}
	if len(srv.ServerFeatures) != 0 {
		return nil, errors.New("xdsconfig: server_features is not supported")
	}

	cfg := &Config{ServerURI: srv.ServerURI, NodeID: doc.Node.ID}

	if len(srv.ChannelCreds) > 0 {
		cc := srv.ChannelCreds[0]
		switch cc.Type {
		case "insecure":
			// Nothing to do; cfg.TLS stays nil.
		case "tls":
			cfg.TLS = &TLSConfig{
				CACertPEM:     []byte(cc.CACertPEM),
				ClientCertPEM: []byte(cc.ClientCertPEM),
				ClientKeyPEM:  []byte(cc.ClientKeyPEM),
				DomainName:    cc.DomainName,
			}
		default:
			return nil, errors.Errorf("xdsconfig: unsupported channel_creds type %q", cc.Type)
		}
	}

	return cfg, nil
}
