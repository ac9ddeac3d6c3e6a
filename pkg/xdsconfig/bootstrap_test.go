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

package xdsconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidInsecureDocument(t *testing.T) {
	doc := `{
		"node": {"id": "node-1"},
		"xds_servers": [{
			"server_uri": "dns:///xds.example.com:18000",
			"channel_creds": [{"type": "insecure"}]
		}]
	}`

	cfg, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "node-1", cfg.NodeID)
	assert.Equal(t, "dns:///xds.example.com:18000", cfg.ServerURI)
	assert.Nil(t, cfg.TLS)
}

func TestLoadValidTLSDocument(t *testing.T) {
	doc := `{
		"node": {"id": "node-1"},
		"xds_servers": [{
			"server_uri": "dns:///xds.example.com:18000",
			"channel_creds": [{
				"type": "tls",
				"ca_cert_pem": "ca-pem",
				"client_cert_pem": "cert-pem",
				"client_key_pem": "key-pem",
				"domain_name": "xds.example.com"
			}]
		}]
	}`

	cfg, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	require.NotNil(t, cfg.TLS)
	assert.Equal(t, []byte("ca-pem"), cfg.TLS.CACertPEM)
	assert.Equal(t, []byte("cert-pem"), cfg.TLS.ClientCertPEM)
	assert.Equal(t, []byte("key-pem"), cfg.TLS.ClientKeyPEM)
	assert.Equal(t, "xds.example.com", cfg.TLS.DomainName)
}

func TestLoadDocumentWithoutChannelCredsIsInsecure(t *testing.T) {
	doc := `{
		"node": {"id": "node-1"},
		"xds_servers": [{"server_uri": "dns:///xds.example.com:18000"}]
	}`

	cfg, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Nil(t, cfg.TLS)
}

func TestLoadRejectsMissingNodeID(t *testing.T) {
	doc := `{
		"xds_servers": [{"server_uri": "dns:///xds.example.com:18000"}]
	}`

	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node.id")
}

func TestLoadRejectsZeroXDSServers(t *testing.T) {
	doc := `{"node": {"id": "node-1"}, "xds_servers": []}`

	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no xds_servers")
}

func TestLoadRejectsMultipleXDSServers(t *testing.T) {
	doc := `{
		"node": {"id": "node-1"},
		"xds_servers": [
			{"server_uri": "dns:///a.example.com:18000"},
			{"server_uri": "dns:///b.example.com:18000"}
		]
	}`

	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple xds_servers")
}

func TestLoadRejectsMissingServerURI(t *testing.T) {
	doc := `{"node": {"id": "node-1"}, "xds_servers": [{}]}`

	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_uri")
}

func TestLoadRejectsServerFeatures(t *testing.T) {
	doc := `{
		"node": {"id": "node-1"},
		"xds_servers": [{
			"server_uri": "dns:///xds.example.com:18000",
			"server_features": ["xds_v3"]
		}]
	}`

	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_features")
}

func TestLoadRejectsUnsupportedChannelCredsType(t *testing.T) {
	doc := `{
		"node": {"id": "node-1"},
		"xds_servers": [{
			"server_uri": "dns:///xds.example.com:18000",
			"channel_creds": [{"type": "google_default"}]
		}]
	}`

	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported channel_creds type")
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	_, err := Load(strings.NewReader("not json"))
	require.Error(t, err)
}
