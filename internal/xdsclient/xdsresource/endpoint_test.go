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

package xdsresource

import (
	"testing"

	v3corepb "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	v3endpointpb "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func socketAddress(host string, port uint32) *v3corepb.Address {
	return &v3corepb.Address{
		Address: &v3corepb.Address_SocketAddress{
			SocketAddress: &v3corepb.SocketAddress{
				Address: host,
				PortSpecifier: &v3corepb.SocketAddress_PortValue{
					PortValue: port,
				},
			},
		},
	}
}

func TestClusterLoadAssignmentDecoder(t *testing.T) {
	cla := &v3endpointpb.ClusterLoadAssignment{
		ClusterName: "c1",
		Endpoints: []*v3endpointpb.LocalityLbEndpoints{{
			Locality: &v3corepb.Locality{Region: "us-east", Zone: "1a"},
			LbEndpoints: []*v3endpointpb.LbEndpoint{{
				HostIdentifier: &v3endpointpb.LbEndpoint_Endpoint{
					Endpoint: &v3endpointpb.Endpoint{
						Address: socketAddress("10.0.0.1", 8080),
					},
				},
				HealthStatus: v3corepb.HealthStatus_HEALTHY,
			}},
		}},
	}

	raw, err := proto.Marshal(cla)
	require.NoError(t, err)

	got, err := ClusterLoadAssignmentDecoder{}.Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, ClusterLoadAssignment{
		ClusterName: "c1",
		Endpoints: []LocalityLbEndpoints{{
			Locality: "us-east/1a",
			LbEndpoints: []LbEndpoint{{
				Address:      "10.0.0.1:8080",
				HealthStatus: "HEALTHY",
			}},
		}},
	}, got)
}

func TestClusterLoadAssignmentDecoderNoLocality(t *testing.T) {
	cla := &v3endpointpb.ClusterLoadAssignment{
		ClusterName: "c1",
		Endpoints: []*v3endpointpb.LocalityLbEndpoints{{
			LbEndpoints: []*v3endpointpb.LbEndpoint{{
				HostIdentifier: &v3endpointpb.LbEndpoint_Endpoint{
					Endpoint: &v3endpointpb.Endpoint{
						Address: socketAddress("10.0.0.2", 443),
					},
				},
			}},
		}},
	}

	raw, err := proto.Marshal(cla)
	require.NoError(t, err)

	got, err := ClusterLoadAssignmentDecoder{}.Decode(raw)
	require.NoError(t, err)

	require.Len(t, got.Endpoints, 1)
	assert.Equal(t, "", got.Endpoints[0].Locality)
	assert.Equal(t, "10.0.0.2:443", got.Endpoints[0].LbEndpoints[0].Address)
}
