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
	v3clusterpb "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	"google.golang.org/protobuf/proto"
)

// Cluster is the projected view of an envoy.config.cluster.v3.Cluster: just
// enough to tell a caller whether (and where) to discover its membership
// via EDS.
type Cluster struct {
	// Name is the cluster's name, the key it is requested and indexed by.
	Name string
	// DiscoveryType is the cluster's discovery mechanism, as the server
	// reported it (e.g. "EDS", "STATIC", "STRICT_DNS").
	DiscoveryType string
	// EDSServiceName is the name to subscribe to via EDS to learn this
	// cluster's membership, or "" if the cluster isn't EDS-discovered, or
	// is EDS-discovered under its own Name.
	EDSServiceName string
}

// ClusterDecoder decodes envoy.config.cluster.v3.Cluster resources.
type ClusterDecoder struct{}

var _ Decoder[Cluster] = ClusterDecoder{}

func (ClusterDecoder) TypeURL() string { return ClusterTypeURL }

func (d ClusterDecoder) Decode(raw []byte) (Cluster, error) {
	proto_ := new(v3clusterpb.Cluster)
	if err := proto.Unmarshal(raw, proto_); err != nil {
		return Cluster{}, decodeErr(d.TypeURL(), err)
	}

	out := Cluster{
		Name:          proto_.GetName(),
		DiscoveryType: proto_.GetType().String(),
	}
	if eds := proto_.GetEdsClusterConfig(); eds != nil {
		out.EDSServiceName = eds.GetServiceName()
	}

	return out, nil
}
