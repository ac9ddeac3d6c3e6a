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
	"strconv"

	v3corepb "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	v3endpointpb "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	"google.golang.org/protobuf/proto"
)

// ClusterLoadAssignment is the projected view of an
// envoy.config.endpoint.v3.ClusterLoadAssignment: the membership EDS
// reports for a cluster, grouped by locality.
type ClusterLoadAssignment struct {
	// ClusterName is the cluster this assignment describes membership for.
	ClusterName string
	// Endpoints holds one entry per locality the server reported.
	Endpoints []LocalityLbEndpoints
}

// LocalityLbEndpoints is one locality's worth of load-balancing endpoints.
type LocalityLbEndpoints struct {
	// Locality identifies the region/zone/sub-zone this group of endpoints
	// is in, formatted as "region/zone/sub_zone", or "" if the server didn't
	// set a locality. The zone segment appears only when zone is set, and
	// the sub_zone segment only when both zone and sub_zone are set.
	Locality string
	// LbEndpoints are the individual endpoints in this locality.
	LbEndpoints []LbEndpoint
}

// LbEndpoint is a single load-balancing endpoint: an address and its
// reported health.
type LbEndpoint struct {
	// Address is the endpoint's socket address, formatted "host:port". It
	// is empty if the endpoint didn't carry a socket address (e.g. a pipe
	// address), which this module doesn't project further.
	Address string
	// HealthStatus is the endpoint's reported health
	// (e.g. "HEALTHY", "UNHEALTHY", "UNKNOWN").
	HealthStatus string
}

// ClusterLoadAssignmentDecoder decodes
// envoy.config.endpoint.v3.ClusterLoadAssignment resources.
type ClusterLoadAssignmentDecoder struct{}

var _ Decoder[ClusterLoadAssignment] = ClusterLoadAssignmentDecoder{}

func (ClusterLoadAssignmentDecoder) TypeURL() string { return ClusterLoadAssignmentTypeURL }

func (d ClusterLoadAssignmentDecoder) Decode(raw []byte) (ClusterLoadAssignment, error) {
	proto_ := new(v3endpointpb.ClusterLoadAssignment)
	if err := proto.Unmarshal(raw, proto_); err != nil {
		return ClusterLoadAssignment{}, decodeErr(d.TypeURL(), err)
	}

	localities := make([]LocalityLbEndpoints, 0, len(proto_.GetEndpoints()))
	for _, l := range proto_.GetEndpoints() {
		lbEndpoints := make([]LbEndpoint, 0, len(l.GetLbEndpoints()))
		for _, e := range l.GetLbEndpoints() {
			lbEndpoints = append(lbEndpoints, LbEndpoint{
				Address:      socketAddressString(e.GetEndpoint().GetAddress()),
				HealthStatus: e.GetHealthStatus().String(),
			})
		}
		localities = append(localities, LocalityLbEndpoints{
			Locality:    localityString(l.GetLocality()),
			LbEndpoints: lbEndpoints,
		})
	}

	return ClusterLoadAssignment{
		ClusterName: proto_.GetClusterName(),
		Endpoints:   localities,
	}, nil
}

func socketAddressString(addr *v3corepb.Address) string {
	sa := addr.GetSocketAddress()
	if sa == nil {
		return ""
	}
	host := sa.GetAddress()
	if host == "" {
		return ""
	}
	return host + ":" + strconv.FormatUint(uint64(sa.GetPortValue()), 10)
}

func localityString(l *v3corepb.Locality) string {
	if l == nil {
		return ""
	}
	s := l.GetRegion()
	if l.GetZone() != "" {
		s += "/" + l.GetZone()
		if l.GetSubZone() != "" {
			s += "/" + l.GetSubZone()
		}
	}
	return s
}
