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
	v3listenerpb "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	v3hcmpb "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	"google.golang.org/protobuf/proto"
)

// Listener is the projected view of an envoy.config.listener.v3.Listener:
// just enough to discover the RouteConfiguration it depends on, if any.
type Listener struct {
	// Name is the listener's name, the key it is requested and indexed by.
	Name string
	// RouteConfigName is the name of the RouteConfiguration this listener's
	// HTTP connection manager resolves routes from via RDS, or "" if the
	// listener has no HTTP connection manager configured for RDS (it may be
	// statically routed, or not an HTTP listener at all).
	RouteConfigName string
}

// ListenerDecoder decodes envoy.config.listener.v3.Listener resources.
type ListenerDecoder struct{}

var _ Decoder[Listener] = ListenerDecoder{}

func (ListenerDecoder) TypeURL() string { return ListenerTypeURL }

// Decode searches the listener for an HTTP connection manager in the same
// order the management server is expected to populate it: first the
// api_listener field gRPC clients use, then the filter_chains a proxy
// listener like Envoy's own uses. An api_listener connection manager
// configured for RDS wins; otherwise the first connection manager filter
// found in the filter chains supplies the name, and later filters are not
// consulted even if that one is not configured for RDS. Decoding never
// treats the absence of either as an error, since plenty of legitimate
// listeners don't route via RDS.
func (d ListenerDecoder) Decode(raw []byte) (Listener, error) {
	proto_ := new(v3listenerpb.Listener)
	if err := proto.Unmarshal(raw, proto_); err != nil {
		return Listener{}, decodeErr(d.TypeURL(), err)
	}

	out := Listener{Name: proto_.GetName()}

	if hcm := apiListenerHCM(proto_); hcm != nil {
		out.RouteConfigName = rdsRouteConfigName(hcm)
	}

	if out.RouteConfigName == "" {
		if hcm := filterChainHCM(proto_); hcm != nil {
			out.RouteConfigName = rdsRouteConfigName(hcm)
		}
	}

	return out, nil
}

// apiListenerHCM extracts the HttpConnectionManager from the listener's
// api_listener field, the shape used by gRPC xDS clients rather than
// Envoy proxy instances. It returns nil if absent or not an HCM.
func apiListenerHCM(l *v3listenerpb.Listener) *v3hcmpb.HttpConnectionManager {
	any := l.GetApiListener().GetApiListener()
	if any == nil || !any.MessageIs(&v3hcmpb.HttpConnectionManager{}) {
		return nil
	}
	hcm := new(v3hcmpb.HttpConnectionManager)
	if err := any.UnmarshalTo(hcm); err != nil {
		return nil
	}
	return hcm
}

// filterChainHCM walks the listener's filter chains looking for a network
// filter named envoy.filters.network.http_connection_manager, returning the
// first one found.
func filterChainHCM(l *v3listenerpb.Listener) *v3hcmpb.HttpConnectionManager {
	for _, fc := range l.GetFilterChains() {
		for _, f := range fc.GetFilters() {
			if f.GetName() != httpConnectionManagerFilter {
				continue
			}
			any := f.GetTypedConfig()
			if any == nil || !any.MessageIs(&v3hcmpb.HttpConnectionManager{}) {
				continue
			}
			hcm := new(v3hcmpb.HttpConnectionManager)
			if err := any.UnmarshalTo(hcm); err != nil {
				continue
			}
			return hcm
		}
	}
	return nil
}

// rdsRouteConfigName returns the route_config_name hcm resolves routes
// from via RDS, or "" if hcm is statically routed or uses scoped routes.
func rdsRouteConfigName(hcm *v3hcmpb.HttpConnectionManager) string {
	rds := hcm.GetRds()
	if rds == nil {
		return ""
	}
	return rds.GetRouteConfigName()
}
