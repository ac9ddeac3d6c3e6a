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
	v3routepb "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	"google.golang.org/protobuf/proto"
)

// RouteConfiguration is the projected view of an
// envoy.config.route.v3.RouteConfiguration: its virtual hosts, reduced to
// the name and domains a caller needs to pick one for a given request.
type RouteConfiguration struct {
	// Name is the route configuration's name, usually matching the
	// RouteConfigName a Listener resolved it from.
	Name string
	// VirtualHosts are the route configuration's virtual hosts, in the
	// order the server sent them.
	VirtualHosts []VirtualHost
}

// VirtualHost is a single virtual host of a RouteConfiguration.
type VirtualHost struct {
	// Name is the virtual host's name; unique only within its
	// RouteConfiguration, and otherwise opaque.
	Name string
	// Domains are the domain patterns this virtual host answers to.
	Domains []string
}

// RouteConfigurationDecoder decodes envoy.config.route.v3.RouteConfiguration
// resources.
type RouteConfigurationDecoder struct{}

var _ Decoder[RouteConfiguration] = RouteConfigurationDecoder{}

func (RouteConfigurationDecoder) TypeURL() string { return RouteConfigurationTypeURL }

func (d RouteConfigurationDecoder) Decode(raw []byte) (RouteConfiguration, error) {
	proto_ := new(v3routepb.RouteConfiguration)
	if err := proto.Unmarshal(raw, proto_); err != nil {
		return RouteConfiguration{}, decodeErr(d.TypeURL(), err)
	}

	vhosts := make([]VirtualHost, 0, len(proto_.GetVirtualHosts()))
	for _, vh := range proto_.GetVirtualHosts() {
		vhosts = append(vhosts, VirtualHost{
			Name:    vh.GetName(),
			Domains: vh.GetDomains(),
		})
	}

	return RouteConfiguration{
		Name:         proto_.GetName(),
		VirtualHosts: vhosts,
	}, nil
}
