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

// Package xdsclient is a client library for xDS, the dynamic
// configuration discovery protocol used by Envoy and gRPC. It maintains a
// single Aggregated Discovery Service (ADS) stream to a management server,
// multiplexing Listener, RouteConfiguration, Cluster and
// ClusterLoadAssignment subscriptions over it and implementing the
// State-of-the-World request/ACK protocol with automatic reconnection.
//
// Construct a Client with New, then call Watch for each resource you want
// to track:
//
//	c, err := xdsclient.New(ctx, xdsclient.Config{
//		ServerURI: "xds.example.com:18000",
//		NodeID:    "my-client",
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	w, err := xdsclient.Watch[xdsresource.Listener](c, "my-listener")
//	if err != nil {
//		return err
//	}
//	for update := range w.Updates() {
//		switch u := update.(type) {
//		case xdsclient.SetUpdate[xdsresource.Listener]:
//			log.Println(u.Value)
//		case xdsclient.ErrorUpdate[xdsresource.Listener]:
//			log.Println(u.Err)
//		}
//	}
//
// The resource types Watch is instantiated with (xdsresource.Listener,
// RouteConfiguration, Cluster and ClusterLoadAssignment) are defined in
// this module's internal/xdsclient/xdsresource package. Go's internal
// package rule lets only packages inside this module import it, so code
// like the example above compiles only within this module (as
// cmd/xds-watch does); other modules cannot name these types.
package xdsclient
