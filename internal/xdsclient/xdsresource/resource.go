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

// Package xdsresource projects raw xDS resource payloads into the typed
// views the rest of this module works with. Each resource kind implements
// Decoder[T]; decoding never fails the session — failures are reported to
// the watchers of the offending type URL only (see the session worker).
package xdsresource

import "github.com/pkg/errors"

// Well-known type URLs this module understands, used both on the wire (as
// the DiscoveryRequest/Response discriminator) and as the subscription
// table key.
const (
	ListenerTypeURL              = "type.googleapis.com/envoy.config.listener.v3.Listener"
	RouteConfigurationTypeURL    = "type.googleapis.com/envoy.config.route.v3.RouteConfiguration"
	ClusterTypeURL               = "type.googleapis.com/envoy.config.cluster.v3.Cluster"
	ClusterLoadAssignmentTypeURL = "type.googleapis.com/envoy.config.endpoint.v3.ClusterLoadAssignment"

	httpConnectionManagerTypeURL = "type.googleapis.com/envoy.extensions.filters.network.http_connection_manager.v3.HttpConnectionManager"
	httpConnectionManagerFilter  = "envoy.filters.network.http_connection_manager"
)

// Decoder projects raw resource bytes into a typed view T.
type Decoder[T any] interface {
	// TypeURL identifies the resource kind this Decoder handles.
	TypeURL() string
	// Decode parses raw into a T, or returns a DecodeError.
	Decode(raw []byte) (T, error)
}

// DecodeError wraps a decode failure with the type URL that failed, so a
// watcher's Error(Decode) event carries enough context to log usefully
// without carrying the raw proto bytes themselves.
type DecodeError struct {
	TypeURL string
	Err     error
}

func (e *DecodeError) Error() string {
	return "xdsresource: decoding " + e.TypeURL + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(typeURL string, err error) error {
	return &DecodeError{TypeURL: typeURL, Err: err}
}

// fieldMissing reports an expected protobuf field that was absent while
// projecting a typed view.
func fieldMissing(typeURL, field string) error {
	return errors.Errorf("xdsresource: %s: missing required field %q", typeURL, field)
}
