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

import "fmt"

// Kind classifies an Error by the stage of the client's operation that
// produced it.
type Kind int

const (
	// KindTransport marks a stream establishment or mid-stream I/O failure.
	KindTransport Kind = iota
	// KindGrpcStatus marks a server-signaled RPC error.
	KindGrpcStatus
	// KindDecode marks a protobuf parse or typed-projection failure.
	KindDecode
	// KindConfig marks an invalid URI or TLS material at construction.
	KindConfig
	// KindWatch marks a facade-to-worker delivery failure.
	KindWatch
	// KindFieldMissing marks an expected protobuf field absent while
	// projecting a typed view.
	KindFieldMissing
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindGrpcStatus:
		return "grpc_status"
	case KindDecode:
		return "decode"
	case KindConfig:
		return "config"
	case KindWatch:
		return "watch"
	case KindFieldMissing:
		return "field_missing"
	default:
		return "unknown"
	}
}

// Error is the error type returned across the public API. Err is always
// the wrapped underlying cause (wrapped with github.com/pkg/errors at the
// point of origin, so %+v on Err still yields a stack trace).
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("xdsclient: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
