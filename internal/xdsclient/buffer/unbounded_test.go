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

package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, u *Unbounded[int]) int {
	t.Helper()
	select {
	case v := <-u.Get():
		u.Load()
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a value")
		return 0
	}
}

func TestUnboundedFIFOOrder(t *testing.T) {
	u := NewUnbounded[int]()
	for i := 0; i < 5; i++ {
		u.Put(i)
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, recv(t, u))
	}
}

func TestUnboundedInterleavedPutAndGet(t *testing.T) {
	u := NewUnbounded[int]()
	u.Put(1)
	assert.Equal(t, 1, recv(t, u))
	u.Put(2)
	u.Put(3)
	assert.Equal(t, 2, recv(t, u))
	assert.Equal(t, 3, recv(t, u))
}

func TestUnboundedPutAfterCloseIsNoOp(t *testing.T) {
	u := NewUnbounded[int]()
	u.Close()
	u.Put(1)

	select {
	case <-u.Get():
		t.Fatal("expected no value to be delivered after Close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnboundedClosedChannelFires(t *testing.T) {
	u := NewUnbounded[int]()

	select {
	case <-u.Closed():
		t.Fatal("Closed channel fired before Close was called")
	default:
	}

	u.Close()

	select {
	case <-u.Closed():
	case <-time.After(time.Second):
		t.Fatal("Closed channel did not fire after Close")
	}
}

func TestUnboundedCloseIsIdempotent(t *testing.T) {
	u := NewUnbounded[int]()
	u.Close()
	require.NotPanics(t, u.Close)
}

func TestUnboundedManyProducersOneConsumer(t *testing.T) {
	u := NewUnbounded[int]()
	const n = 50
	const producers = 5

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := p; i < n; i += producers {
				u.Put(i)
			}
		}(p)
	}

	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		seen[recv(t, u)] = true
	}
	wg.Wait()

	assert.Len(t, seen, n)
}
