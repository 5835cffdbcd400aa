/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)

	ca, err := newRedisCache([]string{"redis://" + mr.Addr()})
	assert.NoError(t, err)
	return ca
}

func TestCacheSetGetDelete(t *testing.T) {
	ca := newTestCache(t)
	ctx := context.Background()

	type entry struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	assert.NoError(t, ca.Set(ctx, ConnectionKey("src_1"), entry{ID: "con_1", Name: "storefront"}, time.Minute))

	var got entry
	assert.NoError(t, ca.Get(ctx, ConnectionKey("src_1"), &got))
	assert.Equal(t, "con_1", got.ID)
	assert.Equal(t, "storefront", got.Name)

	assert.NoError(t, ca.Delete(ctx, ConnectionKey("src_1")))

	var afterDelete entry
	assert.NoError(t, ca.Get(ctx, ConnectionKey("src_1"), &afterDelete))
	assert.Empty(t, afterDelete.ID)
}

// A miss is not an error: callers fall through to the store when the target
// stays zero-valued.
func TestCacheGetMissIsSilent(t *testing.T) {
	ca := newTestCache(t)

	var got string
	assert.NoError(t, ca.Get(context.Background(), ConnectionKey("src_missing"), &got))
	assert.Empty(t, got)
}

func TestConnectionKey(t *testing.T) {
	assert.Equal(t, "connection:external:src_1", ConnectionKey("src_1"))
}
