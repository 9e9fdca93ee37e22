package sharding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetShard_StableAndInRange(t *testing.T) {
	router := NewShardRouter(3)
	used := make(map[int]bool)

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("session:%d:cart", i)
		shard := router.GetShard(key)
		assert.GreaterOrEqual(t, shard, 0)
		assert.Less(t, shard, 3)
		assert.Equal(t, shard, router.GetShard(key))
		used[shard] = true
	}

	assert.Len(t, used, 3)
}

func TestNewShardRouter_AtLeastOneShard(t *testing.T) {
	router := NewShardRouter(0)
	assert.Equal(t, 1, router.ShardCount)
	assert.Equal(t, 0, router.GetShard("anything"))
}
