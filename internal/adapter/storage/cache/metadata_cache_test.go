package cache

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var (
	registryA = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	registryB = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

func TestMetadataCache_GetSet(t *testing.T) {
	c := NewMetadataCache(1)

	_, ok := c.Get(registryA, 1)
	assert.False(t, ok)

	c.Set(registryA, 1, "ipfs://a")
	uri, ok := c.Get(registryA, 1)
	assert.True(t, ok)
	assert.Equal(t, "ipfs://a", uri)
	assert.InDelta(t, 0.5, c.HitRate(), 1e-9)
}

func TestMetadataCache_KeysScopedByRegistry(t *testing.T) {
	c := NewMetadataCache(1)

	c.Set(registryA, 7, "ipfs://a7")
	c.Set(registryB, 7, "ipfs://b7")
	c.Set(registryA, 71, "ipfs://a71")

	uri, _ := c.Get(registryA, 7)
	assert.Equal(t, "ipfs://a7", uri)
	uri, _ = c.Get(registryB, 7)
	assert.Equal(t, "ipfs://b7", uri)
	uri, _ = c.Get(registryA, 71)
	assert.Equal(t, "ipfs://a71", uri)
}

func TestMetadataCache_OversizedEntryDropped(t *testing.T) {
	c := NewMetadataCache(1)

	huge := "ipfs://" + strings.Repeat("x", 1024*1024)
	c.Set(registryA, 1, huge)

	_, ok := c.Get(registryA, 1)
	assert.False(t, ok)
}
