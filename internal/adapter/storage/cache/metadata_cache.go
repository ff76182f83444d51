// Package cache holds in-process caches for data that never changes once
// written.
package cache

import (
	"strconv"

	"github.com/coocood/freecache"
	"github.com/ethereum/go-ethereum/common"
)

// MetadataCache implements ports.MetadataCache on freecache. Token URIs are
// fixed at mint, so entries never expire; freecache evicts under pressure.
type MetadataCache struct {
	cache *freecache.Cache
}

// NewMetadataCache allocates a cache of sizeMB megabytes.
func NewMetadataCache(sizeMB int) *MetadataCache {
	return &MetadataCache{cache: freecache.NewCache(sizeMB * 1024 * 1024)}
}

func metadataKey(registry common.Address, assetID uint64) []byte {
	key := make([]byte, 0, common.AddressLength+20)
	key = append(key, registry.Bytes()...)
	return strconv.AppendUint(key, assetID, 10)
}

// Get returns the cached URI of assetID.
func (c *MetadataCache) Get(registry common.Address, assetID uint64) (string, bool) {
	val, err := c.cache.Get(metadataKey(registry, assetID))
	if err != nil {
		return "", false
	}
	return string(val), true
}

// Set stores uri. An entry larger than the cache allows is silently dropped.
func (c *MetadataCache) Set(registry common.Address, assetID uint64, uri string) {
	_ = c.cache.Set(metadataKey(registry, assetID), []byte(uri), 0)
}

// HitRate reports the fraction of Get calls served from the cache.
func (c *MetadataCache) HitRate() float64 {
	return c.cache.HitRate()
}
