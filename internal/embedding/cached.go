package embedding

import (
	"context"
	"fmt"

	"github.com/maypok86/otter"
	"golang.org/x/sync/singleflight"

	"github.com/repoindex/semindex/internal/hashutil"
)

const defaultQueryCacheWeight = 8 * 1024 * 1024 // 8MB of cached query vectors

// cachedOracle memoizes EmbedOne by the normalized query text's content
// hash. Batch embedding (EmbedMany) bypasses the cache: ingestion chunks
// are rarely repeated verbatim within a run, so caching them would only
// add memory pressure without a hit rate to justify it. Concurrent
// misses for the same text (repeated search queries fired in quick
// succession) are collapsed onto a single upstream call via singleflight
// rather than each paying for its own oracle round trip.
type cachedOracle struct {
	Oracle
	cache otter.Cache[string, []float32]
	group singleflight.Group
}

// WithQueryCache wraps an Oracle with an LRU cache in front of EmbedOne,
// sized by approximate byte weight of the cached float32 vectors.
func WithQueryCache(o Oracle) (Oracle, error) {
	cache, err := otter.MustBuilder[string, []float32](defaultQueryCacheWeight).
		Cost(func(key string, value []float32) uint32 {
			return uint32(len(value) * 4)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building query embedding cache: %w", err)
	}
	return &cachedOracle{Oracle: o, cache: cache}, nil
}

func (c *cachedOracle) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	key := hashutil.HashText(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		vec, err := c.Oracle.EmbedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (c *cachedOracle) Close() error {
	c.cache.Close()
	return c.Oracle.Close()
}
