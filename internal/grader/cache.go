package grader

import (
	"context"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey [sha256.Size]byte

func keyFor(answer, prompt string) cacheKey {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(answer))
	var k cacheKey
	copy(k[:], h.Sum(nil))
	return k
}

// CachedGrader memoizes scores by (prompt, answer).
type CachedGrader struct {
	next  Grader
	cache *lru.Cache[cacheKey, float64]
}

// Cached wraps g with an LRU of the given size. A size <= 0 returns g as is.
func Cached(g Grader, size int) (Grader, error) {
	if size <= 0 {
		return g, nil
	}
	c, err := lru.New[cacheKey, float64](size)
	if err != nil {
		return nil, err
	}
	return &CachedGrader{next: g, cache: c}, nil
}

// Score returns a cached score or grades and caches it. Errors are not cached.
func (c *CachedGrader) Score(ctx context.Context, answer, prompt string) (float64, error) {
	k := keyFor(answer, prompt)
	if v, ok := c.cache.Get(k); ok {
		return v, nil
	}
	v, err := c.next.Score(ctx, answer, prompt)
	if err != nil {
		return 0, err
	}
	c.cache.Add(k, v)
	return v, nil
}

// Len returns the number of cached scores.
func (c *CachedGrader) Len() int {
	return c.cache.Len()
}
