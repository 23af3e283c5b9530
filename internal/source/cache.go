package source

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long fetched rows are served from memory.
const DefaultCacheTTL = 5 * time.Minute

// Cached keeps the rows of a source in memory for TTL. Concurrent fetches
// of an expired entry share a single call to the source.
type Cached struct {
	Source Source
	TTL    time.Duration

	mu        sync.Mutex
	rows      [][]string
	fetchedAt time.Time
	group     singleflight.Group
	now       func() time.Time
}

func NewCached(src Source, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{Source: src, TTL: ttl, now: time.Now}
}

func (c *Cached) Name() string {
	return c.Source.Name()
}

func (c *Cached) Fetch(ctx context.Context) ([][]string, error) {
	if rows, ok := c.get(); ok {
		log.Debugf("Source/Cache/Hit: %s", c.Name())
		return rows, nil
	}
	v, err, _ := c.group.Do(c.Name(), func() (interface{}, error) {
		if rows, ok := c.get(); ok {
			return rows, nil
		}
		log.Debugf("Source/Cache/Miss: %s", c.Name())
		rows, err := c.Source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.rows, c.fetchedAt = rows, c.now()
		c.mu.Unlock()
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([][]string), nil
}

// Invalidate drops the cached rows, the next Fetch reads the source.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = nil
	c.fetchedAt = time.Time{}
}

func (c *Cached) get() ([][]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows == nil || c.now().Sub(c.fetchedAt) >= c.TTL {
		return nil, false
	}
	return c.rows, true
}
