package local

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a key or ZSet member does not exist.
var ErrNotFound = errors.New("cache: key not found")

const defaultSweepInterval = 30 * time.Second

// Config holds LocalCache settings.
type Config struct {
	// GCInterval is how often expired keys are swept. Reads never see
	// expired keys regardless of the sweep.
	GCInterval time.Duration
}

type item struct {
	value    string
	deadline time.Time // zero means no expiry
}

func (it item) liveAt(now time.Time) bool {
	return it.deadline.IsZero() || now.Before(it.deadline)
}

// LocalCache is the single-process Cache used when no Redis is configured.
// Sessions, battle locks and the wins leaderboard all live here.
type LocalCache struct {
	mu     sync.Mutex
	items  map[string]item
	scores map[string]map[string]float64
	done   chan struct{}
	once   sync.Once
	now    func() time.Time
}

// NewCache creates a LocalCache and starts its expiry sweeper.
func NewCache(cfg Config) (*LocalCache, error) {
	every := cfg.GCInterval
	if every <= 0 {
		every = defaultSweepInterval
	}
	c := &LocalCache{
		items:  make(map[string]item),
		scores: make(map[string]map[string]float64),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go c.sweep(every)
	return c, nil
}

// Close stops the sweeper. The cache stays usable afterwards.
func (c *LocalCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *LocalCache) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			c.mu.Lock()
			now := c.now()
			for k, it := range c.items {
				if !it.liveAt(now) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// lookup must be called with c.mu held.
func (c *LocalCache) lookup(key string) (item, bool) {
	it, ok := c.items[key]
	if !ok {
		return item{}, false
	}
	if !it.liveAt(c.now()) {
		delete(c.items, key)
		return item{}, false
	}
	return it, true
}

func (c *LocalCache) put(key, value string, ttl time.Duration) {
	it := item{value: value}
	if ttl > 0 {
		it.deadline = c.now().Add(ttl)
	}
	c.items[key] = it
}

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.lookup(key)
	if !ok {
		return "", ErrNotFound
	}
	return it.value, nil
}

// Set stores value under key. A non-positive ttl keeps it until deleted.
func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.put(key, value, ttl)
	c.mu.Unlock()
	return nil
}

// Del removes keys of either kind.
func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.items, k)
		delete(c.scores, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *LocalCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookup(key)
	return ok, nil
}

// SetNX stores value only when key is absent or expired.
func (c *LocalCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.lookup(key); held {
		return false, nil
	}
	c.put(key, value, ttl)
	return true, nil
}

// CompareAndDelete removes key only while it still holds value.
func (c *LocalCache) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.lookup(key)
	if !ok || it.value != value {
		return false, nil
	}
	delete(c.items, key)
	return true, nil
}

// ---- sorted sets ----

func (c *LocalCache) zset(key string) map[string]float64 {
	z, ok := c.scores[key]
	if !ok {
		z = make(map[string]float64)
		c.scores[key] = z
	}
	return z
}

func (c *LocalCache) ZAdd(_ context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	c.zset(key)[member] = score
	c.mu.Unlock()
	return nil
}

func (c *LocalCache) ZIncrBy(_ context.Context, key string, incr float64, member string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	z := c.zset(key)
	z[member] += incr
	return z[member], nil
}

// ZRevRange returns members by descending score, ties broken by descending
// member name as Redis does. stop may be negative to count from the end.
func (c *LocalCache) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	z := c.scores[key]
	members := make([]string, 0, len(z))
	for m := range z {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := z[members[i]], z[members[j]]
		if si != sj {
			return si > sj
		}
		return members[i] > members[j]
	})
	c.mu.Unlock()

	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	return members[start : stop+1], nil
}

func (c *LocalCache) ZScore(_ context.Context, key, member string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	score, ok := c.scores[key][member]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}
