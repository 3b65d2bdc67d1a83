package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sketchmon/arena/cache/local"
	cacheredis "github.com/sketchmon/arena/cache/redis"
	"github.com/sketchmon/arena/config"
)

// ErrNotFound is returned by Get and ZScore for a missing key or member.
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound reports whether err is a not-found error from either backend.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, local.ErrNotFound) || errors.Is(err, cacheredis.ErrNotFound)
}

// Cache holds sessions, battle locks and the wins leaderboard.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZScore(ctx context.Context, key, member string) (float64, error)

	Close() error
}

// Message is a received pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// PubSub carries battle events and announcements between instances.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
	Close() error
}

// Open returns a Redis-backed pair when cfg.RedisAddr is set and an
// in-process pair otherwise. The Redis pair shares one pool, which the Cache
// owns: closing the PubSub is a no-op there.
func Open(cfg config.CacheConfig) (Cache, PubSub, error) {
	if cfg.RedisAddr == "" {
		c, ps := NewLocal(cfg)
		return c, ps, nil
	}
	client, err := cacheredis.Open(cacheredis.Config{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		MasterName: cfg.RedisMaster,
		KeyPrefix:  cfg.KeyPrefix,
	})
	if err != nil {
		return nil, nil, err
	}
	ps := bridge[*cacheredis.Message]{
		publish:   client.Publish,
		subscribe: client.Subscribe,
		close:     func() error { return nil },
		unpack:    func(m *cacheredis.Message) (string, string) { return m.Channel, m.Payload },
	}
	return client, ps, nil
}

// NewLocal returns the in-process pair. It never fails.
func NewLocal(cfg config.CacheConfig) (Cache, PubSub) {
	c, _ := local.NewCache(local.Config{GCInterval: cfg.LocalGCInterval})
	lps := local.NewPubSub(cfg.LocalPubSubBuf)
	return c, bridge[*local.LocalMessage]{
		publish:   lps.Publish,
		subscribe: lps.Subscribe,
		close:     lps.Close,
		unpack:    func(m *local.LocalMessage) (string, string) { return m.Channel, m.Payload },
	}
}

// bridge adapts a backend's message type to Message.
type bridge[M any] struct {
	publish   func(ctx context.Context, channel, message string) error
	subscribe func(ctx context.Context, channels ...string) (<-chan M, func(), error)
	close     func() error
	unpack    func(M) (channel, payload string)
}

func (b bridge[M]) Publish(ctx context.Context, channel, message string) error {
	return b.publish(ctx, channel, message)
}

func (b bridge[M]) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	in, cancel, err := b.subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan *Message, cap(in))
	go func() {
		defer close(out)
		for m := range in {
			ch, payload := b.unpack(m)
			out <- &Message{Channel: ch, Payload: payload}
		}
	}()
	return out, cancel, nil
}

func (b bridge[M]) Close() error { return b.close() }
