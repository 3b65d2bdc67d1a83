package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for a missing key or ZSet member.
var ErrNotFound = errors.New("cache: key not found")

const (
	dialTimeout = 5 * time.Second
	mailboxSize = 256
)

// Config holds Redis connection settings. Addr may list several
// comma-separated addresses for a cluster or sentinel deployment.
type Config struct {
	Addr       string
	Password   string
	DB         int
	MasterName string
	// KeyPrefix namespaces every key and channel, so several arenas can
	// share one Redis.
	KeyPrefix string
}

// Message is one pub/sub delivery with the prefix already stripped.
type Message struct {
	Channel string
	Payload string
}

// Client serves both the KV and pub/sub roles from one connection pool.
type Client struct {
	rdb    goredis.UniversalClient
	prefix string
}

// Open connects and pings Redis.
func Open(cfg Config) (*Client, error) {
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:      strings.Split(cfg.Addr, ","),
		Password:   cfg.Password,
		DB:         cfg.DB,
		MasterName: cfg.MasterName,
	})
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Client{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

func (r *Client) Close() error { return r.rdb.Close() }

func (r *Client) key(k string) string { return r.prefix + k }

func (r *Client) keys(ks []string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = r.key(k)
	}
	return out
}

func notFound(err error) error {
	if errors.Is(err, goredis.Nil) {
		return ErrNotFound
	}
	return err
}

func (r *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	return v, notFound(err)
}

func (r *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, r.keys(keys)...).Err()
}

func (r *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(key)).Result()
	return n == 1, err
}

func (r *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, r.key(key), value, ttl).Result()
}

// releaseIfOwner deletes KEYS[1] only when it still holds ARGV[1].
var releaseIfOwner = goredis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])`)

// CompareAndDelete removes key only while it still holds value.
func (r *Client) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := releaseIfOwner.Run(ctx, r.rdb, []string{r.key(key)}, value).Int()
	return n == 1, err
}

func (r *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.rdb.ZAdd(ctx, r.key(key), goredis.Z{Score: score, Member: member}).Err()
}

func (r *Client) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	return r.rdb.ZIncrBy(ctx, r.key(key), incr, member).Result()
}

func (r *Client) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.rdb.ZRangeArgs(ctx, goredis.ZRangeArgs{
		Key:   r.key(key),
		Start: start,
		Stop:  stop,
		Rev:   true,
	}).Result()
}

func (r *Client) ZScore(ctx context.Context, key, member string) (float64, error) {
	v, err := r.rdb.ZScore(ctx, r.key(key), member).Result()
	return v, notFound(err)
}

func (r *Client) Publish(ctx context.Context, channel, message string) error {
	return r.rdb.Publish(ctx, r.key(channel), message).Err()
}

// Subscribe returns once Redis has confirmed the subscription, so a publish
// made after it returns is never missed.
func (r *Client) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	sub := r.rdb.Subscribe(ctx, r.keys(channels)...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan *Message, mailboxSize)
	go func() {
		defer close(out)
		for m := range sub.Channel(goredis.WithChannelSize(mailboxSize)) {
			out <- &Message{Channel: strings.TrimPrefix(m.Channel, r.prefix), Payload: m.Payload}
		}
	}()
	return out, func() { _ = sub.Close() }, nil
}
