package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/samueltorres/r8backend/pkg/store"
)

// A counter is stored as a hash with the value in field "v" and its
// version in field "cas". Versions are drawn from a single sequence key
// so a recreated counter never reuses the version of an expired one.
// Counters live under prefix+"c:" and the sequence at prefix+"seq", so
// no counter name can collide with the sequence.
const (
	valueField   = "v"
	versionField = "cas"

	counterNamespace = "c:"
	sequenceKey      = "seq"
)

// KEYS[1] counter, KEYS[2] sequence
// ARGV[1] value, ARGV[2] expected version, ARGV[3] ttl seconds
var casScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'cas')
if not cur or cur ~= ARGV[2] then
  return 0
end
local ver = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'cas', ver)
if tonumber(ARGV[3]) > 0 then
  redis.call('EXPIRE', KEYS[1], ARGV[3])
else
  redis.call('PERSIST', KEYS[1])
end
return 1
`)

// KEYS[1] counter, KEYS[2] sequence
// ARGV[1] value, ARGV[2] ttl seconds
var addScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
local ver = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'cas', ver)
if tonumber(ARGV[2]) > 0 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// Options configure the client each pooled connection opens.
type Options struct {
	Address     string
	Password    string
	Database    int
	Prefix      string
	DialTimeout time.Duration
}

// Storage is a store.Conn backed by a single Redis connection.
type Storage struct {
	client *redis.Client
	prefix string
	seqKey string
	logger *logrus.Logger
}

// NewStorage checks that client is reachable and loads the
// compare-and-swap scripts into the server's script cache.
func NewStorage(ctx context.Context, client *redis.Client, prefix string, logger *logrus.Logger) (*Storage, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "could not connect to redis")
	}

	for _, script := range []*redis.Script{casScript, addScript} {
		if err := script.Load(ctx, client).Err(); err != nil {
			return nil, errors.Wrapf(store.ErrCASUnsupported, "redis script load: %v", err)
		}
	}

	return &Storage{
		client: client,
		prefix: prefix,
		seqKey: prefix + sequenceKey,
		logger: logger,
	}, nil
}

// Dialer opens one single-connection Redis client per pool slot.
func Dialer(opts Options, logger *logrus.Logger) store.Dialer {
	return func() (store.Conn, error) {
		client := redis.NewClient(&redis.Options{
			Addr:         opts.Address,
			Password:     opts.Password,
			DB:           opts.Database,
			DialTimeout:  opts.DialTimeout,
			PoolSize:     1,
			MinIdleConns: 1,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s, err := NewStorage(ctx, client, opts.Prefix, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		return s, nil
	}
}

func (s *Storage) counterKey(key string) string {
	return s.prefix + counterNamespace + key
}

// GetWithVersion implements store.Conn.
func (s *Storage) GetWithVersion(ctx context.Context, key string) (int64, store.Version, bool, error) {
	fields, err := s.client.HMGet(ctx, s.counterKey(key), valueField, versionField).Result()
	if err != nil {
		return 0, 0, false, errors.Wrap(err, "redis storage get failure")
	}

	rawValue, ok := fields[0].(string)
	if !ok {
		return 0, 0, false, nil
	}
	rawVersion, ok := fields[1].(string)
	if !ok {
		return 0, 0, false, nil
	}

	value, err := strconv.ParseInt(rawValue, 10, 64)
	if err != nil {
		return 0, 0, false, errors.Wrapf(err, "redis storage invalid value for %q", key)
	}
	version, err := strconv.ParseUint(rawVersion, 10, 64)
	if err != nil {
		return 0, 0, false, errors.Wrapf(err, "redis storage invalid version for %q", key)
	}

	return value, store.Version(version), true, nil
}

// CompareAndSwap implements store.Conn.
func (s *Storage) CompareAndSwap(ctx context.Context, key string, value int64, version store.Version, ttl int32) (bool, error) {
	n, err := casScript.Run(ctx, s.client,
		[]string{s.counterKey(key), s.seqKey},
		value, strconv.FormatUint(uint64(version), 10), int64(ttl)).Int64()
	if err != nil {
		return false, errors.Wrap(err, "redis storage cas failure")
	}

	return n == 1, nil
}

// AddIfAbsent implements store.Conn.
func (s *Storage) AddIfAbsent(ctx context.Context, key string, value int64, ttl int32) (bool, error) {
	n, err := addScript.Run(ctx, s.client,
		[]string{s.counterKey(key), s.seqKey},
		value, int64(ttl)).Int64()
	if err != nil {
		return false, errors.Wrap(err, "redis storage add failure")
	}

	return n == 1, nil
}

// MultiGet implements store.Conn.
func (s *Storage) MultiGet(ctx context.Context, keys []string) (map[string]int64, error) {
	values := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGet(ctx, s.counterKey(key), valueField)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, errors.Wrap(err, "redis storage pipeline failure")
	}

	for i, cmd := range cmds {
		v, err := cmd.Int64()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "redis storage invalid value for %q", keys[i])
		}
		values[keys[i]] = v
	}

	return values, nil
}

// Close implements store.Conn.
func (s *Storage) Close() error {
	return s.client.Close()
}
