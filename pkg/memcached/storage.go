package memcached

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/samueltorres/r8backend/pkg/store"
)

// maxRelativeExpiration is the largest exptime memcached reads as a
// number of seconds. Anything larger is taken as an absolute unix time.
const maxRelativeExpiration = 60 * 60 * 24 * 30

// Options configure the client each pooled connection opens. TTLs above
// 30 days are sent as absolute unix times so they keep their meaning.
type Options struct {
	Servers []string
	Timeout time.Duration
}

// Storage is a store.Conn backed by memcached's gets/cas/add commands.
// Counters are stored as decimal ASCII so they stay readable with incr
// and other memcached tooling.
type Storage struct {
	client *memcache.Client
	logger *logrus.Logger
	now    func() time.Time
}

// NewStorage pings every server of client.
func NewStorage(client *memcache.Client, logger *logrus.Logger) (*Storage, error) {
	if err := client.Ping(); err != nil {
		return nil, errors.Wrap(err, "could not connect to memcached")
	}

	return &Storage{client: client, logger: logger, now: time.Now}, nil
}

// Dialer opens one client per pool slot, each keeping a single idle
// connection per server.
func Dialer(opts Options, logger *logrus.Logger) store.Dialer {
	return func() (store.Conn, error) {
		if len(opts.Servers) == 0 {
			return nil, errors.New("no memcached servers configured")
		}

		client := memcache.New(opts.Servers...)
		client.MaxIdleConns = 1
		if opts.Timeout > 0 {
			client.Timeout = opts.Timeout
		}

		s, err := NewStorage(client, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		return s, nil
	}
}

// expiration converts a ttl in seconds to a memcached exptime.
func (s *Storage) expiration(ttl int32) int32 {
	if ttl <= maxRelativeExpiration {
		return ttl
	}

	abs := s.now().Unix() + int64(ttl)
	if abs > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(abs)
}

func parseValue(item *memcache.Item) (int64, error) {
	return strconv.ParseInt(string(item.Value), 10, 64)
}

func formatValue(value int64) []byte {
	return []byte(strconv.FormatInt(value, 10))
}

// GetWithVersion implements store.Conn. The version is memcached's cas
// unique.
func (s *Storage) GetWithVersion(ctx context.Context, key string) (int64, store.Version, bool, error) {
	item, err := s.client.Get(key)
	if err == memcache.ErrCacheMiss {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, errors.Wrap(err, "memcached storage get failure")
	}

	value, err := parseValue(item)
	if err != nil {
		return 0, 0, false, errors.Wrapf(err, "memcached storage invalid value for %q", key)
	}

	return value, store.Version(item.CasID), true, nil
}

// CompareAndSwap implements store.Conn.
func (s *Storage) CompareAndSwap(ctx context.Context, key string, value int64, version store.Version, ttl int32) (bool, error) {
	err := s.client.CompareAndSwap(&memcache.Item{
		Key:        key,
		Value:      formatValue(value),
		Expiration: s.expiration(ttl),
		CasID:      uint64(version),
	})

	switch err {
	case nil:
		return true, nil
	case memcache.ErrCASConflict, memcache.ErrNotStored, memcache.ErrCacheMiss:
		return false, nil
	default:
		return false, errors.Wrap(err, "memcached storage cas failure")
	}
}

// AddIfAbsent implements store.Conn.
func (s *Storage) AddIfAbsent(ctx context.Context, key string, value int64, ttl int32) (bool, error) {
	err := s.client.Add(&memcache.Item{
		Key:        key,
		Value:      formatValue(value),
		Expiration: s.expiration(ttl),
	})

	switch err {
	case nil:
		return true, nil
	case memcache.ErrNotStored:
		return false, nil
	default:
		return false, errors.Wrap(err, "memcached storage add failure")
	}
}

// MultiGet implements store.Conn. Entries that do not hold an integer
// are skipped like absent ones.
func (s *Storage) MultiGet(ctx context.Context, keys []string) (map[string]int64, error) {
	values := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	items, err := s.client.GetMulti(keys)
	if err != nil {
		return nil, errors.Wrap(err, "memcached storage multi get failure")
	}

	for key, item := range items {
		v, err := parseValue(item)
		if err != nil {
			s.logger.Debugf("skipping non integer value for %q", key)
			continue
		}
		values[key] = v
	}

	return values, nil
}

// Close implements store.Conn.
func (s *Storage) Close() error {
	return s.client.Close()
}
