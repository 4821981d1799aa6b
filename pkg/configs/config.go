package configs

import (
	"time"

	"github.com/pkg/errors"
)

const (
	DatastoreMemory    = "memory"
	DatastoreRedis     = "redis"
	DatastoreCassandra = "cassandra"
	DatastoreMemcached = "memcached"
)

type Config struct {
	HttpAddr  string          `mapstructure:"http_addr"`
	DebugAddr string          `mapstructure:"debug_addr"`
	Datastore string          `mapstructure:"datastore"`
	PoolSize  int             `mapstructure:"pool_size"`
	LogLevel  string          `mapstructure:"log_level"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cassandra CassandraConfig `mapstructure:"cassandra"`
	Memcached MemcachedConfig `mapstructure:"memcached"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Database int    `mapstructure:"database"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
}

type CassandraConfig struct {
	Hosts    []string `mapstructure:"hosts"`
	Keyspace string   `mapstructure:"keyspace"`
	Table    string   `mapstructure:"table"`
}

type MemcachedConfig struct {
	Servers []string      `mapstructure:"servers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetryConfig bounds the compare-and-swap retry loops. MaxRetries 0
// retries forever.
type RetryConfig struct {
	MaxRetries          int           `mapstructure:"max_retries"`
	InitialInterval     time.Duration `mapstructure:"initial_interval"`
	MaxInterval         time.Duration `mapstructure:"max_interval"`
	Multiplier          float64       `mapstructure:"multiplier"`
	RandomizationFactor float64       `mapstructure:"randomization_factor"`
}

// Default returns the configuration used for anything not set by a
// config file, flag or environment variable.
func Default() Config {
	return Config{
		HttpAddr:  ":8082",
		DebugAddr: ":8083",
		Datastore: DatastoreMemory,
		PoolSize:  8,
		LogLevel:  "info",
		Redis: RedisConfig{
			Prefix: "r8:",
		},
		Cassandra: CassandraConfig{
			Table: "counters",
		},
		Memcached: MemcachedConfig{
			Timeout: 500 * time.Millisecond,
		},
		Retry: RetryConfig{
			MaxRetries:          64,
			InitialInterval:     time.Millisecond,
			MaxInterval:         100 * time.Millisecond,
			Multiplier:          2,
			RandomizationFactor: 0.5,
		},
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.PoolSize <= 0 {
		return errors.Errorf("pool size must be positive (%d)", c.PoolSize)
	}

	switch c.Datastore {
	case DatastoreMemory:
	case DatastoreRedis:
		if c.Redis.Address == "" {
			return errors.New("redis address is required")
		}
	case DatastoreCassandra:
		if len(c.Cassandra.Hosts) == 0 {
			return errors.New("cassandra hosts are required")
		}
		if c.Cassandra.Keyspace == "" {
			return errors.New("cassandra keyspace is required")
		}
	case DatastoreMemcached:
		if len(c.Memcached.Servers) == 0 {
			return errors.New("memcached servers are required")
		}
	default:
		return errors.Errorf("invalid datastore %s", c.Datastore)
	}

	if c.Retry.MaxRetries < 0 {
		return errors.Errorf("retry max retries must not be negative (%d)", c.Retry.MaxRetries)
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return errors.Errorf("invalid retry intervals (initial %s, max %s)", c.Retry.InitialInterval, c.Retry.MaxInterval)
	}
	if c.Retry.Multiplier < 1 {
		return errors.Errorf("retry multiplier must be at least 1 (%v)", c.Retry.Multiplier)
	}
	if c.Retry.RandomizationFactor < 0 || c.Retry.RandomizationFactor > 1 {
		return errors.Errorf("retry randomization factor must be within [0, 1] (%v)", c.Retry.RandomizationFactor)
	}

	return nil
}
