package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gocql/gocql"
	"github.com/oklog/run"
	"github.com/peterbourgon/ff"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	"github.com/sirupsen/logrus"

	"github.com/samueltorres/r8backend/pkg/backend"
	"github.com/samueltorres/r8backend/pkg/cassandra"
	"github.com/samueltorres/r8backend/pkg/configs"
	"github.com/samueltorres/r8backend/pkg/memcached"
	"github.com/samueltorres/r8backend/pkg/memory"
	"github.com/samueltorres/r8backend/pkg/pool"
	"github.com/samueltorres/r8backend/pkg/redis"
	"github.com/samueltorres/r8backend/pkg/store"
	transporthttp "github.com/samueltorres/r8backend/pkg/transport/http"
)

func main() {
	config, loader := parseConfig()
	logger := createLogger(config)
	logger.Infof("starting r8backend %s", version.Info())

	if loader != nil {
		loader.OnChange(config, func(c configs.Config) {
			setLogLevel(logger, c.LogLevel)
		}, func(err error) {
			logger.Error(err)
		})
	}

	if err := serve(config, logger); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

// serve runs the server until a signal or a failing actor stops it.
// Store resources are released before it returns.
func serve(config configs.Config, logger *logrus.Logger) error {
	// metrics
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		versioncollector.NewCollector("r8backend"),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dialer, cleanup, err := createDialer(config, logger)
	if err != nil {
		return errors.Wrap(err, "could not create counter storage")
	}
	defer cleanup()

	connPool, err := pool.New(config.PoolSize, dialer, logger, metrics)
	if err != nil {
		return errors.Wrap(err, "could not create store pool")
	}
	defer connPool.Close()

	counterBackend := backend.New(connPool, logger, metrics, backend.WithRetryPolicy(backend.RetryPolicy{
		MaxRetries:          config.Retry.MaxRetries,
		InitialInterval:     config.Retry.InitialInterval,
		MaxInterval:         config.Retry.MaxInterval,
		Multiplier:          config.Retry.Multiplier,
		RandomizationFactor: config.Retry.RandomizationFactor,
	}))

	var g run.Group
	{
		apiServer := transporthttp.New(
			counterBackend,
			logger,
			metrics,
			transporthttp.WithListen(config.HttpAddr))

		g.Add(func() error {
			return apiServer.Start()
		}, func(err error) {
			apiServer.Stop(err)
		})
	}
	{
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		debugServer := &http.Server{
			Addr:              config.DebugAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Add(func() error {
			logger.Infof("debug server listening on %s", config.DebugAddr)
			if err := debugServer.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			debugServer.Shutdown(ctx)
		})
	}
	if s, ok := memoryStorage(config, dialer); ok {
		cancel := make(chan struct{})
		g.Add(func() error {
			return s.RunPurge(cancel, time.Minute)
		}, func(error) {
			close(cancel)
		})
	}
	{
		cancel := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancel:
				return nil
			}
		}, func(error) {
			close(cancel)
		})
	}

	logger.Info("exit: ", g.Run())
	return nil
}

func parseConfig() (configs.Config, *configs.FileLoader) {
	defaults := configs.Default()

	fs := flag.NewFlagSet("r8backend", flag.ExitOnError)
	var (
		configFile        = fs.String("config-file", "", "optional yaml/json/toml config file, flags take precedence")
		httpAddress       = fs.String("http-addr", defaults.HttpAddr, "counter api address")
		debugAddress      = fs.String("debug-addr", defaults.DebugAddr, "debug address for metrics and healthcheck")
		datastore         = fs.String("datastore", defaults.Datastore, "datastore type (memory/redis/cassandra/memcached)")
		poolSize          = fs.Int("pool-size", defaults.PoolSize, "number of pooled store connections")
		cassandraHosts    = fs.String("cassandra-hosts", "", "comma separated cassandra hosts")
		cassandraKeyspace = fs.String("cassandra-keyspace", "", "cassandra keyspace")
		cassandraTable    = fs.String("cassandra-table", defaults.Cassandra.Table, "cassandra counters table")
		redisAddress      = fs.String("redis-address", "", "redis address")
		redisDatabase     = fs.Int("redis-database", 0, "redis database")
		redisPassword     = fs.String("redis-password", "", "redis password")
		redisPrefix       = fs.String("redis-prefix", defaults.Redis.Prefix, "redis key prefix")
		memcachedServers  = fs.String("memcached-servers", "", "comma separated memcached servers")
		memcachedTimeout  = fs.Duration("memcached-timeout", defaults.Memcached.Timeout, "memcached socket timeout")
		maxRetries        = fs.Int("retry-max", defaults.Retry.MaxRetries, "max cas retries per operation (0 retries forever)")
		retryInitial      = fs.Duration("retry-initial-interval", defaults.Retry.InitialInterval, "first cas retry backoff")
		retryMax          = fs.Duration("retry-max-interval", defaults.Retry.MaxInterval, "cas retry backoff ceiling")
		logLevel          = fs.String("log-level", defaults.LogLevel, "log level (panic, fatal, error, warn, info, debug, trace)")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("R8")); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(2)
	}

	config := defaults
	var loader *configs.FileLoader
	if *configFile != "" {
		var err error
		loader, err = configs.NewFileLoader(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		config, err = loader.Load(defaults)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}

	// only flags that were set, on the command line or through the
	// environment, override the config file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			config.HttpAddr = *httpAddress
		case "debug-addr":
			config.DebugAddr = *debugAddress
		case "datastore":
			config.Datastore = *datastore
		case "pool-size":
			config.PoolSize = *poolSize
		case "cassandra-hosts":
			config.Cassandra.Hosts = splitList(*cassandraHosts)
		case "cassandra-keyspace":
			config.Cassandra.Keyspace = *cassandraKeyspace
		case "cassandra-table":
			config.Cassandra.Table = *cassandraTable
		case "redis-address":
			config.Redis.Address = *redisAddress
		case "redis-database":
			config.Redis.Database = *redisDatabase
		case "redis-password":
			config.Redis.Password = *redisPassword
		case "redis-prefix":
			config.Redis.Prefix = *redisPrefix
		case "memcached-servers":
			config.Memcached.Servers = splitList(*memcachedServers)
		case "memcached-timeout":
			config.Memcached.Timeout = *memcachedTimeout
		case "retry-max":
			config.Retry.MaxRetries = *maxRetries
		case "retry-initial-interval":
			config.Retry.InitialInterval = *retryInitial
		case "retry-max-interval":
			config.Retry.MaxInterval = *retryMax
		case "log-level":
			config.LogLevel = *logLevel
		}
	})

	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	return config, loader
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func createLogger(config configs.Config) *logrus.Logger {
	logger := logrus.StandardLogger()
	setLogLevel(logger, config.LogLevel)

	return logger
}

func setLogLevel(logger *logrus.Logger, lvl string) {
	level, err := logrus.ParseLevel(lvl)
	if err != nil {
		level = logrus.ErrorLevel
	}

	logger.Infof("setting log level to %v", level)
	logger.SetLevel(level)
}

// createDialer returns the dialer for the configured datastore and a
// cleanup func for resources shared by all of its connections.
func createDialer(config configs.Config, logger *logrus.Logger) (store.Dialer, func(), error) {
	noop := func() {}

	switch config.Datastore {
	case configs.DatastoreMemory:
		return memory.NewStorage(logger).Dialer(), noop, nil

	case configs.DatastoreRedis:
		return redis.Dialer(redis.Options{
			Address:  config.Redis.Address,
			Password: config.Redis.Password,
			Database: config.Redis.Database,
			Prefix:   config.Redis.Prefix,
		}, logger), noop, nil

	case configs.DatastoreCassandra:
		cluster := gocql.NewCluster(config.Cassandra.Hosts...)
		cluster.Keyspace = config.Cassandra.Keyspace
		cluster.Consistency = gocql.LocalQuorum
		cluster.SerialConsistency = gocql.LocalSerial
		cluster.NumConns = config.PoolSize
		session, err := cluster.CreateSession()
		if err != nil {
			return nil, noop, errors.Wrap(err, "could not create cassandra session")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := cassandra.NewRemoteStorage(ctx, logger, session, config.Cassandra.Keyspace, config.Cassandra.Table)
		if err != nil {
			session.Close()
			return nil, noop, err
		}
		return cassandra.Dialer(s), session.Close, nil

	case configs.DatastoreMemcached:
		return memcached.Dialer(memcached.Options{
			Servers: config.Memcached.Servers,
			Timeout: config.Memcached.Timeout,
		}, logger), noop, nil

	default:
		return nil, noop, errors.Errorf("invalid datastore %s", config.Datastore)
	}
}

func memoryStorage(config configs.Config, dial store.Dialer) (*memory.Storage, bool) {
	if config.Datastore != configs.DatastoreMemory {
		return nil, false
	}
	conn, err := dial()
	if err != nil {
		return nil, false
	}
	s, ok := conn.(*memory.Storage)
	return s, ok
}
