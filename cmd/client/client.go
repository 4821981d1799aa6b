package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/peterbourgon/ff"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	transporthttp "github.com/samueltorres/r8backend/pkg/transport/http"
)

func main() {
	fs := flag.NewFlagSet("r8client", flag.ExitOnError)
	var (
		apiAddr     = fs.String("api-addr", "http://localhost:8082", "counter api base url")
		key         = fs.String("key", "country_PT", "counter key")
		maximum     = fs.Int64("maximum", 100, "counter maximum")
		ttl         = fs.Duration("ttl", time.Minute, "counter ttl")
		workers     = fs.Int("workers", 8, "concurrent callers")
		requests    = fs.Int("requests", 1000, "total calls to make")
		callTimeout = fs.Duration("timeout", time.Second, "per call timeout")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("R8_CLIENT")); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(2)
	}

	logger := logrus.New()
	c := transporthttp.NewClient(*apiAddr, &http.Client{Timeout: *callTimeout})

	created, err := seedCounter(c, *key, *ttl, *callTimeout)
	if err != nil {
		logger.Fatalf("could not create counter %q: %v", *key, err)
	}
	logger.WithField("created", created).Infof("counter %q ready", *key)

	var (
		allowed, rejected, failed atomic.Int64
		remaining                 = atomic.NewInt64(int64(*requests))
		wg                        sync.WaitGroup
	)

	begin := time.Now()
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for remaining.Dec() >= 0 {
				ok, err := makeCall(c, *key, *maximum, ttl.Milliseconds(), *callTimeout)
				switch {
				case err != nil:
					failed.Inc()
					logger.Warn(err)
				case ok:
					allowed.Inc()
				default:
					rejected.Inc()
				}
			}
		}()
	}
	wg.Wait()

	logger.WithFields(logrus.Fields{
		"allowed":  allowed.Load(),
		"rejected": rejected.Load(),
		"failed":   failed.Load(),
		"took":     time.Since(begin),
	}).Info("done")
}

// seedCounter creates key at zero. Incr never creates a counter, so
// without it every call would be rejected.
func seedCounter(c *transporthttp.Client, key string, ttl, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return c.Add(ctx, key, 0, ttl.Milliseconds())
}

func makeCall(c *transporthttp.Client, key string, maximum, ttl int64, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return c.Incr(ctx, key, 1, maximum, ttl)
}
