// Package redis owns the shared go-redis client and its pool telemetry.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"emblem/internal/platform/config"
)

// Client wraps go-redis with the probe shape the readiness endpoint wants.
type Client struct {
	*redis.Client
}

// New connects using the parsed URL with pool overrides from cfg and
// verifies the connection with a ping. A blank URL means Redis is not
// configured; callers get (nil, nil) and fall back to in-process locking.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	pingWindow := cfg.DialTimeout
	if pingWindow <= 0 {
		pingWindow = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingWindow)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prometheus.MustRegister(newPoolCollector(client))
	return &Client{Client: client}, nil
}

// Health reports whether the server still answers a ping.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// poolCollector exposes go-redis pool statistics on the default registry.
// PoolStats counters are cumulative, so they map onto prometheus counters
// at scrape time without delta bookkeeping or a refresh goroutine.
type poolCollector struct {
	stats func() *redis.PoolStats

	hits     *prometheus.Desc
	misses   *prometheus.Desc
	timeouts *prometheus.Desc
	stale    *prometheus.Desc
	total    *prometheus.Desc
	idle     *prometheus.Desc
}

func newPoolCollector(client *redis.Client) *poolCollector {
	return &poolCollector{
		stats:    client.PoolStats,
		hits:     prometheus.NewDesc("emblem_redis_pool_hits_total", "Connections served from the pool.", nil, nil),
		misses:   prometheus.NewDesc("emblem_redis_pool_misses_total", "Connections the pool had to open fresh.", nil, nil),
		timeouts: prometheus.NewDesc("emblem_redis_pool_timeouts_total", "Pool checkouts that timed out.", nil, nil),
		stale:    prometheus.NewDesc("emblem_redis_pool_stale_conns_total", "Stale connections evicted from the pool.", nil, nil),
		total:    prometheus.NewDesc("emblem_redis_pool_total_conns", "Connections currently held by the pool.", nil, nil),
		idle:     prometheus.NewDesc("emblem_redis_pool_idle_conns", "Idle connections in the pool.", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.stale
	ch <- c.total
	ch <- c.idle
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.stale, prometheus.CounterValue, float64(s.StaleConns))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns))
}
