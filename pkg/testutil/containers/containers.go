//go:build integration

// Package containers provides shared testcontainers fixtures. A container
// starts on first request and is reused by every suite in the package.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out one container per backend per test package.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	kafka    *KafkaContainer
}

var global = &Manager{}

// GetManager returns the package-wide manager.
func GetManager() *Manager { return global }

func obtain[T any](m *Manager, t *testing.T, slot **T, start func(*testing.T) *T) *T {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}

// GetPostgres starts Postgres on first use and returns it thereafter.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	return obtain(m, t, &m.postgres, NewPostgresContainer)
}

// GetRedis starts Redis on first use and returns it thereafter.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	return obtain(m, t, &m.redis, NewRedisContainer)
}

// GetKafka starts Redpanda on first use and returns it thereafter.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	return obtain(m, t, &m.kafka, NewKafkaContainer)
}
