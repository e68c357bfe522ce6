package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Checker answers readiness probes for the Kafka cluster. It dials raw
// TCP instead of going through the producer client, so a wedged producer
// cannot mask an unreachable broker and vice versa.
type Checker struct {
	brokers []string
	timeout time.Duration
}

// NewChecker parses a comma-separated broker list into a Checker.
func NewChecker(brokers string) *Checker {
	c := &Checker{timeout: 5 * time.Second}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			c.brokers = append(c.brokers, b)
		}
	}
	return c
}

// Check returns nil when at least one broker accepts a connection.
func (c *Checker) Check(ctx context.Context) error {
	if len(c.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	dialer := net.Dialer{Timeout: c.timeout}
	var lastErr error
	for _, broker := range c.brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}
