package kafkax

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// ReadyCheck returns a readiness probe that dials the first reachable broker.
// An empty broker list yields a probe that always passes, matching services
// that run with kafka disabled.
func ReadyCheck(rawBrokers string) func(ctx context.Context) error {
	brokers := SplitBrokers(rawBrokers)
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return nil
		}
		var lastErr error
		for _, broker := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", broker)
			if err != nil {
				lastErr = err
				continue
			}
			conn.Close()
			return nil
		}
		return fmt.Errorf("no kafka broker reachable: %w", lastErr)
	}
}
