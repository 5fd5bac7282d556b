package messagebroker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the narrow broker surface the application needs; the
// concrete NATS client satisfies it, tests use a double.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NatsClient wraps a NATS connection.
type NatsClient struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNatsClient connects to NATS with reconnect handling.
// natsURL example: "nats://localhost:4222".
func NewNatsClient(natsURL, appName string, logger *slog.Logger) (*NatsClient, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(appName),
		nats.Timeout(5*time.Second),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Error("NATS connection closed", "error", nc.LastError())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NatsClient{conn: nc, logger: logger}, nil
}

// Publish sends data on the given subject. The context is honored only up
// to the client-side buffer; NATS publishes are fire-and-forget.
func (c *NatsClient) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection so buffered messages are flushed.
func (c *NatsClient) Close() {
	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Drain()
		c.conn.Close()
	}
}
