package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	zlog "github.com/rs/zerolog/log"
)

// Connect dials NATS with unlimited reconnects.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("tradejournal-api"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				zlog.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			zlog.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Conn is the part of *nats.Conn the forwarder needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder republishes events on <prefix>.<event type>.
type NATSForwarder struct {
	conn   Conn
	prefix string
}

func NewNATSForwarder(conn Conn, prefix string) *NATSForwarder {
	return &NATSForwarder{conn: conn, prefix: prefix}
}

func (f *NATSForwarder) Subject(t Type) string {
	if f.prefix == "" {
		return string(t)
	}
	return f.prefix + "." + string(t)
}

// Handle satisfies Handler so the forwarder can subscribe to a Dispatcher.
func (f *NATSForwarder) Handle(_ context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", evt.Type, err)
	}
	if err := f.conn.Publish(f.Subject(evt.Type), data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", evt.Type, err)
	}
	return nil
}
