package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/esimov/facemark/internal/config"
)

// NATS publishes JSON events over a NATS connection.
type NATS struct {
	conn *nats.Conn
}

func Connect(cfg *config.Config) (*NATS, error) {
	opts := []nats.Option{
		nats.Name("facemark"),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.NatsURL).Msg("NATS connection established")

	return &NATS{conn: conn}, nil
}

func (n *NATS) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return n.conn.Publish(subject, payload)
}

func (n *NATS) IsConnected() bool {
	return n.conn != nil && n.conn.IsConnected()
}

// Shutdown drains the connection, falling back to an immediate close.
func (n *NATS) Shutdown() error {
	if n.conn == nil {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
		n.conn.Close()
		return err
	}
	return nil
}
