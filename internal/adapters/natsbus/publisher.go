// Package natsbus mirrors change notifications onto NATS subjects so other
// processes can follow them.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "intellitest"

// Publisher sends every event to "<prefix>.<channel>".
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

var _ domain.Notifier = (*Publisher)(nil)

// Connect dials url and returns a publisher owning the connection.
func Connect(url, prefix string, logger *slog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("intellitest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewPublisher(conn, prefix, logger), nil
}

func NewPublisher(conn *nats.Conn, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

func (p *Publisher) Subject(channel string) string {
	return p.prefix + "." + channel
}

func (p *Publisher) Notify(_ context.Context, event domain.Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("encode NATS event", "channel", event.Channel, "err", err)
		return
	}
	if err := p.conn.Publish(p.Subject(event.Channel), raw); err != nil {
		p.logger.Warn("publish NATS event", "channel", event.Channel, "err", err)
	}
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
