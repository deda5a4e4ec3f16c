package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/nats-io/nats.go"
)

var _ Publisher = (*NATSPublisher)(nil)

// envelope is the wire format for published events.
type envelope struct {
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NATSPublisher implements Publisher on top of a NATS connection. Events for
// channel C are published on subject "events.C".
type NATSPublisher struct {
	conn *nats.Conn
	now  func() time.Time
}

// NewNATSPublisher connects to the NATS server at the given URL.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect to NATS")
	}
	return &NATSPublisher{conn: conn, now: time.Now}, nil
}

// Publish sends the event payload on the channel's subject.
func (p *NATSPublisher) Publish(_ context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal event payload")
	}

	msg, err := json.Marshal(envelope{
		Event:      event,
		OccurredAt: p.now().UTC(),
		Data:       data,
	})
	if err != nil {
		return errors.Wrap(err, "marshal event envelope")
	}

	if err := p.conn.Publish("events."+channel, msg); err != nil {
		return errors.Wrapf(err, "publish %s to %s", event, channel)
	}
	return nil
}

// Healthy reports whether the underlying connection is usable.
func (p *NATSPublisher) Healthy() bool {
	return p.conn.Status() == nats.CONNECTED
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	p.conn.Close()
}
