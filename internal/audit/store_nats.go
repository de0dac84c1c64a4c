package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// NatsStore is an EventStore that publishes each record as JSON to a
// per-kind NATS subject, following the <product>.<domain>.<action> naming
// convention. A downstream event-sourced analysis service (out of scope,
// §1) subscribes to unionsquare.audit.> to consume the full stream.
type NatsStore struct {
	conn *nats.Conn
}

// NewNatsStore connects to the NATS server at url.
func NewNatsStore(url string) (*NatsStore, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("audit: connect to nats: %w", err)
	}
	return &NatsStore{conn: conn}, nil
}

// subject returns unionsquare.audit.<kind>, lowercased so subjects stay
// consistent regardless of how Kind constants are cased.
func subject(kind Kind) string {
	return "unionsquare.audit." + strings.ToLower(string(kind))
}

// Put publishes record's JSON encoding to its kind-scoped subject.
func (s *NatsStore) Put(_ context.Context, record Record) error {
	payload, err := record.Marshal()
	if err != nil {
		return &PermanentError{Err: fmt.Errorf("audit: encode record: %w", err)}
	}
	if err := s.conn.Publish(subject(record.Kind), payload); err != nil {
		return fmt.Errorf("audit: nats publish: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (s *NatsStore) Close() error {
	return s.conn.Drain()
}
