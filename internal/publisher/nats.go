package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/roach88/provstream/internal/ir"
)

// Message is the JSON body of one quadruple on a NATS subject.
type Message struct {
	Stream string `json:"stream"`
	ir.Quadruple
}

// Conn is the part of *nats.Conn a NATSSink uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes quadruples as JSON messages on a NATS subject, for an
// evaluator running in another process.
type NATSSink struct {
	conn    Conn
	subject string
	close   func()
}

// NewNATSSink wraps an established connection.
func NewNATSSink(conn Conn, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

// DialNATS connects to url and returns a sink publishing on subject.
// Connection failures are ConnectivityErrors.
func DialNATS(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("provstream-publisher"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, ir.ConnectivityError(fmt.Sprintf("connect to NATS at %s", url), err)
	}
	slog.Info("connected to NATS", "url", nc.ConnectedUrl(), "subject", subject)

	s := NewNATSSink(nc, subject)
	s.close = func() {
		if err := nc.Drain(); err != nil {
			slog.Warn("NATS drain failed", "error", err)
		}
	}
	return s, nil
}

// Publish sends one quadruple. Implements Sink.
func (s *NATSSink) Publish(streamID, subject, predicate, object string, timestampMillis int64) error {
	data, err := json.Marshal(Message{
		Stream: streamID,
		Quadruple: ir.Quadruple{
			Subject:         subject,
			Predicate:       predicate,
			Object:          object,
			TimestampMillis: timestampMillis,
		},
	})
	if err != nil {
		return ir.InternalError("marshal quadruple", err)
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return ir.ConnectivityError(fmt.Sprintf("publish to NATS subject %s", s.subject), err)
	}
	return nil
}

// Close drains the connection if the sink dialed it.
func (s *NATSSink) Close() {
	if s.close != nil {
		s.close()
	}
}
