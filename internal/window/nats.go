package window

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/publisher"
)

// SubscribeNATS feeds quadruples published by a publisher.NATSSink on
// subject into e. Messages that do not decode are logged and dropped.
func SubscribeNATS(nc *nats.Conn, subject string, e *Evaluator) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(subject, natsHandler(e))
	if err != nil {
		return nil, ir.ConnectivityError(fmt.Sprintf("subscribe to NATS subject %s", subject), err)
	}
	slog.Info("evaluator subscribed to NATS", "subject", subject)
	return sub, nil
}

func natsHandler(e *Evaluator) nats.MsgHandler {
	return func(msg *nats.Msg) {
		if err := ingest(e, msg.Data); err != nil {
			slog.Warn("quadruple dropped", "subject", msg.Subject, "error", err)
		}
	}
}

func ingest(e *Evaluator, data []byte) error {
	var m publisher.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return ir.InputError("decode quadruple", err)
	}
	return e.Publish(m.Stream, m.Subject, m.Predicate, m.Object, m.TimestampMillis)
}
