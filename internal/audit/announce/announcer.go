// Package announce fans audit entries out to Kafka after commit. The trail in
// Postgres is the source of truth; the stream exists for downstream consumers
// (alerting, BI) and is strictly best-effort.
package announce

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"credara/internal/audit"
)

// Announcer publishes audit entries to a Kafka topic. Publish never returns
// an error: a failed produce is logged and dropped so the stream can never
// block or fail an admin mutation that already committed.
type Announcer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func New(brokers []string, topic string, logger *slog.Logger) (*Announcer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &Announcer{client: client, topic: topic, logger: logger}, nil
}

// Publish produces the entry asynchronously, keyed by admin ID so one admin's
// actions stay ordered within a partition.
func (a *Announcer) Publish(ctx context.Context, e *audit.Entry) {
	payload, err := json.Marshal(e)
	if err != nil {
		a.logger.ErrorContext(ctx, "audit announce: marshal entry", "error", err, "entry_id", e.ID.String())
		return
	}
	record := &kgo.Record{
		Key:   []byte(e.AdminID.String()),
		Value: payload,
	}
	a.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			a.logger.Error("audit announce: produce failed", "error", err, "entry_id", e.ID.String())
		}
	})
}

// Close flushes buffered records and releases the client.
func (a *Announcer) Close(ctx context.Context) {
	if err := a.client.Flush(ctx); err != nil {
		a.logger.Error("audit announce: flush failed", "error", err)
	}
	a.client.Close()
}
