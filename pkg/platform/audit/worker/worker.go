// Package worker drains the audit outbox into Kafka. Kafka is the source of
// truth for the compliance trail; the outbox table only bridges the gap
// between the document transaction and the broker.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/okatech-org/digitalium-archive/pkg/platform/audit/store/postgres"
)

const defaultBatchSize = 100

// Worker polls the outbox for unpublished entries and produces them to the
// audit topic. Entries are marked published only after the broker
// acknowledges the record, so a crash re-publishes instead of losing events.
type Worker struct {
	outbox   *postgres.Store
	client   *kgo.Client
	topic    string
	interval time.Duration
	logger   *slog.Logger
}

func New(outbox *postgres.Store, client *kgo.Client, topic string, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		outbox:   outbox,
		client:   client,
		topic:    topic,
		interval: interval,
		logger:   logger,
	}
}

// Run drains the outbox on every tick until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				// Broker or database hiccups are retried on the next tick;
				// the outbox keeps the events.
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	for {
		entries, err := w.outbox.FetchUnpublished(ctx, defaultBatchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		for _, entry := range entries {
			record := &kgo.Record{
				Topic: w.topic,
				Key:   []byte(entry.Category),
				Value: entry.Payload,
			}
			if err := w.client.ProduceSync(ctx, record).FirstErr(); err != nil {
				return err
			}
			if err := w.outbox.MarkPublished(ctx, entry.ID); err != nil {
				return err
			}
		}

		if len(entries) < defaultBatchSize {
			return nil
		}
	}
}
