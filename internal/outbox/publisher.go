package outbox

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/uptrace/bun"
)

// Publisher drains unpublished outbox rows to Kafka on a polling loop.
// Rows are claimed with FOR UPDATE SKIP LOCKED, so multiple instances can
// run the loop without double-publishing.
type Publisher struct {
	db        *bun.DB
	repo      *Repository
	log       *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(db *bun.DB, repo *Repository, log *slog.Logger, cfg PublisherConfig) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		db:        db,
		repo:      repo,
		log:       log.With(slog.String("component", "outbox.publisher")),
		brokers:   splitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.log.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(p.brokers...),
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publishBatch(ctx, writer); err != nil {
				p.log.Error("outbox publish failed", slog.Any("err", err))
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer *kafka.Writer) error {
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(records))
		for _, r := range records {
			msg := kafka.Message{
				Topic: r.EventType,
				Key:   []byte(r.AggregateID),
				Value: r.Payload,
				Headers: []kafka.Header{
					{Key: "event_id", Value: []byte(r.EventID.String())},
					{Key: "event_type", Value: []byte(r.EventType)},
				},
			}
			if err := writer.WriteMessages(ctx, msg); err != nil {
				return err
			}
			ids = append(ids, r.ID)
		}

		return p.repo.MarkPublished(ctx, tx, ids)
	})
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
