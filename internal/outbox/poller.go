package outbox

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const Topic = "checkout-events"

// PollerStore is the slice of the repository the poller needs.
type PollerStore interface {
	UnprocessedEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// Poller relays unpublished checkout events to kafka. An event is
// marked processed only after the broker accepts it, so a publish
// failure retries on the next tick. Consumers must tolerate the
// resulting at-least-once delivery.
type Poller struct {
	tick      time.Duration
	batchSize int
	repo      PollerStore
	writer    *kafka.Writer
}

func NewPoller(repo PollerStore, brokers ...string) *Poller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Poller{
		tick:      time.Second,
		batchSize: 100,
		repo:      repo,
		writer:    w,
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) Close() error {
	return p.writer.Close()
}

func (p *Poller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.UnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		log.Printf("failed to fetch events %v", err)
		return
	}

	for _, event := range events {
		if errPublish := p.publishToKafka(ctx, event); errPublish != nil {
			log.Printf("failed to publish event id = %v with error %v", event.ID, errPublish)
			continue
		}

		if errMark := p.repo.MarkProcessed(ctx, event.ID); errMark != nil {
			log.Printf("failed to mark event as processed id = %v with error %v", event.ID, errMark)
			continue
		}
	}
}

func (p *Poller) publishToKafka(ctx context.Context, event *Event) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // cart id for ordering
		Value: event.Payload,             // already JSON from the database
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}
