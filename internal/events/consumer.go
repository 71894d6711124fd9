package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

const consumerGroup = "evaluation-generator"

// BackfillFunc re-runs the evaluation generator for one cycle
type BackfillFunc func(ctx context.Context, cycleID uint) (int, error)

// GeneratorConsumer subscribes to the event topic and re-runs the generator
// whenever a cycle membership change arrives. The generator is idempotent, so
// consuming our own messages alongside those of other instances is harmless.
type GeneratorConsumer struct {
	router   *message.Router
	backfill BackfillFunc
	logger   *slog.Logger
}

// NewGeneratorConsumer wires a Kafka consumer group onto the event topic.
func NewGeneratorConsumer(brokers []string, logger *slog.Logger, backfill BackfillFunc) (*GeneratorConsumer, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:       brokers,
			Unmarshaler:   kafka.DefaultMarshaler{},
			ConsumerGroup: consumerGroup,
		},
		wmLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create message router: %w", err)
	}

	consumer := &GeneratorConsumer{
		router:   router,
		backfill: backfill,
		logger:   logger,
	}

	router.AddNoPublisherHandler(
		"generator-section-sync",
		defaultTopic,
		subscriber,
		consumer.handle,
	)

	return consumer, nil
}

// Run blocks until the context is cancelled or the router stops.
func (c *GeneratorConsumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

func (c *GeneratorConsumer) Close() error {
	return c.router.Close()
}

func (c *GeneratorConsumer) handle(msg *message.Message) error {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// Malformed messages are dropped, not retried
		c.logger.Error("Dropping undecodable event", "message_id", msg.UUID, "error", err)
		return nil
	}

	switch event.Type {
	case EventCycleSectionsAdded, EventCycleSectionsRemoved:
	default:
		return nil
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		c.logger.Error("Dropping event with unreadable payload", "event_id", event.ID, "error", err)
		return nil
	}
	var changed SectionsChangedEvent
	if err := json.Unmarshal(data, &changed); err != nil {
		c.logger.Error("Dropping event with unreadable payload", "event_id", event.ID, "error", err)
		return nil
	}

	created, err := c.backfill(msg.Context(), changed.CycleID)
	if err != nil {
		// Returning the error makes watermill redeliver the message
		return fmt.Errorf("generator sync for cycle %d failed: %w", changed.CycleID, err)
	}
	if created > 0 {
		c.logger.Info("Generator sync created missing evaluations",
			"cycle_id", changed.CycleID, "created", created)
	}

	return nil
}
