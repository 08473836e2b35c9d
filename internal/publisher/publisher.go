package publisher

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	jsoniter "github.com/json-iterator/go"
	"github.com/medbill/ledger/internal/config"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/pubsub"
	"github.com/medbill/ledger/internal/pubsub/kafka"
	"github.com/medbill/ledger/internal/pubsub/memory"
	"github.com/medbill/ledger/internal/types"
	"go.uber.org/fx"
)

// EventPublisher publishes ledger events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event *LedgerEvent) error
	Close() error
}

type eventPublisher struct {
	pubSub pubsub.Publisher
	topic  string
	logger *logger.Logger
}

// Module provides the configured event publisher
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewEventPublisherFromConfig),
	)
}

// NewEventPublisher wraps an existing watermill publisher
func NewEventPublisher(pubSub pubsub.Publisher, topic string, logger *logger.Logger) EventPublisher {
	return &eventPublisher{
		pubSub: pubSub,
		topic:  topic,
		logger: logger,
	}
}

// NewEventPublisherFromConfig selects the backend named in the event_publisher section
func NewEventPublisherFromConfig(lc fx.Lifecycle, cfg *config.Configuration, logger *logger.Logger) (EventPublisher, error) {
	if !cfg.EventPublisher.Enabled {
		logger.Info("ledger event publishing is disabled")
		return NewNoopPublisher(), nil
	}

	var (
		backend pubsub.Publisher
		err     error
	)

	switch cfg.EventPublisher.Backend {
	case types.PublisherBackendKafka:
		backend, err = kafka.NewPublisher(cfg, logger)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to connect to kafka").
				Mark(ierr.ErrSystem)
		}
	case types.PublisherBackendMemory, "":
		backend = memory.NewPubSub(logger)
	default:
		return nil, ierr.NewError("unknown event publisher backend").
			WithHintf("Unsupported event publisher backend %q", cfg.EventPublisher.Backend).
			Mark(ierr.ErrValidation)
	}

	pub := NewEventPublisher(backend, cfg.EventPublisher.Topic, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return pub.Close()
		},
	})
	return pub, nil
}

func (p *eventPublisher) Publish(ctx context.Context, event *LedgerEvent) error {
	payload, err := jsoniter.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode ledger event").
			Mark(ierr.ErrSystem)
	}

	messageID := event.ID
	if messageID == "" {
		messageID = watermill.NewUUID()
	}

	msg := message.NewMessage(messageID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("subject_key", event.SubjectKey)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		msg.Metadata.Set("request_id", requestID)
	}

	if err := p.pubSub.Publish(ctx, p.topic, msg); err != nil {
		p.logger.Errorw("failed to publish ledger event",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type,
			"invoice_id", event.InvoiceID,
		)
		return err
	}

	p.logger.Debugw("published ledger event",
		"event_id", event.ID,
		"event_type", event.Type,
		"invoice_id", event.InvoiceID,
		"topic", p.topic,
	)
	return nil
}

func (p *eventPublisher) Close() error {
	return p.pubSub.Close()
}

type noopPublisher struct{}

// NewNoopPublisher drops every event
func NewNoopPublisher() EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, *LedgerEvent) error { return nil }

func (noopPublisher) Close() error { return nil }
