package service

import (
	"context"
	"fmt"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"
	pktNats "mindful-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IPublisherService puts orchestrator events on the in-process bus. It is
// the events.Emitter every companion session writes to.
type IPublisherService interface {
	events.Emitter
	Publish(ctx context.Context, event events.Event) error
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
	logger    logger.ILogger
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel, log logger.ILogger) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
		logger:    log,
	}
}

func (p *publisherService) Publish(ctx context.Context, event events.Event) error {
	payload, err := pktNats.Encode(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", event.EventType())
	msg.Metadata.Set("session_id", event.Session())

	if err := p.pubSub.Publish(p.topicName, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType(), err)
	}
	return nil
}

func (p *publisherService) Emit(event events.Event) {
	if err := p.Publish(context.Background(), event); err != nil {
		p.logger.Error("PublisherService", "Dropped event", map[string]interface{}{
			"type":       event.EventType(),
			"session_id": event.Session(),
			"error":      err.Error(),
		})
	}
}
