package service

import (
	"context"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"
	pktNats "mindful-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// JournalFunc receives resolved turns for the realm journal.
type JournalFunc func(ctx context.Context, event events.Event) error

// consumerService drains the bus in publish order and hands every event to
// the sinks: the websocket hub, the effect router and the speech
// dispatcher. Sinks must return quickly and never call back into a session,
// since publishers wait for the ack while holding their own locks.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	sinks     []events.Emitter
	journal   JournalFunc
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	sinks []events.Emitter,
	journal JournalFunc,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		sinks:     sinks,
		journal:   journal,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	event, err := pktNats.Decode("", msg.Payload)
	if err != nil {
		cs.logger.Error("ConsumerService", "Failed to decode event", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	for _, sink := range cs.sinks {
		sink.Emit(event)
	}
	msg.Ack()

	if cs.journal != nil && event.EventType() == events.TypeTurnResolved {
		go cs.record(ctx, event)
	}
}

func (cs *consumerService) record(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cs.journal(ctx, event); err != nil {
		cs.logger.Warn("ConsumerService", "Failed to journal resolved turn", map[string]interface{}{
			"session_id": event.Session(),
			"error":      err.Error(),
		})
	}
}
