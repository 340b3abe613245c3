package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const localTopic = "events"

// LocalBus is the in-process event bus used when NATS is not configured.
// Every event travels on one watermill topic; subscribers filter by subject.
type LocalBus struct {
	pubSub *gochannel.GoChannel
}

func NewLocalBus() *LocalBus {
	return &LocalBus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewStdLogger(false, false),
		),
	}
}

func (b *LocalBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(BaseEvent{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("subject", Subject(event.EventType()))
	if err := b.pubSub.Publish(localTopic, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
	}
	return nil
}

// Subscribe consumes until ctx is done. durableName only labels log lines
// here; the in-process bus keeps nothing across restarts.
func (b *LocalBus) Subscribe(ctx context.Context, subject, durableName string, handler Handler) error {
	messages, err := b.pubSub.Subscribe(ctx, localTopic)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		for msg := range messages {
			if !Matches(subject, msg.Metadata.Get("subject")) {
				msg.Ack()
				continue
			}

			var event BaseEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.Printf("[ERROR] %s: failed to unmarshal event: %v", durableName, err)
				msg.Ack() // Malformed messages are not retried
				continue
			}

			if err := handler(msg.Context(), event); err != nil {
				log.Printf("[WARN] %s: handler failed for %s: %v", durableName, event.Type, err)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *LocalBus) Close() error {
	return b.pubSub.Close()
}
