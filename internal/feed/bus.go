package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

// topicPrefix namespaces feed topics on the bus.
const topicPrefix = "feed."

// subscriberBuffer is how many decoded events a subscriber may lag behind
// before further events for it are dropped.
const subscriberBuffer = 256

// Topic returns the bus topic for a channel.
func Topic(ch Channel) string {
	return topicPrefix + string(ch)
}

// NewBus creates the in-process pub/sub used to fan out appended messages.
// Publishing waits for every subscriber's ack, which keeps events on a topic
// in publish order. Subscribers created by Subscribe ack as soon as an event
// is queued or dropped, so a stalled reader never holds up publishers.
func NewBus(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            subscriberBuffer,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
}

// Subscribe listens on the topics of the given channels (all channels when
// none are given) and returns a single stream of decoded events. The
// returned channel is closed once ctx is done and every topic subscription
// has drained.
func Subscribe(ctx context.Context, sub message.Subscriber, channels ...Channel) (<-chan Event, error) {
	if sub == nil {
		return nil, fmt.Errorf("feed: subscribe: subscriber is required")
	}
	if len(channels) == 0 {
		channels = Channels()
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{}, len(channels))

	for _, ch := range channels {
		msgs, err := sub.Subscribe(ctx, Topic(ch))
		if err != nil {
			return nil, fmt.Errorf("feed: subscribe %s: %w", ch, err)
		}
		go pump(ctx, msgs, out, done)
	}

	go func() {
		for range channels {
			<-done
		}
		close(out)
	}()
	return out, nil
}

// pump decodes bus messages into events. Every message is acked, including
// undecodable ones and ones dropped because the reader has fallen
// subscriberBuffer events behind, so the publisher never waits on a reader.
func pump(ctx context.Context, msgs <-chan *message.Message, out chan<- Event, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			var evt Event
			if err := json.Unmarshal(m.Payload, &evt); err != nil {
				log.Warn().Err(err).Str("uuid", m.UUID).Msg("feed: decode event")
				m.Ack()
				continue
			}
			select {
			case out <- evt:
			default:
				log.Warn().
					Str("channel", string(evt.Channel)).
					Int("seq", evt.Seq).
					Msg("feed: subscriber behind, event dropped")
			}
			m.Ack()
		}
	}
}
