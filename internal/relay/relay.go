// Package relay mirrors the channel feeds into external chat platforms.
// Relays only read from the bus; nothing they receive flows back into the
// orchestrator.
package relay

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/feed"
	"golang.org/x/sync/errgroup"
)

// Sink is a destination for relayed messages. Platform-specific sinks
// handle connection management and formatting.
type Sink interface {
	// Name identifies the sink in logs, e.g. "slack".
	Name() string

	// Connect prepares the sink. It is called once before the first Send.
	Connect(ctx context.Context) error

	// Send delivers one appended message. Events for channels the sink is
	// not configured for are ignored.
	Send(ctx context.Context, evt feed.Event) error

	// Close releases the sink's connection.
	Close() error
}

// queueSize bounds how far a sink may fall behind before events are dropped.
const queueSize = 256

// Relay fans bus events out to sinks.
type Relay struct {
	sub   message.Subscriber
	sinks []Sink
}

// Opts holds parameters for creating a Relay.
type Opts struct {
	Subscriber message.Subscriber
	Sinks      []Sink
}

// New creates a Relay.
func New(opts Opts) (*Relay, error) {
	if opts.Subscriber == nil {
		return nil, fmt.Errorf("relay: subscriber is required")
	}
	if len(opts.Sinks) == 0 {
		return nil, fmt.Errorf("relay: at least one sink is required")
	}
	return &Relay{sub: opts.Subscriber, sinks: opts.Sinks}, nil
}

// Run connects every sink and forwards events until ctx is done. A sink
// that fails to connect is skipped; send failures are logged and dropped.
// Each sink has its own queue so a slow platform never stalls the bus.
func (r *Relay) Run(ctx context.Context) error {
	events, err := feed.Subscribe(ctx, r.sub)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	var queues []chan feed.Event
	var names []string
	for _, sink := range r.sinks {
		if err := sink.Connect(ctx); err != nil {
			log.Error().Err(err).Str("sink", sink.Name()).Msg("relay: connect failed, sink disabled")
			continue
		}
		log.Info().Str("sink", sink.Name()).Msg("relay: connected")
		q := make(chan feed.Event, queueSize)
		queues = append(queues, q)
		names = append(names, sink.Name())
		sink := sink
		g.Go(func() error {
			drain(gctx, sink, q)
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for evt := range events {
			for i, q := range queues {
				select {
				case q <- evt:
				default:
					log.Warn().
						Str("sink", names[i]).
						Str("channel", string(evt.Channel)).
						Int("seq", evt.Seq).
						Msg("relay: queue full, event dropped")
				}
			}
		}
		return nil
	})

	return g.Wait()
}

// drain sends queued events in order and closes the sink when the queue
// is closed.
func drain(ctx context.Context, sink Sink, q <-chan feed.Event) {
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn().Err(err).Str("sink", sink.Name()).Msg("relay: close")
		}
	}()
	for evt := range q {
		if ctx.Err() != nil {
			continue
		}
		if err := sink.Send(ctx, evt); err != nil {
			log.Warn().Err(err).
				Str("sink", sink.Name()).
				Str("channel", string(evt.Channel)).
				Int("seq", evt.Seq).
				Msg("relay: send failed")
		}
	}
}
