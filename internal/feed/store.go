package feed

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/clock"
)

// Store keeps one ordered log per channel. Appends are serialized by a
// single mutex so every channel has a total order and readers never see a
// partially written entry.
type Store struct {
	clock     clock.Clock
	publisher message.Publisher

	// pubMu is held from the log append through the publish, so the bus
	// sees each channel's events in Seq order.
	pubMu sync.Mutex
	mu    sync.RWMutex
	logs  map[Channel][]Message
}

// StoreOpts holds parameters for creating a Store.
type StoreOpts struct {
	Clock     clock.Clock       // defaults to clock.Real
	Publisher message.Publisher // optional; receives an Event per append
}

// NewStore creates an empty Store.
func NewStore(opts StoreOpts) *Store {
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	logs := make(map[Channel][]Message, 2)
	for _, ch := range Channels() {
		logs[ch] = nil
	}
	return &Store{
		clock:     c,
		publisher: opts.Publisher,
		logs:      logs,
	}
}

// Append assigns an ID and timestamp to msg, adds it to the end of the
// channel log and returns the stored value. Any ID or CreatedAt already set
// on msg is overwritten.
func (s *Store) Append(ch Channel, msg Message) (Message, error) {
	if _, err := ParseChannel(string(ch)); err != nil {
		return Message{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Message{}, fmt.Errorf("feed: generate id: %w", err)
	}
	msg.ID = id.String()

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	msg.CreatedAt = s.clock.Now()

	s.mu.Lock()
	seq := len(s.logs[ch])
	s.logs[ch] = append(s.logs[ch], msg)
	s.mu.Unlock()

	s.publish(Event{Channel: ch, Seq: seq, Message: msg})
	return msg, nil
}

// List returns a snapshot of the channel log in insertion order. The slice
// is a copy; callers may keep or modify it freely.
func (s *Store) List(ch Channel) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.logs[ch]
	out := make([]Message, len(src))
	copy(out, src)
	return out
}

// Len returns the number of messages in the channel log.
func (s *Store) Len(ch Channel) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[ch])
}

// publish forwards an append to the bus. Delivery is best-effort: the log
// is the source of truth and subscribers can re-read it.
func (s *Store) publish(evt Event) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Warn().Err(err).Str("channel", string(evt.Channel)).Msg("feed: marshal event")
		return
	}
	m := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.publisher.Publish(Topic(evt.Channel), m); err != nil {
		log.Warn().Err(err).
			Str("channel", string(evt.Channel)).
			Int("seq", evt.Seq).
			Msg("feed: publish event")
	}
}
