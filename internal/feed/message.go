// Package feed holds the two append-only conversation logs (customer and
// operations) and fans appended messages out to subscribers.
package feed

import (
	"fmt"
	"time"
)

// Channel identifies one of the two conversation logs.
type Channel string

const (
	Customer   Channel = "customer"
	Operations Channel = "operations"
)

// Channels returns every channel in display order.
func Channels() []Channel {
	return []Channel{Customer, Operations}
}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case Customer, Operations:
		return Channel(s), nil
	default:
		return "", fmt.Errorf("feed: unknown channel %q", s)
	}
}

// Sender is who authored a message.
type Sender string

const (
	Human Sender = "human"
	Agent Sender = "agent"
)

// Kind tags agent messages produced by a resolution script. Human messages
// and plain agent replies carry no kind.
type Kind string

const (
	KindNone    Kind = ""
	KindThought Kind = "thought"
	KindAction  Kind = "action"
	KindSystem  Kind = "system"
)

// Message is a single immutable entry in a channel log.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Kind      Kind      `json:"kind,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is what subscribers receive for each append. Seq is the message's
// zero-based position in its channel log.
type Event struct {
	Channel Channel `json:"channel"`
	Seq     int     `json:"seq"`
	Message Message `json:"message"`
}
