package relay

import (
	"fmt"

	"github.com/zulandar/synapse/internal/feed"
)

// Color returns a sidebar color hint for a message.
func Color(msg feed.Message) string {
	switch msg.Kind {
	case feed.KindThought:
		return "#9b59b6"
	case feed.KindAction:
		return "#3498db"
	case feed.KindSystem:
		return "#36a64f"
	}
	if msg.Sender == feed.Human {
		return "#95a5a6"
	}
	return "#f1c40f"
}

// Author returns a display name for the message's sender.
func Author(msg feed.Message) string {
	if msg.Sender == feed.Human {
		return "Human"
	}
	if msg.Kind != feed.KindNone {
		return fmt.Sprintf("Agent (%s)", msg.Kind)
	}
	return "Agent"
}

// Text renders an event as a single plain-text line.
func Text(evt feed.Event) string {
	return fmt.Sprintf("[%s] %s: %s", evt.Channel, Author(evt.Message), evt.Message.Content)
}
