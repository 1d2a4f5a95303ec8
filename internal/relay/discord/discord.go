// Package discord implements a relay.Sink that posts channel messages to
// Discord.
package discord

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/feed"
	"github.com/zulandar/synapse/internal/relay"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 30 * time.Second
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sink posts each relayed message as an embed to the Discord channel mapped
// to its feed channel.
type Sink struct {
	sess        session
	botToken    string
	targets     map[feed.Channel]string
	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu     sync.Mutex
	opened bool
}

var _ relay.Sink = (*Sink)(nil)

// SinkOpts holds parameters for creating a Discord Sink.
type SinkOpts struct {
	BotToken          string // Discord bot token
	CustomerChannel   string // Discord channel ID for the customer feed
	OperationsChannel string // Discord channel ID for the operations feed
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Sink.
func New(opts SinkOpts) (*Sink, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	targets := make(map[feed.Channel]string, 2)
	if opts.CustomerChannel != "" {
		targets[feed.Customer] = opts.CustomerChannel
	}
	if opts.OperationsChannel != "" {
		targets[feed.Operations] = opts.OperationsChannel
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("discord: at least one target channel is required")
	}
	return &Sink{
		sess:        opts.Session,
		botToken:    opts.BotToken,
		targets:     targets,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}, nil
}

// Name returns "discord".
func (s *Sink) Name() string { return "discord" }

// Connect opens the Gateway session.
func (s *Sink) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}
	if s.sess == nil {
		dg, err := discordgo.New("Bot " + s.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages
		s.sess = dg
	}
	if err := s.sess.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	s.opened = true
	return nil
}

// Send posts evt to its target channel.
func (s *Sink) Send(ctx context.Context, evt feed.Event) error {
	channelID, ok := s.targets[evt.Channel]
	if !ok {
		return nil
	}
	data := buildMessageSend(evt)
	err := s.retryOnRateLimit(ctx, func() error {
		_, sendErr := s.sess.ChannelMessageSendComplex(channelID, data)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Close closes the Gateway session if it was opened.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil
	}
	s.opened = false
	if err := s.sess.Close(); err != nil {
		return fmt.Errorf("discord: close session: %w", err)
	}
	return nil
}

// buildMessageSend renders evt as a single embed.
func buildMessageSend(evt feed.Event) *discordgo.MessageSend {
	msg := evt.Message
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Author:      &discordgo.MessageEmbedAuthor{Name: relay.Author(msg)},
			Description: msg.Content,
			Color:       parseHexColor(relay.Color(msg)),
			Footer:      &discordgo.MessageEmbedFooter{Text: string(evt.Channel)},
			Timestamp:   msg.CreatedAt.UTC().Format(time.RFC3339),
		}},
	}
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
// Malformed input yields 0, which Discord renders as the default color.
func parseHexColor(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (s *Sink) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var restErr *discordgo.RESTError
		if !errors.As(err, &restErr) || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
			return err // not a rate limit error
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * s.baseBackoff
		if wait > s.maxBackoff {
			wait = s.maxBackoff
		}
		log.Warn().Int("attempt", attempt+1).Dur("wait", wait).Msg("discord: rate limited, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
