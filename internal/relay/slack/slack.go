// Package slack implements a relay.Sink that posts channel messages to Slack.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/synapse/internal/feed"
	"github.com/zulandar/synapse/internal/relay"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Sink posts each relayed message to the Slack channel mapped to its feed
// channel.
type Sink struct {
	client      slackClient
	botToken    string
	targets     map[feed.Channel]string
	baseBackoff time.Duration
}

var _ relay.Sink = (*Sink)(nil)

// SinkOpts holds parameters for creating a Slack Sink.
type SinkOpts struct {
	BotToken          string // xoxb-... Slack bot token
	CustomerChannel   string // Slack channel ID for the customer feed
	OperationsChannel string // Slack channel ID for the operations feed
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Sink.
func New(opts SinkOpts) (*Sink, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	targets := make(map[feed.Channel]string, 2)
	if opts.CustomerChannel != "" {
		targets[feed.Customer] = opts.CustomerChannel
	}
	if opts.OperationsChannel != "" {
		targets[feed.Operations] = opts.OperationsChannel
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("slack: at least one target channel is required")
	}
	return &Sink{
		client:      opts.Client,
		botToken:    opts.BotToken,
		targets:     targets,
		baseBackoff: time.Second,
	}, nil
}

// Name returns "slack".
func (s *Sink) Name() string { return "slack" }

// Connect creates the API client if none was injected and verifies the
// token.
func (s *Sink) Connect(ctx context.Context) error {
	if s.client == nil {
		s.client = slackapi.New(s.botToken)
	}
	auth, err := s.client.AuthTest()
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	log.Debug().Str("bot_user", auth.UserID).Msg("slack: authenticated")
	return nil
}

// Send posts evt to its target channel.
func (s *Sink) Send(ctx context.Context, evt feed.Event) error {
	channelID, ok := s.targets[evt.Channel]
	if !ok {
		return nil
	}
	options := buildMessageOptions(evt)
	err := s.retryOnRateLimit(ctx, func() error {
		_, _, postErr := s.client.PostMessage(channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close is a no-op; the Web API client holds no connection.
func (s *Sink) Close() error { return nil }

// buildMessageOptions renders evt as fallback text plus a colored
// attachment.
func buildMessageOptions(evt feed.Event) []slackapi.MsgOption {
	msg := evt.Message
	att := slackapi.Attachment{
		AuthorName: relay.Author(msg),
		Text:       msg.Content,
		Color:      relay.Color(msg),
		Fallback:   relay.Text(evt),
		Footer:     string(evt.Channel),
		Ts:         json.Number(strconv.FormatInt(msg.CreatedAt.Unix(), 10)),
	}
	return []slackapi.MsgOption{
		slackapi.MsgOptionText(relay.Text(evt), false),
		slackapi.MsgOptionAttachments(att),
	}
}

// retryOnRateLimit calls fn and retries on Slack rate limit errors, waiting
// for the server's Retry-After or an exponential backoff.
func (s *Sink) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err // not a rate limit error, don't retry
		}

		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * s.baseBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
