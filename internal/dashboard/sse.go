package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/feed"
)

// handleSSE streams every appended message as a "message" event, with a
// periodic heartbeat. Clients filter by channel with ?channel=.
func handleSSE(sub message.Subscriber, heartbeatEvery time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sub == nil {
			errorJSON(c, http.StatusServiceUnavailable, "event stream is disabled")
			return
		}
		channels := feed.Channels()
		if v := c.Query("channel"); v != "" {
			ch, err := feed.ParseChannel(v)
			if err != nil {
				errorJSON(c, http.StatusNotFound, err.Error())
				return
			}
			channels = []feed.Channel{ch}
		}

		ctx := c.Request.Context()
		events, err := feed.Subscribe(ctx, sub, channels...)
		if err != nil {
			log.Error().Err(err).Msg("dashboard: subscribe events")
			errorJSON(c, http.StatusServiceUnavailable, "event stream unavailable")
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		writeSSE(c.Writer, "connected", map[string]any{"type": "connected", "channels": channels})
		c.Writer.Flush()

		heartbeat := time.NewTicker(heartbeatEvery)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case evt, ok := <-events:
				if !ok {
					return
				}
				writeSSE(c.Writer, "message", evt)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
