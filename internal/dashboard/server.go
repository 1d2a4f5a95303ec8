// Package dashboard serves the JSON API and event stream behind the demo's
// two-pane chat UI.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/history"
	"github.com/zulandar/synapse/internal/orchestrator"
)

// DefaultHeartbeat is the interval between SSE heartbeat events.
const DefaultHeartbeat = 15 * time.Second

const shutdownTimeout = 5 * time.Second

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Orchestrator *orchestrator.Orchestrator
	History      *history.Recorder  // optional; history routes answer 404 without it
	Subscriber   message.Subscriber // optional; /api/events answers 503 without it
	Port         int
	Heartbeat    time.Duration
	Out          io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	handler, err := NewHandler(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		// Open event streams end with ctx instead of holding up Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("dashboard: shutdown")
		}
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}
	log.Info().Int("port", opts.Port).Msg("dashboard: listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// NewHandler builds the Gin router without binding a port.
func NewHandler(opts StartOpts) (http.Handler, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("dashboard: orchestrator is required")
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router, nil
}
