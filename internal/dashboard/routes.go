package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/feed"
	"github.com/zulandar/synapse/internal/history"
	"github.com/zulandar/synapse/internal/orchestrator"
	"github.com/zulandar/synapse/internal/scenario"
)

// defaultHistoryLimit caps GET /api/history when no limit is given.
const defaultHistoryLimit = 50

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	o := opts.Orchestrator

	api := router.Group("/api")
	api.GET("/status", handleStatus(o))
	api.GET("/channels/:channel/messages", handleListMessages(o))
	api.POST("/channels/:channel/messages", handlePostMessage(o))
	api.GET("/scenarios", handleScenarios())
	api.POST("/classify", handleClassify())
	api.GET("/history", handleHistory(opts.History))
	api.GET("/history/stats", handleHistoryStats(opts.History))
	api.GET("/history/:id", handleHistoryRun(opts.History))
	api.GET("/events", handleSSE(opts.Subscriber, opts.Heartbeat))
}

type textRequest struct {
	Text string `json:"text" binding:"required"`
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// channelParam resolves :channel or writes a 404.
func channelParam(c *gin.Context) (feed.Channel, bool) {
	ch, err := feed.ParseChannel(c.Param("channel"))
	if err != nil {
		errorJSON(c, http.StatusNotFound, err.Error())
		return "", false
	}
	return ch, true
}

func handleStatus(o *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, statusView{
			Processing: o.IsProcessing(),
			Playback:   o.Playback(),
			Counts: map[feed.Channel]int{
				feed.Customer:   o.Store().Len(feed.Customer),
				feed.Operations: o.Store().Len(feed.Operations),
			},
		})
	}
}

func handleListMessages(o *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, ok := channelParam(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"channel":  ch,
			"messages": o.Messages(ch),
		})
	}
}

func handlePostMessage(o *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, ok := channelParam(c)
		if !ok {
			return
		}
		var req textRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, "text is required")
			return
		}

		switch ch {
		case feed.Customer:
			msg, err := o.SubmitCustomerMessage(c.Request.Context(), req.Text)
			if err != nil {
				submitError(c, ch, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"message": msg})
		case feed.Operations:
			cls, err := o.SubmitOperationsMessage(c.Request.Context(), req.Text)
			if err != nil {
				submitError(c, ch, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"classification": cls})
		}
	}
}

func submitError(c *gin.Context, ch feed.Channel, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrAlreadyProcessing):
		errorJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrClosed):
		errorJSON(c, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Str("channel", string(ch)).Msg("dashboard: submit")
		errorJSON(c, http.StatusInternalServerError, "submit failed")
	}
}

func handleScenarios() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"scenarios": scenarioTable()})
	}
}

func handleClassify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req textRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, "text is required")
			return
		}
		c.JSON(http.StatusOK, scenario.Explain(req.Text))
	}
}

func handleHistory(h *history.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h == nil {
			errorJSON(c, http.StatusNotFound, "history is disabled")
			return
		}
		limit := defaultHistoryLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				errorJSON(c, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		runs, err := h.List(c.Request.Context(), limit)
		if err != nil {
			log.Error().Err(err).Msg("dashboard: list history")
			errorJSON(c, http.StatusInternalServerError, "history unavailable")
			return
		}
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		c.JSON(http.StatusOK, gin.H{"runs": views})
	}
}

func handleHistoryStats(h *history.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h == nil {
			errorJSON(c, http.StatusNotFound, "history is disabled")
			return
		}
		stats, err := h.Stats(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Msg("dashboard: history stats")
			errorJSON(c, http.StatusInternalServerError, "history unavailable")
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func handleHistoryRun(h *history.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h == nil {
			errorJSON(c, http.StatusNotFound, "history is disabled")
			return
		}
		run, err := h.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, history.ErrRunNotFound) {
			errorJSON(c, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("dashboard: get history run")
			errorJSON(c, http.StatusInternalServerError, "history unavailable")
			return
		}
		c.JSON(http.StatusOK, newRunView(*run))
	}
}
