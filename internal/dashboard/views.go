package dashboard

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/feed"
	"github.com/zulandar/synapse/internal/history"
	"github.com/zulandar/synapse/internal/models"
	"github.com/zulandar/synapse/internal/orchestrator"
	"github.com/zulandar/synapse/internal/scenario"
)

type statusView struct {
	Processing bool                       `json:"processing"`
	Playback   orchestrator.PlaybackState `json:"playback"`
	Counts     map[feed.Channel]int       `json:"counts"`
}

type scenarioView struct {
	Category scenario.Category `json:"category"`
	Keywords []string          `json:"keywords"`
	Tools    []scenario.Tool   `json:"tools"`
	Steps    []scenario.Step   `json:"steps"`
}

// scenarioTable lists every category in classification priority order.
func scenarioTable() []scenarioView {
	cats := scenario.Categories()
	out := make([]scenarioView, 0, len(cats))
	for _, cat := range cats {
		keywords := scenario.Keywords(cat)
		if keywords == nil {
			keywords = []string{} // the fallback category has none
		}
		out = append(out, scenarioView{
			Category: cat,
			Keywords: keywords,
			Tools:    scenario.ToolsFor(cat),
			Steps:    scenario.ScriptFor(cat),
		})
	}
	return out
}

type runView struct {
	ID          string     `json:"id"`
	Input       string     `json:"input"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	Messages    int        `json:"messages"`
	Tools       []string   `json:"tools"`
	Resolution  string     `json:"resolution,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms,omitempty"`
}

func newRunView(run models.PlaybackRun) runView {
	tools, err := history.Tools(run)
	if err != nil {
		log.Warn().Err(err).Str("run", run.ID).Msg("dashboard: run tools")
	}
	if tools == nil {
		tools = []string{}
	}
	v := runView{
		ID:          run.ID,
		Input:       run.Input,
		Category:    run.Category,
		Status:      run.Status,
		Messages:    run.Messages,
		Tools:       tools,
		Resolution:  run.Resolution,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
	if run.CompletedAt != nil {
		v.DurationMs = run.CompletedAt.Sub(run.StartedAt).Milliseconds()
	}
	return v
}
