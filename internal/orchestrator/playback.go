package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/feed"
	"github.com/zulandar/synapse/internal/scenario"
)

// Run describes one playback of a resolution script.
type Run struct {
	ID         string
	Input      string
	Category   scenario.Category
	Tools      []scenario.Tool
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      int    // scripted steps appended to operations
	Mirrors    int    // system steps mirrored to customer
	Resolution string // system step text without the resolution prefix
	Completed  bool   // false when shutdown interrupted the run
}

// Messages is the number of messages the run produced, counting the
// operator input that started it.
func (r Run) Messages() int {
	return 1 + r.Steps + r.Mirrors
}

// RunObserver is notified around each playback. Errors are logged and
// never affect the playback itself.
type RunObserver interface {
	RunStarted(ctx context.Context, run Run) error
	RunFinished(ctx context.Context, run Run) error
}

type noopObserver struct{}

func (noopObserver) RunStarted(context.Context, Run) error  { return nil }
func (noopObserver) RunFinished(context.Context, Run) error { return nil }

// observerTimeout bounds the RunFinished callback.
const observerTimeout = 5 * time.Second

// PlaybackState is a point-in-time view of the sequencer.
type PlaybackState struct {
	Running  bool              `json:"running"`
	RunID    string            `json:"run_id,omitempty"`
	Category scenario.Category `json:"category"`
	Step     int               `json:"step"`  // steps appended so far
	Total    int               `json:"total"` // steps in the script
}

// Playback returns the current sequencer state.
func (o *Orchestrator) Playback() PlaybackState {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s PlaybackState) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

// play walks the script: step delay, append to operations, and for system
// steps a mirror delay followed by the customer mirror. The processing
// flag is cleared only after the final append.
func (o *Orchestrator) play(run Run, script []scenario.Step) {
	defer o.processing.Store(false)

	state := PlaybackState{Running: true, RunID: run.ID, Category: run.Category, Total: len(script)}
	o.setState(state)
	defer o.setState(PlaybackState{})

	logger := log.With().Str("run", run.ID).Str("category", run.Category.String()).Logger()

	run.Completed = true
steps:
	for i, step := range script {
		if err := o.clock.Sleep(o.lifetime, o.timing.StepDelay); err != nil {
			run.Completed = false
			break
		}
		if _, err := o.store.Append(feed.Operations, feed.Message{
			Content: step.Content,
			Sender:  feed.Agent,
			Kind:    step.Kind,
		}); err != nil {
			logger.Error().Err(err).Int("step", i).Msg("orchestrator: append step")
			run.Completed = false
			break
		}
		run.Steps++
		state.Step = run.Steps
		o.setState(state)
		logger.Debug().Int("step", i).Str("kind", string(step.Kind)).Msg("orchestrator: step appended")

		if step.Kind != feed.KindSystem {
			continue
		}
		run.Resolution = strings.TrimPrefix(step.Content, o.texts.ResolutionPrefix)
		if err := o.clock.Sleep(o.lifetime, o.timing.MirrorDelay); err != nil {
			run.Completed = false
			break steps
		}
		if _, err := o.store.Append(feed.Customer, feed.Message{
			Content: o.mirrorContent(step.Content),
			Sender:  feed.Agent,
			Kind:    feed.KindSystem,
		}); err != nil {
			logger.Error().Err(err).Int("step", i).Msg("orchestrator: append mirror")
			run.Completed = false
			break
		}
		run.Mirrors++
	}
	run.FinishedAt = o.clock.Now()

	if run.Completed {
		logger.Info().Int("steps", run.Steps).Int("mirrors", run.Mirrors).Msg("orchestrator: playback finished")
	} else {
		logger.Warn().Int("steps", run.Steps).Msg("orchestrator: playback interrupted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	if err := o.observer.RunFinished(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("orchestrator: observer run finished")
	}
}
