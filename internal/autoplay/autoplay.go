// Package autoplay drives the demo unattended: on a cron schedule it
// submits the next configured scenario to the operations channel.
package autoplay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/clock"
	"github.com/zulandar/synapse/internal/orchestrator"
	"github.com/zulandar/synapse/internal/scenario"
)

// Submitter accepts operator input. *orchestrator.Orchestrator satisfies it.
type Submitter interface {
	SubmitOperationsMessage(ctx context.Context, text string) (scenario.Classification, error)
}

// Player rotates through scenarios on a schedule.
type Player struct {
	submitter Submitter
	schedule  cron.Schedule
	scenarios []string
	clock     clock.Clock

	mu   sync.Mutex
	next int
}

// Opts holds parameters for creating a Player.
type Opts struct {
	Submitter Submitter
	Cron      string
	Scenarios []string
	Clock     clock.Clock // defaults to clock.Real
}

// New validates opts and returns a Player.
func New(opts Opts) (*Player, error) {
	if opts.Submitter == nil {
		return nil, fmt.Errorf("autoplay: submitter is required")
	}
	if len(opts.Scenarios) == 0 {
		return nil, fmt.Errorf("autoplay: at least one scenario is required")
	}
	for i, s := range opts.Scenarios {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("autoplay: scenario %d is empty", i)
		}
	}
	sched, err := ParseSchedule(opts.Cron)
	if err != nil {
		return nil, err
	}
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	scenarios := make([]string, len(opts.Scenarios))
	copy(scenarios, opts.Scenarios)
	return &Player{
		submitter: opts.Submitter,
		schedule:  sched,
		scenarios: scenarios,
		clock:     c,
	}, nil
}

// Run submits a scenario at every scheduled time until ctx is done or the
// submitter is closed.
func (p *Player) Run(ctx context.Context) error {
	log.Info().Int("scenarios", len(p.scenarios)).Msg("autoplay: started")
	for {
		wait := nextCronDuration(p.schedule, p.clock.Now())
		if err := p.clock.Sleep(ctx, wait); err != nil {
			log.Info().Msg("autoplay: stopped")
			return nil
		}
		_, err := p.Tick(ctx)
		switch {
		case err == nil:
		case errors.Is(err, orchestrator.ErrAlreadyProcessing):
			log.Info().Msg("autoplay: playback in progress, tick skipped")
		case errors.Is(err, orchestrator.ErrClosed), errors.Is(err, context.Canceled):
			log.Info().Msg("autoplay: stopped")
			return nil
		default:
			log.Warn().Err(err).Msg("autoplay: submit")
		}
	}
}

// Tick submits the next scenario and returns its text. A rejected
// submission does not advance the rotation, so the same scenario is retried
// on the next tick.
func (p *Player) Tick(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := p.scenarios[p.next]
	cls, err := p.submitter.SubmitOperationsMessage(ctx, text)
	if err != nil {
		return "", fmt.Errorf("autoplay: submit %q: %w", text, err)
	}
	p.next = (p.next + 1) % len(p.scenarios)
	log.Info().Str("category", cls.Category.String()).Str("input", text).Msg("autoplay: scenario submitted")
	return text, nil
}
