// Package orchestrator coordinates the customer and operations channels:
// it records human input, plays canned resolution scripts onto the
// operations log and mirrors resolutions to the customer log.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/synapse/internal/clock"
	"github.com/zulandar/synapse/internal/config"
	"github.com/zulandar/synapse/internal/feed"
	"github.com/zulandar/synapse/internal/scenario"
)

// ErrAlreadyProcessing is returned by SubmitOperationsMessage while a
// playback is in flight. The submission is dropped without any append.
var ErrAlreadyProcessing = errors.New("orchestrator: already processing")

// ErrClosed is returned by submissions after Close.
var ErrClosed = errors.New("orchestrator: closed")

// Timing holds the artificial delays of the simulated agent.
type Timing struct {
	StepDelay   time.Duration // before each scripted step
	MirrorDelay time.Duration // between a system step and its customer mirror
	AckDelay    time.Duration // before the customer acknowledgement
}

// DefaultTiming returns the delays used by the live demo.
func DefaultTiming() Timing {
	return Timing{
		StepDelay:   config.DefaultStepDelayMs * time.Millisecond,
		MirrorDelay: config.DefaultMirrorDelayMs * time.Millisecond,
		AckDelay:    config.DefaultAckDelayMs * time.Millisecond,
	}
}

// Texts holds the canned agent texts.
type Texts struct {
	Ack              string // customer acknowledgement
	ResolutionPrefix string // stripped from system steps before mirroring
	CustomerPrefix   string // prepended to mirrored system steps
}

// DefaultTexts returns the texts used by the live demo.
func DefaultTexts() Texts {
	return Texts{
		Ack:              config.DefaultAckText,
		ResolutionPrefix: config.DefaultResolutionPrefix,
		CustomerPrefix:   config.DefaultCustomerPrefix,
	}
}

// Orchestrator owns the two channel logs and the processing flag. All
// mutation of either goes through its methods.
type Orchestrator struct {
	store    *feed.Store
	clock    clock.Clock
	timing   Timing
	texts    Texts
	observer RunObserver

	processing atomic.Bool

	stateMu sync.Mutex
	state   PlaybackState

	// lifetime bounds every background wait; it is cancelled only by Close.
	lifetime context.Context
	shutdown context.CancelFunc

	mu       sync.Mutex // guards closed and inflight.Add
	closed   bool
	inflight sync.WaitGroup
}

// Opts holds parameters for creating an Orchestrator.
type Opts struct {
	Store    *feed.Store // defaults to a fresh store on Clock
	Clock    clock.Clock // defaults to clock.Real
	Timing   *Timing     // defaults to DefaultTiming
	Texts    *Texts      // defaults to DefaultTexts
	Observer RunObserver // optional; notified when playback starts and ends
}

// New creates an Orchestrator.
func New(opts Opts) *Orchestrator {
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	store := opts.Store
	if store == nil {
		store = feed.NewStore(feed.StoreOpts{Clock: c})
	}
	timing := DefaultTiming()
	if opts.Timing != nil {
		timing = *opts.Timing
	}
	texts := DefaultTexts()
	if opts.Texts != nil {
		texts = *opts.Texts
	}
	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	lifetime, shutdown := context.WithCancel(context.Background())
	return &Orchestrator{
		store:    store,
		clock:    c,
		timing:   timing,
		texts:    texts,
		observer: observer,
		lifetime: lifetime,
		shutdown: shutdown,
	}
}

// FromConfig maps a loaded configuration onto orchestrator options.
func FromConfig(cfg *config.Config) (Timing, Texts) {
	timing := Timing{
		StepDelay:   cfg.Timing.StepDelay(),
		MirrorDelay: cfg.Timing.MirrorDelay(),
		AckDelay:    cfg.Timing.AckDelay(),
	}
	texts := Texts{
		Ack:              cfg.Messages.AckText,
		ResolutionPrefix: cfg.Messages.ResolutionPrefix,
		CustomerPrefix:   cfg.Messages.CustomerPrefix,
	}
	return timing, texts
}

// SubmitCustomerMessage appends a human message to the customer channel
// and schedules the canned acknowledgement after the ack delay. It returns
// once the human message is stored.
func (o *Orchestrator) SubmitCustomerMessage(ctx context.Context, text string) (feed.Message, error) {
	if o.isClosed() {
		return feed.Message{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return feed.Message{}, err
	}
	msg, err := o.store.Append(feed.Customer, feed.Message{Content: text, Sender: feed.Human})
	if err != nil {
		return feed.Message{}, fmt.Errorf("orchestrator: customer message: %w", err)
	}
	log.Debug().Str("id", msg.ID).Msg("orchestrator: customer message received")

	if err := o.spawn(o.acknowledge); err != nil {
		return msg, err
	}
	return msg, nil
}

// acknowledge waits the ack delay and posts the acknowledgement. It does
// not look at or change the processing flag.
func (o *Orchestrator) acknowledge() {
	if err := o.clock.Sleep(o.lifetime, o.timing.AckDelay); err != nil {
		return
	}
	if _, err := o.store.Append(feed.Customer, feed.Message{Content: o.texts.Ack, Sender: feed.Agent}); err != nil {
		log.Error().Err(err).Msg("orchestrator: append acknowledgement")
	}
}

// SubmitOperationsMessage claims the processing flag, appends a human
// message to the operations channel and starts playback of the script for
// the classified scenario. It returns ErrAlreadyProcessing, with no
// appends, if a playback is already running. The flag is set before this
// call returns and cleared after the last scripted step and its mirror
// are appended.
func (o *Orchestrator) SubmitOperationsMessage(ctx context.Context, text string) (scenario.Classification, error) {
	if o.isClosed() {
		return scenario.Classification{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return scenario.Classification{}, err
	}
	if !o.processing.CompareAndSwap(false, true) {
		return scenario.Classification{}, ErrAlreadyProcessing
	}

	msg, err := o.store.Append(feed.Operations, feed.Message{Content: text, Sender: feed.Human})
	if err != nil {
		o.processing.Store(false)
		return scenario.Classification{}, fmt.Errorf("orchestrator: operations message: %w", err)
	}

	cls := scenario.Explain(text)
	run := Run{
		ID:        newRunID(),
		Input:     text,
		Category:  cls.Category,
		Tools:     scenario.ToolsFor(cls.Category),
		StartedAt: msg.CreatedAt,
	}
	log.Info().
		Str("run", run.ID).
		Str("category", cls.Category.String()).
		Bool("matched", cls.Matched).
		Msg("orchestrator: playback started")
	if err := o.observer.RunStarted(context.WithoutCancel(ctx), run); err != nil {
		log.Warn().Err(err).Str("run", run.ID).Msg("orchestrator: observer run started")
	}

	script := scenario.ScriptFor(cls.Category)
	if err := o.spawn(func() { o.play(run, script) }); err != nil {
		o.processing.Store(false)
		return cls, err
	}
	return cls, nil
}

// Messages returns a snapshot of the channel log in display order.
func (o *Orchestrator) Messages(ch feed.Channel) []feed.Message {
	return o.store.List(ch)
}

// IsProcessing reports whether a playback is in flight.
func (o *Orchestrator) IsProcessing() bool {
	return o.processing.Load()
}

// Store returns the underlying message store.
func (o *Orchestrator) Store() *feed.Store {
	return o.store
}

// Wait blocks until every pending acknowledgement and playback has
// finished, or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting submissions, abandons pending waits and blocks
// until background goroutines have exited. It is meant for process
// shutdown; a running playback is otherwise never interrupted.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.shutdown()
	o.inflight.Wait()
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// spawn runs fn in a tracked goroutine unless the orchestrator is closed.
// Clocks implementing clock.Tracker see the goroutine as a participant.
func (o *Orchestrator) spawn(fn func()) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.inflight.Add(1)
	tracker, _ := o.clock.(clock.Tracker)
	if tracker != nil {
		tracker.Begin()
	}
	go func() {
		defer o.inflight.Done()
		if tracker != nil {
			defer tracker.End()
		}
		fn()
	}()
	return nil
}

// mirrorContent rewrites a system step for the customer channel.
func (o *Orchestrator) mirrorContent(content string) string {
	return o.texts.CustomerPrefix + strings.TrimPrefix(content, o.texts.ResolutionPrefix)
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
