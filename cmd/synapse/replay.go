package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/synapse/internal/clock"
	"github.com/zulandar/synapse/internal/config"
	"github.com/zulandar/synapse/internal/feed"
	"github.com/zulandar/synapse/internal/orchestrator"
	"golang.org/x/term"
)

const (
	ansiReset  = "\033[0m"
	ansiGray   = "\033[90m"
	ansiPurple = "\033[35m"
	ansiBlue   = "\033[34m"
	ansiGreen  = "\033[32m"
)

func newReplayCmd() *cobra.Command {
	var (
		configPath string
		customer   string
		instant    bool
		color      string
	)

	cmd := &cobra.Command{
		Use:   "replay <scenario>",
		Short: "Play one scenario and print both channel transcripts",
		Long: `Submits the scenario text to the operations channel, waits for the
resolution playback to finish and prints the customer and operations logs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, replayOpts{
				configPath: configPath,
				scenario:   strings.Join(args, " "),
				customer:   customer,
				instant:    instant,
				color:      color,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "synapse.yaml", "path to Synapse config file")
	cmd.Flags().StringVar(&customer, "customer", "", "customer message to submit before the scenario")
	cmd.Flags().BoolVar(&instant, "instant", false, "use virtual time instead of real delays")
	cmd.Flags().StringVar(&color, "color", "auto", "color kind tags: auto, always or never")
	return cmd
}

type replayOpts struct {
	configPath string
	scenario   string
	customer   string
	instant    bool
	color      string
}

func runReplay(cmd *cobra.Command, opts replayOpts) error {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	out := cmd.OutOrStdout()
	colored, err := useColor(opts.color, out)
	if err != nil {
		return err
	}

	var c clock.Clock = clock.Real{}
	release := func() {}
	if opts.instant {
		v := clock.NewVirtual(time.Now())
		// Keep virtual time still until both submissions are in, so the
		// acknowledgement and the playback share one starting instant.
		v.Begin()
		var once sync.Once
		release = func() { once.Do(v.End) }
		c = v
	}
	timing, texts := orchestrator.FromConfig(cfg)
	orch := orchestrator.New(orchestrator.Opts{Clock: c, Timing: &timing, Texts: &texts})
	defer orch.Close()
	defer release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.customer != "" {
		if _, err := orch.SubmitCustomerMessage(ctx, opts.customer); err != nil {
			return fmt.Errorf("submit customer message: %w", err)
		}
	}
	cls, err := orch.SubmitOperationsMessage(ctx, opts.scenario)
	if err != nil {
		return fmt.Errorf("submit scenario: %w", err)
	}
	release()
	if err := orch.Wait(ctx); err != nil {
		return fmt.Errorf("wait for playback: %w", err)
	}

	fmt.Fprintf(out, "Scenario: %s\n\n", cls.Category)
	for _, ch := range []feed.Channel{feed.Customer, feed.Operations} {
		printTranscript(out, ch, orch.Messages(ch), colored)
		fmt.Fprintln(out)
	}
	return nil
}

// useColor resolves the --color flag against out.
func useColor(mode string, out io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		f, ok := out.(*os.File)
		return ok && term.IsTerminal(int(f.Fd())), nil
	default:
		return false, fmt.Errorf("invalid --color %q: want auto, always or never", mode)
	}
}

// printTranscript writes one channel log with offsets from its first message.
func printTranscript(out io.Writer, ch feed.Channel, msgs []feed.Message, colored bool) {
	fmt.Fprintf(out, "== %s (%d messages) ==\n", ch, len(msgs))
	if len(msgs) == 0 {
		return
	}
	start := msgs[0].CreatedAt
	for _, m := range msgs {
		offset := m.CreatedAt.Sub(start).Seconds()
		fmt.Fprintf(out, "[+%5.1fs] %s %s\n", offset, senderTag(m, colored), m.Content)
	}
}

func senderTag(m feed.Message, colored bool) string {
	tag := string(m.Sender)
	if m.Kind != feed.KindNone {
		tag += "/" + string(m.Kind)
	}
	tag = "<" + tag + ">"
	if !colored {
		return tag
	}
	return kindColor(m.Kind) + tag + ansiReset
}

func kindColor(k feed.Kind) string {
	switch k {
	case feed.KindThought:
		return ansiPurple
	case feed.KindAction:
		return ansiBlue
	case feed.KindSystem:
		return ansiGreen
	default:
		return ansiGray
	}
}
