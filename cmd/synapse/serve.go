package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/zulandar/synapse/internal/autoplay"
	"github.com/zulandar/synapse/internal/config"
	"github.com/zulandar/synapse/internal/dashboard"
	"github.com/zulandar/synapse/internal/feed"
	"github.com/zulandar/synapse/internal/history"
	"github.com/zulandar/synapse/internal/logging"
	"github.com/zulandar/synapse/internal/orchestrator"
	"github.com/zulandar/synapse/internal/relay"
	"github.com/zulandar/synapse/internal/relay/discord"
	"github.com/zulandar/synapse/internal/relay/slack"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		echo       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator with its HTTP dashboard",
		Long: `Starts the channel orchestrator behind the JSON/SSE dashboard API.
Autoplay and the Slack/Discord relays start when configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, echo)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "synapse.yaml", "path to Synapse config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides dashboard.port)")
	cmd.Flags().BoolVar(&echo, "echo", false, "print every channel message to stdout")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, echo bool) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.Dashboard.Port = port
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}

	bus := feed.NewBus(logging.NewWatermill(log.Logger))
	defer bus.Close()
	store := feed.NewStore(feed.StoreOpts{Publisher: bus})

	timing, texts := orchestrator.FromConfig(cfg)
	opts := orchestrator.Opts{Store: store, Timing: &timing, Texts: &texts}

	var recorder *history.Recorder
	if cfg.History.IsEnabled() {
		recorder, err = history.OpenMemory(cfg.History.RunLimit())
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer recorder.Close()
		opts.Observer = recorder
	}

	orch := orchestrator.New(opts)
	defer orch.Close()

	sinks, err := buildSinks(cfg, echo, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dashboard.Start(gctx, dashboard.StartOpts{
			Orchestrator: orch,
			History:      recorder,
			Subscriber:   bus,
			Port:         cfg.Dashboard.Port,
			Out:          cmd.OutOrStdout(),
		})
	})

	if cfg.Autoplay.Enabled {
		player, err := autoplay.New(autoplay.Opts{
			Submitter: orch,
			Cron:      cfg.Autoplay.Cron,
			Scenarios: cfg.Autoplay.Scenarios,
		})
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error { return player.Run(gctx) })
	}

	if len(sinks) > 0 {
		r, err := relay.New(relay.Opts{Subscriber: bus, Sinks: sinks})
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error { return r.Run(gctx) })
	}

	return g.Wait()
}

// buildSinks returns the relay sinks enabled by cfg and the --echo flag.
func buildSinks(cfg *config.Config, echo bool, out io.Writer) ([]relay.Sink, error) {
	var sinks []relay.Sink
	if echo {
		sinks = append(sinks, relay.NewWriterSink(out))
	}
	if sc := cfg.Relay.Slack; sc.Enabled() {
		s, err := slack.New(slack.SinkOpts{
			BotToken:          sc.BotToken,
			CustomerChannel:   sc.CustomerChannel,
			OperationsChannel: sc.OperationsChannel,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if dc := cfg.Relay.Discord; dc.Enabled() {
		s, err := discord.New(discord.SinkOpts{
			BotToken:          dc.BotToken,
			CustomerChannel:   dc.CustomerChannel,
			OperationsChannel: dc.OperationsChannel,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
