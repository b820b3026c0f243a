package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"blogherald/internal/ai"
	"blogherald/internal/config"
	"blogherald/internal/logging"
	"blogherald/internal/models"
	"blogherald/internal/pipeline"
	"blogherald/internal/server"
	"blogherald/internal/slack"
	"blogherald/internal/sources"
	"blogherald/internal/state"
	"blogherald/internal/telegram"
)

func main() {
	root := &cobra.Command{
		Use:           "blogherald",
		Short:         "blogherald watches engineering blogs and posts summary threads to Slack",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), seedCmd(), postCmd(), serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *state.Store
	pub    *slack.Publisher
	pipe   *pipeline.Pipeline
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel)

	watchList, err := sources.Load(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}

	store := state.NewStore(cfg.StateFile, logger.With("component", "state"))
	fetcher := sources.NewFetcher(cfg.FetchTimeout, logger.With("component", "fetcher"))
	aiClient := ai.NewClient(cfg, logger.With("component", "ai"))
	pub := slack.NewPublisher(cfg.SlackToken, cfg.SlackChannel, logger.With("component", "slack"))

	var ops pipeline.OpsNotifier
	if cfg.TelegramEnabled() {
		notifier, err := telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger.With("component", "telegram"))
		if err != nil {
			return nil, err
		}
		ops = notifier
	}

	pipe := pipeline.New(pipeline.Deps{
		Fetcher:      fetcher,
		Summarizer:   aiClient,
		Researcher:   aiClient,
		Illustrator:  aiClient,
		Publisher:    pub,
		Ops:          ops,
		Store:        store,
		Sources:      watchList,
		Logger:       logger.With("component", "pipeline"),
		ArticleDelay: cfg.ArticleDelay,
	})

	return &app{cfg: cfg, logger: logger, store: store, pub: pub, pipe: pipe}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every source once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			res, err := a.pipe.RunBatch(ctx, seed)
			if err != nil {
				return err
			}
			a.logger.Info("run complete",
				"sources", res.Sources, "published", res.Published,
				"seeded", res.Seeded, "skipped", res.Skipped, "failed", res.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "mark everything currently listed as seen without posting")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Mark every currently listed article as seen without posting",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			res, err := a.pipe.RunBatch(ctx, true)
			if err != nil {
				return err
			}
			a.logger.Info("seed complete", "sources", res.Sources, "seeded", res.Seeded, "failed", res.Failed)
			return nil
		},
	}
}

func postCmd() *cobra.Command {
	var contentType, channel string
	cmd := &cobra.Command{
		Use:   "post <url>",
		Short: "Summarize and post a single article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct := models.ContentType(contentType)
			if !ct.Valid() {
				return fmt.Errorf("unknown content type %q (technical or announcement)", contentType)
			}

			a, err := buildApp()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			ts, err := a.pipe.RunSingle(ctx, pipeline.SingleRequest{
				URL:         args[0],
				ContentType: ct,
				Channel:     channel,
			})
			if err != nil {
				return err
			}
			a.logger.Info("posted", "url", args[0], "thread", ts)
			return nil
		},
	}
	cmd.Flags().StringVar(&contentType, "type", string(models.ContentTechnical), "content classification: technical or announcement")
	cmd.Flags().StringVar(&channel, "channel", "", "destination channel id (default: the primary channel)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP surface: health, stats, cron trigger, slash command",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.ServerPort = strings.TrimPrefix(addr, ":")
			}
			ctx, cancel := signalContext()
			defer cancel()

			srv := server.New(a.cfg, a.pipe, a.pub, a.store, a.logger.With("component", "server"))
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, e.g. :8080 (overrides PORT)")
	return cmd
}
