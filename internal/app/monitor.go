package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/KurimiTokisakiQAQ/kd/internal/classify"
	"github.com/KurimiTokisakiQAQ/kd/internal/cli"
	"github.com/KurimiTokisakiQAQ/kd/internal/cluster"
	"github.com/KurimiTokisakiQAQ/kd/internal/config"
	"github.com/KurimiTokisakiQAQ/kd/internal/db"
	"github.com/KurimiTokisakiQAQ/kd/internal/httpapi"
	"github.com/KurimiTokisakiQAQ/kd/internal/llm"
	"github.com/KurimiTokisakiQAQ/kd/internal/logging"
	"github.com/KurimiTokisakiQAQ/kd/internal/monitor"
	"github.com/KurimiTokisakiQAQ/kd/internal/notify"
	"github.com/KurimiTokisakiQAQ/kd/internal/source"
	"github.com/KurimiTokisakiQAQ/kd/internal/store"
)

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	once := fs.Bool("once", false, "Run a single poll round and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	pool, err := db.NewPool(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		return 1
	}
	defer pool.Close()

	runner := buildRunner(cfg, pool, logger)

	var server *httpapi.Server
	if cfg.StatusAddr != "" {
		server = httpapi.NewServer(pool, runner, logger)
		go func() {
			if err := server.Start(cfg.StatusAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("status server failed")
			}
		}()
	}

	logger.Info().
		Str("source_table", cfg.SourceTable).
		Str("notify_table", cfg.NotifyTable).
		Dur("poll_interval", cfg.PollInterval).
		Int64("start_id", cfg.StartID).
		Msg("monitor starting")

	var runErr error
	if *once {
		runErr = runner.RunOnce(ctx)
	} else {
		runErr = runner.Run(ctx)
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("status server shutdown failed")
		}
		cancel()
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error().Err(runErr).Msg("monitor stopped")
		return 1
	}
	logger.Info().Msg("monitor stopped")
	return 0
}

func buildRunner(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) *monitor.Runner {
	chat := llm.NewClient(llm.Options{
		Endpoint:       cfg.LLMEndpoint,
		Model:          cfg.LLMModel,
		RequestTimeout: cfg.LLMRequestTimeout,
	})

	classifier := classify.NewClient(chat, logger)
	notifyStore := store.NewNotifyStore(pool, cfg.NotifyTable, logger)
	judge := cluster.NewJudge(chat, logger)
	resolver := cluster.NewResolver(notifyStore, judge, cluster.Options{
		CandidateLimit:      cfg.CandidateLimit,
		SimilarityThreshold: cfg.SimilarityThreshold,
		LookbackDays:        cfg.LookbackDays,
		SemanticEnabled:     cfg.SemanticClustering,
	}, logger)
	webhook := notify.NewWebhook(notify.Options{
		WebhookURL:    cfg.WebhookURL,
		MentionOpenID: cfg.MentionOpenID,
	}, logger)
	cursor := source.NewCursor(pool, cfg.SourceTable, logger)

	return monitor.NewRunner(
		cursor,
		classifier,
		resolver,
		notifyStore,
		webhook,
		pool,
		monitor.Options{
			PollInterval: cfg.PollInterval,
			StartID:      cfg.StartID,
		},
		logger,
	)
}
