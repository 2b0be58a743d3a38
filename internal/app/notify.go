package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/KurimiTokisakiQAQ/kd/internal/classify"
	"github.com/KurimiTokisakiQAQ/kd/internal/cli"
	"github.com/KurimiTokisakiQAQ/kd/internal/cluster"
	"github.com/KurimiTokisakiQAQ/kd/internal/config"
	"github.com/KurimiTokisakiQAQ/kd/internal/db"
	"github.com/KurimiTokisakiQAQ/kd/internal/llm"
	"github.com/KurimiTokisakiQAQ/kd/internal/logging"
	"github.com/KurimiTokisakiQAQ/kd/internal/notify"
	"github.com/KurimiTokisakiQAQ/kd/internal/store"
	postschema "github.com/KurimiTokisakiQAQ/kd/schema"
)

// runNotify evaluates a single post payload through the same gate, clustering,
// persistence, and delivery steps the monitor loop uses. Intended for replays
// and manual spot checks.
func runNotify(args []string) int {
	fs := flag.NewFlagSet("notify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	file := fs.String("file", "", "Read the post JSON from a file instead of the argument ('-' for stdin)")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall evaluation timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	payload, err := readNotifyPayload(*file, fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
		return 2
	}

	post, err := postschema.ValidateSourcePostPayload(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		return 1
	}
	defer pool.Close()

	chat := llm.NewClient(llm.Options{
		Endpoint:       cfg.LLMEndpoint,
		Model:          cfg.LLMModel,
		RequestTimeout: cfg.LLMRequestTimeout,
	})
	classifier := classify.NewClient(chat, logger)
	notifyStore := store.NewNotifyStore(pool, cfg.NotifyTable, logger)
	resolver := cluster.NewResolver(notifyStore, cluster.NewJudge(chat, logger), cluster.Options{
		CandidateLimit:      cfg.CandidateLimit,
		SimilarityThreshold: cfg.SimilarityThreshold,
		LookbackDays:        cfg.LookbackDays,
		SemanticEnabled:     cfg.SemanticClustering,
	}, logger)
	webhook := notify.NewWebhook(notify.Options{
		WebhookURL:    cfg.WebhookURL,
		MentionOpenID: cfg.MentionOpenID,
	}, logger)

	result, err := classifier.Classify(ctx, post.WorkTitle, post.WorkContent, post.OCRContent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Classification failed: %v\n", err)
		return 1
	}
	if !result.Pass() {
		fmt.Printf("skipped: focus=%t problem=%t\n", result.Focus, result.Problem)
		return 0
	}

	clusterID := resolver.Resolve(ctx, *post, result.Summary)
	if err := notifyStore.Upsert(ctx, store.Record{
		Post:      *post,
		Summary:   result.Summary,
		Severity:  result.Severity,
		ClusterID: clusterID,
	}); err != nil {
		logger.Error().Err(err).Msg("persisting alert record failed")
		fmt.Fprintf(os.Stderr, "Persist failed: %v\n", err)
		return 1
	}

	stats, err := notifyStore.SimilarCounts(ctx, clusterID, post.PublishedAt(), post.ID, post.WorkID)
	if err != nil {
		logger.Warn().Err(err).Msg("similar-post counting failed; reporting zero counts")
		stats = store.Stats{}
	}

	if err := webhook.Send(ctx, notify.Alert{
		Post:     *post,
		Summary:  result.Summary,
		Severity: result.Severity,
		Stats:    stats,
	}); err != nil {
		logger.Warn().Err(err).Msg("alert delivery failed")
		fmt.Fprintf(os.Stderr, "Alert recorded but delivery failed: %v\n", err)
		return 1
	}

	fmt.Printf("alerted: cluster=%s severity=%s day=%d week=%d\n",
		clusterID, result.Severity, stats.DayCount, stats.WeekCount)
	return 0
}

func readNotifyPayload(file string, positional []string) ([]byte, error) {
	switch {
	case file == "-":
		return io.ReadAll(os.Stdin)
	case file != "":
		return os.ReadFile(file)
	case len(positional) == 1:
		return []byte(positional[0]), nil
	case len(positional) == 0:
		return nil, fmt.Errorf("expected a JSON payload argument or --file")
	default:
		return nil, fmt.Errorf("expected exactly one JSON payload argument")
	}
}
