package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/KurimiTokisakiQAQ/kd/internal/classify"
	"github.com/KurimiTokisakiQAQ/kd/internal/globaltime"
	"github.com/KurimiTokisakiQAQ/kd/internal/notify"
	"github.com/KurimiTokisakiQAQ/kd/internal/source"
	"github.com/KurimiTokisakiQAQ/kd/internal/store"
)

type Poller interface {
	Poll(ctx context.Context, watermark int64) ([]source.Post, error)
}

type Classifier interface {
	Classify(ctx context.Context, title, body, ocr string) (classify.Result, error)
}

type Resolver interface {
	Resolve(ctx context.Context, post source.Post, summary string) string
}

type Store interface {
	Upsert(ctx context.Context, rec store.Record) error
	SimilarCounts(ctx context.Context, clusterID string, publishTime time.Time, excludeID int64, excludeWorkID string) (store.Stats, error)
}

type Notifier interface {
	Send(ctx context.Context, alert notify.Alert) error
}

// Recycler lets the runner ask the database layer to rebuild its connection
// after a failed poll.
type Recycler interface {
	Recycle(ctx context.Context) error
}

type Options struct {
	PollInterval time.Duration
	StartID      int64
}

// Status is a point-in-time snapshot of the runner, served by the status
// endpoint.
type Status struct {
	Watermark int64     `json:"watermark"`
	Polled    int64     `json:"polled"`
	Alerted   int64     `json:"alerted"`
	Skipped   int64     `json:"skipped"`
	Failed    int64     `json:"failed"`
	LastPoll  time.Time `json:"last_poll"`
}

// Runner drives the monitoring loop: poll new posts past the watermark,
// classify each, and persist and announce the ones that clear the gate. The
// watermark advances over every fetched row, including ones that fail
// downstream; a crawled post is evaluated once and never revisited.
type Runner struct {
	poller     Poller
	classifier Classifier
	resolver   Resolver
	store      Store
	notifier   Notifier
	recycler   Recycler
	opts       Options
	logger     zerolog.Logger

	mu     sync.Mutex
	status Status
}

func NewRunner(
	poller Poller,
	classifier Classifier,
	resolver Resolver,
	recordStore Store,
	notifier Notifier,
	recycler Recycler,
	opts Options,
	logger zerolog.Logger,
) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	return &Runner{
		poller:     poller,
		classifier: classifier,
		resolver:   resolver,
		store:      recordStore,
		notifier:   notifier,
		recycler:   recycler,
		opts:       opts,
		logger:     logger,
		status:     Status{Watermark: opts.StartID},
	}
}

// Run loops until the context is canceled. Poll failures recycle the database
// connection and wait out the interval; they never terminate the loop.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("poll round failed")
			if r.recycler != nil {
				if recycleErr := r.recycler.Recycle(ctx); recycleErr != nil {
					r.logger.Error().Err(recycleErr).Msg("database recycle failed")
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single poll round.
func (r *Runner) RunOnce(ctx context.Context) error {
	watermark := r.Snapshot().Watermark

	posts, err := r.poller.Poll(ctx, watermark)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.status.LastPoll = globaltime.Now()
	r.mu.Unlock()

	for _, post := range posts {
		r.handlePost(ctx, post)
		if post.ID > watermark {
			watermark = post.ID
			r.mu.Lock()
			r.status.Watermark = watermark
			r.mu.Unlock()
		}
	}
	return nil
}

func (r *Runner) handlePost(ctx context.Context, post source.Post) {
	r.bump(func(s *Status) { s.Polled++ })

	logger := r.logger.With().Int64("id", post.ID).Str("work_id", post.WorkID).Logger()

	result, err := r.classifier.Classify(ctx, post.WorkTitle, post.WorkContent, post.OCRContent)
	if err != nil {
		logger.Warn().Err(err).Msg("classification unavailable; post skipped")
	}
	if !result.Pass() {
		r.bump(func(s *Status) { s.Skipped++ })
		logger.Debug().
			Bool("focus", result.Focus).
			Bool("problem", result.Problem).
			Msg("post did not clear the alert gate")
		return
	}

	clusterID := r.resolver.Resolve(ctx, post, result.Summary)

	rec := store.Record{
		Post:      post,
		Summary:   result.Summary,
		Severity:  result.Severity,
		ClusterID: clusterID,
	}
	if err := r.store.Upsert(ctx, rec); err != nil {
		r.bump(func(s *Status) { s.Failed++ })
		logger.Error().Err(err).Msg("persisting alert record failed; notification suppressed")
		return
	}

	stats, err := r.store.SimilarCounts(ctx, clusterID, post.PublishedAt(), post.ID, post.WorkID)
	if err != nil {
		logger.Warn().Err(err).Msg("similar-post counting failed; reporting zero counts")
		stats = store.Stats{}
	}

	if err := r.notifier.Send(ctx, notify.Alert{
		Post:     post,
		Summary:  result.Summary,
		Severity: result.Severity,
		Stats:    stats,
	}); err != nil {
		logger.Warn().Err(err).Msg("alert delivery failed")
	}

	r.bump(func(s *Status) { s.Alerted++ })
	logger.Info().
		Str("cluster_id", clusterID).
		Str("severity", result.Severity).
		Int("day_count", stats.DayCount).
		Int("week_count", stats.WeekCount).
		Msg("alert recorded")
}

func (r *Runner) bump(apply func(*Status)) {
	r.mu.Lock()
	apply(&r.status)
	r.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (r *Runner) Snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
