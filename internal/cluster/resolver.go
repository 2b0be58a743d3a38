package cluster

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/KurimiTokisakiQAQ/kd/internal/globaltime"
	"github.com/KurimiTokisakiQAQ/kd/internal/similarity"
	"github.com/KurimiTokisakiQAQ/kd/internal/source"
	"github.com/KurimiTokisakiQAQ/kd/internal/store"
)

const (
	DefaultCandidateLimit      = 20
	DefaultSimilarityThreshold = 0.72
	DefaultLookbackDays        = 30
)

// CandidateStore is the slice of the notify store the resolver needs.
type CandidateStore interface {
	RecentPosts(ctx context.Context, since time.Time) ([]store.CandidatePost, error)
	RecentSummaries(ctx context.Context, limit int) ([]store.SummaryCandidate, error)
}

// Matcher decides semantic membership; the Judge satisfies it.
type Matcher interface {
	Match(ctx context.Context, summary string, candidates []store.SummaryCandidate) (string, error)
}

type Options struct {
	CandidateLimit      int
	SimilarityThreshold float64
	LookbackDays        int
	SemanticEnabled     bool
}

// Resolver assigns each alerting post to an event cluster. Strategies run in
// order, each falling through on a miss or on an operational failure:
//
//  1. semantic: model judgment over recent cluster summaries
//  2. lexical: longest-common-subsequence score against recent stored posts
//  3. deterministic: the post becomes its own cluster seed
//
// Resolve never returns an empty id.
type Resolver struct {
	store  CandidateStore
	judge  Matcher
	opts   Options
	logger zerolog.Logger
}

func NewResolver(candidates CandidateStore, judge Matcher, opts Options, logger zerolog.Logger) *Resolver {
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = DefaultCandidateLimit
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	return &Resolver{
		store:  candidates,
		judge:  judge,
		opts:   opts,
		logger: logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, post source.Post, summary string) string {
	if id := r.resolveSemantic(ctx, summary); id != "" {
		return id
	}
	if id := r.resolveLexical(ctx, post); id != "" {
		return id
	}
	return SeedID(post)
}

func (r *Resolver) resolveSemantic(ctx context.Context, summary string) string {
	if !r.opts.SemanticEnabled || r.judge == nil {
		return ""
	}

	candidates, err := r.store.RecentSummaries(ctx, r.opts.CandidateLimit)
	if err != nil {
		r.logger.Warn().Err(err).Msg("loading summary candidates failed; falling back to lexical clustering")
		return ""
	}
	if len(candidates) == 0 {
		return ""
	}

	id, err := r.judge.Match(ctx, summary, candidates)
	if err != nil {
		r.logger.Warn().Err(err).Msg("semantic cluster judgment failed; falling back to lexical clustering")
		return ""
	}
	return id
}

func (r *Resolver) resolveLexical(ctx context.Context, post source.Post) string {
	text, kind := similarity.ComparisonText(post.WorkTitle, post.WorkContent, post.OCRContent)
	if kind == similarity.TextNone {
		return ""
	}

	cutoff := globaltime.Now().AddDate(0, 0, -r.opts.LookbackDays)
	candidates, err := r.store.RecentPosts(ctx, cutoff)
	if err != nil {
		r.logger.Warn().Err(err).Msg("loading lexical candidates failed; seeding a new cluster")
		return ""
	}

	var bestID string
	bestScore := 0.0
	for _, c := range candidates {
		if c.ID == post.ID || (post.WorkID != "" && c.WorkID == post.WorkID) {
			continue
		}

		// Compare whatever text each side has; a text post may match a
		// stored image-only post through its OCR transcript.
		candidateText, _ := similarity.ComparisonText(c.Title, c.Content, c.OCR)

		// Candidates arrive newest-first, so on a tied score the more
		// recent post wins.
		if score := similarity.Score(text, candidateText); score >= r.opts.SimilarityThreshold && score > bestScore {
			bestScore = score
			bestID = candidateClusterID(c)
		}
	}
	return bestID
}

// candidateClusterID picks the id a matched candidate contributes. Rows this
// system writes always carry a cluster id; rows migrated from elsewhere may
// not, and then the candidate's own identity stands in.
func candidateClusterID(c store.CandidatePost) string {
	if c.ClusterID != "" {
		return c.ClusterID
	}
	if c.WorkID != "" {
		return c.WorkID
	}
	return strconv.FormatInt(c.ID, 10)
}

// SeedID derives the cluster id for a post that starts its own cluster:
// business id first, then the source row id, then a digest of the canonical
// text so the outcome stays stable across retries.
func SeedID(post source.Post) string {
	if post.WorkID != "" {
		return post.WorkID
	}
	if post.ID > 0 {
		return strconv.FormatInt(post.ID, 10)
	}

	key := fmt.Sprintf(
		"%s|%s|%s",
		similarity.Canonicalize(post.WorkTitle),
		similarity.Canonicalize(post.WorkContent),
		similarity.Canonicalize(post.OCRContent),
	)
	digest := md5.Sum([]byte(key))
	return hex.EncodeToString(digest[:])[:16]
}
