// Package cluster groups unassigned items into stories by title similarity.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LohithReddy3/ai-daily/internal/logger"
	"github.com/LohithReddy3/ai-daily/internal/metrics"
	"github.com/LohithReddy3/ai-daily/internal/store"
)

const (
	DefaultThreshold = 0.65
	DefaultWindow    = 72 * time.Hour
)

// Store is the persistence the engine needs.
type Store interface {
	ListUnclusteredItems(ctx context.Context) ([]store.Item, error)
	ListStoriesSince(ctx context.Context, since time.Time) ([]store.Story, error)
	CreateStoryWithItem(ctx context.Context, story *store.Story, itemID string) error
	AttachItem(ctx context.Context, storyID, itemID string) error
}

// Result summarizes one clustering pass.
type Result struct {
	Created  int
	Attached int
	Skipped  int
	Failed   int
}

// Engine assigns items to stories.
type Engine struct {
	store      Store
	log        *logger.Logger
	threshold  float64
	window     time.Duration
	similarity SimilarityFunc
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold sets the minimum similarity for attaching to a story.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 {
			e.threshold = t
		}
	}
}

// WithWindow sets how far back candidate stories are considered.
func WithWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithSimilarity replaces the title similarity metric.
func WithSimilarity(fn SimilarityFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.similarity = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a clustering engine.
func NewEngine(s Store, log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		store:      s,
		log:        log,
		threshold:  DefaultThreshold,
		window:     DefaultWindow,
		similarity: Ratio,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type candidate struct {
	id    string
	title string // lower-cased
}

// ClusterUnassigned attaches every unclustered item to the most similar
// recent story, or starts a new story for it. Items are processed one at a
// time and stories created during the pass are candidates for later items.
func (e *Engine) ClusterUnassigned(ctx context.Context) (*Result, error) {
	items, err := e.store.ListUnclusteredItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unclustered items: %w", err)
	}
	res := &Result{}
	if len(items) == 0 {
		return res, nil
	}

	stories, err := e.store.ListStoriesSince(ctx, e.now().Add(-e.window))
	if err != nil {
		return nil, fmt.Errorf("list candidate stories: %w", err)
	}
	pool := make([]candidate, 0, len(stories)+len(items))
	for _, st := range stories {
		pool = append(pool, candidate{id: st.ID, title: strings.ToLower(strings.TrimSpace(st.CanonicalTitle))})
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("cluster unassigned: %w", err)
		}

		title := strings.TrimSpace(item.Title)
		best, score := e.bestMatch(strings.ToLower(title), pool)

		if best != nil && score >= e.threshold {
			err := e.store.AttachItem(ctx, best.id, item.ID)
			switch {
			case errors.Is(err, store.ErrItemClaimed):
				res.Skipped++
			case err != nil:
				res.Failed++
				metrics.ClusterAssignments.WithLabelValues("failed").Inc()
				e.log.Error("attach item failed", "item_id", item.ID, "story_id", best.id, "error", err)
			default:
				res.Attached++
				metrics.ClusterAssignments.WithLabelValues("attached").Inc()
				e.log.Debug("item attached", "item_id", item.ID, "story_id", best.id, "score", score)
			}
			continue
		}

		story := &store.Story{CanonicalTitle: title, CreatedAt: e.now(), Tags: []string{}}
		err := e.store.CreateStoryWithItem(ctx, story, item.ID)
		switch {
		case errors.Is(err, store.ErrItemClaimed):
			res.Skipped++
		case err != nil:
			res.Failed++
			metrics.ClusterAssignments.WithLabelValues("failed").Inc()
			e.log.Error("create story failed", "item_id", item.ID, "error", err)
		default:
			res.Created++
			metrics.ClusterAssignments.WithLabelValues("created").Inc()
			pool = append(pool, candidate{id: story.ID, title: strings.ToLower(title)})
		}
	}

	e.log.Info("clustering finished",
		"items", len(items), "created", res.Created, "attached", res.Attached,
		"skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// bestMatch returns the highest scoring candidate. An empty title matches nothing.
func (e *Engine) bestMatch(title string, pool []candidate) (*candidate, float64) {
	if title == "" {
		return nil, 0
	}
	var (
		best      *candidate
		bestScore float64
	)
	for i := range pool {
		if pool[i].title == "" {
			continue
		}
		if s := e.similarity(title, pool[i].title); s > bestScore {
			best, bestScore = &pool[i], s
		}
	}
	return best, bestScore
}
