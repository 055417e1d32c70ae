// Package pipeline binds the ingestion, clustering and summarization
// engines to scheduler stages.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/LohithReddy3/ai-daily/internal/logger"
	"github.com/LohithReddy3/ai-daily/internal/scheduler"
	"github.com/LohithReddy3/ai-daily/internal/store"
	"github.com/LohithReddy3/ai-daily/pkg/alert"
	"github.com/LohithReddy3/ai-daily/pkg/cluster"
	"github.com/LohithReddy3/ai-daily/pkg/ingest"
)

// Stage names, in run order.
const (
	StageIngest    = "ingest"
	StageCluster   = "cluster"
	StageSummarize = "summarize"
)

type Ingester interface {
	IngestAll(ctx context.Context) (*ingest.Result, error)
}

type Clusterer interface {
	ClusterUnassigned(ctx context.Context) (*cluster.Result, error)
}

type Summarizer interface {
	SummarizeTopStories(ctx context.Context, limit int) (int, error)
}

// Engines holds one engine per stage.
type Engines struct {
	Ingest         Ingester
	Cluster        Clusterer
	Summarize      Summarizer
	SummarizeLimit int
}

// Stages returns ingest, cluster and summarize in that order.
func Stages(e Engines) []scheduler.Stage {
	return []scheduler.Stage{
		{Name: StageIngest, Run: func(ctx context.Context) (map[string]int, error) {
			res, err := e.Ingest.IngestAll(ctx)
			if res == nil {
				return nil, err
			}
			return map[string]int{
				"created":        res.Created,
				"skipped":        res.Skipped,
				"failed_entries": res.Failed,
				"failed_sources": len(res.Errors),
			}, err
		}},
		{Name: StageCluster, Run: func(ctx context.Context) (map[string]int, error) {
			res, err := e.Cluster.ClusterUnassigned(ctx)
			if res == nil {
				return nil, err
			}
			return map[string]int{
				"created":  res.Created,
				"attached": res.Attached,
				"skipped":  res.Skipped,
				"failed":   res.Failed,
			}, err
		}},
		{Name: StageSummarize, Run: func(ctx context.Context) (map[string]int, error) {
			n, err := e.Summarize.SummarizeTopStories(ctx, e.SummarizeLimit)
			return map[string]int{"summaries": n}, err
		}},
	}
}

// StoryLister reads the stories a digest is built from.
type StoryLister interface {
	ListStories(ctx context.Context, opts store.StoryListOpts) ([]store.StoryView, error)
}

const digestSize = 5

// Digest returns a completion hook that broadcasts the day's top stories
// after any run that wrote summaries.
func Digest(s StoryLister, m *alert.Manager, log *logger.Logger) func(context.Context, *scheduler.Report) {
	return func(ctx context.Context, r *scheduler.Report) {
		if !m.HasNotifiers() {
			return
		}
		written := r.Stat(StageSummarize, "summaries")
		if written == 0 {
			return
		}

		views, err := s.ListStories(ctx, store.StoryListOpts{
			Since: r.StartedAt.Add(-24 * time.Hour),
			Limit: digestSize,
		})
		if err != nil {
			log.Error("load digest stories", "run_id", r.ID, "error", err)
			return
		}
		if len(views) == 0 {
			return
		}

		n := &alert.Notification{
			RunID: r.ID,
			Title: fmt.Sprintf("AI Daily: %d new summaries", written),
			Body: fmt.Sprintf("Ingested %d items into %d new stories.",
				r.Stat(StageIngest, "created"), r.Stat(StageCluster, "created")),
		}
		for _, v := range views {
			n.Stories = append(n.Stories, digestStory(v))
		}

		if err := m.Broadcast(ctx, n); err != nil {
			log.Warn("digest delivery failed", "run_id", r.ID, "error", err)
		}
	}
}

func digestStory(v store.StoryView) alert.Story {
	st := alert.Story{Title: v.CanonicalTitle, Items: v.ItemCount}
	if len(v.Items) > 0 {
		st.URL = v.Items[0].URL
	}
	for _, sum := range v.Summaries {
		if sum.SummaryShort != "" {
			st.Summary = sum.SummaryShort
			break
		}
	}
	return st
}
