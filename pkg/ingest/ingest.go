// Package ingest pulls every registered feed and stores entries it has not
// seen before.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/LohithReddy3/ai-daily/internal/logger"
	"github.com/LohithReddy3/ai-daily/internal/metrics"
	"github.com/LohithReddy3/ai-daily/internal/store"
	"github.com/LohithReddy3/ai-daily/pkg/feed"
)

// Store is the persistence the engine needs.
type Store interface {
	ListSources(ctx context.Context) ([]store.Source, error)
	InsertItem(ctx context.Context, item *store.Item) (bool, error)
}

// Fetcher retrieves a parsed feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*feed.Feed, error)
}

// SourceError records a source that could not be ingested.
type SourceError struct {
	SourceID   int64
	SourceName string
	Err        error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceName, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Result summarizes one ingestion pass.
type Result struct {
	Created int
	Skipped int
	Failed  int // entries that could not be stored
	Errors  []*SourceError
}

// Engine runs ingestion passes.
type Engine struct {
	store       Store
	fetcher     Fetcher
	log         *logger.Logger
	concurrency int
}

// NewEngine creates an engine. concurrency bounds simultaneous feed fetches.
func NewEngine(s Store, f Fetcher, log *logger.Logger, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = 4
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{store: s, fetcher: f, log: log, concurrency: concurrency}
}

// Hash is the dedup key of a feed entry.
func Hash(title, link string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(title) + strings.TrimSpace(link)))
	return hex.EncodeToString(sum[:])
}

// IngestAll fetches every source with a feed URL and inserts new entries.
// A failing source is reported in the result and does not stop the others.
func (e *Engine) IngestAll(ctx context.Context) (*Result, error) {
	sources, err := e.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	var (
		mu  sync.Mutex
		res = &Result{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, src := range sources {
		if strings.TrimSpace(src.FeedURL) == "" {
			continue
		}
		src := src
		g.Go(func() error {
			created, skipped, failed, err := e.ingestSource(gctx, src)

			mu.Lock()
			defer mu.Unlock()
			res.Created += created
			res.Skipped += skipped
			res.Failed += failed
			if err != nil {
				res.Errors = append(res.Errors, &SourceError{SourceID: src.ID, SourceName: src.Name, Err: err})
				metrics.SourceErrors.WithLabelValues(src.Name).Inc()
				e.log.Warn("source ingestion failed", "source", src.Name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("ingest all: %w", err)
	}

	e.log.Info("ingestion finished",
		"sources", len(sources), "created", res.Created, "skipped", res.Skipped, "failed", len(res.Errors))
	return res, nil
}

func (e *Engine) ingestSource(ctx context.Context, src store.Source) (created, skipped, failed int, err error) {
	parsed, err := e.fetcher.Fetch(ctx, src.FeedURL)
	if err != nil {
		return 0, 0, 0, err
	}

	var errs []error
	for _, entry := range parsed.Entries {
		item := &store.Item{
			SourceID:    src.ID,
			Title:       entry.Title,
			URL:         entry.Link,
			PublishedAt: entry.Published.UTC(),
			RawText:     entry.Body,
			ContentType: src.Type,
			Hash:        Hash(entry.Title, entry.Link),
			Metadata:    map[string]string{"author": entry.Author},
		}

		inserted, err := e.store.InsertItem(ctx, item)
		if err != nil {
			failed++
			errs = append(errs, fmt.Errorf("store entry %q: %w", entry.Title, err))
			e.log.Warn("entry not stored", "source", src.Name, "title", entry.Title, "error", err)
			continue
		}
		if inserted {
			created++
		} else {
			skipped++
		}
	}

	metrics.ItemsIngested.WithLabelValues(src.Name).Add(float64(created))
	metrics.ItemsSkipped.WithLabelValues(src.Name).Add(float64(skipped))
	e.log.Debug("source ingested", "source", src.Name, "entries", len(parsed.Entries), "created", created, "failed", failed)
	return created, skipped, failed, errors.Join(errs...)
}
