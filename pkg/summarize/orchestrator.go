// Package summarize writes persona-specific summaries for the most
// significant stories.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LohithReddy3/ai-daily/internal/logger"
	"github.com/LohithReddy3/ai-daily/internal/metrics"
	"github.com/LohithReddy3/ai-daily/internal/store"
	"github.com/LohithReddy3/ai-daily/pkg/genai"
	"github.com/LohithReddy3/ai-daily/pkg/textutil"
)

const DefaultLimit = 50

// Store is the persistence the orchestrator needs.
type Store interface {
	TopStories(ctx context.Context, limit int) ([]store.Story, error)
	StoryItems(ctx context.Context, storyID string, limit int) ([]store.Item, error)
	StorySummaries(ctx context.Context, storyID string) ([]store.StorySummary, error)
	SaveSummaries(ctx context.Context, storyID string, summaries []store.StorySummary) ([]store.StorySummary, error)
}

// Options tunes prompt construction.
type Options struct {
	MaxTargets      int // personas per story
	ContextItems    int // items shown to the classifier
	ExcerptChars    int // body characters per classifier item
	GenerationItems int // items shown to the writer
	GenerationChars int // body characters per writer item
}

func (o *Options) defaults() {
	if o.MaxTargets <= 0 {
		o.MaxTargets = 2
	}
	if o.ContextItems <= 0 {
		o.ContextItems = 3
	}
	if o.ExcerptChars <= 0 {
		o.ExcerptChars = 300
	}
	if o.GenerationItems <= 0 {
		o.GenerationItems = 5
	}
	if o.GenerationChars <= 0 {
		o.GenerationChars = 1500
	}
}

// Orchestrator runs summarization passes.
type Orchestrator struct {
	store Store
	gen   genai.Generator
	log   *logger.Logger
	opts  Options
}

// New creates an orchestrator. gen may be nil, in which case every pass is
// a logged no-op.
func New(s Store, gen genai.Generator, log *logger.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	opts.defaults()
	return &Orchestrator{store: s, gen: gen, log: log, opts: opts}
}

// SummarizeTopStories classifies the top stories and writes any missing
// persona summaries. It returns how many summaries were persisted.
func (o *Orchestrator) SummarizeTopStories(ctx context.Context, limit int) (int, error) {
	if o.gen == nil {
		o.log.Warn("no generative provider configured, skipping summarization")
		return 0, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	stories, err := o.store.TopStories(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("select top stories: %w", err)
	}

	total := 0
	for _, st := range stories {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("summarize top stories: %w", err)
		}

		n, err := o.summarizeStory(ctx, st)
		total += n
		if errors.Is(err, genai.ErrCircuitOpen) {
			o.log.Warn("generative provider unavailable, ending summarization early",
				"summarized", total, "story_id", st.ID)
			break
		}
		if err != nil {
			o.log.Error("summarize story failed", "story_id", st.ID, "error", err)
		}
	}

	o.log.Info("summarization finished", "stories", len(stories), "summaries", total)
	return total, nil
}

func (o *Orchestrator) summarizeStory(ctx context.Context, st store.Story) (int, error) {
	log := o.log.With("story_id", st.ID)

	items, err := o.store.StoryItems(ctx, st.ID, max(o.opts.ContextItems, o.opts.GenerationItems))
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	existing, err := o.store.StorySummaries(ctx, st.ID)
	if err != nil {
		return 0, err
	}
	done := make(map[Target]bool, len(existing))
	for _, s := range existing {
		done[Target{Persona: s.Persona, Category: s.Category}] = true
	}

	targets, err := o.classify(ctx, st, items)
	if errors.Is(err, genai.ErrCircuitOpen) {
		return 0, err
	}

	input := o.generationInput(items)
	var summaries []store.StorySummary
	var breakerErr error
	for _, t := range targets {
		if done[t] {
			continue
		}
		raw, err := o.gen.Generate(ctx, genai.Request{
			System:    generateSystem,
			Prompt:    generatePrompt(t, input),
			JSON:      true,
			MaxTokens: 1024,
		})
		if errors.Is(err, genai.ErrCircuitOpen) {
			breakerErr = err
			break
		}
		if err != nil {
			log.Error("generate summary failed", "persona", t.Persona, "category", t.Category, "error", err)
			continue
		}

		sum, err := ParseSummary(raw, t)
		if err != nil {
			if errors.Is(err, ErrMalformedResponse) {
				metrics.MalformedResponses.WithLabelValues(string(t.Persona)).Inc()
			}
			log.Warn("discarding summary", "persona", t.Persona, "category", t.Category, "error", err)
			continue
		}
		summaries = append(summaries, sum)
	}

	written, err := o.store.SaveSummaries(ctx, st.ID, summaries)
	if err != nil {
		return 0, fmt.Errorf("save summaries: %w", err)
	}
	for _, s := range written {
		metrics.SummariesCreated.WithLabelValues(string(s.Persona)).Inc()
	}
	n := len(written)
	if n > 0 {
		log.Info("story summarized", "summaries", n)
	}
	return n, breakerErr
}

// classify asks for targets and falls back to FallbackTarget when the call
// fails or nothing valid comes back. The error is only ever ErrCircuitOpen.
func (o *Orchestrator) classify(ctx context.Context, st store.Story, items []store.Item) ([]Target, error) {
	raw, err := o.gen.Generate(ctx, genai.Request{
		System:    classifySystem,
		Prompt:    classifyPrompt(o.classificationContext(st, items), o.opts.MaxTargets),
		JSON:      true,
		MaxTokens: 256,
	})
	if errors.Is(err, genai.ErrCircuitOpen) {
		return nil, err
	}

	var targets []Target
	if err == nil {
		targets, err = ParseClassification(raw, o.opts.MaxTargets)
	}
	if err != nil || len(targets) == 0 {
		metrics.ClassificationFallbacks.Inc()
		o.log.Warn("classification unusable, using fallback", "story_id", st.ID, "error", err)
		return []Target{FallbackTarget}, nil
	}
	return targets, nil
}

func (o *Orchestrator) classificationContext(st store.Story, items []store.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", st.CanonicalTitle)
	for _, it := range items[:min(o.opts.ContextItems, len(items))] {
		fmt.Fprintf(&b, "- %s: %s\n", it.Title, textutil.Excerpt(textutil.PlainText(it.RawText), o.opts.ExcerptChars))
	}
	return b.String()
}

func (o *Orchestrator) generationInput(items []store.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items[:min(o.opts.GenerationItems, len(items))] {
		parts = append(parts, fmt.Sprintf("Title: %s\nUrl: %s\nText: %s",
			it.Title, it.URL, textutil.Excerpt(textutil.PlainText(it.RawText), o.opts.GenerationChars)))
	}
	return strings.Join(parts, "\n\n")
}
