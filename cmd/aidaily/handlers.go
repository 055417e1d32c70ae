package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LohithReddy3/ai-daily/internal/config"
	"github.com/LohithReddy3/ai-daily/internal/lease"
	"github.com/LohithReddy3/ai-daily/internal/logger"
	"github.com/LohithReddy3/ai-daily/internal/metrics"
	"github.com/LohithReddy3/ai-daily/internal/pipeline"
	"github.com/LohithReddy3/ai-daily/internal/scheduler"
	"github.com/LohithReddy3/ai-daily/internal/store"
	"github.com/LohithReddy3/ai-daily/internal/tracing"
	"github.com/LohithReddy3/ai-daily/pkg/alert"
	"github.com/LohithReddy3/ai-daily/pkg/cluster"
	"github.com/LohithReddy3/ai-daily/pkg/feed"
	"github.com/LohithReddy3/ai-daily/pkg/genai"
	"github.com/LohithReddy3/ai-daily/pkg/ingest"
	"github.com/LohithReddy3/ai-daily/pkg/server"
	"github.com/LohithReddy3/ai-daily/pkg/summarize"
)

var setupTracing = tracing.Setup

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app holds what every command needs: config, logger and an open store.
type app struct {
	cfg           *config.Config
	log           *logger.Logger
	db            *store.SQLStore
	stopTracing   func(context.Context) error
	closeLockConn func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Init()

	stopTracing, err := setupTracing(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	target := cfg.Database.Path
	if cfg.Database.Driver == "postgres" {
		target = cfg.Database.DSN
	}
	db, err := store.Open(ctx, cfg.Database.Driver, target)
	if err != nil {
		_ = stopTracing(context.Background())
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &app{cfg: cfg, log: log, db: db, stopTracing: stopTracing}, nil
}

func (a *app) Close() {
	if a.closeLockConn != nil {
		if err := a.closeLockConn(); err != nil {
			a.log.Warn("close redis", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("close store", "error", err)
	}
	if err := a.stopTracing(context.Background()); err != nil {
		a.log.Warn("flush traces", "error", err)
	}
	a.log.Sync()
}

func (a *app) fetcher() *feed.Fetcher {
	return feed.NewFetcher(a.cfg.Ingest.ParseTimeout(), a.cfg.Ingest.UserAgent)
}

func (a *app) ingestEngine() *ingest.Engine {
	return ingest.NewEngine(a.db, a.fetcher(), a.log.With("stage", pipeline.StageIngest), a.cfg.Ingest.Concurrency)
}

func (a *app) clusterEngine() *cluster.Engine {
	return cluster.NewEngine(a.db, a.log.With("stage", pipeline.StageCluster),
		cluster.WithThreshold(a.cfg.Cluster.Threshold),
		cluster.WithWindow(a.cfg.Cluster.ParseWindow()),
	)
}

func (a *app) summarizer() (*summarize.Orchestrator, error) {
	llm := a.cfg.LLM
	gen, err := genai.New(genai.Config{
		Provider:        llm.Provider,
		Model:           llm.Model,
		APIKey:          llm.APIKey,
		BaseURL:         llm.BaseURL,
		Timeout:         llm.ParseTimeout(),
		BreakerFailures: llm.BreakerFailures,
		BreakerCooldown: llm.ParseBreakerCooldown(),
	})
	switch {
	case errors.Is(err, genai.ErrNotConfigured):
		a.log.Warn("no generative API key configured, summarization disabled")
		gen = nil
	case err != nil:
		return nil, fmt.Errorf("init generative provider: %w", err)
	default:
		a.log.Info("generative provider ready", "provider", llm.Provider, "model", llm.Model)
	}

	sc := a.cfg.Summarize
	return summarize.New(a.db, gen, a.log.With("stage", pipeline.StageSummarize), summarize.Options{
		MaxTargets:      sc.MaxTargets,
		ContextItems:    sc.ContextItems,
		ExcerptChars:    sc.ExcerptChars,
		GenerationItems: sc.GenerationItems,
		GenerationChars: sc.GenerationChars,
	}), nil
}

func (a *app) locker(ctx context.Context) (lease.Locker, error) {
	lc := a.cfg.Lease
	if lc.RedisAddr == "" {
		return lease.NewLocal(), nil
	}
	client, err := lease.Dial(ctx, lc.RedisAddr, lc.RedisPassword, lc.RedisDB)
	if err != nil {
		return nil, err
	}
	a.closeLockConn = client.Close
	a.log.Info("using redis run lease", "addr", lc.RedisAddr, "key", lc.Key)
	return lease.NewRedis(client, lc.Key, lc.ParseTTL()), nil
}

func (a *app) alertManager() *alert.Manager {
	ac := a.cfg.Alerts
	var notifiers []alert.Notifier

	if ac.Slack.Enabled && ac.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(ac.Slack.WebhookURL))
	}
	if ac.Discord.Enabled && ac.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(ac.Discord.WebhookURL))
	}
	if ac.Webhook.Enabled && ac.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(ac.Webhook.URL, ac.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func (a *app) scheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	sum, err := a.summarizer()
	if err != nil {
		return nil, err
	}
	locker, err := a.locker(ctx)
	if err != nil {
		return nil, err
	}

	stages := pipeline.Stages(pipeline.Engines{
		Ingest:         a.ingestEngine(),
		Cluster:        a.clusterEngine(),
		Summarize:      sum,
		SummarizeLimit: a.cfg.Summarize.Limit,
	})
	return scheduler.New(stages,
		scheduler.WithLocker(locker),
		scheduler.WithLogger(a.log.With("component", "scheduler")),
		scheduler.WithInterval(a.cfg.Schedule.ParseInterval()),
		scheduler.WithRunOnStart(a.cfg.Schedule.RunOnStart),
		scheduler.OnComplete(pipeline.Digest(a.db, a.alertManager(), a.log)),
	), nil
}

func runIngest(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ingestEngine().IngestAll(ctx)
	if err != nil {
		return err
	}

	for _, se := range res.Errors {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", se.SourceName, se.Err)
	}
	fmt.Fprintf(os.Stderr, "created %d items, skipped %d duplicates, %d entries and %d sources failed\n",
		res.Created, res.Skipped, res.Failed, len(res.Errors))
	return nil
}

func runCluster(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.clusterEngine().ClusterUnassigned(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "created %d stories, attached %d items (%d skipped, %d failed)\n",
		res.Created, res.Attached, res.Skipped, res.Failed)
	return nil
}

func runSummarize(ctx context.Context, limit int) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.summarizer()
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = a.cfg.Summarize.Limit
	}

	n, err := sum.SummarizeTopStories(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %d summaries\n", n)
	return nil
}

func runPipeline(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.scheduler(ctx)
	if err != nil {
		return err
	}

	report, err := sched.RunOnce(ctx)
	if err != nil {
		return err
	}
	return printReport(report)
}

func runDaemon(ctx context.Context, port int) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	sched, err := a.scheduler(ctx)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	srv := server.New(a.db, sched, a.log.With("component", "server"), port)
	serveErr := srv.ListenAndServe(ctx)

	a.log.Info("shutting down, waiting for any active run")
	sched.Stop()
	return serveErr
}

func runSeed(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	seeded := 0
	for _, seed := range a.cfg.Sources {
		src := &store.Source{
			Name:        seed.Name,
			Type:        store.SourceType(seed.Type),
			URL:         seed.URL,
			FeedURL:     seed.FeedURL,
			TrustLevel:  store.TrustLevel(seed.TrustLevel),
			FetchMethod: "rss",
		}
		if !src.Type.Valid() || !src.TrustLevel.Valid() {
			fmt.Fprintf(os.Stderr, "  skipping %s: invalid type %q or trust level %q\n", seed.Name, seed.Type, seed.TrustLevel)
			continue
		}
		if err := a.db.UpsertSource(ctx, src); err != nil {
			return fmt.Errorf("seed %s: %w", seed.Name, err)
		}
		seeded++
	}

	fmt.Fprintf(os.Stderr, "seeded %d sources\n", seeded)
	return nil
}

func runSourcesList(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sources, err := a.db.ListSources(ctx)
	if err != nil {
		return err
	}
	counts, err := a.db.CountItemsBySource(ctx)
	if err != nil {
		return err
	}

	if len(sources) == 0 {
		fmt.Println("no sources registered (try: aidaily sources seed)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tTRUST\tITEMS\tFEED")
	for _, src := range sources {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			src.ID, src.Name, src.Type, src.TrustLevel, counts[src.ID], src.FeedURL)
	}
	return w.Flush()
}

type feedCheck struct {
	name    string
	status  string
	entries int
	detail  string
}

func runCheckFeeds(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	all, err := a.db.ListSources(ctx)
	if err != nil {
		return err
	}
	sources := feedSources(all)

	fetcher := a.fetcher()
	results := make([]feedCheck, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.cfg.Ingest.Concurrency, 1))
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			res := feedCheck{name: src.Name}
			parsed, err := fetcher.Fetch(gctx, src.FeedURL)
			switch {
			case err != nil:
				res.status, res.detail = "FAIL", err.Error()
			case len(parsed.Entries) == 0:
				res.status = "EMPTY"
			default:
				res.status, res.entries = "ONLINE", len(parsed.Entries)
				res.detail = parsed.Entries[0].Title
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tSOURCE\tENTRIES\tDETAIL")
	for _, r := range results {
		if r.status == "FAIL" {
			failed++
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.status, r.name, r.entries, truncate(r.detail, 70))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n%d/%d feeds healthy\n", len(results)-failed, len(results))
	return nil
}

// feedSources drops sources without a feed URL, as ingestion does.
func feedSources(all []store.Source) []store.Source {
	out := make([]store.Source, 0, len(all))
	for _, src := range all {
		if strings.TrimSpace(src.FeedURL) != "" {
			out = append(out, src)
		}
	}
	return out
}

func runStories(ctx context.Context, timeframe, persona, category string, limit int, jsonOutput bool) error {
	window, defLimit, err := store.Timeframe(timeframe)
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = defLimit
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stories, err := a.db.ListStories(ctx, store.StoryListOpts{
		Since:    time.Now().UTC().Add(-window),
		Persona:  store.Persona(strings.ToLower(persona)),
		Category: category,
		Limit:    limit,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stories)
	}

	if len(stories) == 0 {
		fmt.Println("no stories found (try running the pipeline first: aidaily run)")
		return nil
	}

	for i, st := range stories {
		fmt.Printf("%2d. %s  [%d items, %s]\n", i+1, st.CanonicalTitle, st.ItemCount, st.CreatedAt.Format(time.RFC3339))
		for _, sum := range st.Summaries {
			fmt.Printf("    %s/%s: %s\n", sum.Persona, sum.Category, sum.SummaryShort)
		}
		if len(st.Items) > 0 {
			fmt.Printf("    %s\n", st.Items[0].URL)
		}
	}
	return nil
}

func printReport(r *scheduler.Report) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTATUS\tDURATION\tSTATS")
	for _, st := range r.Stages {
		status := "ok"
		if st.Error != "" {
			status = "error: " + st.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Name, status, st.Duration.Round(time.Millisecond), formatStats(st.Stats))
	}
	return w.Flush()
}

func formatStats(stats map[string]int) string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, stats[k]))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
