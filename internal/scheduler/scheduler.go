// Package scheduler runs the pipeline stages in order, on demand or on a
// fixed interval, never more than one run at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/LohithReddy3/ai-daily/internal/lease"
	"github.com/LohithReddy3/ai-daily/internal/logger"
	"github.com/LohithReddy3/ai-daily/internal/metrics"
	"github.com/LohithReddy3/ai-daily/internal/tracing"
)

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Stage is one step of the pipeline. Stats are free-form counters for the report.
type Stage struct {
	Name string
	Run  func(ctx context.Context) (map[string]int, error)
}

// StageReport is the outcome of one stage.
type StageReport struct {
	Name     string         `json:"name"`
	Stats    map[string]int `json:"stats,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
}

// Report is the outcome of one pipeline run.
type Report struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stages     []StageReport `json:"stages"`
}

// Failed reports whether any stage failed.
func (r *Report) Failed() bool {
	for _, s := range r.Stages {
		if s.Error != "" {
			return true
		}
	}
	return false
}

// Stat returns a counter recorded by the named stage.
func (r *Report) Stat(stage, key string) int {
	for _, s := range r.Stages {
		if s.Name == stage {
			return s.Stats[key]
		}
	}
	return 0
}

// Scheduler sequences stages.
type Scheduler struct {
	stages     []Stage
	locker     lease.Locker
	log        *logger.Logger
	interval   time.Duration
	runOnStart bool
	hooks      []func(context.Context, *Report)

	mu      sync.Mutex
	last    *Report
	cancel  context.CancelFunc
	done    chan struct{}
	running sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocker replaces the in-process lease, e.g. with a Redis one.
func WithLocker(l lease.Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithInterval sets the recurring trigger period.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRunOnStart makes Start trigger a run immediately.
func WithRunOnStart(v bool) Option {
	return func(s *Scheduler) { s.runOnStart = v }
}

// OnComplete registers a hook called after every finished run.
func OnComplete(fn func(context.Context, *Report)) Option {
	return func(s *Scheduler) { s.hooks = append(s.hooks, fn) }
}

// New creates a scheduler for stages, run in the given order.
func New(stages []Stage, opts ...Option) *Scheduler {
	s := &Scheduler{
		stages:   stages,
		locker:   lease.NewLocal(),
		log:      logger.Nop(),
		interval: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce runs every stage in order and returns the report. It fails fast
// with ErrRunInProgress when another run holds the lease.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	l, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, l), nil
}

// Trigger starts a run in the background. The lease is taken before
// returning, so ErrRunInProgress is reported synchronously. The run is not
// tied to ctx's cancellation.
func (s *Scheduler) Trigger(ctx context.Context) error {
	l, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	runCtx := context.WithoutCancel(ctx)
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.run(runCtx, l)
	}()
	return nil
}

// Start begins the recurring trigger. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)

	s.log.Info("scheduler started", "interval", s.interval.String(), "run_on_start", s.runOnStart)
	return nil
}

// Stop cancels future triggers and waits for any in-progress run to finish.
// It never interrupts a run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.running.Wait()
	s.log.Info("scheduler stopped")
}

// LastReport returns the most recent finished run, or nil.
func (s *Scheduler) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runOnStart {
		s.tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// Stop must not cut a scheduled run short.
	_, err := s.RunOnce(context.WithoutCancel(ctx))
	if errors.Is(err, ErrRunInProgress) {
		s.log.Info("skipping scheduled run, previous run still active")
		return
	}
	if err != nil {
		s.log.Error("scheduled run failed to start", "error", err)
	}
}

func (s *Scheduler) acquire(ctx context.Context) (lease.Lease, error) {
	l, err := s.locker.TryAcquire(ctx)
	if errors.Is(err, lease.ErrHeld) {
		metrics.PipelineRuns.WithLabelValues("skipped").Inc()
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire run lease: %w", err)
	}
	return l, nil
}

func (s *Scheduler) run(ctx context.Context, l lease.Lease) *Report {
	report := &Report{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := s.log.With("run_id", report.ID)

	ctx, span := tracing.Tracer().Start(ctx, "pipeline.run")
	span.SetAttributes(attribute.String("run.id", report.ID))

	log.Info("pipeline run started", "stages", len(s.stages))
	for _, st := range s.stages {
		sr := s.runStage(ctx, st)
		report.Stages = append(report.Stages, sr)
		if sr.Error != "" {
			log.Error("stage failed", "stage", sr.Name, "error", sr.Error, "duration", sr.Duration.String())
			continue
		}
		log.Info("stage finished", "stage", sr.Name, "stats", sr.Stats, "duration", sr.Duration.String())
	}
	report.FinishedAt = time.Now().UTC()

	status := "ok"
	if report.Failed() {
		status = "partial"
		span.SetStatus(codes.Error, "stage failed")
	}
	span.End()
	metrics.PipelineRuns.WithLabelValues(status).Inc()

	if err := l.Release(context.WithoutCancel(ctx)); errors.Is(err, lease.ErrLost) {
		log.Error("run lease lost before release, runs may have overlapped", "error", err)
	} else if err != nil {
		log.Warn("release run lease", "error", err)
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	for _, hook := range s.hooks {
		hook(ctx, report)
	}
	log.Info("pipeline run finished", "status", status, "duration", report.FinishedAt.Sub(report.StartedAt).String())
	return report
}

func (s *Scheduler) runStage(ctx context.Context, st Stage) (sr StageReport) {
	sr.Name = st.Name
	ctx, span := tracing.Tracer().Start(ctx, "pipeline.stage."+st.Name)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			sr.Error = fmt.Sprintf("stage %s panicked: %v", st.Name, r)
		}
		sr.Duration = time.Since(start)

		status := "ok"
		if sr.Error != "" {
			status = "error"
			span.SetStatus(codes.Error, sr.Error)
		}
		for k, v := range sr.Stats {
			span.SetAttributes(attribute.Int("stage."+k, v))
		}
		span.End()
		metrics.StageDuration.WithLabelValues(st.Name, status).Observe(sr.Duration.Seconds())
	}()

	stats, err := st.Run(ctx)
	sr.Stats = stats
	if err != nil {
		sr.Error = err.Error()
	}
	return sr
}
