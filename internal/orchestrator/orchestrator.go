// Package orchestrator fans a date range out to a pool of pipeline workers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrelmbackes/rpv-crawler/internal/metrics"
	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
	"github.com/andrelmbackes/rpv-crawler/internal/progress"
	"github.com/andrelmbackes/rpv-crawler/internal/queue/memory"
)

// Config controls a single orchestrator run.
type Config struct {
	StartDate    string
	EndDate      string
	Workers      int
	SearchTerms  []string
	PublishTopic string
	BlobPrefix   string
}

// Dependencies carries the collaborators the orchestrator wires into each
// worker. NewFetcher is a factory: every worker owns one independent session
// so there is no shared mutable fetch state across workers.
type Dependencies struct {
	NewFetcher func(workerID int) (pipeline.Fetcher, error)
	Enricher   pipeline.Enricher
	Store      *progress.Store
	Sink       pipeline.Sink
	Blobs      pipeline.BlobStore
	Publisher  pipeline.Publisher
	Metrics    *metrics.Metrics
	Retry      *pipeline.LinearRetryPolicy
	Clock      pipeline.Clock
	Logger     *zap.Logger
}

// Orchestrator owns the shared queue, the worker pool, and run bookkeeping.
type Orchestrator struct {
	cfg  Config
	deps Dependencies

	queue   *memory.Queue
	tracker *completionTracker

	mu      sync.Mutex
	summary pipeline.RunSummary

	retryWG sync.WaitGroup
}

// New validates the configuration and builds an Orchestrator.
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if _, err := time.Parse(pipeline.DateLayout, cfg.StartDate); err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", cfg.StartDate, err)
	}
	if _, err := time.Parse(pipeline.DateLayout, cfg.EndDate); err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", cfg.EndDate, err)
	}
	if cfg.StartDate > cfg.EndDate {
		return nil, fmt.Errorf("start date %s after end date %s", cfg.StartDate, cfg.EndDate)
	}
	if deps.NewFetcher == nil {
		return nil, errors.New("fetcher factory is required")
	}
	if deps.Store == nil {
		return nil, errors.New("progress store is required")
	}
	if deps.Sink == nil {
		return nil, errors.New("publication sink is required")
	}
	if deps.Retry == nil {
		deps.Retry = pipeline.NewLinearRetryPolicy()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, deps: deps}, nil
}

// Run drives the full crawl: resume from the snapshot, enqueue every
// incomplete date, process them with the worker pool, and return counts.
// ctx cancellation is the cooperative stop signal: workers finish their
// current date, the snapshot is flushed with no date left in_progress, and
// Run returns the partial summary.
func (o *Orchestrator) Run(ctx context.Context) (pipeline.RunSummary, error) {
	if err := o.deps.Store.Load(); err != nil {
		return pipeline.RunSummary{}, fmt.Errorf("load progress snapshot: %w", err)
	}

	dates, err := expandDateRange(o.cfg.StartDate, o.cfg.EndDate)
	if err != nil {
		return pipeline.RunSummary{}, err
	}
	meta := progress.Metadata{
		RunID:       uuid.NewString(),
		StartDate:   o.cfg.StartDate,
		EndDate:     o.cfg.EndDate,
		WorkerCount: o.cfg.Workers,
	}
	if err := o.deps.Store.Reset(meta, dates); err != nil {
		return pipeline.RunSummary{}, fmt.Errorf("initialize progress snapshot: %w", err)
	}

	pending := o.deps.Store.PendingDates()
	o.deps.Logger.Info("run starting",
		zap.String("run_id", meta.RunID),
		zap.Int("dates_total", len(dates)),
		zap.Int("dates_pending", len(pending)),
		zap.Int("workers", o.cfg.Workers),
	)
	if len(pending) == 0 {
		return o.finalSummary(), nil
	}

	o.queue = memory.NewQueue(len(pending) + o.cfg.Workers)
	o.tracker = newCompletionTracker(len(pending), o.queue)
	snap := o.deps.Store.Snapshot()
	for _, d := range pending {
		if err := o.queue.Enqueue(ctx, pipeline.QueueItem{Date: d, Attempt: snap.Dates[d].RetryCount}); err != nil {
			return pipeline.RunSummary{}, fmt.Errorf("seed queue: %w", err)
		}
	}

	// runCtx lets a fatal condition (an unwritable snapshot) stop every
	// worker at once; in-flight pipeline calls still finish under their own
	// timeouts, and workers observe cancellation between dates.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	pipeCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	fatal := make(chan error, o.cfg.Workers)
	for id := 1; id <= o.cfg.Workers; id++ {
		fetcher, err := o.deps.NewFetcher(id)
		if err != nil {
			// Quiesce already-started workers and any retry goroutines
			// they spawned before closing the queue under them.
			cancelRun()
			wg.Wait()
			o.retryWG.Wait()
			o.queue.Close()
			return pipeline.RunSummary{}, fmt.Errorf("worker %d session: %w", id, err)
		}
		w := newWorker(id, o, fetcher)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer fetcher.Close()
			if err := w.run(runCtx, pipeCtx); err != nil {
				fatal <- err
				cancelRun()
			}
		}()
	}

	wg.Wait()
	o.retryWG.Wait()

	if err := o.deps.Store.DemoteInProgress(); err != nil {
		return o.finalSummary(), fmt.Errorf("final snapshot flush: %w", err)
	}

	select {
	case err := <-fatal:
		return o.finalSummary(), err
	default:
	}

	summary := o.finalSummary()
	o.deps.Logger.Info("run finished",
		zap.Int("dates_done", summary.DatesDone),
		zap.Int("dates_failed", summary.DatesFailed),
		zap.Int("retries", summary.Retries),
		zap.Int("publications_found", summary.PublicationsFound),
		zap.Int("enriched", summary.Enriched),
		zap.Int("degraded", summary.Degraded),
	)
	return summary, ctx.Err()
}

// scheduleRetry re-enqueues a date after the linear backoff. The tracker
// still counts the date as outstanding, so the queue stays open until it
// reaches a terminal state.
func (o *Orchestrator) scheduleRetry(ctx context.Context, date string, attempt int) {
	delay := o.deps.Retry.Backoff(attempt)
	o.deps.Metrics.RetryScheduled()
	o.addRetry()
	o.retryWG.Add(1)
	go func() {
		defer o.retryWG.Done()
		select {
		case <-ctx.Done():
			// Stop requested while backing off; the date is already
			// persisted as pending and will be resumed by the next run.
			o.tracker.finish()
			return
		case <-time.After(delay):
		}
		if err := o.queue.Enqueue(ctx, pipeline.QueueItem{Date: date, Attempt: attempt}); err != nil {
			o.tracker.finish()
		}
	}()
}

func (o *Orchestrator) addRetry() {
	o.mu.Lock()
	o.summary.Retries++
	o.mu.Unlock()
}

func (o *Orchestrator) addDateCounts(c dateCounts) {
	o.mu.Lock()
	o.summary.PublicationsFound += c.found
	o.summary.PublicationsSkipped += c.skipped
	o.summary.Enriched += c.enriched
	o.summary.Degraded += c.degraded
	o.mu.Unlock()
}

func (o *Orchestrator) finalSummary() pipeline.RunSummary {
	o.mu.Lock()
	summary := o.summary
	o.mu.Unlock()

	snap := o.deps.Store.Snapshot()
	summary.DatesDone = snap.Metadata.Totals.DatesDone
	summary.DatesFailed = snap.Metadata.Totals.DatesFailed
	return summary
}

// expandDateRange lists every date from start to end inclusive.
func expandDateRange(start, end string) ([]string, error) {
	from, err := time.Parse(pipeline.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	to, err := time.Parse(pipeline.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(pipeline.DateLayout))
	}
	return dates, nil
}

// completionTracker closes the queue once every outstanding date reaches a
// terminal state, so idle workers exit instead of blocking forever.
type completionTracker struct {
	mu          sync.Mutex
	outstanding int
	queue       *memory.Queue
}

func newCompletionTracker(outstanding int, queue *memory.Queue) *completionTracker {
	return &completionTracker{outstanding: outstanding, queue: queue}
}

func (t *completionTracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outstanding--
	if t.outstanding == 0 {
		t.queue.Close()
	}
}
