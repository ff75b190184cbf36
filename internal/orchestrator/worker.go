package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrelmbackes/rpv-crawler/internal/consolidate"
	"github.com/andrelmbackes/rpv-crawler/internal/parser"
	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
	"github.com/andrelmbackes/rpv-crawler/internal/queue/memory"
)

// dateCounts accumulates per-date pipeline results. They are folded into the
// run summary only when the date completes, so a retried date never double
// counts.
type dateCounts struct {
	found    int
	skipped  int
	enriched int
	degraded int
}

// worker drains the shared date queue and runs the per-date pipeline:
// fetch, merge, parse, enrich, consolidate, persist. Stages execute
// sequentially within the worker; the fetcher session is exclusively owned.
type worker struct {
	id      int
	orch    *Orchestrator
	fetcher pipeline.Fetcher
	parser  *parser.Parser
	merger  *parser.Merger
	status  pipeline.WorkerStatus
	logger  *zap.Logger
}

func newWorker(id int, orch *Orchestrator, fetcher pipeline.Fetcher) *worker {
	return &worker{
		id:      id,
		orch:    orch,
		fetcher: fetcher,
		parser:  parser.New(),
		merger:  parser.NewMerger(),
		status:  pipeline.WorkerStatus{WorkerID: id, State: pipeline.WorkerIdle},
		logger:  orch.deps.Logger.With(zap.Int("worker_id", id)),
	}
}

// run loops until the queue drains or the stop signal arrives. The returned
// error is always process-fatal (an unwritable snapshot); per-date failures
// are isolated and never abort other workers.
func (w *worker) run(ctx, pipeCtx context.Context) error {
	if err := w.report(); err != nil {
		return err
	}
	for {
		item, err := w.orch.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, memory.ErrClosed) && ctx.Err() == nil {
				w.logger.Error("dequeue failed", zap.Error(err))
			}
			w.status.State = pipeline.WorkerCompleted
			w.status.CurrentDate = ""
			return w.report()
		}
		if err := w.processItem(ctx, pipeCtx, item); err != nil {
			w.status.State = pipeline.WorkerError
			if rerr := w.report(); rerr != nil {
				w.logger.Error("report worker status", zap.Error(rerr))
			}
			return err
		}
		// The stop signal is cooperative: checked between dates, never
		// mid-fetch.
		if ctx.Err() != nil {
			w.status.State = pipeline.WorkerCompleted
			w.status.CurrentDate = ""
			return w.report()
		}
	}
}

func (w *worker) processItem(ctx, pipeCtx context.Context, item pipeline.QueueItem) error {
	store := w.orch.deps.Store
	if err := store.MarkInProgress(item.Date, w.id); err != nil {
		return fmt.Errorf("mark date in progress: %w", err)
	}
	w.status.State = pipeline.WorkerWorking
	w.status.CurrentDate = item.Date
	if err := w.report(); err != nil {
		return err
	}

	w.orch.deps.Metrics.WorkerActive(1)
	counts, err := w.processDate(pipeCtx, item.Date)
	w.orch.deps.Metrics.WorkerActive(-1)

	if err == nil {
		if serr := store.MarkDone(item.Date, counts.found); serr != nil {
			return fmt.Errorf("mark date done: %w", serr)
		}
		w.orch.deps.Metrics.DateFinished(string(pipeline.TaskDone))
		w.orch.addDateCounts(counts)
		w.orch.tracker.finish()
		w.status.DatesProcessed++
		w.status.TotalPublications += counts.found
		w.status.State = pipeline.WorkerIdle
		w.status.CurrentDate = ""
		w.logger.Info("date done",
			zap.String("date", item.Date),
			zap.Int("publications", counts.found),
			zap.Int("skipped", counts.skipped),
		)
		return w.report()
	}

	attempt, serr := store.MarkRetry(item.Date, err.Error())
	if serr != nil {
		return fmt.Errorf("mark date retry: %w", serr)
	}
	if ctx.Err() == nil && w.orch.deps.Retry.ShouldRetry(err, attempt) {
		w.logger.Warn("date failed, retry scheduled",
			zap.String("date", item.Date),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		w.orch.scheduleRetry(ctx, item.Date, attempt)
	} else {
		if serr := store.MarkFailed(item.Date, err.Error()); serr != nil {
			return fmt.Errorf("mark date failed: %w", serr)
		}
		w.orch.deps.Metrics.DateFinished(string(pipeline.TaskFailed))
		w.orch.tracker.finish()
		w.logger.Error("date failed permanently",
			zap.String("date", item.Date),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
	}
	w.status.State = pipeline.WorkerIdle
	w.status.CurrentDate = ""
	return w.report()
}

// processDate runs one date through the full pipeline. Per-publication
// parse failures are logged and skipped; fetch and persistence failures
// fail the whole date so the retry policy can take over.
func (w *worker) processDate(ctx context.Context, date string) (dateCounts, error) {
	var counts dateCounts

	links, err := w.fetcher.Search(ctx, date, w.orch.cfg.SearchTerms)
	if errors.Is(err, pipeline.ErrNoResults) {
		// A normal outcome: not every date has matching publications.
		w.logger.Debug("no matching publications", zap.String("date", date))
		return counts, nil
	}
	if err != nil {
		return counts, fmt.Errorf("search %s: %w", date, err)
	}

	seen := map[string]bool{}
	for i, link := range links {
		doc, err := w.fetcher.FetchDocument(ctx, link)
		if err != nil {
			return counts, fmt.Errorf("fetch document %s: %w", link.URL, err)
		}
		w.archive(ctx, date, i, doc)

		for _, span := range w.merger.Split(doc.Pages) {
			pub, err := w.parser.Parse(span.Text)
			if err != nil {
				counts.skipped++
				w.orch.deps.Metrics.PublicationSkipped()
				w.logger.Debug("publication span skipped", zap.String("date", date), zap.Error(err))
				continue
			}
			if seen[pub.ProcessNumber] {
				continue
			}
			seen[pub.ProcessNumber] = true

			pub.Date = date
			pub.SourcePageRange = span.Pages
			pub.ProcessSpansPages = span.Merged
			counts.found++
			w.orch.deps.Metrics.PublicationFound()

			enriched := consolidate.Consolidate(pub, w.lookup(ctx, pub.ProcessNumber))

			// Consolidation is complete before anything is written;
			// a persisted record never requires later enrichment.
			if err := w.orch.deps.Sink.Save(ctx, enriched); err != nil {
				return counts, fmt.Errorf("persist publication %s: %w", pub.ProcessNumber, err)
			}
			w.orch.deps.Metrics.Consolidated(string(enriched.Confidence))
			if enriched.Confidence == pipeline.ConfidenceHigh {
				counts.enriched++
			} else {
				counts.degraded++
			}
			w.publish(ctx, enriched)
		}
	}
	return counts, nil
}

// lookup performs the secondary enrichment. NotFound and fetch failures both
// degrade the record instead of failing the date.
func (w *worker) lookup(ctx context.Context, processNumber string) *pipeline.SecondaryRecord {
	if w.orch.deps.Enricher == nil {
		return nil
	}
	rec, err := w.orch.deps.Enricher.Lookup(ctx, processNumber)
	if err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			w.logger.Debug("case record restricted or absent", zap.String("process", processNumber))
		} else {
			w.logger.Warn("secondary lookup failed", zap.String("process", processNumber), zap.Error(err))
		}
		return nil
	}
	return &rec
}

// archive stores the raw fetched document. Best effort: a failed archival
// never fails the date.
func (w *worker) archive(ctx context.Context, date string, idx int, doc pipeline.Document) {
	if w.orch.deps.Blobs == nil {
		return
	}
	path := fmt.Sprintf("%s/%03d.txt", date, idx)
	if prefix := strings.Trim(w.orch.cfg.BlobPrefix, "/"); prefix != "" {
		path = prefix + "/" + path
	}
	body := []byte(strings.Join(doc.Pages, "\f"))
	if _, err := w.orch.deps.Blobs.PutObject(ctx, path, "text/plain; charset=utf-8", body); err != nil {
		w.logger.Warn("archive raw document", zap.String("path", path), zap.Error(err))
	}
}

// publish emits a completion event for downstream consumers. Best effort.
func (w *worker) publish(ctx context.Context, pub pipeline.EnrichedPublication) {
	if w.orch.deps.Publisher == nil || w.orch.cfg.PublishTopic == "" {
		return
	}
	payload := map[string]any{
		"event_id":       uuid.NewString(),
		"process_number": pub.ProcessNumber,
		"publication":    pub.PublicationDate,
		"confidence":     string(pub.Confidence),
		"timestamp":      w.now().Format(time.RFC3339),
	}
	if _, err := w.orch.deps.Publisher.Publish(ctx, w.orch.cfg.PublishTopic, payload); err != nil {
		w.logger.Warn("publish completion event", zap.String("process", pub.ProcessNumber), zap.Error(err))
	}
}

func (w *worker) now() time.Time {
	if w.orch.deps.Clock != nil {
		return w.orch.deps.Clock.Now()
	}
	return time.Now().UTC()
}

func (w *worker) report() error {
	if err := w.orch.deps.Store.UpdateWorker(w.status); err != nil {
		return fmt.Errorf("update worker status: %w", err)
	}
	return nil
}
