// Package progress persists the crash-recoverable crawl snapshot.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// Metadata describes the run a snapshot belongs to.
type Metadata struct {
	RunID       string    `json:"run_id"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	WorkerCount int       `json:"worker_count"`
	LastUpdated time.Time `json:"last_updated"`
	Totals      Totals    `json:"totals"`
}

// Totals aggregates terminal task counts for quick inspection.
type Totals struct {
	DatesDone         int `json:"dates_done"`
	DatesFailed       int `json:"dates_failed"`
	PublicationsFound int `json:"publications_found"`
}

// Snapshot is the single process-wide durable artifact. It is written
// atomically after every task transition, so a crash loses at most one
// in-flight date.
type Snapshot struct {
	Metadata Metadata                      `json:"metadata"`
	Dates    map[string]pipeline.DateTask  `json:"dates"`
	Workers  map[int]pipeline.WorkerStatus `json:"workers"`
}

// Store serializes the snapshot to one JSON file under a single-writer
// discipline. Workers mutate through its methods; monitors read the last
// fully-written file without locking against the writer.
type Store struct {
	mu     sync.Mutex
	path   string
	clock  pipeline.Clock
	logger *zap.Logger
	snap   Snapshot
}

// NewStore builds a Store persisting to path.
func NewStore(path string, clock pipeline.Clock, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		clock:  clock,
		logger: logger,
		snap: Snapshot{
			Dates:   map[string]pipeline.DateTask{},
			Workers: map[int]pipeline.WorkerStatus{},
		},
	}
}

// Load reads an existing snapshot from disk. A missing file is a fresh run,
// not an error; a corrupt file is an error since silently discarding resume
// state would reprocess finished dates.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	if snap.Dates == nil {
		snap.Dates = map[string]pipeline.DateTask{}
	}
	if snap.Workers == nil {
		snap.Workers = map[int]pipeline.WorkerStatus{}
	}
	s.snap = snap
	return nil
}

// Reset installs run metadata and creates a pending task for every date in
// the range that is not already done. Done tasks are immutable and kept.
func (s *Store) Reset(meta Metadata, dates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Metadata = meta
	s.snap.Workers = map[int]pipeline.WorkerStatus{}
	for _, d := range dates {
		if existing, ok := s.snap.Dates[d]; ok && existing.Status == pipeline.TaskDone {
			continue
		}
		task := s.snap.Dates[d]
		task.Date = d
		if task.Status == pipeline.TaskFailed {
			// A failed date requeued by a new run starts with a fresh
			// retry budget; interrupted dates keep theirs.
			task.RetryCount = 0
		}
		task.Status = pipeline.TaskPending
		task.OwnerWorkerID = 0
		task.Error = ""
		s.snap.Dates[d] = task
	}
	return s.flushLocked()
}

// PendingDates returns every date not yet done or failed, sorted. A task
// left in_progress by a crash has no live owner, so it is requeued as
// pending again.
func (s *Store) PendingDates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dates []string
	for d, task := range s.snap.Dates {
		switch task.Status {
		case pipeline.TaskPending:
			dates = append(dates, d)
		case pipeline.TaskInProgress:
			task.Status = pipeline.TaskPending
			task.OwnerWorkerID = 0
			s.snap.Dates[d] = task
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates
}

// MarkInProgress transitions a date to in_progress under the given worker.
func (s *Store) MarkInProgress(date string, workerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.snap.Dates[date]
	if !ok {
		return fmt.Errorf("unknown date task %s", date)
	}
	now := s.clock.Now()
	task.Status = pipeline.TaskInProgress
	task.OwnerWorkerID = workerID
	task.StartTime = &now
	task.EndTime = nil
	task.Error = ""
	s.snap.Dates[date] = task
	return s.flushLocked()
}

// MarkDone finalizes a date with its publication count. Done is terminal.
func (s *Store) MarkDone(date string, publicationsFound int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.snap.Dates[date]
	if !ok {
		return fmt.Errorf("unknown date task %s", date)
	}
	now := s.clock.Now()
	task.Status = pipeline.TaskDone
	task.EndTime = &now
	task.PublicationsFound = publicationsFound
	task.Error = ""
	s.snap.Dates[date] = task
	s.snap.Metadata.Totals.DatesDone++
	s.snap.Metadata.Totals.PublicationsFound += publicationsFound
	return s.flushLocked()
}

// MarkRetry increments the retry counter and demotes the date to pending so
// it can be requeued. The new retry count is returned.
func (s *Store) MarkRetry(date string, errText string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.snap.Dates[date]
	if !ok {
		return 0, fmt.Errorf("unknown date task %s", date)
	}
	task.RetryCount++
	task.Status = pipeline.TaskPending
	task.OwnerWorkerID = 0
	task.Error = errText
	s.snap.Dates[date] = task
	return task.RetryCount, s.flushLocked()
}

// MarkFailed finalizes a date as failed. Failed dates stay in the snapshot
// for manual re-run rather than being retried indefinitely.
func (s *Store) MarkFailed(date string, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.snap.Dates[date]
	if !ok {
		return fmt.Errorf("unknown date task %s", date)
	}
	now := s.clock.Now()
	task.Status = pipeline.TaskFailed
	task.EndTime = &now
	task.Error = errText
	s.snap.Dates[date] = task
	s.snap.Metadata.Totals.DatesFailed++
	return s.flushLocked()
}

// UpdateWorker records a worker's self-reported status.
func (s *Store) UpdateWorker(ws pipeline.WorkerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Workers[ws.WorkerID] = ws
	return s.flushLocked()
}

// DemoteInProgress flips any in_progress date back to pending. Called during
// graceful shutdown so no date is persisted as owned by a dead worker.
func (s *Store) DemoteInProgress() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for d, task := range s.snap.Dates {
		if task.Status == pipeline.TaskInProgress {
			task.Status = pipeline.TaskPending
			task.OwnerWorkerID = 0
			s.snap.Dates[d] = task
		}
	}
	return s.flushLocked()
}

// Snapshot returns a deep copy for monitors and summaries.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Metadata: s.snap.Metadata,
		Dates:    make(map[string]pipeline.DateTask, len(s.snap.Dates)),
		Workers:  make(map[int]pipeline.WorkerStatus, len(s.snap.Workers)),
	}
	for d, t := range s.snap.Dates {
		out.Dates[d] = t
	}
	for id, w := range s.snap.Workers {
		out.Workers[id] = w
	}
	return out
}

// flushLocked writes the snapshot atomically: temp file in the same
// directory, then rename over the target, so a reader never observes a
// partially-written snapshot. Callers hold s.mu.
func (s *Store) flushLocked() error {
	s.snap.Metadata.LastUpdated = s.clock.Now()

	payload, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".progress-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}
