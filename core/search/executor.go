package search

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Executor runs independent grid cells on a bounded worker pool. A failing
// cell is recorded and the remaining cells keep running unless stopOnError
// is set.
type Executor struct {
	// Max concurrent workers
	maxWorkers int

	stats *ExecutionStats

	stopOnError bool
	errors      []CellError

	progress   *Progress
	progressMu sync.RWMutex
	onUpdate   ProgressCallback
	callbackMu sync.Mutex

	durations []time.Duration
	statsMu   sync.Mutex

	mu sync.Mutex
}

// ExecutionStats tracks execution statistics
type ExecutionStats struct {
	TotalCells      int64         `json:"total_cells"`
	CompletedCells  int64         `json:"completed_cells"`
	FailedCells     int64         `json:"failed_cells"`
	SkippedCells    int64         `json:"skipped_cells"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	MaxConcurrency  int           `json:"max_concurrency"`
	AverageDuration time.Duration `json:"average_duration"`
}

// CellError records a cell that failed
type CellError struct {
	Tax      float64       `json:"tax"`
	SD       float64       `json:"sd"`
	Message  string        `json:"message"`
	Cause    error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

func (e CellError) Error() string {
	return fmt.Sprintf("cell tax=%g sd=%g: %s", e.Tax, e.SD, e.Message)
}

func (e CellError) Unwrap() error {
	return e.Cause
}

// Progress tracks live progress
type Progress struct {
	Total      int64         `json:"total"`
	Completed  int64         `json:"completed"`
	InProgress int64         `json:"in_progress"`
	Failed     int64         `json:"failed"`
	Percent    float64       `json:"percent"`
	ETA        time.Duration `json:"eta"`
}

// ProgressCallback is called after every finished cell
type ProgressCallback func(progress Progress)

// CellFunc computes one cell. The index is into the executor's cell list.
type CellFunc func(ctx context.Context, index int) error

// NewExecutor creates an executor with maxWorkers workers, 4 if <= 0
func NewExecutor(maxWorkers int) *Executor {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Executor{
		maxWorkers: maxWorkers,
		stats:      &ExecutionStats{},
		errors:     []CellError{},
		progress:   &Progress{},
	}
}

// SetStopOnError configures error handling
func (e *Executor) SetStopOnError(stop bool) {
	e.stopOnError = stop
}

// OnProgress registers a callback invoked after each cell
func (e *Executor) OnProgress(cb ProgressCallback) {
	e.onUpdate = cb
}

// Execute runs fn for every cell in order of submission. It returns when
// every submitted cell has finished. Cells never started because ctx was
// canceled (or a cell failed with stopOnError) are counted as skipped and
// their done flag stays false.
func (e *Executor) Execute(ctx context.Context, cells []Cell, fn CellFunc) (done []bool, err error) {
	done = make([]bool, len(cells))
	if len(cells) == 0 {
		return done, nil
	}

	e.stats.TotalCells = int64(len(cells))
	e.stats.StartTime = time.Now()
	e.progress.Total = int64(len(cells))

	workers := e.maxWorkers
	if len(cells) < workers {
		workers = len(cells)
	}
	e.stats.MaxConcurrency = workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range cells {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			finished, cerr := e.executeCell(gctx, cells[i], i, fn)
			done[i] = finished
			if cerr == nil {
				return nil
			}
			e.recordError(*cerr)
			if e.stopOnError {
				return cerr
			}
			return nil
		})
	}
	err = g.Wait()

	e.stats.EndTime = time.Now()
	e.calculateAverageDuration()

	var finished int64
	for _, d := range done {
		if d {
			finished++
		}
	}
	e.stats.SkippedCells = int64(len(cells)) - finished

	if err == nil {
		err = ctx.Err()
	}
	return done, err
}

// executeCell reports finished=false when ctx ended while the cell ran
func (e *Executor) executeCell(ctx context.Context, cell Cell, index int, fn CellFunc) (bool, *CellError) {
	atomic.AddInt64(&e.progress.InProgress, 1)

	start := time.Now()
	err := fn(ctx, index)
	duration := time.Since(start)

	e.statsMu.Lock()
	e.durations = append(e.durations, duration)
	e.statsMu.Unlock()

	atomic.AddInt64(&e.progress.InProgress, -1)

	finished := true
	var cerr *CellError
	switch {
	case err == nil:
		atomic.AddInt64(&e.stats.CompletedCells, 1)
		atomic.AddInt64(&e.progress.Completed, 1)
	case ctx.Err() != nil:
		finished = false
	default:
		atomic.AddInt64(&e.stats.FailedCells, 1)
		atomic.AddInt64(&e.progress.Failed, 1)
		cerr = &CellError{
			Tax:      cell.Tax,
			SD:       cell.SD,
			Message:  err.Error(),
			Cause:    err,
			Duration: duration,
		}
	}

	e.updateProgress()
	return finished, cerr
}

func (e *Executor) recordError(err CellError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, err)
}

func (e *Executor) updateProgress() {
	e.progressMu.Lock()

	completed := atomic.LoadInt64(&e.progress.Completed)
	failed := atomic.LoadInt64(&e.progress.Failed)
	if e.progress.Total > 0 {
		e.progress.Percent = float64(completed+failed) / float64(e.progress.Total) * 100
	}

	elapsed := time.Since(e.stats.StartTime)
	if completed > 0 {
		avg := elapsed / time.Duration(completed)
		remaining := e.progress.Total - completed - failed
		e.progress.ETA = avg * time.Duration(remaining)
	}
	snapshot := e.snapshot()
	e.progressMu.Unlock()

	if e.onUpdate != nil {
		e.callbackMu.Lock()
		e.onUpdate(snapshot)
		e.callbackMu.Unlock()
	}
}

// snapshot copies progress; callers hold progressMu
func (e *Executor) snapshot() Progress {
	return Progress{
		Total:      e.progress.Total,
		Completed:  atomic.LoadInt64(&e.progress.Completed),
		InProgress: atomic.LoadInt64(&e.progress.InProgress),
		Failed:     atomic.LoadInt64(&e.progress.Failed),
		Percent:    e.progress.Percent,
		ETA:        e.progress.ETA,
	}
}

func (e *Executor) calculateAverageDuration() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	if len(e.durations) == 0 {
		return
	}

	var total time.Duration
	for _, d := range e.durations {
		total += d
	}
	e.stats.AverageDuration = total / time.Duration(len(e.durations))
}

// GetStats returns execution stats
func (e *Executor) GetStats() ExecutionStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return ExecutionStats{
		TotalCells:      e.stats.TotalCells,
		CompletedCells:  atomic.LoadInt64(&e.stats.CompletedCells),
		FailedCells:     atomic.LoadInt64(&e.stats.FailedCells),
		SkippedCells:    e.stats.SkippedCells,
		StartTime:       e.stats.StartTime,
		EndTime:         e.stats.EndTime,
		MaxConcurrency:  e.stats.MaxConcurrency,
		AverageDuration: e.stats.AverageDuration,
	}
}

// GetErrors returns all cell errors
func (e *Executor) GetErrors() []CellError {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]CellError, len(e.errors))
	copy(out, e.errors)
	return out
}
