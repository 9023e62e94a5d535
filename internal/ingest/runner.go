package ingest

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Invalidator drops cached option lists after the data changes.
type Invalidator interface {
	InvalidateAll()
}

// Recorder receives import outcomes.
type Recorder interface {
	RecordImport(success bool, rows int, elapsed time.Duration)
}

// Runner runs uploads in the background and reports through a Tracker.
type Runner struct {
	pipeline  *Pipeline
	tracker   *Tracker
	cache     Invalidator
	recorder  Recorder
	chunkSize int
	wg        sync.WaitGroup
}

// NewRunner creates a Runner. cache and recorder may be nil.
func NewRunner(p *Pipeline, t *Tracker, cache Invalidator, recorder Recorder, chunkSize int) *Runner {
	return &Runner{
		pipeline:  p,
		tracker:   t,
		cache:     cache,
		recorder:  recorder,
		chunkSize: chunkSize,
	}
}

// Tracker returns the tracker tasks are reported to.
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// Start imports path in a new goroutine and returns the task id at once.
// ctx must outlive the request that triggered the upload. When removeAfter
// is set the file is deleted once the import finishes.
func (r *Runner) Start(ctx context.Context, path string, removeAfter bool) string {
	id := r.tracker.Create(0)
	log := zap.L().With(zap.String("component", "ingest.runner"), zap.String("task_id", id))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if removeAfter {
			defer func() {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					log.Warn("remove upload", zap.Error(err))
				}
			}()
		}

		start := time.Now()
		res := r.pipeline.Import(ctx, path, Options{
			ChunkSize: r.chunkSize,
			Progress: func(processed, total int, msg string) {
				r.tracker.Update(id, processed, total, msg)
			},
		})

		if r.recorder != nil {
			r.recorder.RecordImport(res.Success, res.Rows, time.Since(start))
		}
		if res.Rows > 0 && r.cache != nil {
			r.cache.InvalidateAll()
		}

		if !res.Success {
			log.Error("import failed", zap.Int("rows", res.Rows), zap.Error(res.Err))
			r.tracker.Fail(id, res.Message)
			return
		}
		log.Info("import finished", zap.Int("rows", res.Rows), zap.Duration("elapsed", time.Since(start)))
		r.tracker.Complete(id, res.Message)
	}()

	return id
}

// Wait blocks until every started import has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
