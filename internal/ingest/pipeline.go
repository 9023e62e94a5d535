// Package ingest loads CSV and XLSX sample files into the store in chunks.
package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

// DefaultChunkSize is the number of rows inserted per transaction.
const DefaultChunkSize = 5000

// ProgressFunc receives progress after every committed chunk. For sources
// of unknown length total equals processed.
type ProgressFunc func(processed, total int, message string)

// Sink is the part of the store an import writes to.
type Sink interface {
	InsertSamples(ctx context.Context, samples []model.Sample) (int64, error)
	BulkLoad(ctx context.Context, it store.SampleIterator) (int64, error)
}

// Options configures one import.
type Options struct {
	ChunkSize int
	Progress  ProgressFunc
	TempDir   string // bulk path only; default os.TempDir()
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

func (o Options) progress(processed, total int, msg string) {
	if o.Progress != nil {
		o.Progress(processed, total, msg)
	}
}

// Result is the outcome of an import. Rows counts the samples committed,
// including those committed before a failure.
type Result struct {
	Success bool
	Rows    int
	Message string
	Err     error
}

func failed(rows int, err error) Result {
	return Result{Rows: rows, Message: "import failed: " + err.Error(), Err: err}
}

// Pipeline imports sample files into a Sink.
type Pipeline struct {
	sink Sink
}

// NewPipeline creates a Pipeline writing to sink.
func NewPipeline(sink Sink) *Pipeline {
	return &Pipeline{sink: sink}
}

// Import reads path chunk by chunk and inserts every chunk in its own
// transaction. Chunks committed before a failure stay committed. The
// context is checked between chunks.
func (p *Pipeline) Import(ctx context.Context, path string, opts Options) Result {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("file", filepath.Base(path)))

	src, err := OpenSource(path)
	if err != nil {
		return failed(0, err)
	}
	defer src.Close() //nolint:errcheck

	if len(src.Header()) == 0 {
		return failed(0, eris.Wrap(model.ErrValidation, "ingest: file has no header row"))
	}
	proj := newProjection(src.Header())
	if proj.matched() == 0 {
		log.Warn("no sample columns recognised in header", zap.Strings("header", src.Header()))
	}

	total := src.Total()
	if total > 0 {
		opts.progress(0, total, fmt.Sprintf("preparing to import %d rows", total))
	}

	chunk := opts.chunkSize()
	rows := 0
	for {
		if err := ctx.Err(); err != nil {
			log.Warn("import cancelled", zap.Int("rows", rows))
			return failed(rows, eris.Wrap(err, "ingest: cancelled"))
		}

		batch, err := src.Next(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			return failed(rows, err)
		}

		n, err := p.sink.InsertSamples(ctx, proj.samples(batch))
		if err != nil {
			log.Error("chunk insert failed", zap.Int("rows", rows), zap.Error(err))
			return failed(rows, err)
		}
		rows += int(n)

		if total > 0 {
			opts.progress(rows, total, fmt.Sprintf("imported %d / %d rows", rows, total))
		} else {
			opts.progress(rows, rows, fmt.Sprintf("imported %d rows", rows))
		}
		log.Debug("chunk committed", zap.Int64("chunk_rows", n), zap.Int("rows", rows))
	}

	log.Info("import complete", zap.Int("rows", rows))
	return Result{Success: true, Rows: rows, Message: fmt.Sprintf("imported %d rows", rows)}
}
