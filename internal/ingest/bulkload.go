package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sample-labeler/internal/model"
)

// nullSentinel marks a NULL cell in the intermediate file.
const nullSentinel = `\N`

// BulkImport converts path into an intermediate CSV in insert column order
// and streams it to the store in a single load. The load is all or nothing.
// The intermediate file is removed on every exit path.
func (p *Pipeline) BulkImport(ctx context.Context, path string, opts Options) Result {
	log := zap.L().With(zap.String("component", "ingest.bulk"), zap.String("file", filepath.Base(path)))

	src, err := OpenSource(path)
	if err != nil {
		return failed(0, err)
	}
	defer src.Close() //nolint:errcheck

	if len(src.Header()) == 0 {
		return failed(0, eris.Wrap(model.ErrValidation, "ingest: file has no header row"))
	}

	tmp, err := os.CreateTemp(opts.TempDir, "labeler-bulk-*.csv")
	if err != nil {
		return failed(0, eris.Wrap(err, "ingest: create intermediate file"))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	written, err := writeIntermediate(ctx, tmp, src, newProjection(src.Header()), opts)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = eris.Wrap(cerr, "ingest: close intermediate file")
	}
	if err != nil {
		return failed(0, err)
	}
	log.Debug("intermediate file written", zap.Int("rows", written), zap.String("path", tmpPath))

	f, err := os.Open(tmpPath)
	if err != nil {
		return failed(0, eris.Wrap(err, "ingest: reopen intermediate file"))
	}
	defer f.Close() //nolint:errcheck

	n, err := p.sink.BulkLoad(ctx, newIntermediateReader(f))
	if err != nil {
		log.Error("bulk load failed", zap.Error(err))
		return failed(0, err)
	}

	opts.progress(int(n), int(n), fmt.Sprintf("loaded %d rows", n))
	log.Info("bulk import complete", zap.Int64("rows", n))
	return Result{Success: true, Rows: int(n), Message: fmt.Sprintf("imported %d rows", n)}
}

func writeIntermediate(ctx context.Context, w io.Writer, src RowSource, proj projection, opts Options) (int, error) {
	cw := csv.NewWriter(w)
	chunk := opts.chunkSize()
	total := src.Total()
	rows := 0

	for {
		if err := ctx.Err(); err != nil {
			return rows, eris.Wrap(err, "ingest: cancelled")
		}
		batch, err := src.Next(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, err
		}
		for _, row := range batch {
			s := proj.sample(row)
			if err := cw.Write(intermediateRecord(&s)); err != nil {
				return rows, eris.Wrap(err, "ingest: write intermediate row")
			}
		}
		rows += len(batch)
		opts.progress(rows, max(total, rows), fmt.Sprintf("prepared %d rows", rows))
	}

	cw.Flush()
	return rows, eris.Wrap(cw.Error(), "ingest: flush intermediate file")
}

func intermediateRecord(s *model.Sample) []string {
	out := make([]string, len(model.SampleFields))
	for i, p := range s.Texts() {
		switch {
		case i == model.DateFieldIndex:
			out[i] = nullSentinel
			if s.LatestReviewDate != nil {
				out[i] = s.LatestReviewDate.Format(model.DateLayout)
			}
		case p == nil:
			out[i] = string(s.Status)
		case *p == nil:
			out[i] = nullSentinel
		default:
			out[i] = **p
		}
	}
	return out
}

// intermediateReader reads samples back from an intermediate file.
type intermediateReader struct {
	r *csv.Reader
}

func newIntermediateReader(r io.Reader) *intermediateReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(model.SampleFields)
	cr.ReuseRecord = true
	return &intermediateReader{r: cr}
}

// Next implements store.SampleIterator.
func (it *intermediateReader) Next(ctx context.Context) (*model.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record, err := it.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read intermediate row")
	}

	var s model.Sample
	for i, dst := range s.Texts() {
		if dst == nil || record[i] == nullSentinel {
			continue
		}
		v := record[i]
		*dst = &v
	}
	if v := record[model.DateFieldIndex]; v != nullSentinel {
		s.LatestReviewDate = ParseDate(v)
	}
	s.Status = model.Status(record[len(record)-1])
	return &s, nil
}
