package admin

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

// ExportScope selects which samples an export contains.
type ExportScope string

const (
	ExportAll     ExportScope = "all"
	ExportLabeled ExportScope = "labeled"
)

// ParseExportScope validates an export type. Empty means all.
func ParseExportScope(s string) (ExportScope, error) {
	switch ExportScope(s) {
	case "", ExportAll:
		return ExportAll, nil
	case ExportLabeled:
		return ExportLabeled, nil
	default:
		return "", eris.Wrapf(model.ErrValidation, "admin: unknown export type %q", s)
	}
}

func (e ExportScope) statuses() []model.Status {
	if e == ExportLabeled {
		return []model.Status{model.StatusLabeled, model.StatusHistorical}
	}
	return nil
}

// Exporter writes samples as UTF-8 CSV with a byte order mark.
type Exporter struct {
	store store.Store
	now   func() time.Time
}

// NewExporter creates an Exporter.
func NewExporter(st store.Store) *Exporter {
	return &Exporter{store: st, now: time.Now}
}

// Export writes the header and every sample in scope to w, ordered by id,
// and returns the number of samples written.
func (e *Exporter) Export(ctx context.Context, w io.Writer, scope ExportScope) (int, error) {
	bw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bw)

	if err := cw.Write(model.SampleHeaders()); err != nil {
		return 0, eris.Wrap(err, "admin: write export header")
	}

	n := 0
	err := e.store.IterateSamples(ctx, scope.statuses(), func(s *model.Sample) error {
		n++
		return cw.Write(s.Record())
	})
	if err != nil {
		return n, eris.Wrap(err, "admin: export samples")
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, eris.Wrap(err, "admin: flush export")
	}
	if err := bw.Close(); err != nil {
		return n, eris.Wrap(err, "admin: flush export")
	}
	return n, nil
}

// ExportFile writes an export into dir as export_<scope>_<timestamp>.csv and
// returns its path. The file appears atomically. An export with no samples
// fails with model.ErrNotFound and leaves no file behind.
func (e *Exporter) ExportFile(ctx context.Context, dir string, scope ExportScope) (string, int, error) {
	var buf bytes.Buffer
	n, err := e.Export(ctx, &buf, scope)
	if err != nil {
		return "", 0, err
	}
	if n == 0 {
		return "", 0, eris.Wrapf(model.ErrNotFound, "admin: no %s samples to export", scope)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, eris.Wrap(err, "admin: create export dir")
	}
	name := fmt.Sprintf("export_%s_%s.csv", scope, e.now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := atomic.WriteFile(path, &buf); err != nil {
		return "", 0, eris.Wrap(err, "admin: write export file")
	}
	return path, n, nil
}
