package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/sample-labeler/internal/model"
)

// RowSource yields the data rows of a tabular file in chunks.
type RowSource interface {
	// Header returns the column names of the first row.
	Header() []string
	// Next returns up to n rows. It returns io.EOF once no rows remain.
	Next(n int) ([][]string, error)
	// Total returns the number of data rows, or 0 when unknown.
	Total() int
	Close() error
}

// Format is a supported upload file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat maps a file name to its format by extension, ignoring case.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Wrapf(model.ErrUnsupportedFormat, "ingest: %q", filepath.Base(path))
	}
}

// OpenSource opens path with the reader matching its extension.
func OpenSource(path string) (RowSource, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return openXLSX(path)
	}
	return openCSV(path)
}

// csvSource streams a CSV file. UTF-8 input is accepted with or without a
// byte order mark.
type csvSource struct {
	f      *os.File
	r      *csv.Reader
	header []string
	done   bool
}

func openCSV(path string) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csv: open file")
	}

	r := csv.NewReader(transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	r.FieldsPerRecord = -1 // allow ragged rows
	r.LazyQuotes = true

	s := &csvSource{f: f, r: r}
	header, err := r.Read()
	switch {
	case err == io.EOF:
		s.done = true
	case err != nil:
		_ = f.Close()
		return nil, eris.Wrap(err, "csv: read header")
	default:
		s.header = trimAll(header)
	}
	return s, nil
}

func (s *csvSource) Header() []string { return s.header }
func (s *csvSource) Total() int       { return 0 }
func (s *csvSource) Close() error     { return s.f.Close() }

func (s *csvSource) Next(n int) ([][]string, error) {
	if s.done {
		return nil, io.EOF
	}
	rows := make([][]string, 0, n)
	for len(rows) < n {
		record, err := s.r.Read()
		if err == io.EOF {
			s.done = true
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if blank(record) {
			continue
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	return rows, nil
}

// memorySource holds a fully materialised worksheet.
type memorySource struct {
	header []string
	rows   [][]string
	pos    int
}

func openXLSX(path string) (*memorySource, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return &memorySource{}, nil
	}

	s := &memorySource{}
	for i, row := range f.Sheets[0].Rows {
		cells := rowToStrings(row)
		if i == 0 {
			s.header = trimAll(cells)
			continue
		}
		if blank(cells) {
			continue
		}
		s.rows = append(s.rows, cells)
	}
	return s, nil
}

func (s *memorySource) Header() []string { return s.header }
func (s *memorySource) Total() int       { return len(s.rows) }
func (s *memorySource) Close() error     { return nil }

func (s *memorySource) Next(n int) ([][]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	end := min(s.pos+n, len(s.rows))
	out := s.rows[s.pos:end]
	s.pos = end
	return out, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func trimAll(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
