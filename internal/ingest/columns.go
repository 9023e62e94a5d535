package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/sample-labeler/internal/model"
)

// headerAliases maps alternative header spellings onto SampleFields headers.
var headerAliases = map[string]string{
	"e_retailer": "eRetailer",
}

// nullTokens are cell values read as NULL.
var nullTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"NaN":  true,
	"NULL": true,
}

// projection maps file columns onto SampleFields positions.
type projection struct {
	idx []int // per SampleFields entry: file column index, -1 when missing
}

func newProjection(header []string) projection {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if alias, ok := headerAliases[h]; ok {
			h = alias
		}
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	p := projection{idx: make([]int, len(model.SampleFields))}
	for i, f := range model.SampleFields {
		j, ok := pos[f.Header]
		if !ok {
			j = -1
		}
		p.idx[i] = j
	}
	return p
}

// matched reports how many sample columns the header supplies.
func (p projection) matched() int {
	n := 0
	for _, j := range p.idx {
		if j >= 0 {
			n++
		}
	}
	return n
}

func (p projection) cell(row []string, field int) *string {
	j := p.idx[field]
	if j < 0 || j >= len(row) {
		return nil
	}
	return nullable(row[j])
}

// sample builds a Sample from one file row. Unparseable values become NULL.
func (p projection) sample(row []string) model.Sample {
	var s model.Sample
	for i, dst := range s.Texts() {
		if dst != nil {
			*dst = p.cell(row, i)
		}
	}
	if v := p.cell(row, model.DateFieldIndex); v != nil {
		s.LatestReviewDate = ParseDate(*v)
	}
	s.Status = model.StatusUnlabeled
	if v := p.cell(row, len(model.SampleFields)-1); v != nil {
		s.Status = model.Status(*v)
	}
	return s
}

func (p projection) samples(rows [][]string) []model.Sample {
	out := make([]model.Sample, len(rows))
	for i, row := range rows {
		out[i] = p.sample(row)
	}
	return out
}

// nullable returns nil for empty and NaN-like cells, the value otherwise.
func nullable(v string) *string {
	if nullTokens[strings.TrimSpace(v)] {
		return nil
	}
	return &v
}

var dateLayouts = []string{
	model.DateLayout,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// Excel serial day numbers count from 1899-12-30.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const maxExcelSerial = 2958465 // 9999-12-31

// ParseDate reads a review date in any of the accepted layouts or as an
// Excel serial day number. It returns nil when v is not a date.
func ParseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 1 && f <= maxExcelSerial {
		d := excelEpoch.AddDate(0, 0, int(math.Floor(f)))
		return &d
	}
	return nil
}
