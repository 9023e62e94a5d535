package model

import (
	"strings"
	"time"
)

// Status is the labelling lifecycle stage of a sample.
type Status string

const (
	StatusUnlabeled  Status = "Unlabeled"
	StatusIncomplete Status = "Incomplete"
	StatusLabeled    Status = "Labeled"
	StatusPrelabeled Status = "Prelabeled"
	StatusHistorical Status = "Historical"
)

// AllStatuses lists every status a sample can carry, in display order.
func AllStatuses() []Status {
	return []Status{StatusUnlabeled, StatusIncomplete, StatusLabeled, StatusPrelabeled, StatusHistorical}
}

// IsUnlabeled reports whether s counts as Unlabeled. Legacy rows may carry
// NULL or an empty string instead of the literal value.
func (s Status) IsUnlabeled() bool {
	return s == "" || s == StatusUnlabeled
}

// Resolved reports whether a sample with this status no longer needs work.
// Prelabeled rows still need a human to accept them.
func (s Status) Resolved() bool {
	switch s {
	case StatusLabeled, StatusHistorical, StatusIncomplete:
		return true
	default:
		return false
	}
}

// ResolvedStatuses are the statuses excluded from unlabeled-item navigation.
var ResolvedStatuses = []Status{StatusLabeled, StatusHistorical, StatusIncomplete}

// Attributes holds the five ordered label slots of a sample.
type Attributes [5]string

// Trimmed returns a copy with surrounding whitespace removed from every slot.
func (a Attributes) Trimmed() Attributes {
	var out Attributes
	for i, v := range a {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

// DeriveStatus applies the labelling rule: a sample is Labeled when the
// first slot and at least one of the remaining slots are filled, otherwise
// it is Incomplete. Every write path that touches attribute slots uses it.
func DeriveStatus(a Attributes) Status {
	if a[0] == "" {
		return StatusIncomplete
	}
	for _, v := range a[1:] {
		if v != "" {
			return StatusLabeled
		}
	}
	return StatusIncomplete
}

// Sample is one catalog row under label review.
type Sample struct {
	ID                  int64      `json:"id"`
	ERetailer           *string    `json:"eRetailer"`
	OnlineStore         *string    `json:"online_store"`
	Category            *string    `json:"category"`
	Brand               *string    `json:"brand"`
	IsCompetitor        *string    `json:"is_competitor"`
	ProductDescription  *string    `json:"product_description"`
	URL                 *string    `json:"url"`
	SKUURL              *string    `json:"sku_url"`
	SKU                 *string    `json:"sku"`
	SKUID               *string    `json:"sku_id"`
	RetailerProductCode *string    `json:"retailer_product_code"`
	LatestReviewDate    *time.Time `json:"latest_review_date"`
	ImageURL            *string    `json:"image_url"`
	Total               *string    `json:"total"`
	TotalComments       *string    `json:"total_comments"`
	LastMonthTotal      *string    `json:"last_month_total"`
	LastTotalComments   *string    `json:"last_total_comments"`
	Note                *string    `json:"note"`
	ProdAttributes1     *string    `json:"prod_attributes1"`
	ProdAttributes2     *string    `json:"prod_attributes2"`
	ProdAttributes3     *string    `json:"prod_attributes3"`
	ProdAttributes4     *string    `json:"prod_attributes4"`
	ProdAttributes5     *string    `json:"prod_attributes5"`
	Status              Status     `json:"status"`
}

// Attributes returns the five label slots with NULL read as empty.
func (s *Sample) Attributes() Attributes {
	return Attributes{
		deref(s.ProdAttributes1),
		deref(s.ProdAttributes2),
		deref(s.ProdAttributes3),
		deref(s.ProdAttributes4),
		deref(s.ProdAttributes5),
	}
}

// SetAttributes stores the five label slots verbatim.
func (s *Sample) SetAttributes(a Attributes) {
	s.ProdAttributes1 = Ptr(a[0])
	s.ProdAttributes2 = Ptr(a[1])
	s.ProdAttributes3 = Ptr(a[2])
	s.ProdAttributes4 = Ptr(a[3])
	s.ProdAttributes5 = Ptr(a[4])
}

// NeedsWork reports whether the sample is still waiting for a labeller.
func (s *Sample) NeedsWork() bool {
	return !s.Status.Resolved()
}

// DateLayout is the canonical textual form of review dates.
const DateLayout = "2006-01-02"

// Field describes one persisted sample column and its file header.
type Field struct {
	Header string // column name in import/export files
	Column string // column name in sample_data
}

// SampleFields lists the sample columns (excluding id) in insert order. The
// export header and the bulk-load intermediate file both follow this order.
var SampleFields = []Field{
	{"eRetailer", "e_retailer"},
	{"online_store", "online_store"},
	{"category", "category"},
	{"brand", "brand"},
	{"is_competitor", "is_competitor"},
	{"product_description", "product_description"},
	{"url", "url"},
	{"sku_url", "sku_url"},
	{"sku", "sku"},
	{"sku_id", "sku_id"},
	{"retailer_product_code", "retailer_product_code"},
	{"latest_review_date", "latest_review_date"},
	{"image_url", "image_url"},
	{"total", "total"},
	{"total_comments", "total_comments"},
	{"last_month_total", "last_month_total"},
	{"last_total_comments", "last_total_comments"},
	{"note", "note"},
	{"prod_attributes1", "prod_attributes1"},
	{"prod_attributes2", "prod_attributes2"},
	{"prod_attributes3", "prod_attributes3"},
	{"prod_attributes4", "prod_attributes4"},
	{"prod_attributes5", "prod_attributes5"},
	{"status", "status"},
}

// DateFieldIndex is the position of latest_review_date in SampleFields.
const DateFieldIndex = 11

// SampleColumns returns the database column names in SampleFields order.
func SampleColumns() []string {
	cols := make([]string, len(SampleFields))
	for i, f := range SampleFields {
		cols[i] = f.Column
	}
	return cols
}

// SampleHeaders returns the file header names in SampleFields order.
func SampleHeaders() []string {
	hdrs := make([]string, len(SampleFields))
	for i, f := range SampleFields {
		hdrs[i] = f.Header
	}
	return hdrs
}

// Texts returns pointers to every text field in SampleFields order. The
// entry at DateFieldIndex is nil because the review date is not text.
func (s *Sample) Texts() []**string {
	return []**string{
		&s.ERetailer, &s.OnlineStore, &s.Category, &s.Brand, &s.IsCompetitor,
		&s.ProductDescription, &s.URL, &s.SKUURL, &s.SKU, &s.SKUID,
		&s.RetailerProductCode, nil, &s.ImageURL, &s.Total, &s.TotalComments,
		&s.LastMonthTotal, &s.LastTotalComments, &s.Note,
		&s.ProdAttributes1, &s.ProdAttributes2, &s.ProdAttributes3,
		&s.ProdAttributes4, &s.ProdAttributes5, nil,
	}
}

// Record renders the sample as export cells in SampleFields order.
// NULL values become empty cells.
func (s *Sample) Record() []string {
	out := make([]string, len(SampleFields))
	for i, p := range s.Texts() {
		if p != nil {
			out[i] = deref(*p)
		}
	}
	if s.LatestReviewDate != nil {
		out[DateFieldIndex] = s.LatestReviewDate.Format(DateLayout)
	}
	out[len(out)-1] = string(s.Status)
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
