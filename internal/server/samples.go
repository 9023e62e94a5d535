package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/sample-labeler/internal/labeling"
	"github.com/sells-group/sample-labeler/internal/model"
)

// queryList returns the trimmed, non-empty values of a repeated query
// parameter. Values are never split, so "Acme, Inc." stays one value.
func queryList(q url.Values, name string) []string {
	var out []string
	for _, v := range q[name] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func queryInt(q url.Values, name string) int {
	n, err := strconv.Atoi(q.Get(name))
	if err != nil {
		return 0
	}
	return n
}

func filterFromQuery(q url.Values) labeling.Filter {
	f := labeling.Filter{
		Keyword:           q.Get("keyword"),
		ERetailer:         queryList(q, "eRetailer"),
		OnlineStore:       queryList(q, "online_store"),
		Brand:             queryList(q, "brand"),
		Note:              queryList(q, "note"),
		IsCompetitor:      queryList(q, "is_competitor"),
		TotalComments:     queryList(q, "total_comments"),
		LastTotalComments: queryList(q, "last_total_comments"),
		StartDate:         q.Get("start_date"),
		EndDate:           q.Get("end_date"),
	}
	for i := range f.Attrs {
		f.Attrs[i] = queryList(q, fmt.Sprintf("prod_attributes%d", i+1))
	}
	for _, s := range queryList(q, "status") {
		f.Statuses = append(f.Statuses, model.Status(s))
	}
	return f
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleListSamples(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	q := r.URL.Query()

	page, err := s.labeling.ListSamples(r.Context(), user, filterFromQuery(q), queryInt(q, "page"), queryInt(q, "page_size"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := s.labeling.FilterOptions(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": page, "options": opts})
}

func (s *Server) handleGetSample(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid sample id")
		return
	}
	smp, err := s.labeling.GetSample(r.Context(), id, userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, smp)
}

func (s *Server) handleEditSample(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid sample id")
		return
	}
	var edit labeling.Edit
	if !decodeJSON(w, r, &edit) {
		return
	}
	res, err := s.labeling.EditSample(r.Context(), id, edit, userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type batchSaveRequest struct {
	Edits []labeling.BatchEdit `json:"edits"`
}

func (s *Server) handleBatchSave(w http.ResponseWriter, r *http.Request) {
	var req batchSaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.labeling.BatchSave(r.Context(), req.Edits, userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"manual":   res.Manual,
		"accepted": res.Accepted,
		"skipped":  res.Skipped,
		"saved":    res.Saved(),
	})
}

type batchLabelRequest struct {
	IDs   []int64          `json:"ids"`
	Attrs model.Attributes `json:"attrs"`
}

func (s *Server) handleBatchLabel(w http.ResponseWriter, r *http.Request) {
	var req batchLabelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := s.labeling.BatchLabel(r.Context(), req.IDs, req.Attrs, userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	vals, err := s.labeling.DistinctOptions(r.Context(), chi.URLParam(r, "field"), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"values": vals})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.labeling.Stats(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
