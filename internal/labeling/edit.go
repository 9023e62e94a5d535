package labeling

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

// Edit is a labeller's change to one sample. A nil Note leaves the stored
// note unchanged.
type Edit struct {
	Attrs model.Attributes `json:"attrs"`
	Note  *string          `json:"note,omitempty"`
}

// EditResult is the saved sample and the next sample still needing work.
type EditResult struct {
	Sample *model.Sample `json:"sample"`
	Next   *int64        `json:"next"`
}

// EditSample saves the label slots of one sample and re-derives its status.
func (s *Service) EditSample(ctx context.Context, id int64, edit Edit, user *model.User) (EditResult, error) {
	attrs := edit.Attrs.Trimmed()
	status := model.DeriveStatus(attrs)

	var saved *model.Sample
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		smp, err := tx.GetSample(ctx, id)
		if err != nil {
			return err
		}
		if !user.Permits(smp.Category, smp.Brand) {
			return eris.Wrapf(model.ErrPermissionDenied, "labeling: sample %d", id)
		}
		if err := tx.UpdateLabels(ctx, id, store.LabelUpdate{Attrs: attrs, Note: edit.Note, Status: status}); err != nil {
			return err
		}
		smp.SetAttributes(attrs)
		smp.Status = status
		if edit.Note != nil {
			smp.Note = model.Ptr(*edit.Note)
		}
		saved = smp
		return nil
	})
	if err != nil {
		return EditResult{}, err
	}

	scope := user.Scope()
	s.cache.InvalidateScope(scope)

	next, err := s.store.NextUnresolvedID(ctx, id, scope)
	if err != nil {
		return EditResult{}, err
	}
	return EditResult{Sample: saved, Next: next}, nil
}

// BatchEdit is one row of a batch save: the values now on screen, the
// snapshot the screen was loaded with, and whether a Prelabeled row was
// accepted as is.
type BatchEdit struct {
	ID             int64            `json:"id"`
	Attrs          model.Attributes `json:"attrs"`
	Original       model.Attributes `json:"original"`
	OriginalStatus model.Status     `json:"original_status"`
	Accepted       bool             `json:"accepted"`
}

// BatchResult counts what a batch save did.
type BatchResult struct {
	Manual   int `json:"manual"`
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}

// Saved is the number of rows written.
func (r BatchResult) Saved() int {
	return r.Manual + r.Accepted
}

func validateBatch(edits []BatchEdit) error {
	seen := make(map[int64]bool, len(edits))
	for _, e := range edits {
		if e.ID <= 0 {
			return eris.Wrapf(model.ErrValidation, "labeling: invalid sample id %d", e.ID)
		}
		if seen[e.ID] {
			return eris.Wrapf(model.ErrValidation, "labeling: sample %d appears twice", e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// BatchSave applies a page of edits in one transaction. Rows the user may
// not see or that no longer exist are skipped. Any storage error rolls the
// whole batch back.
func (s *Service) BatchSave(ctx context.Context, edits []BatchEdit, user *model.User) (BatchResult, error) {
	if err := validateBatch(edits); err != nil {
		return BatchResult{}, err
	}

	var res BatchResult
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		res = BatchResult{}
		for _, e := range edits {
			smp, err := tx.GetSample(ctx, e.ID)
			if isNotFound(err) {
				res.Skipped++
				continue
			}
			if err != nil {
				return err
			}
			if !user.Permits(smp.Category, smp.Brand) {
				res.Skipped++
				continue
			}

			attrs := e.Attrs.Trimmed()
			switch {
			case attrs != e.Original.Trimmed():
				if err := tx.UpdateLabels(ctx, e.ID, store.LabelUpdate{Attrs: attrs, Status: model.DeriveStatus(attrs)}); err != nil {
					return err
				}
				res.Manual++
			case e.OriginalStatus == model.StatusPrelabeled && e.Accepted:
				if err := tx.SetStatus(ctx, e.ID, model.DeriveStatus(smp.Attributes().Trimmed())); err != nil {
					return err
				}
				res.Accepted++
			default:
				res.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}

	if res.Saved() > 0 {
		s.cache.InvalidateAll()
	}
	zap.L().Debug("batch save",
		zap.String("component", "labeling"),
		zap.String("user", user.Username),
		zap.Int("manual", res.Manual),
		zap.Int("accepted", res.Accepted),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// BatchLabel writes the same label slots to every id. Empty slots keep
// the stored value. Every id must exist and be visible to user or nothing
// is written.
func (s *Service) BatchLabel(ctx context.Context, ids []int64, attrs model.Attributes, user *model.User) (int, error) {
	if len(ids) == 0 {
		return 0, eris.Wrap(model.ErrValidation, "labeling: no samples selected")
	}
	attrs = attrs.Trimmed()

	seen := make(map[int64]bool, len(ids))
	updated := 0
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		updated = 0
		for _, id := range ids {
			if id <= 0 {
				return eris.Wrapf(model.ErrValidation, "labeling: invalid sample id %d", id)
			}
			if seen[id] {
				continue
			}
			seen[id] = true

			smp, err := tx.GetSample(ctx, id)
			if err != nil {
				return err
			}
			if !user.Permits(smp.Category, smp.Brand) {
				return eris.Wrapf(model.ErrPermissionDenied, "labeling: sample %d", id)
			}

			merged := smp.Attributes()
			for i, v := range attrs {
				if v != "" {
					merged[i] = v
				}
			}
			if err := tx.UpdateLabels(ctx, id, store.LabelUpdate{Attrs: merged, Status: model.DeriveStatus(merged.Trimmed())}); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		s.cache.InvalidateAll()
	}
	return updated, nil
}
