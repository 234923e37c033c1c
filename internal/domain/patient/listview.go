package patient

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ListView holds the full fetched patient sequence and a derived filtered
// view for the list/search page. Re-derivation is synchronous on every term
// or base-sequence change; there is no debouncing and no async work.
type ListView struct {
	svc *Service

	mu       sync.Mutex
	term     string
	patients []*Patient
	filtered []*Patient
}

func NewListView(svc *Service) *ListView {
	return &ListView{svc: svc}
}

// Refresh re-fetches the full sequence from the store and re-derives the
// filtered view.
func (lv *ListView) Refresh(ctx context.Context) error {
	items, err := lv.svc.List(ctx)
	if err != nil {
		return err
	}
	lv.mu.Lock()
	defer lv.mu.Unlock()
	lv.patients = items
	lv.filtered = Filter(lv.patients, lv.term)
	return nil
}

// SetTerm updates the search term and re-derives the filtered view.
func (lv *ListView) SetTerm(term string) {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	lv.term = term
	lv.filtered = Filter(lv.patients, lv.term)
}

// Visible returns the currently filtered sequence.
func (lv *ListView) Visible() []*Patient {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	out := make([]*Patient, len(lv.filtered))
	copy(out, lv.filtered)
	return out
}

// Delete removes a patient and re-fetches the full sequence from the store
// rather than splicing locally, so the list always reflects server truth.
func (lv *ListView) Delete(ctx context.Context, id uuid.UUID) error {
	if err := lv.svc.Delete(ctx, id); err != nil {
		return err
	}
	return lv.Refresh(ctx)
}
